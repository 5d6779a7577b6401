package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crawlspace/internal/collection"
	"github.com/sells-group/crawlspace/internal/model"
)

// StorageContext pins the tables one logical operation works against. It is
// a snapshot: selecting another workspace afterwards does not change it.
type StorageContext struct {
	Namespace   collection.Namespace
	WorkspaceID string // empty when no workspace backs the context
	Workspace   string
	Collections collection.Set
}

// HasWorkspace reports whether preference writes have a row to land on.
func (sc StorageContext) HasWorkspace() bool {
	return sc.WorkspaceID != ""
}

// ContextFor returns the context of an explicit workspace.
func ContextFor(ws model.Workspace) StorageContext {
	return StorageContext{
		Namespace:   collection.CrawlData,
		WorkspaceID: ws.ID,
		Workspace:   ws.Name,
		Collections: collection.ForWorkspace(ws.Name),
	}
}

// Resolve snapshots the storage context for ns. For the partitioned
// namespace it reads the selected workspace once; with none selected it
// falls back to the default workspace's tables without a workspace id, so
// preference writes fail rather than land on the wrong workspace.
func Resolve(ctx context.Context, ws Workspaces, ns collection.Namespace) (StorageContext, error) {
	if !ns.Partitioned() {
		set, err := collection.Fixed(ns)
		if err != nil {
			return StorageContext{}, err
		}
		return StorageContext{Namespace: ns, Collections: set}, nil
	}

	selected, err := ws.SelectedWorkspace(ctx)
	if err != nil {
		return StorageContext{}, eris.Wrap(err, "store: resolve selected workspace")
	}
	if selected == nil {
		zap.L().Warn("no workspace selected, using default tables")
		return StorageContext{
			Namespace:   ns,
			Workspace:   collection.DefaultWorkspace,
			Collections: collection.ForWorkspace(collection.DefaultWorkspace),
		}, nil
	}
	return ContextFor(*selected), nil
}
