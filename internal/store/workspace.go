package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crawlspace/internal/collection"
	"github.com/sells-group/crawlspace/internal/model"
)

const workspaceColumns = `id, name, selected, keyword, searchterm, blur_level, created_at`

// InitWorkspaces destroys every workspace and its tables, then creates and
// selects "default". Only the CLI bootstrap path calls this.
func (s *sqlStore) InitWorkspaces(ctx context.Context) error {
	existing, err := s.ListWorkspaces(ctx)
	if err != nil {
		return err
	}
	for _, ws := range existing {
		zap.L().Warn("destroying workspace", zap.String("workspace", ws.Name), zap.String("id", ws.ID))
		_ = s.dropCollections(ctx, collection.ForWorkspace(ws.Name), true)
	}
	if _, err := s.c.exec(ctx, "DELETE FROM "+workspacesTable); err != nil {
		return eris.Wrapf(err, "%s: clear workspaces", s.d.name)
	}
	_ = s.dropCollections(ctx, collection.ForWorkspace(collection.DefaultWorkspace), true)

	ws, err := s.CreateWorkspace(ctx, collection.DefaultWorkspace)
	if err != nil {
		return err
	}
	return s.SelectWorkspace(ctx, ws.ID)
}

func (s *sqlStore) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	rs, err := s.c.query(ctx, `SELECT `+workspaceColumns+` FROM workspaces ORDER BY name`)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list workspaces", s.d.name)
	}
	defer rs.Close()

	var out []model.Workspace
	for rs.Next() {
		ws, err := scanWorkspace(rs)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan workspace", s.d.name)
		}
		out = append(out, *ws)
	}
	return out, eris.Wrapf(rs.Err(), "%s: list workspaces iterate", s.d.name)
}

func (s *sqlStore) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	q := s.d.stmt(`SELECT ` + workspaceColumns + ` FROM workspaces WHERE id = `)
	q.add(q.arg(id))
	ws, err := scanWorkspace(s.c.queryRow(ctx, q.String(), q.args...))
	if isNoRows(err) {
		return nil, eris.Wrapf(ErrWorkspaceNotFound, "workspace %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get workspace %s", s.d.name, id)
	}
	return ws, nil
}

// CreateWorkspace registers name and creates its four tables. A taken name
// yields *DuplicateWorkspaceError.
func (s *sqlStore) CreateWorkspace(ctx context.Context, name string) (*model.Workspace, error) {
	if err := collection.ValidateWorkspaceName(name); err != nil {
		return nil, &ValidationError{Field: "workspace name", Reason: err.Error()}
	}

	ws := &model.Workspace{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	q := s.d.stmt(`INSERT INTO workspaces (id, name, selected, blur_level, created_at) VALUES (`)
	q.add(q.arg(ws.ID), ", ", q.arg(ws.Name), ", ", q.arg(false), ", 0, ", q.arg(ws.CreatedAt),
		`) ON CONFLICT (name) DO NOTHING`)
	n, err := s.c.exec(ctx, q.String(), q.args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: insert workspace %s", s.d.name, name)
	}
	if n == 0 {
		return nil, &DuplicateWorkspaceError{Name: name}
	}

	if err := s.ensureCollections(ctx, collection.ForWorkspace(name)); err != nil {
		del := s.d.stmt(`DELETE FROM workspaces WHERE id = `)
		del.add(del.arg(ws.ID))
		if _, derr := s.c.exec(ctx, del.String(), del.args...); derr != nil {
			zap.L().Error("remove half-created workspace", zap.String("workspace", name), zap.Error(derr))
		}
		return nil, err
	}

	zap.L().Info("created workspace", zap.String("workspace", name), zap.String("id", ws.ID))
	return ws, nil
}

// SelectWorkspace marks id selected and every other workspace unselected in
// one statement, so no reader observes two selected rows. An unknown id
// leaves the current selection untouched.
func (s *sqlStore) SelectWorkspace(ctx context.Context, id string) error {
	q := s.d.stmt(`UPDATE workspaces SET selected = (id = `)
	q.add(q.arg(id), `) WHERE EXISTS (SELECT 1 FROM workspaces WHERE id = `, q.arg(id), `)`)
	n, err := s.c.exec(ctx, q.String(), q.args...)
	if err != nil {
		return eris.Wrapf(err, "%s: select workspace %s", s.d.name, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrWorkspaceNotFound, "workspace %s", id)
	}
	zap.L().Info("selected workspace", zap.String("id", id))
	return nil
}

// DeleteWorkspace removes a non-selected workspace and drops its tables.
// The row goes first, guarded by NOT selected, so a concurrent select of
// the same workspace cannot leave a selected row without tables.
func (s *sqlStore) DeleteWorkspace(ctx context.Context, id string) error {
	ws, err := s.GetWorkspace(ctx, id)
	if err != nil {
		return err
	}
	if ws.Selected {
		return &DeletingSelectedWorkspaceError{ID: ws.ID, Name: ws.Name}
	}

	q := s.d.stmt(`DELETE FROM workspaces WHERE id = `)
	q.add(q.arg(id), ` AND NOT selected`)
	n, err := s.c.exec(ctx, q.String(), q.args...)
	if err != nil {
		return eris.Wrapf(err, "%s: delete workspace %s", s.d.name, id)
	}
	if n == 0 {
		return &DeletingSelectedWorkspaceError{ID: ws.ID, Name: ws.Name}
	}

	if err := s.dropCollections(ctx, collection.ForWorkspace(ws.Name), false); err != nil {
		return err
	}
	zap.L().Info("deleted workspace", zap.String("workspace", ws.Name), zap.String("id", id))
	return nil
}

// SelectedWorkspace returns the selected workspace, or nil when none is.
func (s *sqlStore) SelectedWorkspace(ctx context.Context) (*model.Workspace, error) {
	rs, err := s.c.query(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE selected ORDER BY name`)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: selected workspace", s.d.name)
	}
	defer rs.Close()

	var found []*model.Workspace
	for rs.Next() {
		ws, err := scanWorkspace(rs)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan workspace", s.d.name)
		}
		found = append(found, ws)
	}
	if err := rs.Err(); err != nil {
		return nil, eris.Wrapf(err, "%s: selected workspace iterate", s.d.name)
	}
	if len(found) == 0 {
		return nil, nil
	}
	if len(found) > 1 {
		zap.L().Error("more than one workspace selected", zap.Int("count", len(found)))
	}
	return found[0], nil
}

func scanWorkspace(r row) (*model.Workspace, error) {
	var (
		ws                   model.Workspace
		keyword, searchterms []byte
	)
	if err := r.Scan(&ws.ID, &ws.Name, &ws.Selected, &keyword, &searchterms, &ws.BlurLevel, &ws.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if ws.Keywords, err = decodeStrings(keyword); err != nil {
		return nil, eris.Wrap(err, "decode keyword")
	}
	if ws.SearchTerms, err = decodeStrings(searchterms); err != nil {
		return nil, eris.Wrap(err, "decode searchterm")
	}
	return &ws, nil
}

func decodeStrings(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}
