// Package store persists workspace-scoped crawl data.
//
// Every workspace owns four tables (urls, hosts, seeds, classifier
// features) named by package collection. Entity operations take an explicit
// StorageContext naming those tables; request handlers resolve it once from
// the selected workspace with Resolve.
package store

import (
	"context"

	"github.com/sells-group/crawlspace/internal/model"
)

// HostQuery selects and pages host records.
type HostQuery struct {
	Page     int    `json:"page,omitempty"`      // 1-based, default 1
	PageSize int    `json:"page_size,omitempty"` // default 10
	Field    string `json:"field,omitempty"`     // column matched by Regex, default "host"
	Regex    string `json:"regex,omitempty"`     // also matched against tags
	ShowAll  bool   `json:"show_all,omitempty"`  // include hidden hosts when unfiltered
}

// DeleteResult counts rows removed by a match-based delete.
type DeleteResult struct {
	URLs  int64 `json:"urls"`
	Hosts int64 `json:"hosts"`
}

// TagSearch holds the two independent result sets of a tag search. Both
// list visible hosts by (host_score desc, id asc).
type TagSearch struct {
	TagMatches  []model.HostRecord `json:"tag_matches"`  // hosts with a matching tag
	HostMatches []model.HostRecord `json:"host_matches"` // hosts whose name matches
}

// SeedJob is the job-scheduler bookkeeping recorded on a seed.
type SeedJob struct {
	JobID   string
	Project string
	Spider  string
	State   string // left unchanged when empty
}

// Workspaces owns the workspace lifecycle.
type Workspaces interface {
	InitWorkspaces(ctx context.Context) error
	ListWorkspaces(ctx context.Context) ([]model.Workspace, error)
	GetWorkspace(ctx context.Context, id string) (*model.Workspace, error)
	CreateWorkspace(ctx context.Context, name string) (*model.Workspace, error)
	SelectWorkspace(ctx context.Context, id string) error
	DeleteWorkspace(ctx context.Context, id string) error
	SelectedWorkspace(ctx context.Context) (*model.Workspace, error)
}

// Preferences are per-workspace singleton settings.
type Preferences interface {
	ListKeywords(ctx context.Context, sc StorageContext) ([]string, error)
	SaveKeywords(ctx context.Context, sc StorageContext, keywords []string) error
	ListSearchTerms(ctx context.Context, sc StorageContext) ([]string, error)
	SaveSearchTerms(ctx context.Context, sc StorageContext, terms []string) error
	BlurLevel(ctx context.Context, sc StorageContext) (int, error)
	SaveBlurLevel(ctx context.Context, sc StorageContext, level int) error
}

// URLs covers URL records and the host aggregate maintained on insert.
type URLs interface {
	InsertURL(ctx context.Context, sc StorageContext, rec model.URLRecord) (bool, error)
	GetURL(ctx context.Context, sc StorageContext, url string) (*model.URLRecord, error)
	ListURLs(ctx context.Context, sc StorageContext, host string, limit int) ([]model.URLRecord, error)
	HighestScoringURLWithScreenshot(ctx context.Context, sc StorageContext, host string) (*model.URLRecord, error)
	HostScore(ctx context.Context, sc StorageContext, host string) (float64, error)
	SetInterest(ctx context.Context, sc StorageContext, url string, interest *bool) error
	SetScore(ctx context.Context, sc StorageContext, url string, score float64) error
	SetScreenshotPath(ctx context.Context, sc StorageContext, url, path string) error
	SetHTMLRendered(ctx context.Context, sc StorageContext, url, html string) error
	DeleteURLsMatching(ctx context.Context, sc StorageContext, substring string, negate bool) (DeleteResult, error)
	ListURLsWithInterest(ctx context.Context, sc StorageContext, interest bool) ([]model.URLRecord, error)
}

// Hosts covers host records, tags and display.
type Hosts interface {
	GetHost(ctx context.Context, sc StorageContext, host string) (*model.HostRecord, error)
	ListHosts(ctx context.Context, sc StorageContext, q HostQuery) ([]model.HostRecord, error)
	SetHostScore(ctx context.Context, sc StorageContext, host string, score float64) error
	DeleteHostsMatching(ctx context.Context, sc StorageContext, substring string, negate bool) (DeleteResult, error)
	DeleteAllMatching(ctx context.Context, sc StorageContext, substring string, negate bool) (DeleteResult, error)
	IsKnownHost(ctx context.Context, host string) (bool, error)
	SaveTags(ctx context.Context, sc StorageContext, host string, tags []string) error
	ListTags(ctx context.Context, sc StorageContext, host string) ([]string, bool, error)
	SearchTags(ctx context.Context, sc StorageContext, term string) (*TagSearch, error)
	SaveDisplay(ctx context.Context, sc StorageContext, host string, displayable bool) error
}

// Seeds covers seed records.
type Seeds interface {
	AddSeed(ctx context.Context, sc StorageContext, url string) (bool, error)
	GetSeed(ctx context.Context, sc StorageContext, url string) (*model.SeedRecord, error)
	ListSeeds(ctx context.Context, sc StorageContext) ([]model.SeedRecord, error)
	RecordSeedJob(ctx context.Context, sc StorageContext, url string, job SeedJob) error
	SetSeedState(ctx context.Context, sc StorageContext, url, state string) error
}

// Features covers classifier feature records.
type Features interface {
	SaveFeatures(ctx context.Context, sc StorageContext, features []model.ClassifierFeature) (int64, error)
	ListFeatures(ctx context.Context, sc StorageContext, limit int) ([]model.ClassifierFeature, error)
}

// Store is the full persistence surface.
type Store interface {
	Workspaces
	Preferences
	URLs
	Hosts
	Seeds
	Features

	// InitCollections drops and recreates every table of sc. Destructive;
	// only reachable through explicit opt-in.
	InitCollections(ctx context.Context, sc StorageContext) error

	// Migrate creates the workspace registry and the tables of the default
	// workspace and fixed namespaces when missing.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
