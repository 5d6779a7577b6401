package store

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crawlspace/internal/collection"
	"github.com/sells-group/crawlspace/internal/db"
)

const workspacesTable = "workspaces"

var tableDDL = map[collection.Kind]string{
	collection.URLs: `CREATE TABLE IF NOT EXISTS %s (
	id              $SERIAL,
	url             TEXT NOT NULL,
	host            TEXT NOT NULL,
	score           $FLOAT,
	interest        $BOOL,
	display         $BOOL,
	screenshot_path TEXT,
	html            TEXT,
	html_rendered   TEXT,
	crawled_at      $TIME,
	title           TEXT NOT NULL DEFAULT '',
	depth           INTEGER NOT NULL DEFAULT 0,
	referrer_url    TEXT NOT NULL DEFAULT '',
	meta            $JSON
)`,
	collection.Hosts: `CREATE TABLE IF NOT EXISTS %s (
	id         $SERIAL,
	host       TEXT NOT NULL,
	num_urls   BIGINT NOT NULL DEFAULT 0,
	host_score $FLOAT,
	tags       $JSON NOT NULL DEFAULT '[]',
	display    $BOOL
)`,
	collection.Seeds: `CREATE TABLE IF NOT EXISTS %s (
	id         $SERIAL,
	url        TEXT NOT NULL,
	state      TEXT NOT NULL DEFAULT 'Initializing',
	job_id     TEXT NOT NULL DEFAULT '',
	project    TEXT NOT NULL DEFAULT '',
	spider     TEXT NOT NULL DEFAULT '',
	created_at $TIME NOT NULL,
	updated_at $TIME NOT NULL
)`,
	collection.Features: `CREATE TABLE IF NOT EXISTS %s (
	id          $SERIAL,
	fingerprint TEXT NOT NULL,
	score       $FLOAT,
	meta        $JSON,
	data        $JSON,
	updated_at  $TIME NOT NULL
)`,
}

// indexSpec declares one index on a per-workspace table.
type indexSpec struct {
	suffix  string
	columns string
	unique  bool
}

// tableIndexes must hold after every initialization path.
var tableIndexes = map[collection.Kind][]indexSpec{
	collection.URLs: {
		{suffix: "url_key", columns: "url", unique: true},
		{suffix: "host_idx", columns: "host"},
	},
	collection.Hosts: {
		{suffix: "host_key", columns: "host", unique: true},
		{suffix: "host_score_idx", columns: "host_score"},
	},
	collection.Seeds: {
		{suffix: "url_key", columns: "url", unique: true},
	},
	collection.Features: {
		{suffix: "fingerprint_key", columns: "fingerprint", unique: true},
		{suffix: "score_idx", columns: "score"},
	},
}

const workspacesDDL = `CREATE TABLE IF NOT EXISTS workspaces (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	selected   $BOOL NOT NULL DEFAULT FALSE,
	keyword    $JSON,
	searchterm $JSON,
	blur_level INTEGER NOT NULL DEFAULT 0,
	created_at $TIME NOT NULL
)`

// schemaStatements returns the DDL creating and indexing every table of set.
func (s *sqlStore) schemaStatements(set collection.Set) []string {
	var out []string
	for _, kind := range collection.AllKinds() {
		table := set.Name(kind)
		if table == "" {
			continue
		}
		out = append(out, fmt.Sprintf(s.d.types.Replace(tableDDL[kind]), db.Ident(table)))
		for _, idx := range tableIndexes[kind] {
			unique := ""
			if idx.unique {
				unique = "UNIQUE "
			}
			out = append(out, fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
				unique, db.IndexName(table, idx.suffix), db.Ident(table), idx.columns))
		}
	}
	return out
}

// ensureCollections creates and indexes the tables of set when missing.
func (s *sqlStore) ensureCollections(ctx context.Context, set collection.Set) error {
	for _, q := range s.schemaStatements(set) {
		if _, err := s.c.exec(ctx, q); err != nil {
			return eris.Wrapf(err, "%s: create collections %v", s.d.name, set.Names())
		}
	}
	return nil
}

// dropCollections drops the tables of set. With tolerant, failures are
// logged and skipped; this is only used on destructive init paths where the
// tables may not exist.
func (s *sqlStore) dropCollections(ctx context.Context, set collection.Set, tolerant bool) error {
	for _, table := range set.Names() {
		_, err := s.c.exec(ctx, "DROP TABLE IF EXISTS "+db.Ident(table))
		if err == nil {
			continue
		}
		if !tolerant {
			return eris.Wrapf(err, "%s: drop %s", s.d.name, table)
		}
		zap.L().Warn("drop collection failed", zap.String("table", table), zap.Error(err))
	}
	return nil
}

func (s *sqlStore) InitCollections(ctx context.Context, sc StorageContext) error {
	zap.L().Warn("reinitializing collections",
		zap.String("namespace", string(sc.Namespace)),
		zap.Strings("tables", sc.Collections.Names()),
	)
	if err := s.dropCollections(ctx, sc.Collections, true); err != nil {
		return err
	}
	return s.ensureCollections(ctx, sc.Collections)
}

func (s *sqlStore) Migrate(ctx context.Context) error {
	if _, err := s.c.exec(ctx, s.d.types.Replace(workspacesDDL)); err != nil {
		return eris.Wrapf(err, "%s: migrate workspaces", s.d.name)
	}
	sets := []collection.Set{collection.ForWorkspace(collection.DefaultWorkspace)}
	for _, ns := range []collection.Namespace{collection.CCCrawlData, collection.KnownData} {
		set, err := collection.Fixed(ns)
		if err != nil {
			return err
		}
		sets = append(sets, set)
	}
	for _, set := range sets {
		if err := s.ensureCollections(ctx, set); err != nil {
			return err
		}
	}
	return nil
}
