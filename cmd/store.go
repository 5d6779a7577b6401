package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crawlspace/internal/config"
	"github.com/sells-group/crawlspace/internal/crawl"
	"github.com/sells-group/crawlspace/internal/jobs"
	"github.com/sells-group/crawlspace/internal/store"
)

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		return store.NewSQLite(c.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, c.Store.PoolConfig())
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// openStore validates the config for mode, opens the store and applies the
// non-destructive schema migration.
func openStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initCrawler(st store.Store, c *config.Config) (*crawl.Service, error) {
	client, err := jobs.NewClient(c.Jobs.Options())
	if err != nil {
		return nil, err
	}
	return crawl.NewService(st, client, c.Refresh.Concurrency), nil
}
