package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crawlspace/internal/db"
	"github.com/sells-group/crawlspace/internal/model"
)

// sqlStore implements every Store operation over one backend connection
// and dialect.
type sqlStore struct {
	c conn
	d dialect
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	*sqlStore
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	zap.L().Info("postgres pool ready", zap.Int32("max_conns", maxConns), zap.Int32("min_conns", minConns))
	return newPostgresFromPool(pool), nil
}

// newPostgresFromPool wraps an existing pool. The store takes ownership and
// closes it on Close.
func newPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{
		sqlStore: &sqlStore{c: pgConn{pool: pool}, d: postgresDialect},
		pool:     pool,
		closeFn:  pool.Close,
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveFeatures upserts features by fingerprint through a COPY-staged merge,
// one transaction per batch.
func (s *PostgresStore) SaveFeatures(ctx context.Context, sc StorageContext, features []model.ClassifierFeature) (int64, error) {
	table, err := featureTable(sc)
	if err != nil {
		return 0, err
	}
	rows, err := featureRows(features)
	if err != nil {
		return 0, err
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        table,
		Columns:      featureColumns,
		ConflictKeys: []string{"fingerprint"},
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save %d features", len(rows))
	}
	zap.L().Debug("features saved", zap.String("table", table), zap.Int64("rows", n))
	return n, nil
}
