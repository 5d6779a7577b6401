package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crawlspace/internal/db"
	"github.com/sells-group/crawlspace/internal/model"
)

const seedColumns = `url, state, job_id, project, spider, created_at, updated_at`

// seedTable returns the seed table of sc, failing for scopes without one.
func seedTable(sc StorageContext) (string, error) {
	if sc.Collections.Seeds == "" {
		return "", &ValidationError{Field: "namespace", Reason: string(sc.Namespace) + " has no seeds"}
	}
	return db.Ident(sc.Collections.Seeds), nil
}

// AddSeed records url in state Initializing. An existing seed is left as
// is and AddSeed reports false.
func (s *sqlStore) AddSeed(ctx context.Context, sc StorageContext, url string) (bool, error) {
	table, err := seedTable(sc)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	q := s.d.stmt(`INSERT INTO `, table, ` (url, state, created_at, updated_at) VALUES (`)
	q.add(q.arg(url), ", ", q.arg(model.SeedStateInitializing), ", ", q.arg(now), ", ", q.arg(now),
		`) ON CONFLICT (url) DO NOTHING`)
	n, err := s.c.exec(ctx, q.String(), q.args...)
	if err != nil {
		return false, eris.Wrapf(err, "%s: add seed %s", s.d.name, url)
	}
	if n == 0 {
		zap.L().Debug("seed already stored, skipping", zap.String("seed", url))
	}
	return n > 0, nil
}

func (s *sqlStore) GetSeed(ctx context.Context, sc StorageContext, url string) (*model.SeedRecord, error) {
	table, err := seedTable(sc)
	if err != nil {
		return nil, err
	}
	q := s.d.stmt(`SELECT `, seedColumns, ` FROM `, table, ` WHERE url = `)
	q.add(q.arg(url))
	rec, err := scanSeed(s.c.queryRow(ctx, q.String(), q.args...))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get seed %s", s.d.name, url)
	}
	return rec, nil
}

func (s *sqlStore) ListSeeds(ctx context.Context, sc StorageContext) ([]model.SeedRecord, error) {
	table, err := seedTable(sc)
	if err != nil {
		return nil, err
	}
	rs, err := s.c.query(ctx, `SELECT `+seedColumns+` FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list seeds", s.d.name)
	}
	defer rs.Close()

	var out []model.SeedRecord
	for rs.Next() {
		rec, err := scanSeed(rs)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan seed", s.d.name)
		}
		out = append(out, *rec)
	}
	return out, eris.Wrapf(rs.Err(), "%s: list seeds iterate", s.d.name)
}

// RecordSeedJob stores the scheduler's job bookkeeping on a seed verbatim.
func (s *sqlStore) RecordSeedJob(ctx context.Context, sc StorageContext, url string, job SeedJob) error {
	table, err := seedTable(sc)
	if err != nil {
		return err
	}
	q := s.d.stmt(`UPDATE `, table, ` SET job_id = `)
	q.add(q.arg(job.JobID), `, project = `, q.arg(job.Project), `, spider = `, q.arg(job.Spider))
	if job.State != "" {
		q.add(`, state = `, q.arg(job.State))
	}
	q.add(`, updated_at = `, q.arg(time.Now().UTC()), ` WHERE url = `, q.arg(url))
	if _, err := s.c.exec(ctx, q.String(), q.args...); err != nil {
		return eris.Wrapf(err, "%s: record job on seed %s", s.d.name, url)
	}
	return nil
}

func (s *sqlStore) SetSeedState(ctx context.Context, sc StorageContext, url, state string) error {
	table, err := seedTable(sc)
	if err != nil {
		return err
	}
	q := s.d.stmt(`UPDATE `, table, ` SET state = `)
	q.add(q.arg(state), `, updated_at = `, q.arg(time.Now().UTC()), ` WHERE url = `, q.arg(url))
	if _, err := s.c.exec(ctx, q.String(), q.args...); err != nil {
		return eris.Wrapf(err, "%s: set seed state %s", s.d.name, url)
	}
	return nil
}

func scanSeed(r row) (*model.SeedRecord, error) {
	var rec model.SeedRecord
	if err := r.Scan(&rec.URL, &rec.State, &rec.JobID, &rec.Project, &rec.Spider, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
