// Package crawl schedules seed crawls and keeps seed state in step with the
// job scheduler.
package crawl

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crawlspace/internal/domain"
	"github.com/sells-group/crawlspace/internal/jobs"
	"github.com/sells-group/crawlspace/internal/store"
)

const defaultConcurrency = 4

// Store is the persistence the service needs.
type Store interface {
	store.Seeds
	SaveSearchTerms(ctx context.Context, sc store.StorageContext, terms []string) error
}

// Service ties seed records to scheduler jobs.
type Service struct {
	store       Store
	sched       jobs.Scheduler
	concurrency int
}

// NewService creates a Service. concurrency bounds parallel state polls
// in RefreshStates.
func NewService(st Store, sched jobs.Scheduler, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{store: st, sched: sched, concurrency: concurrency}
}

// ScheduleSeed records seed, schedules a crawl for it and stores the job
// bookkeeping on the seed.
func (s *Service) ScheduleSeed(ctx context.Context, sc store.StorageContext, seed string) (jobs.Job, error) {
	seed = strings.TrimSpace(seed)
	if err := domain.Validate(seed); err != nil {
		return jobs.Job{}, err
	}
	if _, err := s.store.AddSeed(ctx, sc, seed); err != nil {
		return jobs.Job{}, err
	}

	job, err := s.sched.Schedule(ctx, seed)
	if err != nil {
		return jobs.Job{}, eris.Wrapf(err, "crawl: schedule seed %s", seed)
	}
	if err := s.store.RecordSeedJob(ctx, sc, seed, store.SeedJob{JobID: job.ID, Project: job.Project, Spider: job.Spider}); err != nil {
		return job, err
	}
	zap.L().Info("seed scheduled", zap.String("seed", seed), zap.String("job_id", job.ID), zap.String("workspace", sc.Workspace))
	return job, nil
}

// ScheduleKeywords saves terms as the workspace's search terms, schedules
// one search job for all of them and records each term as a seed of that
// job.
func (s *Service) ScheduleKeywords(ctx context.Context, sc store.StorageContext, terms []string) (jobs.Job, error) {
	terms = cleanTerms(terms)
	if len(terms) == 0 {
		return jobs.Job{}, &store.ValidationError{Field: "search terms", Reason: "empty"}
	}
	if err := s.store.SaveSearchTerms(ctx, sc, terms); err != nil {
		return jobs.Job{}, err
	}
	for _, term := range terms {
		if _, err := s.store.AddSeed(ctx, sc, term); err != nil {
			return jobs.Job{}, err
		}
	}

	job, err := s.sched.ScheduleKeywords(ctx, terms)
	if err != nil {
		return jobs.Job{}, eris.Wrap(err, "crawl: schedule keywords")
	}
	for _, term := range terms {
		if err := s.store.RecordSeedJob(ctx, sc, term, store.SeedJob{JobID: job.ID, Project: job.Project, Spider: job.Spider}); err != nil {
			return job, err
		}
	}
	zap.L().Info("keywords scheduled", zap.Int("terms", len(terms)), zap.String("job_id", job.ID))
	return job, nil
}

// RefreshResult summarizes one RefreshStates pass.
type RefreshResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// RefreshStates polls the scheduler for every seed with a job and stores
// changed states. A failed poll is logged and counted; it does not stop the
// pass.
func (s *Service) RefreshStates(ctx context.Context, sc store.StorageContext) (RefreshResult, error) {
	seeds, err := s.store.ListSeeds(ctx, sc)
	if err != nil {
		return RefreshResult{}, err
	}

	var (
		mu  sync.Mutex
		res RefreshResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, seed := range seeds {
		if seed.JobID == "" {
			continue
		}
		g.Go(func() error {
			state, err := s.sched.State(gctx, jobs.Job{ID: seed.JobID, Project: seed.Project, Spider: seed.Spider})
			if err == nil && state != seed.State {
				err = s.store.SetSeedState(gctx, sc, seed.URL, state)
			}

			mu.Lock()
			defer mu.Unlock()
			res.Checked++
			if err != nil {
				res.Failed++
				zap.L().Warn("refresh seed state failed", zap.String("seed", seed.URL), zap.String("job_id", seed.JobID), zap.Error(err))
				return nil
			}
			if state != seed.State {
				res.Updated++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, eris.Wrap(err, "crawl: refresh states")
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	zap.L().Info("seed states refreshed",
		zap.Int("checked", res.Checked),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
