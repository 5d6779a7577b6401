// Package jobs schedules crawl jobs on a scrapyd-compatible service and
// reports their state.
package jobs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Job states reported by State.
const (
	StatePending  = "pending"
	StateRunning  = "running"
	StateFinished = "finished"
	StateUnknown  = "unknown"
)

// Job identifies one scheduled crawl.
type Job struct {
	ID      string `json:"job_id"`
	Project string `json:"project"`
	Spider  string `json:"spider"`
}

// Scheduler starts crawl jobs and reports their state.
type Scheduler interface {
	Schedule(ctx context.Context, seed string) (Job, error)
	ScheduleKeywords(ctx context.Context, terms []string) (Job, error)
	State(ctx context.Context, job Job) (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	Project        string
	Spider         string
	KeywordProject string
	KeywordSpider  string
	Timeout        time.Duration
	RatePerSec     float64
	Retry          RetryConfig

	// BreakerThreshold consecutive transient failures stop calls for
	// BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Client implements Scheduler against the scrapyd JSON API.
type Client struct {
	http    *http.Client
	base    *url.URL
	opts    Options
	limiter *rate.Limiter
	breaker *breaker
}

// NewClient validates opts and builds a Client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
	if err != nil || base.Host == "" {
		return nil, eris.Errorf("jobs: invalid base url %q", opts.BaseURL)
	}
	if opts.Project == "" || opts.Spider == "" {
		return nil, eris.New("jobs: project and spider are required")
	}
	if opts.KeywordProject == "" {
		opts.KeywordProject = opts.Project
	}
	if opts.KeywordSpider == "" {
		opts.KeywordSpider = opts.Spider
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		base:    base,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		breaker: newBreaker(opts.BreakerThreshold, opts.BreakerCooldown),
	}, nil
}

type scheduleResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"jobid"`
	Message string `json:"message"`
}

type listJobsResponse struct {
	Status   string     `json:"status"`
	Message  string     `json:"message"`
	Pending  []jobEntry `json:"pending"`
	Running  []jobEntry `json:"running"`
	Finished []jobEntry `json:"finished"`
}

type jobEntry struct {
	ID string `json:"id"`
}

// Schedule starts the seed spider on one URL.
func (c *Client) Schedule(ctx context.Context, seed string) (Job, error) {
	return c.schedule(ctx, c.opts.Project, c.opts.Spider, url.Values{"seed_urls": {seed}})
}

// ScheduleKeywords starts the search-engine spider on terms as one job.
func (c *Client) ScheduleKeywords(ctx context.Context, terms []string) (Job, error) {
	if len(terms) == 0 {
		return Job{}, eris.New("jobs: no search terms")
	}
	return c.schedule(ctx, c.opts.KeywordProject, c.opts.KeywordSpider,
		url.Values{"keywords": {strings.Join(terms, ",")}})
}

func (c *Client) schedule(ctx context.Context, project, spider string, args url.Values) (Job, error) {
	form := url.Values{"project": {project}, "spider": {spider}}
	for k, v := range args {
		form[k] = v
	}

	resp, err := guarded(ctx, c.breaker, func(ctx context.Context) (scheduleResponse, error) {
		return retry(ctx, c.opts.Retry, "schedule", func(ctx context.Context) (scheduleResponse, error) {
			var out scheduleResponse
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("schedule.json"), strings.NewReader(form.Encode()))
			if err != nil {
				return out, err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			err = c.do(req, &out)
			return out, err
		})
	})
	if err != nil {
		return Job{}, eris.Wrapf(err, "jobs: schedule %s/%s", project, spider)
	}
	if resp.Status != "ok" || resp.JobID == "" {
		return Job{}, eris.Errorf("jobs: schedule %s/%s rejected: %s", project, spider, resp.Message)
	}

	job := Job{ID: resp.JobID, Project: project, Spider: spider}
	zap.L().Info("job scheduled", zap.String("job_id", job.ID), zap.String("project", project), zap.String("spider", spider))
	return job, nil
}

// State looks the job up in the project's job listing. Jobs the service no
// longer lists report StateUnknown.
func (c *Client) State(ctx context.Context, job Job) (string, error) {
	project := job.Project
	if project == "" {
		project = c.opts.Project
	}
	endpoint := c.endpoint("listjobs.json") + "?" + url.Values{"project": {project}}.Encode()

	resp, err := guarded(ctx, c.breaker, func(ctx context.Context) (listJobsResponse, error) {
		return retry(ctx, c.opts.Retry, "listjobs", func(ctx context.Context) (listJobsResponse, error) {
			var out listJobsResponse
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return out, err
			}
			err = c.do(req, &out)
			return out, err
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "jobs: list jobs of %s", project)
	}
	if resp.Status != "ok" {
		return "", eris.Errorf("jobs: list jobs of %s rejected: %s", project, resp.Message)
	}

	for state, entries := range map[string][]jobEntry{
		StatePending:  resp.Pending,
		StateRunning:  resp.Running,
		StateFinished: resp.Finished,
	} {
		for _, e := range entries {
			if e.ID == job.ID {
				return state, nil
			}
		}
	}
	return StateUnknown, nil
}

func (c *Client) endpoint(name string) string {
	return c.base.ResolveReference(&url.URL{Path: name}).String()
}

// do waits for the rate limiter, sends req and decodes a JSON body into out.
// Network failures and retryable statuses come back as transient errors.
func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &transientError{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
		if isTransientStatus(resp.StatusCode) {
			return &transientError{err: err, statusCode: resp.StatusCode}
		}
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "decode %s response", req.URL.Path)
	}
	return nil
}

var _ Scheduler = (*Client)(nil)
