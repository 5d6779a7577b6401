package model

import "time"

// URLRecord is one crawled page within a workspace.
type URLRecord struct {
	URL            string         `json:"url"`
	Host           string         `json:"host"`
	Score          *float64       `json:"score,omitempty"`    // nil = unscored
	Interest       *bool          `json:"interest,omitempty"` // nil = unset
	Display        *bool          `json:"display,omitempty"`  // nil = visible
	ScreenshotPath *string        `json:"screenshot_path,omitempty"`
	HTML           string         `json:"html,omitempty"`
	HTMLRendered   string         `json:"html_rendered,omitempty"`
	CrawledAt      *time.Time     `json:"crawled_at,omitempty"`
	Title          string         `json:"title,omitempty"`
	Depth          int            `json:"depth"`
	ReferrerURL    string         `json:"referrer_url,omitempty"`
	Meta           map[string]any `json:"meta,omitempty"`
}

// Visible reports whether the record shows up in unfiltered listings.
func (u URLRecord) Visible() bool {
	return u.Display == nil || *u.Display
}

// HostRecord aggregates URLs sharing a registrable domain.
type HostRecord struct {
	ID        int64    `json:"id"`
	Host      string   `json:"host"`
	NumURLs   int64    `json:"num_urls"`
	HostScore *float64 `json:"host_score,omitempty"`
	Tags      []string `json:"tags"`
	Display   *bool    `json:"display,omitempty"` // nil = visible
}

// Visible reports whether the host shows up in unfiltered listings.
func (h HostRecord) Visible() bool {
	return h.Display == nil || *h.Display
}

// SeedStateInitializing is the state of a seed before its job reports.
const SeedStateInitializing = "Initializing"

// SeedRecord is a seed URL or search term submitted for crawling.
type SeedRecord struct {
	URL       string    `json:"url"`
	State     string    `json:"state"`
	JobID     string    `json:"job_id,omitempty"`
	Project   string    `json:"project,omitempty"`
	Spider    string    `json:"spider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClassifierFeature holds content-classification features for one page
// fingerprint. Meta and Data are opaque to the store.
type ClassifierFeature struct {
	Fingerprint string         `json:"fingerprint"`
	Score       *float64       `json:"score,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
