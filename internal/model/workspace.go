package model

import "time"

// Workspace is an isolated namespace for one investigation's crawl data.
// Keywords, SearchTerms and BlurLevel are per-workspace preferences.
type Workspace struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Selected    bool      `json:"selected" yaml:"selected"`
	Keywords    []string  `json:"keyword,omitempty" yaml:"keyword,omitempty"`
	SearchTerms []string  `json:"searchterm,omitempty" yaml:"searchterm,omitempty"`
	BlurLevel   int       `json:"blur_level" yaml:"blur_level"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}
