// Package api exposes the crawl data store over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/crawlspace/internal/crawl"
	"github.com/sells-group/crawlspace/internal/jobs"
	"github.com/sells-group/crawlspace/internal/store"
)

// maxBodyBytes bounds request bodies. Feature batches and rendered HTML are
// the large ones.
const maxBodyBytes = 16 << 20

// Crawler schedules seeds and keeps their job state current.
type Crawler interface {
	ScheduleSeed(ctx context.Context, sc store.StorageContext, seed string) (jobs.Job, error)
	ScheduleKeywords(ctx context.Context, sc store.StorageContext, terms []string) (jobs.Job, error)
	RefreshStates(ctx context.Context, sc store.StorageContext) (crawl.RefreshResult, error)
}

// Options configures a Server.
type Options struct {
	CORSOrigins []string
	Timeout     time.Duration
}

// Server routes HTTP requests to the store and crawler.
type Server struct {
	store   store.Store
	crawler Crawler
	opts    Options
}

// New creates a Server. crawler may be nil, in which case seeds are only
// recorded and scheduling routes answer 503.
func New(st store.Store, crawler Crawler, opts Options) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Server{store: st, crawler: crawler, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.Timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/workspaces", func(r chi.Router) {
			r.Get("/", s.handleListWorkspaces)
			r.Post("/", s.handleCreateWorkspace)
			r.Get("/selected", s.handleSelectedWorkspace)
			r.Get("/{id}", s.handleGetWorkspace)
			r.Post("/{id}/select", s.handleSelectWorkspace)
			r.Delete("/{id}", s.handleDeleteWorkspace)
		})

		// Everything below works on the tables of one storage context.
		r.Group(func(r chi.Router) {
			r.Use(s.storageContext)

			r.Route("/urls", func(r chi.Router) {
				r.Get("/", s.handleListURLs)
				r.Post("/", s.handleInsertURL)
				r.Delete("/", s.handleDeleteURLs)
				r.Get("/lookup", s.handleGetURL)
				r.Get("/labelled", s.handleLabelledURLs)
				r.Put("/interest", s.handleSetInterest)
				r.Put("/score", s.handleSetScore)
				r.Put("/screenshot", s.handleSetScreenshot)
				r.Put("/rendered", s.handleSetRendered)
			})

			r.Route("/hosts", func(r chi.Router) {
				r.Get("/", s.handleListHosts)
				r.Delete("/", s.handleDeleteHosts)
				r.Get("/{host}", s.handleGetHost)
				r.Get("/{host}/score", s.handleHostScore)
				r.Put("/{host}/score", s.handleSetHostScore)
				r.Get("/{host}/screenshot", s.handleHostScreenshot)
				r.Get("/{host}/tags", s.handleListTags)
				r.Put("/{host}/tags", s.handleSaveTags)
				r.Put("/{host}/display", s.handleSaveDisplay)
			})

			r.Get("/tags/search", s.handleSearchTags)
			r.Delete("/matching", s.handleDeleteAllMatching)

			r.Route("/preferences", func(r chi.Router) {
				r.Get("/keywords", s.handleListKeywords)
				r.Put("/keywords", s.handleSaveKeywords)
				r.Get("/searchterms", s.handleListSearchTerms)
				r.Put("/searchterms", s.handleSaveSearchTerms)
				r.Get("/blur", s.handleBlurLevel)
				r.Put("/blur", s.handleSaveBlurLevel)
			})

			r.Route("/seeds", func(r chi.Router) {
				r.Get("/", s.handleListSeeds)
				r.Post("/", s.handleAddSeed)
				r.Get("/lookup", s.handleGetSeed)
				r.Post("/keywords", s.handleScheduleKeywords)
				r.Post("/refresh", s.handleRefreshSeeds)
			})

			r.Route("/features", func(r chi.Router) {
				r.Get("/", s.handleListFeatures)
				r.Post("/", s.handleSaveFeatures)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
