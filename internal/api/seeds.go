package api

import (
	"net/http"
	"strings"

	"github.com/sells-group/crawlspace/internal/domain"
	"github.com/sells-group/crawlspace/internal/model"
)

func (s *Server) handleListSeeds(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListSeeds(r.Context(), storageContextFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (s *Server) handleGetSeed(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("url")
	if u == "" {
		writeError(w, r, badRequest("url is required"))
		return
	}
	seed, err := s.store.GetSeed(r.Context(), storageContextFrom(r), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if seed == nil {
		writeError(w, r, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, seed)
}

// handleAddSeed records a seed and, with a scheduler configured, starts its
// crawl.
func (s *Server) handleAddSeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sc := storageContextFrom(r)

	if s.crawler == nil {
		seed := strings.TrimSpace(req.URL)
		if err := domain.Validate(seed); err != nil {
			writeError(w, r, err)
			return
		}
		added, err := s.store.AddSeed(r.Context(), sc, seed)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]bool{"added": added})
		return
	}

	job, err := s.crawler.ScheduleSeed(r.Context(), sc, req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleScheduleKeywords(w http.ResponseWriter, r *http.Request) {
	if s.crawler == nil {
		writeError(w, r, errNoScheduler)
		return
	}
	var req struct {
		Terms []string `json:"terms"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := s.crawler.ScheduleKeywords(r.Context(), storageContextFrom(r), req.Terms)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleRefreshSeeds(w http.ResponseWriter, r *http.Request) {
	if s.crawler == nil {
		writeError(w, r, errNoScheduler)
		return
	}
	res, err := s.crawler.RefreshStates(r.Context(), storageContextFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.store.ListFeatures(r.Context(), storageContextFrom(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (s *Server) handleSaveFeatures(w http.ResponseWriter, r *http.Request) {
	var features []model.ClassifierFeature
	if err := decode(w, r, &features); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.store.SaveFeatures(r.Context(), storageContextFrom(r), features)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"saved": n})
}
