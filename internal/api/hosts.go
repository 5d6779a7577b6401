package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/crawlspace/internal/model"
	"github.com/sells-group/crawlspace/internal/store"
)

// hostView is a host listing row as the UI consumes it.
type hostView struct {
	model.HostRecord
	IsKnownHost    bool    `json:"is_known_host"`
	ScreenshotPath *string `json:"hsu_screenshot_path"` // null when no URL has a screenshot
}

func (s *Server) handleListHosts(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "page_size", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	showAll, err := queryBool(r, "show_all")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	list, err := s.store.ListHosts(r.Context(), storageContextFrom(r), store.HostQuery{
		Page:     page,
		PageSize: size,
		Field:    q.Get("field"),
		Regex:    q.Get("regex"),
		ShowAll:  showAll,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := s.hostViews(r, list)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) hostViews(r *http.Request, list []model.HostRecord) ([]hostView, error) {
	ctx, sc := r.Context(), storageContextFrom(r)
	views := make([]hostView, 0, len(list))
	for _, h := range list {
		known, err := s.store.IsKnownHost(ctx, h.Host)
		if err != nil {
			return nil, err
		}
		v := hostView{HostRecord: h, IsKnownHost: known}
		best, err := s.store.HighestScoringURLWithScreenshot(ctx, sc, h.Host)
		if err != nil {
			return nil, err
		}
		if best != nil {
			v.ScreenshotPath = best.ScreenshotPath
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Server) handleDeleteHosts(w http.ResponseWriter, r *http.Request) {
	match, negate, err := matchParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.store.DeleteHostsMatching(r.Context(), storageContextFrom(r), match, negate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetHost(w http.ResponseWriter, r *http.Request) {
	h, err := s.store.GetHost(r.Context(), storageContextFrom(r), chi.URLParam(r, "host"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h == nil {
		writeError(w, r, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleHostScore(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	score, err := s.store.HostScore(r.Context(), storageContextFrom(r), host)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"host": host, "score": score})
}

func (s *Server) handleSetHostScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Score *float64 `json:"score"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Score == nil {
		writeError(w, r, badRequest("score is required"))
		return
	}
	if err := s.store.SetHostScore(r.Context(), storageContextFrom(r), chi.URLParam(r, "host"), *req.Score); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHostScreenshot(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.HighestScoringURLWithScreenshot(r.Context(), storageContextFrom(r), chi.URLParam(r, "host"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rec == nil {
		writeError(w, r, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, found, err := s.store.ListTags(r.Context(), storageContextFrom(r), chi.URLParam(r, "host"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tags))
}

func (s *Server) handleSaveTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.SaveTags(r.Context(), storageContextFrom(r), chi.URLParam(r, "host"), req.Tags); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveDisplay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Display *bool `json:"display"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Display == nil {
		writeError(w, r, badRequest("display is required"))
		return
	}
	if err := s.store.SaveDisplay(r.Context(), storageContextFrom(r), chi.URLParam(r, "host"), *req.Display); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchTags(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.SearchTags(r.Context(), storageContextFrom(r), r.URL.Query().Get("term"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
