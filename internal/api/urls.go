package api

import (
	"net/http"
	"strings"

	"github.com/sells-group/crawlspace/internal/model"
)

func (s *Server) handleListURLs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.store.ListURLs(r.Context(), storageContextFrom(r), r.URL.Query().Get("host"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (s *Server) handleInsertURL(w http.ResponseWriter, r *http.Request) {
	var rec model.URLRecord
	if err := decode(w, r, &rec); err != nil {
		writeError(w, r, err)
		return
	}
	inserted, err := s.store.InsertURL(r.Context(), storageContextFrom(r), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if inserted {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]bool{"inserted": inserted})
}

func (s *Server) handleGetURL(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("url")
	if u == "" {
		writeError(w, r, badRequest("url is required"))
		return
	}
	rec, err := s.store.GetURL(r.Context(), storageContextFrom(r), u)
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

// urlUpdate is the body of the point-update routes. Only the field the
// route names is read.
type urlUpdate struct {
	URL      string   `json:"url"`
	Interest *bool    `json:"interest"`
	Score    *float64 `json:"score"`
	Path     string   `json:"path"`
	HTML     string   `json:"html"`
}

func (s *Server) decodeURLUpdate(w http.ResponseWriter, r *http.Request) (urlUpdate, bool) {
	var req urlUpdate
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return req, false
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, r, badRequest("url is required"))
		return req, false
	}
	return req, true
}

func (s *Server) handleSetInterest(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeURLUpdate(w, r)
	if !ok {
		return
	}
	if err := s.store.SetInterest(r.Context(), storageContextFrom(r), req.URL, req.Interest); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetScore(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeURLUpdate(w, r)
	if !ok {
		return
	}
	if req.Score == nil {
		writeError(w, r, badRequest("score is required"))
		return
	}
	if err := s.store.SetScore(r.Context(), storageContextFrom(r), req.URL, *req.Score); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetScreenshot(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeURLUpdate(w, r)
	if !ok {
		return
	}
	if err := s.store.SetScreenshotPath(r.Context(), storageContextFrom(r), req.URL, req.Path); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetRendered(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeURLUpdate(w, r)
	if !ok {
		return
	}
	if err := s.store.SetHTMLRendered(r.Context(), storageContextFrom(r), req.URL, req.HTML); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// matchParams reads ?match= and ?negate= for the match-based deletes. An
// empty match would select every row, so it is refused.
func matchParams(r *http.Request) (string, bool, error) {
	match := r.URL.Query().Get("match")
	if match == "" {
		return "", false, badRequest("match is required")
	}
	negate, err := queryBool(r, "negate")
	return match, negate, err
}

func (s *Server) handleDeleteURLs(w http.ResponseWriter, r *http.Request) {
	match, negate, err := matchParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.store.DeleteURLsMatching(r.Context(), storageContextFrom(r), match, negate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleLabelledURLs returns the URLs marked interesting and those marked
// not interesting, the two sets the ranker trains on.
func (s *Server) handleLabelledURLs(w http.ResponseWriter, r *http.Request) {
	ctx, sc := r.Context(), storageContextFrom(r)
	relevant, err := s.store.ListURLsWithInterest(ctx, sc, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	irrelevant, err := s.store.ListURLsWithInterest(ctx, sc, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.URLRecord{
		"relevant":   orEmpty(relevant),
		"irrelevant": orEmpty(irrelevant),
	})
}

func (s *Server) handleDeleteAllMatching(w http.ResponseWriter, r *http.Request) {
	match, negate, err := matchParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.store.DeleteAllMatching(r.Context(), storageContextFrom(r), match, negate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
