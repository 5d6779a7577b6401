package api

import (
	"context"
	"net/http"

	"github.com/sells-group/crawlspace/internal/store"
)

type stringsBody struct {
	Values []string `json:"values"`
}

func (s *Server) listStrings(w http.ResponseWriter, r *http.Request, read func(context.Context, store.StorageContext) ([]string, error)) {
	values, err := read(r.Context(), storageContextFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stringsBody{Values: orEmpty(values)})
}

func (s *Server) saveStrings(w http.ResponseWriter, r *http.Request, write func(context.Context, store.StorageContext, []string) error) {
	var req stringsBody
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := write(r.Context(), storageContextFrom(r), req.Values); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	s.listStrings(w, r, s.store.ListKeywords)
}

func (s *Server) handleSaveKeywords(w http.ResponseWriter, r *http.Request) {
	s.saveStrings(w, r, s.store.SaveKeywords)
}

func (s *Server) handleListSearchTerms(w http.ResponseWriter, r *http.Request) {
	s.listStrings(w, r, s.store.ListSearchTerms)
}

func (s *Server) handleSaveSearchTerms(w http.ResponseWriter, r *http.Request) {
	s.saveStrings(w, r, s.store.SaveSearchTerms)
}

type blurBody struct {
	Level *int `json:"level"`
}

func (s *Server) handleBlurLevel(w http.ResponseWriter, r *http.Request) {
	level, err := s.store.BlurLevel(r.Context(), storageContextFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blurBody{Level: &level})
}

func (s *Server) handleSaveBlurLevel(w http.ResponseWriter, r *http.Request) {
	var req blurBody
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Level == nil {
		writeError(w, r, badRequest("level is required"))
		return
	}
	if err := s.store.SaveBlurLevel(r.Context(), storageContextFrom(r), *req.Level); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
