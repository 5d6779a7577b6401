package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/crawlspace/internal/collection"
	"github.com/sells-group/crawlspace/internal/store"
)

type ctxKey int

const storageContextKey ctxKey = iota

// storageContext resolves the tables a request works on once, before the
// handler runs. ?ns= picks the namespace; crawl-data follows the selected
// workspace.
func (s *Server) storageContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ns, err := collection.ParseNamespace(r.URL.Query().Get("ns"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		sc, err := store.Resolve(r.Context(), s.store, ns)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), storageContextKey, sc)))
	})
}

func storageContextFrom(r *http.Request) store.StorageContext {
	sc, _ := r.Context().Value(storageContextKey).(store.StorageContext)
	return sc
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
