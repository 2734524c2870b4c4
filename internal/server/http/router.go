// Package httpserver serves export downloads, health and metrics.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/metrics"
)

const paramID = "id"

// Exports resolves written documents.
type Exports interface {
	ExportPath(id uuid.UUID) (string, error)
}

// TokenVerifier checks API bearer tokens.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Pinger reports backend readiness.
type Pinger func(ctx context.Context) error

// NewRouter builds the HTTP surface. Downloads need the same bearer token as the gRPC API.
func NewRouter(exports Exports, tokens TokenVerifier, ping Pinger, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", handleHealth(ping))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.With(requireToken(tokens)).Get("/exports/{"+paramID+"}", handleExport(exports, log))
	return r
}

func handleHealth(ping Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}

func handleExport(exports Exports, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSuffix(chi.URLParam(r, paramID), ".pdf")
		id, err := uuid.FromString(raw)
		if err != nil {
			http.Error(w, "bad export id", http.StatusBadRequest)
			return
		}
		path, err := exports.ExportPath(id)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				http.Error(w, "export not found", http.StatusNotFound)
				return
			}
			log.Error("resolve export", zap.Error(err))
			http.Error(w, "internal", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+id.String()+`.pdf"`)
		http.ServeFile(w, r, path)
	}
}

func requireToken(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
				http.Error(w, "no auth", http.StatusUnauthorized)
				return
			}
			if _, err := tokens.Verify(strings.TrimSpace(h[7:])); err != nil {
				http.Error(w, "no auth", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("dur", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
