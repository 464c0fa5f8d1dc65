// Package api 是推荐引擎的 HTTP 适配层（chi）。
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/estaterec/core"
	"github.com/rushteam/estaterec/search"
	"github.com/rushteam/estaterec/service"
)

// Engine 是 HTTP 层依赖的推荐引擎操作，由 service.Service 实现
type Engine interface {
	Like(ctx context.Context, userID, propertyID string) (bool, error)
	Unlike(ctx context.Context, userID, propertyID string) (bool, error)
	Liked(ctx context.Context, userID string) ([]string, error)
	Bookmarked(ctx context.Context, userID string) ([]core.Listing, error)
	Recommend(ctx context.Context, userID string) (*service.Recommendation, error)
	RequestRefresh()
	Property(ctx context.Context, propertyID string) (core.Listing, error)
	Search(ctx context.Context, query, filter string) ([]core.Listing, error)
	Stats(ctx context.Context, query string) (search.Stats, error)
	Health() service.Health
}

var _ Engine = (*service.Service)(nil)

type handler struct {
	engine Engine
	logger zerolog.Logger
}

// NewRouter 注册所有路由。路径末尾的 / 可有可无。
func NewRouter(engine Engine, logger zerolog.Logger) http.Handler {
	h := &handler{engine: engine, logger: logger.With().Str("component", "api").Logger()}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.StripSlashes)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.engine.Health())
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/search", h.search)
	r.Get("/stats", h.stats)

	r.Get("/recommendation", h.recommend)
	r.Post("/recommendation", h.refresh)

	r.Get("/like", h.liked)
	r.Post("/like", h.like)
	r.Delete("/like", h.unlike)

	r.Get("/property", h.property)
	r.Get("/bookmarked", h.bookmarked)
	return r
}

func (h *handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
