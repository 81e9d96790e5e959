package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/internal/database"
	"github.com/tensai-22/penal-sub001/internal/request"
)

const defaultCORSMaxAge = 86400

// CORSReloader wraps rs/cors and periodically reloads CORS config from the database.
type CORSReloader struct {
	hotReloader
	repo     database.CorsConfigStore
	fallback string
	log      *zap.Logger
}

// NewCORSReloader creates a CORS middleware that loads config from store and hot-reloads it.
// fallback is a comma-separated origin list used while no config is stored.
func NewCORSReloader(store database.CorsConfigStore, fallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	r := &CORSReloader{
		repo:     store,
		fallback: strings.TrimSpace(fallback),
		log:      log,
	}
	r.interval = reloadInterval
	r.build = r.buildHandler
	return r
}

// Middleware returns a middleware that wraps next with CORS and hot-reload.
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return r.wrap
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *CORSReloader) Start(ctx context.Context) {
	r.run(ctx)
}

func (r *CORSReloader) buildHandler(ctx context.Context, next http.Handler) http.Handler {
	origins := database.AllowedOriginsSlice(r.fallback)
	allowCreds := true
	maxAge := defaultCORSMaxAge

	cfg, err := r.repo.Get(ctx)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
	case cfg != nil:
		origins = database.AllowedOriginsSlice(cfg.AllowedOrigins)
		allowCreds = cfg.AllowCredentials
		maxAge = cfg.MaxAge
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", request.HeaderRequestID},
		ExposedHeaders:   []string{request.HeaderRequestID, "X-Ratelimit-Remaining", "X-Ratelimit-Reset"},
	})
	return c.Handler(next)
}
