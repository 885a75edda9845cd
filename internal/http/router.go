// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, rate limiting, compression, and response caching.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-roster-backend/internal/config"
	"github.com/tbourn/go-roster-backend/internal/domain"
	"github.com/tbourn/go-roster-backend/internal/feed"
	"github.com/tbourn/go-roster-backend/internal/http/handlers"
	"github.com/tbourn/go-roster-backend/internal/http/middleware"
	"github.com/tbourn/go-roster-backend/internal/llm"
	"github.com/tbourn/go-roster-backend/internal/repo"
	"github.com/tbourn/go-roster-backend/internal/services"
)

// playerRepoShim adapts the repository free functions to the
// services.PlayerRepo interface expected by the services. This keeps services
// decoupled from the concrete repo package while reusing existing functions.
type playerRepoShim struct{}

// GetPlayer proxies repo.GetPlayer.
func (playerRepoShim) GetPlayer(ctx context.Context, db *gorm.DB, id int) (*domain.Player, error) {
	return repo.GetPlayer(ctx, db, id)
}

// CountPlayers proxies repo.CountPlayers.
func (playerRepoShim) CountPlayers(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountPlayers(ctx, db)
}

// StorePlayers proxies repo.StorePlayers.
func (playerRepoShim) StorePlayers(ctx context.Context, db *gorm.DB, records []map[string]any) (repo.BatchResult, error) {
	return repo.StorePlayers(ctx, db, records)
}

// ListPlayersPage proxies repo.ListPlayersPage.
func (playerRepoShim) ListPlayersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Player, error) {
	return repo.ListPlayersPage(ctx, db, offset, limit)
}

// UpdatePlayerData proxies repo.UpdatePlayerData.
func (playerRepoShim) UpdatePlayerData(ctx context.Context, db *gorm.DB, id int, data map[string]any) error {
	return repo.UpdatePlayerData(ctx, db, id, data)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting, CORS
// and security headers, compression, the listing response cache, health and
// metrics endpoints, and then mounts the public API at the root.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured request logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per client IP)
//  8. CORS and Security headers
//  9. Gzip compression
//  10. Response cache (after gzip, so stored bodies stay uncompressed and
//     replayed hits still pass through compression and header middleware)
//
// The returned ResponseCache must be stopped on shutdown.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) *middleware.ResponseCache {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured request logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// 9) Gzip responses for clients that accept it
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 10) Response cache for the listing endpoint. Installed innermost so a
	// hit replays through compression and header middleware, while the
	// stored bytes remain the handler's uncompressed output.
	cache := middleware.NewResponseCache(middleware.CacheOptions{
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	})
	r.Use(cache.Handler())

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/feed/llm
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	feedClient := feed.NewClient(httpClient, cfg.FeedURL)
	generator := llm.NewOllama(httpClient, cfg.Ollama.Host, cfg.Ollama.Model)

	playerSvc := services.NewPlayerService(db, playerRepoShim{}, feedClient)
	descSvc := services.NewDescriptionService(db, playerRepoShim{}, generator)
	h := handlers.New(playerSvc, descSvc)

	// Public API
	r.GET("/", h.Root)
	r.GET("/players", h.ListPlayers)
	r.PUT("/players/:id", h.UpdatePlayer)
	r.GET("/player/:id/description", h.GetDescription)

	return cache
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
