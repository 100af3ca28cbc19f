package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/auth"
	"github.com/PratikDhanave/attendance-sync-service/internal/handlers"
	"github.com/PratikDhanave/attendance-sync-service/internal/migration"
	"github.com/PratikDhanave/attendance-sync-service/internal/purge"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

// Deps are the collaborators the router serves.
type Deps struct {
	APIKeys  map[string]string
	Sink     store.Sink
	Runner   *migration.Runner
	Reporter *migration.Reporter
	Purge    *purge.Service
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
	// Now overrides the clock used for "today" in stats.
	Now func() time.Time
}

// NewRouter wires public endpoints and authenticated APIs.
// Public: /, /health, /ready, /metrics
// Authenticated: migration triggers, status, sink queries, purge
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	handlers.RegisterIndexRoutes(r)

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the sink is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.Sink.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// Auth group requires X-API-Key for everything that reads or changes data.
	authGroup := r.Group("/")
	authGroup.Use(auth.APIKeyMiddleware(d.APIKeys, logger))

	handlers.RegisterMigrationRoutes(authGroup, d.Runner, d.Reporter, logger)
	handlers.RegisterRecordRoutes(authGroup, d.Sink, logger)
	handlers.RegisterStatsRoutes(authGroup, d.Reporter, d.Now, logger)
	handlers.RegisterPurgeRoutes(authGroup, d.Purge, d.Runner, logger)

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Probes would drown everything else.
		switch c.Request.URL.Path {
		case "/health", "/ready", "/metrics":
			return
		}
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
