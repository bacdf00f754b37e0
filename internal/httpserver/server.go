package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/PratikDhanave/session-event-api/internal/handlers"
	"github.com/PratikDhanave/session-event-api/internal/metrics"
	"github.com/PratikDhanave/session-event-api/internal/models"
	"github.com/PratikDhanave/session-event-api/internal/requestid"
)

// EventService is the adapter surface the router needs: the API operations plus a
// readiness check against the bucket.
type EventService interface {
	handlers.EventStore
	Ready(ctx context.Context) error
}

// NewRouter wires probes, metrics and the event API.
// Probes: /health, /ready, /metrics
// API: /events, /sessions, /sessions/:session_id/events
func NewRouter(events EventService, m *metrics.Manager, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	// Session ids may contain an encoded "/"; match on the raw path and unescape params.
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(accessLog(log))
	r.Use(observe(m))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", requestid.Header},
		ExposeHeaders:   []string{requestid.Header},
		MaxAge:          12 * time.Hour,
	}))

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the event bucket exists and the store answers.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := events.Ready(ctx); err != nil {
			m.SetBucketReady(false)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		m.SetBucketReady(true)
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(m.Handler()))

	handlers.RegisterEventRoutes(r, events)
	handlers.RegisterSessionRoutes(r, events)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Detail: "Not Found"})
	})

	return r
}
