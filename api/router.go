// Package api exposes sessions, analysis and exports over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seo-optimizer/segment-architect/logging"
	"github.com/seo-optimizer/segment-architect/middleware"
	"github.com/seo-optimizer/segment-architect/session"
	"github.com/seo-optimizer/segment-architect/stats"
)

// Usage is the monthly counter store; *stats.Storage implements it.
type Usage interface {
	stats.Recorder
	GetCurrentStats() stats.MonthlyStats
	GetAllMonths() []string
}

// Deps are the collaborators of the HTTP surface. Statistics, Usage and
// Limiter are optional.
type Deps struct {
	Sessions   *session.Registry
	Statistics *logging.Statistics
	Usage      Usage
	Limiter    *middleware.RateLimiter
	Logger     *zap.Logger
}

type handler struct {
	sessions   *session.Registry
	statistics *logging.Statistics
	usage      Usage
	logger     *zap.Logger
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &handler{
		sessions:   d.Sessions,
		statistics: d.Statistics,
		usage:      d.Usage,
		logger:     d.Logger,
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.ErrorHandler(d.Logger))
	if d.Limiter != nil {
		r.Use(d.Limiter.RateLimit())
	}
	r.Use(middleware.CORS())
	if d.Statistics != nil {
		r.Use(middleware.Stats(d.Statistics, d.Logger))
	}

	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.GET("/statistics", h.getStatistics)

		sessions := api.Group("/sessions")
		sessions.POST("", h.createSession)
		sessions.GET("/:id", h.getSession)
		sessions.DELETE("/:id", h.deleteSession)
		sessions.POST("/:id/analyze", h.analyze)
		sessions.GET("/:id/export/xlsx", h.exportSpreadsheet)
		sessions.GET("/:id/export/pptx", h.exportSlides)
	}

	return r
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}

func (h *handler) getStatistics(c *gin.Context) {
	result := gin.H{}
	if h.statistics != nil {
		for k, v := range h.statistics.GetStatistics() {
			result[k] = v
		}
	}
	if h.usage != nil {
		result["currentMonth"] = h.usage.GetCurrentStats()
		result["months"] = h.usage.GetAllMonths()
	}
	c.JSON(http.StatusOK, result)
}
