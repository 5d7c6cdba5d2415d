package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seo-optimizer/segment-architect/logging"
)

// Context keys handlers set for the stats middleware.
const (
	KeyAnalyzedDomain = "analyzedDomain"
	KeyExportFormat   = "exportFormat"
)

// saveEvery is how many analyses pass between statistics saves.
const saveEvery = 100

// Stats tracks visitors, analyses and exports.
func Stats(stats *logging.Statistics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Track unique visitor
		stats.TrackVisitor(c.ClientIP())

		c.Next()

		if format := c.GetString(KeyExportFormat); format != "" && c.Writer.Status() == http.StatusOK {
			stats.TrackExport(format)
		}

		domain := c.GetString(KeyAnalyzedDomain)
		if domain == "" {
			return
		}
		loadTime := float64(time.Since(start).Milliseconds())
		stats.TrackAnalysis(domain, loadTime, c.Writer.Status() >= 400)

		// Periodically save statistics
		if stats.TotalRequests()%saveEvery == 0 {
			go func() {
				if err := stats.Save(); err != nil {
					logger.Warn("Failed to save statistics", zap.Error(err))
				}
			}()
		}
	}
}
