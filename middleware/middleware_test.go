package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/seo-optimizer/segment-architect/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestErrorHandlerRecoversPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := gin.New()
	r.Use(ErrorHandler(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, http.MethodGet, "/boom")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"An unexpected error occurred"}`, w.Body.String())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kaboom", logs.All()[0].ContextMap()["panic"])
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) {
		c.Error(assert.AnError)
		c.Status(http.StatusBadGateway)
	})

	serve(r, http.MethodGet, "/api/health")
	serve(r, http.MethodGet, "/fail")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.EqualValues(t, http.StatusBadGateway, entries[1].ContextMap()["status"])
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.POST("/api/sessions", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := serve(r, http.MethodOptions, "/api/sessions")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestRateLimiter(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "bucket drained")
	assert.True(t, rl.Allow("b"), "buckets are per client")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "refilled one token")
	assert.False(t, rl.Allow("a"))

	now = now.Add(time.Hour)
	assert.True(t, rl.Allow("a"))
	assert.Equal(t, 1, rl.Prune(time.Minute), "only b went idle")
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/").Code)
	w := serve(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")
}

func TestPruneEveryStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := NewRateLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.PruneEvery(ctx, time.Millisecond, time.Minute)
		close(done)
	}()

	cancel()
	<-done
}

func TestStats(t *testing.T) {
	stats, err := logging.NewStatistics(filepath.Join(t.TempDir(), "statistics.json"), true)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Stats(stats, zap.NewNop()))
	r.POST("/analyze", func(c *gin.Context) {
		c.Set(KeyAnalyzedDomain, "example.com")
		c.Status(http.StatusOK)
	})
	r.POST("/analyze-fail", func(c *gin.Context) {
		c.Set(KeyAnalyzedDomain, "broken.com")
		c.Status(http.StatusBadGateway)
	})
	r.GET("/export", func(c *gin.Context) {
		c.Set(KeyExportFormat, "xlsx")
		c.Status(http.StatusOK)
	})
	r.GET("/export-conflict", func(c *gin.Context) {
		c.Set(KeyExportFormat, "pptx")
		c.Status(http.StatusConflict)
	})
	r.GET("/other", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodPost, "/analyze")
	serve(r, http.MethodPost, "/analyze-fail")
	serve(r, http.MethodGet, "/export")
	serve(r, http.MethodGet, "/export-conflict")
	serve(r, http.MethodGet, "/other")

	summary := stats.GetStatistics()
	assert.Equal(t, 2, summary["totalRequests"])
	assert.Equal(t, 50.0, summary["errorRate"])
	assert.Equal(t, map[string]int{"xlsx": 1}, summary["exports"])
	assert.Equal(t, 1, summary["uniqueVisitors24h"])
}
