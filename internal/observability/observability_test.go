package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/inkmarket-service/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLogger(config.LoggerConfig{Level: "nonsense", Dev: true})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/a", "GET", 200, 2*time.Millisecond)
	m.RecordRequest("/a", "GET", 200, 4*time.Millisecond)
	m.RecordError("/a", "GET", "NOT_FOUND")
	m.RecordEvent("user.signed_up")

	snap := m.Snapshot()
	require.Len(t, snap.Requests, 1)
	assert.Equal(t, int64(2), snap.Requests[0].Count)
	assert.InDelta(t, 3.0, snap.Requests[0].AvgLatency, 0.001)
	assert.Equal(t, int64(1), snap.Errors["/a|GET|NOT_FOUND"])
	assert.Equal(t, int64(1), snap.Events["user.signed_up"])

	var nilMetrics *Metrics
	nilMetrics.RecordEvent("x")
	assert.Empty(t, nilMetrics.Snapshot().Events)
}

func TestRequestLoggerAssignsID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	id := resp.Header.Get(RequestIDHeader)
	assert.Len(t, id, 27)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, id, logs.All()[0].ContextMap()["request_id"])

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "caller-id", resp.Header.Get(RequestIDHeader))

	assert.Equal(t, int64(2), metrics.Snapshot().Requests[0].Count)
}
