package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/facematch/internal/domain"
	"github.com/victornm/facematch/internal/telemetry"
)

func TestMetrics_Observer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := telemetry.NewMetrics(reg)
	require.NoError(t, err)

	m.GameStarted(domain.ModeEasy)
	m.RoundAnswered(domain.ModeEasy, true)
	m.RoundAnswered(domain.ModeEasy, false)
	m.RoundAnswered(domain.ModeHard, true)
	m.DecoyFallback(domain.ModeHard)
	m.DecoyFallback(domain.ModeHard)
	m.GameFinished(domain.ModeEasy, domain.EndReasonTimeout)

	const want = `
# HELP facematch_decoy_fallbacks_total Rounds whose decoy had to come from another gender.
# TYPE facematch_decoy_fallbacks_total counter
facematch_decoy_fallbacks_total{mode="hard"} 2
# HELP facematch_rounds_answered_total Rounds answered, by result.
# TYPE facematch_rounds_answered_total counter
facematch_rounds_answered_total{mode="easy",result="correct"} 1
facematch_rounds_answered_total{mode="easy",result="wrong"} 1
facematch_rounds_answered_total{mode="hard",result="correct"} 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(want),
		"facematch_decoy_fallbacks_total",
		"facematch_rounds_answered_total",
	)
	assert.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "facematch_games_finished_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = telemetry.NewMetrics(reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}

func TestMetrics_GinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	m, err := telemetry.NewMetrics(reg)
	require.NoError(t, err)

	e := gin.New()
	e.Use(m.GinMiddleware())
	e.GET("/games/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/games/a", "/games/b", "/nowhere"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	n, err := testutil.GatherAndCount(reg, "facematch_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per route and status")
}

func TestGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	e := gin.New()
	e.Use(telemetry.GinLogger())
	e.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "/boom", line["path"])
	assert.EqualValues(t, 500, line["status"])
}

func TestNewLogger(t *testing.T) {
	tests := map[string]struct {
		level, format string
		wantErr       bool
	}{
		"text info":      {level: "info", format: "text"},
		"json debug":     {level: "DEBUG", format: "json"},
		"default format": {level: "warn"},
		"bad level":      {level: "loud", wantErr: true},
		"bad format":     {level: "info", format: "xml", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			l, err := telemetry.NewLogger(&bytes.Buffer{}, tc.level, tc.format)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestMonitorRedis(t *testing.T) {
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })

	require.NoError(t, telemetry.MonitorRedis(rc))

	ctx := context.Background()
	require.NoError(t, rc.Set(ctx, "k", "v", 0).Err())
	v, err := rc.Get(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = rc.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, "n")
		p.Incr(ctx, "n")
		return nil
	})
	require.NoError(t, err)

	n, err := rs.Get("n")
	require.NoError(t, err)
	assert.Equal(t, "2", n)
}
