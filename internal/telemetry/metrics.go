package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/facematch/internal/domain"
)

const namespace = "facematch"

// Metrics holds the service's Prometheus collectors. It implements game.Observer.
type Metrics struct {
	gamesStarted   *prometheus.CounterVec
	gamesFinished  *prometheus.CounterVec
	roundsAnswered *prometheus.CounterVec
	decoyFallbacks *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		gamesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Games started.",
		}, []string{"mode"}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games finished, by reason.",
		}, []string{"mode", "reason"}),
		roundsAnswered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_answered_total",
			Help:      "Rounds answered, by result.",
		}, []string{"mode", "result"}),
		decoyFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoy_fallbacks_total",
			Help:      "Rounds whose decoy had to come from another gender.",
		}, []string{"mode"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	for _, c := range []prometheus.Collector{
		m.gamesStarted,
		m.gamesFinished,
		m.roundsAnswered,
		m.decoyFallbacks,
		m.httpDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) GameStarted(mode domain.Mode) {
	m.gamesStarted.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) RoundAnswered(mode domain.Mode, correct bool) {
	result := "wrong"
	if correct {
		result = "correct"
	}
	m.roundsAnswered.WithLabelValues(string(mode), result).Inc()
}

func (m *Metrics) GameFinished(mode domain.Mode, reason domain.EndReason) {
	m.gamesFinished.WithLabelValues(string(mode), string(reason)).Inc()
}

func (m *Metrics) DecoyFallback(mode domain.Mode) {
	m.decoyFallbacks.WithLabelValues(string(mode)).Inc()
}

// GinMiddleware observes the latency of every routed request.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.httpDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
