package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Phase labels.
const (
	PhaseGenerate   = "generate"
	PhaseSynthesize = "synthesize"
	PhasePublish    = "publish"
)

var (
	// CacheHitsTotal counts message cache hits per pipeline phase.
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narration_cache_hits_total",
			Help: "Total number of narration cache hits.",
		},
		[]string{"phase"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narration_cache_misses_total",
			Help: "Total number of narration cache misses.",
		},
		[]string{"phase"},
	)

	// AudioReuseTotal counts audio served from an existing object instead of
	// a new synthesis call.
	AudioReuseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narration_audio_reuse_total",
			Help: "Audio URLs reused without synthesis, by source.",
		},
		[]string{"source"},
	)

	GenerationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narration_generation_failures_total",
			Help: "Languages whose text generation failed or returned empty.",
		},
		[]string{"language"},
	)

	SynthesisFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narration_synthesis_failures_total",
			Help: "Languages degraded to text-only after a synthesis or upload failure.",
		},
		[]string{"language"},
	)

	PublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "narration_publish_failures_total",
			Help: "Broadcast publishes that failed.",
		},
	)

	// PhaseSeconds: wall time of each pipeline phase.
	PhaseSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "narration_phase_seconds",
			Help:    "Duration of each narration pipeline phase in seconds.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"phase"},
	)

	// GatewayLatencySeconds: HTTP latency in seconds.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "HTTP request latency for the gateway in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"path", "method", "status_code"},
	)

	registerOnce sync.Once
)

// Register is called once in main() to register metrics.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CacheHitsTotal,
			CacheMissesTotal,
			AudioReuseTotal,
			GenerationFailuresTotal,
			SynthesisFailuresTotal,
			PublishFailuresTotal,
			PhaseSeconds,
			GatewayLatencySeconds,
		)
	})
}

// ObservePhase records the elapsed time since start for phase.
func ObservePhase(phase string, start time.Time) {
	PhaseSeconds.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures gateway latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		GatewayLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
