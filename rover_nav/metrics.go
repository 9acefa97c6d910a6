package rover_nav

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// Metrics exposes controller progress as Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry
	server   *http.Server

	steps      *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	mode       prometheus.Gauge
	correction prometheus.Gauge
	steer      prometheus.Gauge
	separation prometheus.Gauge
}

// NewMetrics registers the controller metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rover_steps_total",
			Help: "Completed controller steps by mode and outcome event.",
		}, []string{"mode", "event"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rover_step_failures_total",
			Help: "Failed controller steps by mode.",
		}, []string{"mode"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rover_step_duration_seconds",
			Help:    "Wall time of one controller step.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"mode"}),
		mode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rover_mode",
			Help: "Mode of the next step (1=turning, 2=approaching, 3=idle).",
		}),
		correction: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rover_heading_correction_radians",
			Help: "Last measured heading correction.",
		}),
		steer: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rover_steer_radians",
			Help: "Last commanded steering deflection.",
		}),
		separation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rover_target_distance",
			Help: "Last measured vehicle-to-target distance in camera units.",
		}),
	}
	reg.MustRegister(m.steps, m.failures, m.duration, m.mode, m.correction, m.steer, m.separation)
	return m
}

// StartMetrics serves /metrics on cfg.Addr. It returns nil when disabled.
func StartMetrics(cfg MetricsConfig, logger *slog.Logger) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9470"
	}
	logger = orDiscard(logger)

	m := NewMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "err", err)
		}
	}()
	return m, nil
}

// Handler returns the scrape handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records one step. It is a StepListener.
func (m *Metrics) Observe(rec StepRecord) {
	if m == nil {
		return
	}
	out := rec.Outcome
	mode := out.Mode.String()
	m.duration.WithLabelValues(mode).Observe(rec.Duration.Seconds())
	m.mode.Set(float64(out.Next))
	if rec.Err != nil {
		m.failures.WithLabelValues(mode).Inc()
		return
	}
	m.steps.WithLabelValues(mode, out.Event.String()).Inc()
	if out.Mode == ModeTurning {
		m.correction.Set(out.Correction)
		m.steer.Set(out.Steer.Radians())
		m.separation.Set(out.Snapshot.Separation())
	}
}

// Close shuts down the HTTP server, if any.
func (m *Metrics) Close() error {
	if m == nil || m.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}
