// Package metrics exposes coding run counters and latencies to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/c360studio/qualcoder/coding"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Classifier call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder is a coding.Observer that updates Prometheus collectors.
type Recorder struct {
	coding.NopObserver

	registry *prometheus.Registry

	calls     *prometheus.CounterVec
	latency   prometheus.Histogram
	skipped   prometheus.Counter
	newCodes  prometheus.Counter
	inFlight  prometheus.Gauge
	runsTotal *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry, which also carries
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qualcoder_classifier_calls_total",
			Help: "Classifier calls by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qualcoder_classifier_call_seconds",
			Help:    "Classifier call latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qualcoder_cells_skipped_total",
			Help: "Cells without a response.",
		}),
		newCodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qualcoder_vocabulary_codes_total",
			Help: "Codes added to a running vocabulary.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qualcoder_classifier_calls_in_flight",
			Help: "Classifier calls currently running.",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qualcoder_runs_total",
			Help: "Finished coding runs by status.",
		}, []string{"status"}),
	}

	r.registry.MustRegister(
		r.calls, r.latency, r.skipped, r.newCodes, r.inFlight, r.runsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Expose both outcomes from the start.
	r.calls.WithLabelValues(OutcomeSuccess)
	r.calls.WithLabelValues(OutcomeFailure)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) CellSkipped(coding.Cell) {
	r.skipped.Inc()
}

func (r *Recorder) CellStarted(coding.Cell) {
	r.inFlight.Inc()
}

// CellCompleted counts a successful call and the codes it adds to the
// vocabulary snapshot it was given.
func (r *Recorder) CellCompleted(cell coding.Cell, codes []string, elapsed time.Duration) {
	r.inFlight.Dec()
	r.calls.WithLabelValues(OutcomeSuccess).Inc()
	r.latency.Observe(elapsed.Seconds())

	known := make(map[string]bool, len(cell.Existing)+len(codes))
	for _, c := range cell.Existing {
		known[c] = true
	}
	for _, c := range codes {
		if !known[c] {
			known[c] = true
			r.newCodes.Inc()
		}
	}
}

func (r *Recorder) CellFailed(_ coding.Cell, _ error, elapsed time.Duration) {
	r.inFlight.Dec()
	r.calls.WithLabelValues(OutcomeFailure).Inc()
	r.latency.Observe(elapsed.Seconds())
}

// RunFinished counts a finished run by status ("complete", "failed",
// "cancelled").
func (r *Recorder) RunFinished(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Server serves /metrics on a listener.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds addr and starts serving the recorder's metrics in the
// background. Use Addr for the bound address when addr has port 0.
func Listen(addr string, r *Recorder, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", "error", err)
		}
	}()
	logger.Info("Serving metrics", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
