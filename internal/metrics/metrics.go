// Package metrics exposes Prometheus instrumentation for downloads and
// merges. A Recorder implements both download.Observer and merge.Observer
// and registers its collectors on its own registry, so several recorders
// can coexist in one process (and in tests).
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/pdfharvest/internal/model"
)

const namespace = "pdfharvest"

// Recorder collects download and merge metrics.
type Recorder struct {
	registry *prometheus.Registry

	downloads        *prometheus.CounterVec
	attempts         prometheus.Counter
	bytes            prometheus.Counter
	downloadDuration prometheus.Histogram
	failures         *prometheus.CounterVec
	mergePages       prometheus.Counter
	mergeInputs      prometheus.Counter
	mergeSkipped     *prometheus.CounterVec
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		downloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloads_total",
				Help:      "Finished downloads by terminal status.",
			},
			[]string{"status"},
		),
		attempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_attempts_total",
				Help:      "Network attempts made, including retries.",
			},
		),
		bytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_bytes_total",
				Help:      "Bytes written by successful downloads.",
			},
		),
		downloadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "download_duration_seconds",
				Help:      "Time from first attempt to terminal status.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_failures_total",
				Help:      "Failed downloads by error kind.",
			},
			[]string{"kind"},
		),
		mergePages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "merge_pages_total",
				Help:      "Pages written to merged documents.",
			},
		),
		mergeInputs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "merge_inputs_total",
				Help:      "Input files that contributed to merged documents.",
			},
		),
		mergeSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "merge_skipped_total",
				Help:      "Merge inputs skipped by reason.",
			},
			[]string{"reason"},
		),
	}

	r.registry.MustRegister(
		r.downloads,
		r.attempts,
		r.bytes,
		r.downloadDuration,
		r.failures,
		r.mergePages,
		r.mergeInputs,
		r.mergeSkipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Registry returns the registry the collectors are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveAttempt implements download.Observer.
func (r *Recorder) ObserveAttempt() {
	r.attempts.Inc()
}

// ObserveOutcome implements download.Observer.
func (r *Recorder) ObserveOutcome(o model.DownloadOutcome) {
	r.downloads.WithLabelValues(o.Status.String()).Inc()

	switch o.Status {
	case model.StatusSuccess:
		r.bytes.Add(float64(o.BytesWritten))
		r.downloadDuration.Observe(o.Elapsed.Seconds())
	case model.StatusFailed:
		kind := model.ErrorKindNone
		if o.Err != nil {
			kind = o.Err.Kind
		}
		r.failures.WithLabelValues(kind.String()).Inc()
	}
}

// ObserveMerge implements merge.Observer.
func (r *Recorder) ObserveMerge(result *model.MergeResult) {
	if result == nil {
		return
	}
	r.mergePages.Add(float64(result.TotalPages))
	r.mergeInputs.Add(float64(result.InputCount))
	for _, s := range result.Skipped {
		r.mergeSkipped.WithLabelValues(s.Reason.String()).Inc()
	}
}

// Handler returns the /metrics HTTP handler for this recorder.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Server exposes a Recorder over HTTP while a run is in progress.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Serve starts serving /metrics on addr in the background. The returned
// server must be shut down with Shutdown.
func Serve(addr string, r *Recorder, logger *slog.Logger) (*Server, error) {
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
		ln: ln,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
