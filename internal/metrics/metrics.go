// Package metrics holds the Prometheus instruments of a run.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chunk outcomes used as the "result" label.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics is safe to share; a nil *Metrics records nothing.
type Metrics struct {
	Chunks           *prometheus.CounterVec
	BytesPlanned     prometheus.Counter
	Records          prometheus.Counter
	Retries          prometheus.Counter
	DuplicateResults prometheus.Counter
	ChunkDuration    prometheus.Histogram
}

// NewMetrics creates and registers all metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phredmean_chunks_total",
			Help: "Work items finished, by result.",
		}, []string{"result"}),
		BytesPlanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phredmean_bytes_planned_total",
			Help: "Bytes covered by planned work items.",
		}),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phredmean_records_total",
			Help: "FASTQ records folded into partials.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phredmean_chunk_retries_total",
			Help: "Work items resubmitted after a failure or timeout.",
		}),
		DuplicateResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phredmean_duplicate_results_total",
			Help: "Results dropped because their work item was already reduced.",
		}),
		ChunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phredmean_chunk_duration_seconds",
			Help:    "Time to process one work item.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	reg.MustRegister(m.Chunks, m.BytesPlanned, m.Records, m.Retries, m.DuplicateResults, m.ChunkDuration)
	return m
}

// ObserveChunk records one finished work item.
func (m *Metrics) ObserveChunk(result string, records int64, took time.Duration) {
	if m == nil {
		return
	}
	m.Chunks.WithLabelValues(result).Inc()
	if records > 0 {
		m.Records.Add(float64(records))
	}
	if took > 0 {
		m.ChunkDuration.Observe(took.Seconds())
	}
}

// Planned records the bytes of a plan.
func (m *Metrics) Planned(bytes int64) {
	if m == nil {
		return
	}
	m.BytesPlanned.Add(float64(bytes))
}

// Retry counts one resubmission.
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

// Duplicate counts one dropped duplicate result.
func (m *Metrics) Duplicate() {
	if m == nil {
		return
	}
	m.DuplicateResults.Inc()
}

// Serve exposes reg on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg prometheus.Gatherer, logger log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		level.Info(logger).Log("msg", "starting metrics server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		level.Error(logger).Log("msg", "metrics server shutdown failed", "err", err)
		return err
	}
	return nil
}
