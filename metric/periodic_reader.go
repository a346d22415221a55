// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metric

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/internal/env"
	"github.com/z5labs/otelsdk/internal/selflog"
	"github.com/z5labs/otelsdk/internal/suppress"
	"github.com/z5labs/otelsdk/metric/metricdata"

	"github.com/sourcegraph/conc/panics"
)

// Periodic reader defaults, overridable via the OTEL_METRIC_EXPORT_*
// environment variables and the With* options.
const (
	DefaultExportInterval = time.Minute
	DefaultExportTimeout  = 30 * time.Second
)

type periodicReaderConfig struct {
	interval time.Duration
	timeout  time.Duration
}

func newPeriodicReaderConfig(opts []PeriodicReaderOption) periodicReaderConfig {
	cfg := periodicReaderConfig{
		interval: env.DurationMillisOr(DefaultExportInterval, "OTEL_METRIC_EXPORT_INTERVAL"),
		timeout:  env.DurationMillisOr(DefaultExportTimeout, "OTEL_METRIC_EXPORT_TIMEOUT"),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// PeriodicReaderOption configures a PeriodicReader.
type PeriodicReaderOption func(*periodicReaderConfig)

// WithInterval sets the time between exports.
func WithInterval(d time.Duration) PeriodicReaderOption {
	return func(cfg *periodicReaderConfig) {
		if d > 0 {
			cfg.interval = d
		}
	}
}

// WithTimeout bounds a single collect and export cycle.
func WithTimeout(d time.Duration) PeriodicReaderOption {
	return func(cfg *periodicReaderConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// PeriodicReader collects and exports metric data to its exporter at a
// set interval from a dedicated background goroutine. Temporality and
// default aggregations are those declared by the exporter.
type PeriodicReader struct {
	mu          sync.Mutex
	sdkProducer producer

	interval time.Duration
	timeout  time.Duration
	exporter Exporter

	flushCh chan chan error
	done    chan struct{}
	cancel  context.CancelFunc

	shutdown atomic.Bool
}

var _ Reader = (*PeriodicReader)(nil)

// NewPeriodicReader returns a running PeriodicReader exporting to
// exporter every interval.
func NewPeriodicReader(exporter Exporter, opts ...PeriodicReaderOption) *PeriodicReader {
	cfg := newPeriodicReaderConfig(opts)

	ctx, cancel := context.WithCancel(context.Background())
	r := &PeriodicReader{
		interval: cfg.interval,
		timeout:  cfg.timeout,
		exporter: exporter,
		flushCh:  make(chan chan error),
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	go func() {
		defer close(r.done)
		r.run(ctx)
	}()

	return r
}

func (r *PeriodicReader) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.collectAndExport(ctx); err != nil {
				selflog.Error("periodic reader export failed", "error", err)
			}
		case errCh := <-r.flushCh:
			errCh <- r.collectAndExport(ctx)
			ticker.Reset(r.interval)
		case <-ctx.Done():
			return
		}
	}
}

func (r *PeriodicReader) register(p producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sdkProducer != nil {
		return
	}
	r.sdkProducer = p
}

func (r *PeriodicReader) temporality(kind InstrumentKind) metricdata.Temporality {
	return r.exporter.Temporality(kind)
}

func (r *PeriodicReader) aggregation(kind InstrumentKind) Aggregation {
	return r.exporter.Aggregation(kind)
}

// collectAndExport runs one collection cycle, converting exporter
// panics into errors so the loop survives.
func (r *PeriodicReader) collectAndExport(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(suppress.With(ctx), r.timeout)
	defer cancel()

	var rm metricdata.ResourceMetrics
	err := r.Collect(ctx, &rm)
	if err != nil {
		if errors.Is(err, ErrReaderNotRegistered) {
			return nil
		}
		return err
	}

	recovered := panics.Try(func() {
		err = r.exporter.Export(ctx, &rm)
	})
	if recovered != nil {
		err = recovered.AsError()
	}
	return err
}

// Collect gathers all metric data accumulated since the last collection
// into rm without exporting it.
func (r *PeriodicReader) Collect(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	if rm == nil {
		return errors.New("nil ResourceMetrics")
	}
	if r.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	r.mu.Lock()
	p := r.sdkProducer
	r.mu.Unlock()
	if p == nil {
		return ErrReaderNotRegistered
	}
	return p.produce(ctx, rm)
}

// ForceFlush triggers an immediate collect and export ahead of
// schedule. It returns otelsdk.ErrTimeout when ctx expires first.
func (r *PeriodicReader) ForceFlush(ctx context.Context) error {
	if r.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	errCh := make(chan error, 1)
	select {
	case r.flushCh <- errCh:
	case <-r.done:
		return otelsdk.ErrAlreadyShutdown
	case <-ctx.Done():
		return otelsdk.ErrTimeout
	}

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return otelsdk.ErrTimeout
	}
	return r.exporter.ForceFlush(ctx)
}

// Shutdown stops the export loop, performs one final collect and
// export, and shuts the exporter down. It is idempotent; later calls
// return otelsdk.ErrAlreadyShutdown.
func (r *PeriodicReader) Shutdown(ctx context.Context) error {
	if !r.shutdown.CompareAndSwap(false, true) {
		return otelsdk.ErrAlreadyShutdown
	}

	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
		return otelsdk.ErrTimeout
	}

	ctx = suppress.With(ctx)

	r.mu.Lock()
	p := r.sdkProducer
	r.mu.Unlock()

	var firstErr error
	if p != nil {
		var rm metricdata.ResourceMetrics
		err := p.produce(ctx, &rm)
		if err == nil {
			recovered := panics.Try(func() {
				err = r.exporter.Export(ctx, &rm)
			})
			if recovered != nil {
				err = recovered.AsError()
			}
		}
		firstErr = err
	}

	if err := r.exporter.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
