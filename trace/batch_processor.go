// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package trace

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/internal/env"
	"github.com/z5labs/otelsdk/internal/selflog"
	"github.com/z5labs/otelsdk/internal/suppress"
	"github.com/z5labs/otelsdk/resource"

	"github.com/sourcegraph/conc/panics"
)

// Batch span processor defaults, overridable via the OTEL_BSP_*
// environment variables and the With* options.
const (
	DefaultMaxQueueSize       = 2048
	DefaultMaxExportBatchSize = 512
	DefaultScheduleDelay      = time.Second
	DefaultExportTimeout      = 30 * time.Second
)

type batchConfig struct {
	maxQueueSize       int
	maxExportBatchSize int
	scheduleDelay      time.Duration
	exportTimeout      time.Duration
}

func newBatchConfig(opts []BatchSpanProcessorOption) batchConfig {
	cfg := batchConfig{
		maxQueueSize:       env.IntOr(DefaultMaxQueueSize, "OTEL_BSP_MAX_QUEUE_SIZE"),
		maxExportBatchSize: env.IntOr(DefaultMaxExportBatchSize, "OTEL_BSP_MAX_EXPORT_BATCH_SIZE"),
		scheduleDelay:      env.DurationMillisOr(DefaultScheduleDelay, "OTEL_BSP_SCHEDULE_DELAY"),
		exportTimeout:      env.DurationMillisOr(DefaultExportTimeout, "OTEL_BSP_EXPORT_TIMEOUT"),
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxExportBatchSize > cfg.maxQueueSize {
		cfg.maxExportBatchSize = cfg.maxQueueSize
	}
	return cfg
}

// BatchSpanProcessorOption configures a BatchSpanProcessor.
type BatchSpanProcessorOption func(*batchConfig)

// WithMaxQueueSize bounds the producer queue. Spans arriving while the
// queue is full are dropped.
func WithMaxQueueSize(n int) BatchSpanProcessorOption {
	return func(cfg *batchConfig) {
		if n > 0 {
			cfg.maxQueueSize = n
		}
	}
}

// WithMaxExportBatchSize bounds the number of spans per export call.
func WithMaxExportBatchSize(n int) BatchSpanProcessorOption {
	return func(cfg *batchConfig) {
		if n > 0 {
			cfg.maxExportBatchSize = n
		}
	}
}

// WithBatchTimeout sets the maximum delay before a partially filled
// batch is exported.
func WithBatchTimeout(d time.Duration) BatchSpanProcessorOption {
	return func(cfg *batchConfig) {
		if d > 0 {
			cfg.scheduleDelay = d
		}
	}
}

// WithExportTimeout bounds a single export call.
func WithExportTimeout(d time.Duration) BatchSpanProcessorOption {
	return func(cfg *batchConfig) {
		if d > 0 {
			cfg.exportTimeout = d
		}
	}
}

// BatchSpanProcessor queues ended spans and exports them in batches
// from a dedicated background goroutine. Producers never block: when
// the queue is full the span is dropped and counted.
type BatchSpanProcessor struct {
	exporter SpanExporter
	cfg      batchConfig

	queue   chan *SpanData
	flushCh chan chan error
	stopCh  chan struct{}
	done    chan struct{}

	shutdown atomic.Bool
	dropped  atomic.Uint64
}

var _ SpanProcessor = (*BatchSpanProcessor)(nil)

// NewBatchSpanProcessor returns a running BatchSpanProcessor exporting
// to exporter.
func NewBatchSpanProcessor(exporter SpanExporter, opts ...BatchSpanProcessorOption) *BatchSpanProcessor {
	cfg := newBatchConfig(opts)
	p := &BatchSpanProcessor{
		exporter: exporter,
		cfg:      cfg,
		queue:    make(chan *SpanData, cfg.maxQueueSize),
		flushCh:  make(chan chan error),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	go p.worker()

	return p
}

// OnEnd enqueues s without blocking. Spans are dropped, and counted,
// when the queue is full.
func (p *BatchSpanProcessor) OnEnd(s *SpanData) {
	if p.shutdown.Load() {
		return
	}
	select {
	case p.queue <- s:
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns the number of spans dropped because the queue was
// full at emission time.
func (p *BatchSpanProcessor) Dropped() uint64 {
	return p.dropped.Load()
}

// ForceFlush exports every span enqueued before the call. It returns
// otelsdk.ErrTimeout when ctx expires first; the worker keeps
// exporting in the background.
func (p *BatchSpanProcessor) ForceFlush(ctx context.Context) error {
	if p.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	errCh := make(chan error, 1)
	select {
	case p.flushCh <- errCh:
	case <-p.done:
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
	return p.exporter.ForceFlush(ctx)
}

// Shutdown drains the queue best-effort, shuts the exporter down and
// stops the worker. Later calls return otelsdk.ErrAlreadyShutdown.
func (p *BatchSpanProcessor) Shutdown(ctx context.Context) error {
	if !p.shutdown.CompareAndSwap(false, true) {
		return otelsdk.ErrAlreadyShutdown
	}

	close(p.stopCh)
	select {
	case <-p.done:
	case <-ctx.Done():
		return otelsdk.ErrTimeout
	}

	if n := p.dropped.Load(); n > 0 {
		selflog.Warn("batch span processor dropped spans", "dropped", n)
	}
	return p.exporter.Shutdown(ctx)
}

// SetResource forwards the provider resource to the exporter.
func (p *BatchSpanProcessor) SetResource(r *resource.Resource) {
	if ra, ok := p.exporter.(ResourceAware); ok {
		ra.SetResource(r)
	}
}

func (p *BatchSpanProcessor) worker() {
	defer close(p.done)

	timer := time.NewTimer(p.cfg.scheduleDelay)
	defer timer.Stop()

	batch := make([]*SpanData, 0, p.cfg.maxExportBatchSize)

	for {
		select {
		case sd := <-p.queue:
			batch = append(batch, sd)
			if len(batch) >= p.cfg.maxExportBatchSize {
				p.export(&batch)
				timer.Reset(p.cfg.scheduleDelay)
			}
		case <-timer.C:
			p.export(&batch)
			timer.Reset(p.cfg.scheduleDelay)
		case errCh := <-p.flushCh:
			errCh <- p.drain(&batch)
			timer.Reset(p.cfg.scheduleDelay)
		case <-p.stopCh:
			if err := p.drain(&batch); err != nil {
				selflog.Error("batch span processor final drain failed", "error", err)
			}
			return
		}
	}
}

// drain empties the queue and exports everything, including the
// current partial batch.
func (p *BatchSpanProcessor) drain(batch *[]*SpanData) error {
	for {
		select {
		case sd := <-p.queue:
			*batch = append(*batch, sd)
			if len(*batch) >= p.cfg.maxExportBatchSize {
				if err := p.export(batch); err != nil {
					return err
				}
			}
		default:
			return p.export(batch)
		}
	}
}

// export ships the current batch, converting exporter panics into
// errors so the worker survives.
func (p *BatchSpanProcessor) export(batch *[]*SpanData) error {
	if len(*batch) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(suppress.With(context.Background()), p.cfg.exportTimeout)
	defer cancel()

	var err error
	recovered := panics.Try(func() {
		err = p.exporter.ExportSpans(ctx, *batch)
	})
	if recovered != nil {
		err = recovered.AsError()
	}
	if err != nil {
		selflog.Error("batch span processor export failed", "error", err, "spans", len(*batch))
	}

	*batch = (*batch)[:0]
	return err
}
