// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package log

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

// Batch processor defaults, overridable via the OTEL_BLRP_*
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

func newBatchConfig(opts []BatchProcessorOption) batchConfig {
	cfg := batchConfig{
		maxQueueSize:       env.IntOr(DefaultMaxQueueSize, "OTEL_BLRP_MAX_QUEUE_SIZE"),
		maxExportBatchSize: env.IntOr(DefaultMaxExportBatchSize, "OTEL_BLRP_MAX_EXPORT_BATCH_SIZE"),
		scheduleDelay:      env.DurationMillisOr(DefaultScheduleDelay, "OTEL_BLRP_SCHEDULE_DELAY"),
		exportTimeout:      env.DurationMillisOr(DefaultExportTimeout, "OTEL_BLRP_EXPORT_TIMEOUT"),
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxExportBatchSize > cfg.maxQueueSize {
		cfg.maxExportBatchSize = cfg.maxQueueSize
	}
	return cfg
}

// BatchProcessorOption configures a BatchProcessor.
type BatchProcessorOption func(*batchConfig)

// WithMaxQueueSize bounds the producer queue. Records arriving while
// the queue is full are dropped.
func WithMaxQueueSize(n int) BatchProcessorOption {
	return func(cfg *batchConfig) {
		if n > 0 {
			cfg.maxQueueSize = n
		}
	}
}

// WithMaxExportBatchSize bounds the number of records per export call.
func WithMaxExportBatchSize(n int) BatchProcessorOption {
	return func(cfg *batchConfig) {
		if n > 0 {
			cfg.maxExportBatchSize = n
		}
	}
}

// WithBatchTimeout sets the maximum delay before a partially filled
// batch is exported.
func WithBatchTimeout(d time.Duration) BatchProcessorOption {
	return func(cfg *batchConfig) {
		if d > 0 {
			cfg.scheduleDelay = d
		}
	}
}

// WithExportTimeout bounds a single export call.
func WithExportTimeout(d time.Duration) BatchProcessorOption {
	return func(cfg *batchConfig) {
		if d > 0 {
			cfg.exportTimeout = d
		}
	}
}

// BatchProcessor queues emitted records and exports them in batches
// from a dedicated background goroutine. Producers never block: when
// the queue is full the record is dropped and counted.
type BatchProcessor struct {
	exporter Exporter
	cfg      batchConfig

	queue   chan Record
	flushCh chan chan error
	stopCh  chan struct{}
	done    chan struct{}

	shutdown atomic.Bool
	dropped  atomic.Uint64
}

var _ Processor = (*BatchProcessor)(nil)

// NewBatchProcessor returns a running BatchProcessor exporting to
// exporter.
func NewBatchProcessor(exporter Exporter, opts ...BatchProcessorOption) *BatchProcessor {
	cfg := newBatchConfig(opts)
	p := &BatchProcessor{
		exporter: exporter,
		cfg:      cfg,
		queue:    make(chan Record, cfg.maxQueueSize),
		flushCh:  make(chan chan error),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	go p.worker()

	return p
}

// OnEmit enqueues a copy of r without blocking. Records are dropped,
// and counted, when the queue is full.
func (p *BatchProcessor) OnEmit(_ context.Context, r *Record) error {
	if p.shutdown.Load() {
		return nil
	}
	select {
	case p.queue <- r.Clone():
	default:
		p.dropped.Add(1)
	}
	return nil
}

// Dropped returns the number of records dropped because the queue was
// full at emission time.
func (p *BatchProcessor) Dropped() uint64 {
	return p.dropped.Load()
}

// ForceFlush exports every record enqueued before the call. It returns
// otelsdk.ErrTimeout when ctx expires first; the worker keeps
// exporting in the background.
func (p *BatchProcessor) ForceFlush(ctx context.Context) error {
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
func (p *BatchProcessor) Shutdown(ctx context.Context) error {
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
		selflog.Warn("batch log processor dropped records", "dropped", n)
	}
	return p.exporter.Shutdown(ctx)
}

// SetResource forwards the provider resource to the exporter.
func (p *BatchProcessor) SetResource(r *resource.Resource) {
	if ra, ok := p.exporter.(ResourceAware); ok {
		ra.SetResource(r)
	}
}

func (p *BatchProcessor) worker() {
	defer close(p.done)

	timer := time.NewTimer(p.cfg.scheduleDelay)
	defer timer.Stop()

	batch := make([]Record, 0, p.cfg.maxExportBatchSize)

	for {
		select {
		case r := <-p.queue:
			batch = append(batch, r)
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
				selflog.Error("batch log processor final drain failed", "error", err)
			}
			return
		}
	}
}

// drain empties the queue and exports everything, including the
// current partial batch.
func (p *BatchProcessor) drain(batch *[]Record) error {
	for {
		select {
		case r := <-p.queue:
			*batch = append(*batch, r)
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
func (p *BatchProcessor) export(batch *[]Record) error {
	if len(*batch) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(suppress.With(context.Background()), p.cfg.exportTimeout)
	defer cancel()

	var err error
	recovered := panics.Try(func() {
		err = p.exporter.Export(ctx, *batch)
	})
	if recovered != nil {
		err = recovered.AsError()
	}
	if err != nil {
		selflog.Error("batch log processor export failed", "error", err, "records", len(*batch))
	}

	*batch = (*batch)[:0]
	return err
}
