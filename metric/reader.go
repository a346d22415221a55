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

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/metric/metricdata"
)

// ErrReaderNotRegistered is returned when a Reader collects before
// being registered with a MeterProvider.
var ErrReaderNotRegistered = errors.New("reader is not registered")

// Reader is the interface between a MeterProvider and the consumers of
// its collected metric data.
type Reader interface {
	// register binds the Reader to the pipeline producing its data.
	// A Reader can only be registered once.
	register(p producer)

	// temporality reports the Temporality for the instrument kind
	// provided.
	temporality(InstrumentKind) metricdata.Temporality

	// aggregation returns the Aggregation to use for kind.
	aggregation(InstrumentKind) Aggregation

	// Collect gathers all metric data accumulated since the last
	// collection into rm. Concurrent collections are serialized by the
	// pipeline.
	Collect(ctx context.Context, rm *metricdata.ResourceMetrics) error

	// Shutdown stops the Reader. Later operations return
	// otelsdk.ErrAlreadyShutdown.
	Shutdown(ctx context.Context) error
}

// producer produces metric data for a Reader.
type producer interface {
	produce(ctx context.Context, rm *metricdata.ResourceMetrics) error
}

// ManualReader collects metric data on demand when its Collect method
// is called.
type ManualReader struct {
	mu          sync.Mutex
	sdkProducer producer

	shutdown atomic.Bool

	temporalitySelector TemporalitySelector
	aggregationSelector AggregationSelector
}

var _ Reader = (*ManualReader)(nil)

// ManualReaderOption configures a ManualReader.
type ManualReaderOption func(*ManualReader)

// WithTemporalitySelector sets the temporality the reader declares per
// instrument kind. Defaults to cumulative for all kinds.
func WithTemporalitySelector(selector TemporalitySelector) ManualReaderOption {
	return func(r *ManualReader) {
		if selector != nil {
			r.temporalitySelector = selector
		}
	}
}

// WithAggregationSelector sets the default aggregation the reader
// declares per instrument kind.
func WithAggregationSelector(selector AggregationSelector) ManualReaderOption {
	return func(r *ManualReader) {
		if selector != nil {
			r.aggregationSelector = selector
		}
	}
}

// NewManualReader returns a ManualReader configured with opts.
func NewManualReader(opts ...ManualReaderOption) *ManualReader {
	r := &ManualReader{
		temporalitySelector: DefaultTemporalitySelector,
		aggregationSelector: DefaultAggregationSelector,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *ManualReader) register(p producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sdkProducer != nil {
		return
	}
	r.sdkProducer = p
}

func (r *ManualReader) temporality(kind InstrumentKind) metricdata.Temporality {
	return r.temporalitySelector(kind)
}

func (r *ManualReader) aggregation(kind InstrumentKind) Aggregation {
	return r.aggregationSelector(kind)
}

// Collect gathers all metric data accumulated since the last collection
// into rm.
func (r *ManualReader) Collect(ctx context.Context, rm *metricdata.ResourceMetrics) error {
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

// Shutdown stops the reader. It is idempotent; later calls return
// otelsdk.ErrAlreadyShutdown.
func (r *ManualReader) Shutdown(context.Context) error {
	if !r.shutdown.CompareAndSwap(false, true) {
		return otelsdk.ErrAlreadyShutdown
	}
	return nil
}
