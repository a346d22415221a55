// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metric

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/internal/selflog"
	"github.com/z5labs/otelsdk/metric/internal/aggregate"
	"github.com/z5labs/otelsdk/metric/metricdata"
	"github.com/z5labs/otelsdk/resource"

	"github.com/sourcegraph/conc/panics"
)

// DefaultCardinalityLimit is the default maximum number of distinct
// attribute sets aggregated per stream. Further sets fold into the
// overflow data point.
const DefaultCardinalityLimit = 2000

// instrumentSync is a stream of a single instrument resolved for one
// pipeline: the exported identity plus the aggregation output.
type instrumentSync struct {
	name        string
	description string
	unit        string
	compAgg     aggregate.ComputeAggregation
}

// callback is an observable callback registered with every pipeline.
// It runs at the start of each collection, before aggregations are
// snapshotted.
type callback struct {
	invoke func(context.Context) error
}

// pipeline connects all the instruments created by a meter provider to
// one Reader. Measurements flow into the pipeline's aggregations on
// the hot path; the Reader drains them through produce.
type pipeline struct {
	resource *resource.Resource
	reader   Reader
	views    []View

	mu           sync.Mutex
	aggregations map[instrumentation.Scope][]instrumentSync
	callbacks    []*callback

	// collectMu serializes collections: exactly one produce per reader
	// is in flight at a time.
	collectMu sync.Mutex
}

func newPipeline(res *resource.Resource, reader Reader, views []View) *pipeline {
	return &pipeline{
		resource:     res,
		reader:       reader,
		views:        views,
		aggregations: make(map[instrumentation.Scope][]instrumentSync),
	}
}

func (p *pipeline) addSync(scope instrumentation.Scope, s instrumentSync) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aggregations[scope] = append(p.aggregations[scope], s)
}

func (p *pipeline) addCallback(c *callback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, c)
}

func (p *pipeline) removeCallback(c *callback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = slices.DeleteFunc(p.callbacks, func(o *callback) bool {
		return o == c
	})
}

// produce invokes the registered callbacks in registration order, then
// snapshots every instrument that received at least one measurement
// into rm.
func (p *pipeline) produce(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	p.collectMu.Lock()
	defer p.collectMu.Unlock()

	p.mu.Lock()
	callbacks := slices.Clone(p.callbacks)
	p.mu.Unlock()

	// Callback errors and panics are logged and do not abort the
	// collection.
	for _, c := range callbacks {
		var err error
		recovered := panics.Try(func() {
			err = c.invoke(ctx)
		})
		if recovered != nil {
			err = recovered.AsError()
		}
		if err != nil {
			selflog.Error("metric callback failed", "error", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rm.Resource = p.resource
	rm.ScopeMetrics = rm.ScopeMetrics[:0]
	for scope, instruments := range p.aggregations {
		sm := metricdata.ScopeMetrics{Scope: scope}
		for _, inst := range instruments {
			var data metricdata.Aggregation
			if n := inst.compAgg(&data); n > 0 {
				sm.Metrics = append(sm.Metrics, metricdata.Metrics{
					Name:        inst.name,
					Description: inst.description,
					Unit:        inst.unit,
					Data:        data,
				})
			}
		}
		if len(sm.Metrics) > 0 {
			rm.ScopeMetrics = append(rm.ScopeMetrics, sm)
		}
	}
	return nil
}

// resolveMeasures resolves inst into one aggregate function per
// matching view (or the default stream) per pipeline. The returned
// measures fan a measurement out to every reader.
func resolveMeasures[N int64 | float64](m *meter, inst Instrument, boundaries []float64) ([]aggregate.Measure[N], error) {
	var (
		measures []aggregate.Measure[N]
		errs     []error
	)
	for _, pipe := range m.state.pipelines {
		matched := false
		for _, v := range pipe.views {
			stream, ok := v(inst)
			if !ok {
				continue
			}
			matched = true
			meas, err := addStream[N](pipe, inst, stream, boundaries)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if meas != nil {
				measures = append(measures, meas)
			}
		}
		if matched {
			continue
		}

		stream := Stream{
			Name:        inst.Name,
			Description: inst.Description,
			Unit:        inst.Unit,
		}
		meas, err := addStream[N](pipe, inst, stream, boundaries)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if meas != nil {
			measures = append(measures, meas)
		}
	}
	return measures, errors.Join(errs...)
}

// addStream builds the aggregate function for one stream of inst in
// pipe and registers its output with the pipeline. A nil measure with
// nil error means the stream is dropped.
func addStream[N int64 | float64](pipe *pipeline, inst Instrument, stream Stream, boundaries []float64) (aggregate.Measure[N], error) {
	agg := stream.Aggregation
	if agg == nil {
		agg = AggregationDefault{}
	}
	if _, ok := agg.(AggregationDefault); ok {
		agg = pipe.reader.aggregation(inst.Kind)
		if agg == nil {
			agg = AggregationDefault{}
		}
		if _, ok := agg.(AggregationDefault); ok {
			agg = DefaultAggregationSelector(inst.Kind)
		}
		// Histogram boundaries set on the instrument itself override
		// the default aggregation's.
		if h, ok := agg.(AggregationExplicitBucketHistogram); ok && len(boundaries) > 0 {
			h.Boundaries = boundaries
			agg = h
		}
	}
	if _, ok := agg.(AggregationDrop); ok {
		return nil, nil
	}

	limit := stream.CardinalityLimit
	switch {
	case limit == 0:
		limit = DefaultCardinalityLimit
	case limit < 0:
		limit = 0 // unlimited
	}

	b := aggregate.Builder[N]{
		Temporality:      pipe.reader.temporality(inst.Kind),
		Filter:           stream.AttributeFilter,
		AggregationLimit: limit,
	}

	var (
		meas aggregate.Measure[N]
		comp aggregate.ComputeAggregation
	)
	switch a := agg.(type) {
	case AggregationSum:
		switch inst.Kind {
		case InstrumentKindObservableCounter:
			meas, comp = b.PrecomputedSum(true)
		case InstrumentKindObservableUpDownCounter:
			meas, comp = b.PrecomputedSum(false)
		case InstrumentKindCounter:
			meas, comp = b.Sum(true)
		default:
			meas, comp = b.Sum(false)
		}
	case AggregationLastValue:
		meas, comp = b.LastValue()
	case AggregationExplicitBucketHistogram:
		if err := a.err(); err != nil {
			return nil, err
		}
		meas, comp = b.ExplicitBucketHistogram(a.Boundaries, a.NoMinMax, false)
	case AggregationBase2ExponentialHistogram:
		if err := a.err(); err != nil {
			return nil, err
		}
		meas, comp = b.ExponentialBucketHistogram(a.MaxSize, a.MaxScale, a.NoMinMax, false)
	default:
		return nil, fmt.Errorf("%w: unknown aggregation %T", ErrConfiguration, a)
	}

	pipe.addSync(inst.Scope, instrumentSync{
		name:        stream.Name,
		description: stream.Description,
		unit:        stream.Unit,
		compAgg:     comp,
	})
	return meas, nil
}
