// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metric

import (
	"context"

	"github.com/z5labs/otelsdk/metric/metricdata"
)

// Exporter ships collected metric data to a backend.
type Exporter interface {
	// Temporality returns the Temporality to use for an instrument
	// kind.
	Temporality(InstrumentKind) metricdata.Temporality

	// Aggregation returns the Aggregation to use for an instrument
	// kind.
	Aggregation(InstrumentKind) Aggregation

	// Export serializes and transmits metric data. The exporter owns
	// rm only for the duration of the call.
	Export(ctx context.Context, rm *metricdata.ResourceMetrics) error

	// ForceFlush flushes any buffered data.
	ForceFlush(ctx context.Context) error

	// Shutdown flushes all data and releases resources. Further Export
	// calls fail with otelsdk.ErrAlreadyShutdown.
	Shutdown(ctx context.Context) error
}

// TemporalitySelector selects the temporality to use for an instrument
// kind.
type TemporalitySelector func(InstrumentKind) metricdata.Temporality

// DefaultTemporalitySelector returns cumulative temporality for every
// instrument kind.
func DefaultTemporalitySelector(InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

// DeltaTemporalitySelector returns delta temporality for counters,
// histograms and observable counters, and cumulative for up-down
// counters.
func DeltaTemporalitySelector(kind InstrumentKind) metricdata.Temporality {
	switch kind {
	case InstrumentKindCounter, InstrumentKindHistogram, InstrumentKindObservableCounter:
		return metricdata.DeltaTemporality
	default:
		return metricdata.CumulativeTemporality
	}
}

// LowMemoryTemporalitySelector returns delta temporality for the
// synchronous kinds that would otherwise accumulate state forever, and
// cumulative for everything observed via callbacks.
func LowMemoryTemporalitySelector(kind InstrumentKind) metricdata.Temporality {
	switch kind {
	case InstrumentKindCounter, InstrumentKindHistogram:
		return metricdata.DeltaTemporality
	default:
		return metricdata.CumulativeTemporality
	}
}

// AggregationSelector selects the aggregation to use for an instrument
// kind.
type AggregationSelector func(InstrumentKind) Aggregation

// DefaultAggregationSelector returns the default aggregation for each
// instrument kind: sums for counters, last-value for gauges and
// explicit bucket histograms for histograms.
func DefaultAggregationSelector(kind InstrumentKind) Aggregation {
	switch kind {
	case InstrumentKindCounter, InstrumentKindUpDownCounter,
		InstrumentKindObservableCounter, InstrumentKindObservableUpDownCounter:
		return AggregationSum{}
	case InstrumentKindGauge, InstrumentKindObservableGauge:
		return AggregationLastValue{}
	case InstrumentKindHistogram:
		return AggregationExplicitBucketHistogram{
			Boundaries: DefaultExplicitBucketBoundaries,
		}
	default:
		return AggregationDefault{}
	}
}
