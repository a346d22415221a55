// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package metricdata defines the export data model produced by metric
// collection.
package metricdata

import (
	"time"

	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/resource"

	"go.opentelemetry.io/otel/attribute"
)

// ResourceMetrics is a collection of ScopeMetrics produced by a single
// Resource.
type ResourceMetrics struct {
	Resource     *resource.Resource
	ScopeMetrics []ScopeMetrics
}

// ScopeMetrics is a collection of Metrics produced by a single
// instrumentation scope.
type ScopeMetrics struct {
	Scope   instrumentation.Scope
	Metrics []Metrics
}

// Metrics is a collection of one or more aggregated time series from an
// instrument.
type Metrics struct {
	Name        string
	Description string
	Unit        string
	Data        Aggregation
}

// Aggregation is the store of data reported by an instrument. It will
// be one of: Gauge, Sum, Histogram or ExponentialHistogram.
type Aggregation interface {
	privateAggregation()
}

// Gauge represents a measurement of the current value of an instrument.
type Gauge[N int64 | float64] struct {
	DataPoints []DataPoint[N]
}

func (Gauge[N]) privateAggregation() {}

// Sum represents the sum of all measurements of values from an
// instrument.
type Sum[N int64 | float64] struct {
	DataPoints  []DataPoint[N]
	Temporality Temporality
	IsMonotonic bool
}

func (Sum[N]) privateAggregation() {}

// DataPoint is a single data point in a time series.
type DataPoint[N int64 | float64] struct {
	// Attributes is the set of key value pairs that uniquely identify
	// the time series.
	Attributes attribute.Set
	// StartTime is when the time series was started.
	StartTime time.Time
	// Time is the time when the time series was recorded.
	Time time.Time
	// Value is the value of this data point.
	Value N
}

// Histogram represents the histogram of all measurements of values from
// an instrument.
type Histogram[N int64 | float64] struct {
	DataPoints  []HistogramDataPoint[N]
	Temporality Temporality
}

func (Histogram[N]) privateAggregation() {}

// HistogramDataPoint is a single histogram data point in a time series.
type HistogramDataPoint[N int64 | float64] struct {
	Attributes attribute.Set
	StartTime  time.Time
	Time       time.Time

	// Count is the number of updates this histogram has been calculated
	// with.
	Count uint64
	// Bounds are the upper bounds of the buckets of the histogram.
	// Because the last boundary is +infinity it is implied and not
	// recorded.
	Bounds []float64
	// BucketCounts are the count of each of the buckets. Its length is
	// len(Bounds)+1.
	BucketCounts []uint64

	Min Extrema[N]
	Max Extrema[N]
	Sum N
}

// ExponentialHistogram represents the histogram of all measurements of
// values from an instrument using base-2 exponentially scaled buckets.
type ExponentialHistogram[N int64 | float64] struct {
	DataPoints  []ExponentialHistogramDataPoint[N]
	Temporality Temporality
}

func (ExponentialHistogram[N]) privateAggregation() {}

// ExponentialHistogramDataPoint is a single exponential histogram data
// point in a time series.
type ExponentialHistogramDataPoint[N int64 | float64] struct {
	Attributes attribute.Set
	StartTime  time.Time
	Time       time.Time

	Count uint64
	Min   Extrema[N]
	Max   Extrema[N]
	Sum   N

	// Scale is the resolution of the histogram. Bucket boundaries grow
	// by powers of base = 2^(2^-Scale).
	Scale int32
	// ZeroCount is the number of values whose absolute value is at or
	// below ZeroThreshold.
	ZeroCount     uint64
	ZeroThreshold float64

	PositiveBucket ExponentialBucket
	NegativeBucket ExponentialBucket
}

// ExponentialBucket are a set of bucket counts, encoded in a
// contiguous array, where bucket index i counts measurements in
// (base^(Offset+i), base^(Offset+i+1)].
type ExponentialBucket struct {
	Offset int32
	Counts []uint64
}

// Extrema is the minimum or maximum value of a data set, which may be
// unset when no measurements were recorded.
type Extrema[N int64 | float64] struct {
	value N
	valid bool
}

// NewExtrema returns an Extrema set to v.
func NewExtrema[N int64 | float64](v N) Extrema[N] {
	return Extrema[N]{value: v, valid: true}
}

// Value returns the Extrema value and true if set, otherwise false.
func (e Extrema[N]) Value() (v N, defined bool) {
	return e.value, e.valid
}
