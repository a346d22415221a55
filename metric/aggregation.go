// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metric

import "fmt"

// DefaultExplicitBucketBoundaries are the explicit histogram bucket
// upper bounds used when an instrument or view does not set its own.
var DefaultExplicitBucketBoundaries = []float64{0, 5, 10, 25, 50, 75, 100, 250, 500, 750, 1000, 2500, 5000, 7500, 10000}

// Aggregation is the aggregation used to summarize recorded
// measurements. It will be one of: AggregationDrop, AggregationDefault,
// AggregationSum, AggregationLastValue,
// AggregationExplicitBucketHistogram or
// AggregationBase2ExponentialHistogram.
type Aggregation interface {
	privateAggregation()
}

// AggregationDrop drops all recorded data.
type AggregationDrop struct{}

func (AggregationDrop) privateAggregation() {}

// AggregationDefault uses the default aggregation for the instrument
// kind: sums for counters, last-value for gauges and explicit bucket
// histograms for histograms.
type AggregationDefault struct{}

func (AggregationDefault) privateAggregation() {}

// AggregationSum summarizes measurements as their arithmetic sum.
type AggregationSum struct{}

func (AggregationSum) privateAggregation() {}

// AggregationLastValue summarizes measurements as the last one made.
type AggregationLastValue struct{}

func (AggregationLastValue) privateAggregation() {}

// AggregationExplicitBucketHistogram summarizes measurements as a
// histogram with explicitly defined buckets.
type AggregationExplicitBucketHistogram struct {
	// Boundaries are the increasing bucket boundary values. The (i-1)th
	// boundary is the exclusive lower bound of bucket i, the ith the
	// inclusive upper bound.
	Boundaries []float64
	// NoMinMax indicates whether to not record the min and max of the
	// distribution.
	NoMinMax bool
}

func (AggregationExplicitBucketHistogram) privateAggregation() {}

func (h AggregationExplicitBucketHistogram) err() error {
	for i := 1; i < len(h.Boundaries); i++ {
		if h.Boundaries[i-1] >= h.Boundaries[i] {
			return fmt.Errorf("%w: non-monotonic histogram boundaries: %v", ErrConfiguration, h.Boundaries)
		}
	}
	return nil
}

// AggregationBase2ExponentialHistogram summarizes measurements as a
// histogram with base-2 exponentially scaled bucket boundaries.
type AggregationBase2ExponentialHistogram struct {
	// MaxSize is the maximum number of buckets per positive or negative
	// number range.
	MaxSize int32
	// MaxScale is the maximum and initial scale.
	MaxScale int32
	// NoMinMax indicates whether to not record the min and max of the
	// distribution.
	NoMinMax bool
}

func (AggregationBase2ExponentialHistogram) privateAggregation() {}

func (h AggregationBase2ExponentialHistogram) err() error {
	if h.MaxSize < 2 {
		return fmt.Errorf("%w: exponential histogram max size %d is less than 2", ErrConfiguration, h.MaxSize)
	}
	if h.MaxScale > 20 || h.MaxScale < -10 {
		return fmt.Errorf("%w: exponential histogram max scale %d is outside [-10, 20]", ErrConfiguration, h.MaxScale)
	}
	return nil
}
