// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package aggregate

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/z5labs/otelsdk/metric/metricdata"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

var defaultBounds = []float64{0, 5, 10, 25, 50, 75, 100, 250, 500, 750, 1000, 2500, 5000, 7500, 10000}

func TestHistogram_DefaultBuckets(t *testing.T) {
	in, out := Builder[float64]{
		Temporality: metricdata.CumulativeTemporality,
	}.ExplicitBucketHistogram(defaultBounds, false, false)

	ctx := context.Background()
	attrs := attribute.NewSet(attribute.String("host", "a"))
	for _, v := range []float64{1, 5, 10, 25, 100} {
		in(ctx, v, attrs)
	}

	var got metricdata.Aggregation
	require.Equal(t, 1, out(&got))

	hData, ok := got.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hData.DataPoints, 1)

	dp := hData.DataPoints[0]
	require.Equal(t, uint64(5), dp.Count)
	require.Equal(t, float64(141), dp.Sum)

	mn, ok := dp.Min.Value()
	require.True(t, ok)
	require.Equal(t, float64(1), mn)
	mx, ok := dp.Max.Value()
	require.True(t, ok)
	require.Equal(t, float64(100), mx)

	// Buckets are upper-inclusive: (-inf,0], (0,5], (5,10], ... so the
	// boundary values 5, 10 and 25 land in the bucket they terminate.
	require.Equal(t, defaultBounds, dp.Bounds)
	require.Equal(t, []uint64{0, 2, 1, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}, dp.BucketCounts)
}

func TestHistogram_Invariants(t *testing.T) {
	in, out := Builder[float64]{
		Temporality: metricdata.CumulativeTemporality,
	}.ExplicitBucketHistogram(defaultBounds, false, false)

	ctx := context.Background()
	attrs := attribute.NewSet(attribute.String("host", "a"))

	var (
		wantSum   float64
		wantCount uint64
		wantMin   = float64(11000)
		wantMax   = float64(-1)
	)
	for range 500 {
		v := rand.Float64() * 11000
		wantSum += v
		wantCount++
		wantMin = min(wantMin, v)
		wantMax = max(wantMax, v)
		in(ctx, v, attrs)
	}

	var got metricdata.Aggregation
	require.Equal(t, 1, out(&got))
	dp := got.(metricdata.Histogram[float64]).DataPoints[0]

	var bucketTotal uint64
	for _, c := range dp.BucketCounts {
		bucketTotal += c
	}
	require.Equal(t, dp.Count, bucketTotal)
	require.Equal(t, wantCount, dp.Count)
	require.InDelta(t, wantSum, dp.Sum, 1e-6)

	mn, _ := dp.Min.Value()
	mx, _ := dp.Max.Value()
	require.Equal(t, wantMin, mn)
	require.Equal(t, wantMax, mx)
}

func TestHistogram_Delta(t *testing.T) {
	in, out := Builder[int64]{
		Temporality: metricdata.DeltaTemporality,
	}.ExplicitBucketHistogram(defaultBounds, false, false)

	ctx := context.Background()
	attrs := attribute.NewSet(attribute.String("host", "a"))
	in(ctx, 7, attrs)

	var got metricdata.Aggregation
	require.Equal(t, 1, out(&got))
	require.Equal(t, uint64(1), got.(metricdata.Histogram[int64]).DataPoints[0].Count)

	// The point was reset with the interval.
	require.Equal(t, 0, out(&got))
}

func TestHistogram_CardinalityOverflow(t *testing.T) {
	in, out := Builder[int64]{
		Temporality:      metricdata.CumulativeTemporality,
		AggregationLimit: 2,
	}.ExplicitBucketHistogram(defaultBounds, false, false)

	ctx := context.Background()
	for i := range 5 {
		in(ctx, 1, attribute.NewSet(attribute.Int("id", i)))
	}

	var got metricdata.Aggregation
	require.Equal(t, 3, out(&got))

	var total uint64
	overflowSeen := false
	for _, dp := range got.(metricdata.Histogram[int64]).DataPoints {
		total += dp.Count
		if dp.Attributes.Equals(&overflowSet) {
			overflowSeen = true
			require.Equal(t, uint64(3), dp.Count)
		}
	}
	require.True(t, overflowSeen)
	require.Equal(t, uint64(5), total)
}

func TestHistogram_ConcurrentMeasureAndCollect(t *testing.T) {
	in, out := Builder[int64]{
		Temporality: metricdata.DeltaTemporality,
	}.ExplicitBucketHistogram(defaultBounds, false, false)

	ctx := context.Background()
	attrs := attribute.NewSet(attribute.String("host", "a"))

	const goroutines = 4
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				in(ctx, 1, attrs)
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// Collect while measurements are in flight. Every measurement must
	// land in exactly one interval.
	var total uint64
	collect := func() {
		var got metricdata.Aggregation
		out(&got)
		hData, ok := got.(metricdata.Histogram[int64])
		require.True(t, ok)
		for _, dp := range hData.DataPoints {
			total += dp.Count
		}
	}
	for {
		select {
		case <-done:
			collect()
			require.Equal(t, uint64(goroutines*perGoroutine), total)
			return
		default:
			collect()
		}
	}
}

func TestExponentialHistogram_Record(t *testing.T) {
	in, out := Builder[float64]{
		Temporality: metricdata.CumulativeTemporality,
	}.ExponentialBucketHistogram(160, 20, false, false)

	ctx := context.Background()
	attrs := attribute.NewSet(attribute.String("host", "a"))

	values := []float64{2, 4, 8, 0.5, 0}
	var wantSum float64
	for _, v := range values {
		wantSum += v
		in(ctx, v, attrs)
	}

	var got metricdata.Aggregation
	require.Equal(t, 1, out(&got))
	dp := got.(metricdata.ExponentialHistogram[float64]).DataPoints[0]

	require.Equal(t, uint64(len(values)), dp.Count)
	require.Equal(t, uint64(1), dp.ZeroCount)
	require.InDelta(t, wantSum, dp.Sum, 1e-9)

	mn, _ := dp.Min.Value()
	mx, _ := dp.Max.Value()
	require.Equal(t, 0.0, mn)
	require.Equal(t, 8.0, mx)

	var bucketTotal uint64
	for _, c := range dp.PositiveBucket.Counts {
		bucketTotal += c
	}
	require.Equal(t, dp.Count, bucketTotal+dp.ZeroCount)
}

func TestExponentialHistogram_Downscales(t *testing.T) {
	in, out := Builder[float64]{
		Temporality: metricdata.CumulativeTemporality,
	}.ExponentialBucketHistogram(4, 20, false, false)

	ctx := context.Background()
	attrs := attribute.NewSet(attribute.String("host", "a"))
	for _, v := range []float64{0.001, 1, 1000, 1000000} {
		in(ctx, v, attrs)
	}

	var got metricdata.Aggregation
	require.Equal(t, 1, out(&got))
	dp := got.(metricdata.ExponentialHistogram[float64]).DataPoints[0]

	require.Equal(t, uint64(4), dp.Count)
	require.LessOrEqual(t, len(dp.PositiveBucket.Counts), 4)

	var bucketTotal uint64
	for _, c := range dp.PositiveBucket.Counts {
		bucketTotal += c
	}
	require.Equal(t, uint64(4), bucketTotal)
}

func TestLastValue(t *testing.T) {
	in, out := Builder[int64]{
		Temporality: metricdata.CumulativeTemporality,
	}.LastValue()

	ctx := context.Background()
	attrs := attribute.NewSet(attribute.String("g", "x"))
	in(ctx, 1, attrs)
	in(ctx, 42, attrs)

	var got metricdata.Aggregation
	require.Equal(t, 1, out(&got))

	gData, ok := got.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Equal(t, int64(42), gData.DataPoints[0].Value)
}
