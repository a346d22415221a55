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

func fruit(color, name string) attribute.Set {
	return attribute.NewSet(
		attribute.String("color", color),
		attribute.String("name", name),
	)
}

func sumsByAttrs[N int64 | float64](t *testing.T, agg metricdata.Aggregation) map[attribute.Distinct]N {
	t.Helper()

	sData, ok := agg.(metricdata.Sum[N])
	require.True(t, ok)

	out := make(map[attribute.Distinct]N, len(sData.DataPoints))
	for _, dp := range sData.DataPoints {
		out[dp.Attributes.Equivalent()] = dp.Value
	}
	return out
}

func TestSum_Cumulative(t *testing.T) {
	in, out := Builder[int64]{
		Temporality: metricdata.CumulativeTemporality,
	}.Sum(true)

	ctx := context.Background()
	apple := fruit("red", "apple")
	lime := fruit("green", "lime")

	in(ctx, 2, apple)
	in(ctx, 3, lime)

	var got metricdata.Aggregation
	require.Equal(t, 2, out(&got))
	sums := sumsByAttrs[int64](t, got)
	require.Equal(t, int64(2), sums[apple.Equivalent()])
	require.Equal(t, int64(3), sums[lime.Equivalent()])

	// A second collection without new measurements reports the same
	// running totals.
	require.Equal(t, 2, out(&got))
	sums = sumsByAttrs[int64](t, got)
	require.Equal(t, int64(2), sums[apple.Equivalent()])
	require.Equal(t, int64(3), sums[lime.Equivalent()])

	in(ctx, 5, apple)
	require.Equal(t, 2, out(&got))
	sums = sumsByAttrs[int64](t, got)
	require.Equal(t, int64(7), sums[apple.Equivalent()])
	require.Equal(t, int64(3), sums[lime.Equivalent()])
}

func TestSum_Delta(t *testing.T) {
	in, out := Builder[int64]{
		Temporality: metricdata.DeltaTemporality,
	}.Sum(true)

	ctx := context.Background()
	apple := fruit("red", "apple")

	in(ctx, 2, apple)

	var got metricdata.Aggregation
	require.Equal(t, 1, out(&got))
	require.Equal(t, int64(2), sumsByAttrs[int64](t, got)[apple.Equivalent()])

	// The interval reset: nothing recorded since the last collection.
	require.Equal(t, 0, out(&got))

	in(ctx, 5, apple)
	require.Equal(t, 1, out(&got))
	require.Equal(t, int64(5), sumsByAttrs[int64](t, got)[apple.Equivalent()])
}

func TestSum_CardinalityOverflow(t *testing.T) {
	in, out := Builder[int64]{
		Temporality:      metricdata.CumulativeTemporality,
		AggregationLimit: 3,
	}.Sum(true)

	ctx := context.Background()
	sets := []attribute.Set{
		attribute.NewSet(attribute.String("set", "A")),
		attribute.NewSet(attribute.String("set", "B")),
		attribute.NewSet(attribute.String("set", "C")),
		attribute.NewSet(attribute.String("set", "D")),
	}
	for _, s := range sets {
		in(ctx, 1, s)
	}

	var got metricdata.Aggregation
	require.Equal(t, 4, out(&got))
	sums := sumsByAttrs[int64](t, got)

	// The first three sets kept their own point, D folded into the
	// overflow point.
	for _, s := range sets[:3] {
		require.Equal(t, int64(1), sums[s.Equivalent()])
	}
	require.Equal(t, int64(1), sums[overflowSet.Equivalent()])

	var total int64
	for _, v := range sums {
		total += v
	}
	require.Equal(t, int64(4), total)
}

func TestSum_OverflowPreservesTotal(t *testing.T) {
	in, out := Builder[int64]{
		Temporality:      metricdata.CumulativeTemporality,
		AggregationLimit: 10,
	}.Sum(true)

	ctx := context.Background()
	var want int64
	for range 1000 {
		v := rand.Int64N(100)
		want += v
		in(ctx, v, attribute.NewSet(attribute.Int("id", rand.IntN(100))))
	}

	var got metricdata.Aggregation
	out(&got)

	var total int64
	for _, v := range sumsByAttrs[int64](t, got) {
		total += v
	}
	require.Equal(t, want, total)
}

func TestSum_ConcurrentAdds(t *testing.T) {
	in, out := Builder[int64]{
		Temporality: metricdata.CumulativeTemporality,
	}.Sum(true)

	ctx := context.Background()
	attrs := attribute.NewSet(attribute.String("g", "x"))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				in(ctx, 1, attrs)
			}
		}()
	}
	wg.Wait()

	var got metricdata.Aggregation
	require.Equal(t, 1, out(&got))
	require.Equal(t, int64(8000), sumsByAttrs[int64](t, got)[attrs.Equivalent()])
}

func TestPrecomputedSum_CardinalityOverflow(t *testing.T) {
	in, out := Builder[int64]{
		Temporality:      metricdata.CumulativeTemporality,
		AggregationLimit: 3,
	}.PrecomputedSum(true)

	ctx := context.Background()
	in(ctx, 1, attribute.NewSet(attribute.String("set", "A")))
	in(ctx, 2, attribute.NewSet(attribute.String("set", "B")))
	in(ctx, 3, attribute.NewSet(attribute.String("set", "C")))
	in(ctx, 4, attribute.NewSet(attribute.String("set", "D")))

	var got metricdata.Aggregation
	require.Equal(t, 4, out(&got))
	sums := sumsByAttrs[int64](t, got)

	setA := attribute.NewSet(attribute.String("set", "A"))
	setB := attribute.NewSet(attribute.String("set", "B"))
	setC := attribute.NewSet(attribute.String("set", "C"))
	require.Equal(t, int64(1), sums[setA.Equivalent()])
	require.Equal(t, int64(2), sums[setB.Equivalent()])
	require.Equal(t, int64(3), sums[setC.Equivalent()])
	// Callbacks report absolute values, so only the last value reported
	// against the overflow set is kept.
	require.Equal(t, int64(4), sums[overflowSet.Equivalent()])
}

func TestPrecomputedSum_Delta(t *testing.T) {
	in, out := Builder[int64]{
		Temporality: metricdata.DeltaTemporality,
	}.PrecomputedSum(true)

	ctx := context.Background()
	attrs := attribute.NewSet(attribute.String("g", "x"))

	in(ctx, 10, attrs)
	var got metricdata.Aggregation
	require.Equal(t, 1, out(&got))
	require.Equal(t, int64(10), sumsByAttrs[int64](t, got)[attrs.Equivalent()])

	// Callbacks report absolute values; delta exports the change.
	in(ctx, 25, attrs)
	require.Equal(t, 1, out(&got))
	require.Equal(t, int64(15), sumsByAttrs[int64](t, got)[attrs.Equivalent()])
}
