// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metric

import (
	"context"
	"testing"

	"github.com/z5labs/otelsdk/metric/metricdata"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestNewView_Match(t *testing.T) {
	tests := []struct {
		name     string
		criteria Instrument
		inst     Instrument
		match    bool
	}{
		{
			name:     "exact name",
			criteria: Instrument{Name: "latency"},
			inst:     Instrument{Name: "latency"},
			match:    true,
		},
		{
			name:     "other name",
			criteria: Instrument{Name: "latency"},
			inst:     Instrument{Name: "errors"},
			match:    false,
		},
		{
			name:     "star wildcard",
			criteria: Instrument{Name: "http.*"},
			inst:     Instrument{Name: "http.server.duration"},
			match:    true,
		},
		{
			name:     "question mark wildcard",
			criteria: Instrument{Name: "shard_?"},
			inst:     Instrument{Name: "shard_3"},
			match:    true,
		},
		{
			name:     "question mark is exactly one character",
			criteria: Instrument{Name: "shard_?"},
			inst:     Instrument{Name: "shard_37"},
			match:    false,
		},
		{
			name:     "kind mismatch",
			criteria: Instrument{Kind: InstrumentKindHistogram},
			inst:     Instrument{Name: "latency", Kind: InstrumentKindCounter},
			match:    false,
		},
		{
			name:     "empty criteria matches everything",
			criteria: Instrument{},
			inst:     Instrument{Name: "anything", Kind: InstrumentKindGauge},
			match:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewView(tt.criteria, Stream{})
			_, ok := v(tt.inst)
			require.Equal(t, tt.match, ok)
		})
	}
}

func TestNewView_WildcardRenameIsDropped(t *testing.T) {
	v := NewView(Instrument{Name: "http.*"}, Stream{Name: "renamed"})
	_, ok := v(Instrument{Name: "http.server.duration"})
	require.False(t, ok)
}

func TestView_Rename(t *testing.T) {
	rd := NewManualReader()
	mp := NewMeterProvider(
		WithReader(rd),
		WithView(NewView(Instrument{Name: "latency"}, Stream{Name: "http.latency", Unit: "ms"})),
	)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	ctr, err := mp.Meter("svc").Int64Counter("latency")
	require.NoError(t, err)
	ctr.Add(context.Background(), 1)

	rm := collect(t, rd)
	require.False(t, hasMetric(rm, "latency"))
	m := findMetric(t, rm, "http.latency")
	require.Equal(t, "ms", m.Unit)
}

func TestView_Drop(t *testing.T) {
	rd := NewManualReader()
	mp := NewMeterProvider(
		WithReader(rd),
		WithView(NewView(Instrument{Name: "noisy.*"}, Stream{Aggregation: AggregationDrop{}})),
	)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	noisy, err := mp.Meter("svc").Int64Counter("noisy.debug.count")
	require.NoError(t, err)
	kept, err := mp.Meter("svc").Int64Counter("kept")
	require.NoError(t, err)

	ctx := context.Background()
	noisy.Add(ctx, 1)
	kept.Add(ctx, 1)

	rm := collect(t, rd)
	require.False(t, hasMetric(rm, "noisy.debug.count"))
	require.True(t, hasMetric(rm, "kept"))
}

func TestView_AttributeFilter(t *testing.T) {
	rd := NewManualReader()
	mp := NewMeterProvider(
		WithReader(rd),
		WithView(NewView(Instrument{Name: "hits"}, Stream{
			AttributeFilter: attribute.NewAllowKeysFilter("host"),
		})),
	)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	ctr, err := mp.Meter("svc").Int64Counter("hits")
	require.NoError(t, err)

	// Distinct pre-projection sets merge once pid is dropped.
	ctx := context.Background()
	ctr.Add(ctx, 1, metric.WithAttributes(attribute.String("host", "a"), attribute.Int("pid", 1)))
	ctr.Add(ctx, 2, metric.WithAttributes(attribute.String("host", "a"), attribute.Int("pid", 2)))

	sum := findMetric(t, collect(t, rd), "hits").Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	require.Equal(t, int64(3), sum.DataPoints[0].Value)
	host := attribute.NewSet(attribute.String("host", "a"))
	require.True(t, sum.DataPoints[0].Attributes.Equals(&host))
}

func TestView_CardinalityLimit(t *testing.T) {
	rd := NewManualReader()
	mp := NewMeterProvider(
		WithReader(rd),
		WithView(NewView(Instrument{Name: "hits"}, Stream{CardinalityLimit: 2})),
	)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	ctr, err := mp.Meter("svc").Int64Counter("hits")
	require.NoError(t, err)

	ctx := context.Background()
	for _, host := range []string{"a", "b", "c", "d", "e"} {
		ctr.Add(ctx, 1, metric.WithAttributes(attribute.String("host", host)))
	}

	sum := findMetric(t, collect(t, rd), "hits").Data.(metricdata.Sum[int64])
	// Two real streams plus the overflow data point.
	require.Len(t, sum.DataPoints, 3)

	var total, overflow int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
		if v, ok := dp.Attributes.Value("otel.metric.overflow"); ok && v.AsBool() {
			overflow = dp.Value
		}
	}
	require.Equal(t, int64(5), total)
	require.Equal(t, int64(3), overflow)
}

func TestView_ChangeAggregation(t *testing.T) {
	rd := NewManualReader()
	mp := NewMeterProvider(
		WithReader(rd),
		WithView(NewView(Instrument{Name: "payload_size"}, Stream{
			Aggregation: AggregationExplicitBucketHistogram{Boundaries: []float64{64, 1024}},
		})),
	)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	// The view turns this counter's stream into a histogram.
	ctr, err := mp.Meter("svc").Int64Counter("payload_size")
	require.NoError(t, err)

	ctx := context.Background()
	ctr.Add(ctx, 10)
	ctr.Add(ctx, 512)

	data, ok := findMetric(t, collect(t, rd), "payload_size").Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Equal(t, []float64{64, 1024}, data.DataPoints[0].Bounds)
	require.Equal(t, []uint64{1, 1, 0}, data.DataPoints[0].BucketCounts)
}

func TestView_MultipleViewsMultipleStreams(t *testing.T) {
	rd := NewManualReader()
	mp := NewMeterProvider(
		WithReader(rd),
		WithView(
			NewView(Instrument{Name: "latency"}, Stream{Name: "latency.all"}),
			NewView(Instrument{Name: "latency"}, Stream{
				Name:            "latency.by_host",
				AttributeFilter: attribute.NewAllowKeysFilter("host"),
			}),
		),
	)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	ctr, err := mp.Meter("svc").Int64Counter("latency")
	require.NoError(t, err)
	ctr.Add(context.Background(), 7, metric.WithAttributes(
		attribute.String("host", "a"), attribute.String("path", "/")))

	rm := collect(t, rd)
	require.True(t, hasMetric(rm, "latency.all"))
	require.True(t, hasMetric(rm, "latency.by_host"))
	require.False(t, hasMetric(rm, "latency"))
}
