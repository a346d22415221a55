// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transform

import (
	"testing"
	"time"

	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/metric/metricdata"
	"github.com/z5labs/otelsdk/resource"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

func TestResourceMetrics_Sum(t *testing.T) {
	now := time.Unix(1700000000, 0)
	start := now.Add(-time.Minute)

	rm := &metricdata.ResourceMetrics{
		Resource: resource.NewWithAttributes("", attribute.String("service.name", "api")),
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Scope: instrumentation.Scope{Name: "app", Version: "0.1.0"},
			Metrics: []metricdata.Metrics{{
				Name:        "requests",
				Description: "handled requests",
				Unit:        "{request}",
				Data: metricdata.Sum[int64]{
					Temporality: metricdata.CumulativeTemporality,
					IsMonotonic: true,
					DataPoints: []metricdata.DataPoint[int64]{{
						Attributes: attribute.NewSet(attribute.String("route", "/users")),
						StartTime:  start,
						Time:       now,
						Value:      7,
					}},
				},
			}},
		}},
	}

	pb, err := ResourceMetrics(rm)
	require.NoError(t, err)

	require.Len(t, pb.Resource.Attributes, 1)
	require.Len(t, pb.ScopeMetrics, 1)
	require.Equal(t, "app", pb.ScopeMetrics[0].Scope.GetName())

	require.Len(t, pb.ScopeMetrics[0].Metrics, 1)
	m := pb.ScopeMetrics[0].Metrics[0]
	require.Equal(t, "requests", m.Name)
	require.Equal(t, "{request}", m.Unit)

	sum := m.GetSum()
	require.NotNil(t, sum)
	require.True(t, sum.IsMonotonic)
	require.Equal(t, metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE, sum.AggregationTemporality)

	require.Len(t, sum.DataPoints, 1)
	dp := sum.DataPoints[0]
	require.Equal(t, int64(7), dp.GetAsInt())
	require.Equal(t, uint64(start.UnixNano()), dp.StartTimeUnixNano)
	require.Equal(t, uint64(now.UnixNano()), dp.TimeUnixNano)
	require.Len(t, dp.Attributes, 1)
	require.Equal(t, "route", dp.Attributes[0].Key)
}

func TestResourceMetrics_GaugeFloat(t *testing.T) {
	rm := &metricdata.ResourceMetrics{
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Metrics: []metricdata.Metrics{{
				Name: "temperature",
				Data: metricdata.Gauge[float64]{
					DataPoints: []metricdata.DataPoint[float64]{{Value: 21.5}},
				},
			}},
		}},
	}

	pb, err := ResourceMetrics(rm)
	require.NoError(t, err)

	g := pb.ScopeMetrics[0].Metrics[0].GetGauge()
	require.NotNil(t, g)
	require.Equal(t, 21.5, g.DataPoints[0].GetAsDouble())
}

func TestResourceMetrics_Histogram(t *testing.T) {
	rm := &metricdata.ResourceMetrics{
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Metrics: []metricdata.Metrics{{
				Name: "latency",
				Data: metricdata.Histogram[float64]{
					Temporality: metricdata.DeltaTemporality,
					DataPoints: []metricdata.HistogramDataPoint[float64]{{
						Count:        3,
						Sum:          111,
						Min:          metricdata.NewExtrema(1.0),
						Max:          metricdata.NewExtrema(100.0),
						Bounds:       []float64{10, 100},
						BucketCounts: []uint64{2, 1, 0},
					}},
				},
			}},
		}},
	}

	pb, err := ResourceMetrics(rm)
	require.NoError(t, err)

	h := pb.ScopeMetrics[0].Metrics[0].GetHistogram()
	require.NotNil(t, h)
	require.Equal(t, metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_DELTA, h.AggregationTemporality)

	dp := h.DataPoints[0]
	require.Equal(t, uint64(3), dp.Count)
	require.Equal(t, 111.0, dp.GetSum())
	require.Equal(t, 1.0, dp.GetMin())
	require.Equal(t, 100.0, dp.GetMax())
	require.Equal(t, []float64{10, 100}, dp.ExplicitBounds)
	require.Equal(t, []uint64{2, 1, 0}, dp.BucketCounts)
}

func TestResourceMetrics_HistogramUnsetExtrema(t *testing.T) {
	rm := &metricdata.ResourceMetrics{
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Metrics: []metricdata.Metrics{{
				Name: "latency",
				Data: metricdata.Histogram[int64]{
					DataPoints: []metricdata.HistogramDataPoint[int64]{{}},
				},
			}},
		}},
	}

	pb, err := ResourceMetrics(rm)
	require.NoError(t, err)

	dp := pb.ScopeMetrics[0].Metrics[0].GetHistogram().DataPoints[0]
	require.Nil(t, dp.Min)
	require.Nil(t, dp.Max)
}

func TestResourceMetrics_ExponentialHistogram(t *testing.T) {
	rm := &metricdata.ResourceMetrics{
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Metrics: []metricdata.Metrics{{
				Name: "latency",
				Data: metricdata.ExponentialHistogram[float64]{
					Temporality: metricdata.CumulativeTemporality,
					DataPoints: []metricdata.ExponentialHistogramDataPoint[float64]{{
						Count:         4,
						Sum:           10,
						Scale:         2,
						ZeroCount:     1,
						ZeroThreshold: 1e-6,
						PositiveBucket: metricdata.ExponentialBucket{
							Offset: -1,
							Counts: []uint64{1, 2},
						},
						NegativeBucket: metricdata.ExponentialBucket{
							Counts: []uint64{1},
						},
					}},
				},
			}},
		}},
	}

	pb, err := ResourceMetrics(rm)
	require.NoError(t, err)

	eh := pb.ScopeMetrics[0].Metrics[0].GetExponentialHistogram()
	require.NotNil(t, eh)

	dp := eh.DataPoints[0]
	require.Equal(t, int32(2), dp.Scale)
	require.Equal(t, uint64(1), dp.ZeroCount)
	require.Equal(t, int32(-1), dp.Positive.Offset)
	require.Equal(t, []uint64{1, 2}, dp.Positive.BucketCounts)
	require.Equal(t, []uint64{1}, dp.Negative.BucketCounts)
}

func TestResourceMetrics_UnknownAggregation(t *testing.T) {
	rm := &metricdata.ResourceMetrics{
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Metrics: []metricdata.Metrics{
				{Name: "broken", Data: nil},
				{
					Name: "ok",
					Data: metricdata.Sum[int64]{
						DataPoints: []metricdata.DataPoint[int64]{{Value: 1}},
					},
				},
			},
		}},
	}

	pb, err := ResourceMetrics(rm)
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")

	// The convertible metric is still present.
	require.Len(t, pb.ScopeMetrics[0].Metrics, 1)
	require.Equal(t, "ok", pb.ScopeMetrics[0].Metrics[0].Name)
}
