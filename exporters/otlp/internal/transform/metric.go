// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transform

import (
	"fmt"

	"github.com/z5labs/otelsdk/metric/metricdata"

	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

// ResourceMetrics transforms collected metric data into its OTLP
// equivalent. Metrics carrying an unknown aggregation type are skipped
// and reported through the returned error.
func ResourceMetrics(rm *metricdata.ResourceMetrics) (*metricspb.ResourceMetrics, error) {
	sms, err := scopeMetrics(rm.ScopeMetrics)
	return &metricspb.ResourceMetrics{
		Resource:     Resource(rm.Resource),
		SchemaUrl:    resourceSchemaURL(rm.Resource),
		ScopeMetrics: sms,
	}, err
}

func scopeMetrics(sms []metricdata.ScopeMetrics) ([]*metricspb.ScopeMetrics, error) {
	var errs []error
	out := make([]*metricspb.ScopeMetrics, 0, len(sms))
	for _, sm := range sms {
		ms := make([]*metricspb.Metric, 0, len(sm.Metrics))
		for _, m := range sm.Metrics {
			pb, err := metric(m)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			ms = append(ms, pb)
		}
		out = append(out, &metricspb.ScopeMetrics{
			Scope:     Scope(sm.Scope),
			SchemaUrl: sm.Scope.SchemaURL,
			Metrics:   ms,
		})
	}
	return out, joinErrs(errs)
}

func joinErrs(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return fmt.Errorf("%v (and %d more)", errs[0], len(errs)-1)
	}
}

func metric(m metricdata.Metrics) (*metricspb.Metric, error) {
	out := &metricspb.Metric{
		Name:        m.Name,
		Description: m.Description,
		Unit:        m.Unit,
	}

	switch data := m.Data.(type) {
	case metricdata.Gauge[int64]:
		out.Data = &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{
			DataPoints: numberDataPoints(data.DataPoints),
		}}
	case metricdata.Gauge[float64]:
		out.Data = &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{
			DataPoints: numberDataPoints(data.DataPoints),
		}}
	case metricdata.Sum[int64]:
		out.Data = &metricspb.Metric_Sum{Sum: &metricspb.Sum{
			AggregationTemporality: temporality(data.Temporality),
			IsMonotonic:            data.IsMonotonic,
			DataPoints:             numberDataPoints(data.DataPoints),
		}}
	case metricdata.Sum[float64]:
		out.Data = &metricspb.Metric_Sum{Sum: &metricspb.Sum{
			AggregationTemporality: temporality(data.Temporality),
			IsMonotonic:            data.IsMonotonic,
			DataPoints:             numberDataPoints(data.DataPoints),
		}}
	case metricdata.Histogram[int64]:
		out.Data = &metricspb.Metric_Histogram{Histogram: &metricspb.Histogram{
			AggregationTemporality: temporality(data.Temporality),
			DataPoints:             histogramDataPoints(data.DataPoints),
		}}
	case metricdata.Histogram[float64]:
		out.Data = &metricspb.Metric_Histogram{Histogram: &metricspb.Histogram{
			AggregationTemporality: temporality(data.Temporality),
			DataPoints:             histogramDataPoints(data.DataPoints),
		}}
	case metricdata.ExponentialHistogram[int64]:
		out.Data = &metricspb.Metric_ExponentialHistogram{ExponentialHistogram: &metricspb.ExponentialHistogram{
			AggregationTemporality: temporality(data.Temporality),
			DataPoints:             expoHistogramDataPoints(data.DataPoints),
		}}
	case metricdata.ExponentialHistogram[float64]:
		out.Data = &metricspb.Metric_ExponentialHistogram{ExponentialHistogram: &metricspb.ExponentialHistogram{
			AggregationTemporality: temporality(data.Temporality),
			DataPoints:             expoHistogramDataPoints(data.DataPoints),
		}}
	default:
		return nil, fmt.Errorf("unknown aggregation %T for metric %q", m.Data, m.Name)
	}
	return out, nil
}

func numberDataPoints[N int64 | float64](dps []metricdata.DataPoint[N]) []*metricspb.NumberDataPoint {
	out := make([]*metricspb.NumberDataPoint, 0, len(dps))
	for _, dp := range dps {
		pb := &metricspb.NumberDataPoint{
			Attributes:        AttrSet(dp.Attributes),
			StartTimeUnixNano: timeUnixNano(dp.StartTime),
			TimeUnixNano:      timeUnixNano(dp.Time),
		}
		switch v := any(dp.Value).(type) {
		case int64:
			pb.Value = &metricspb.NumberDataPoint_AsInt{AsInt: v}
		case float64:
			pb.Value = &metricspb.NumberDataPoint_AsDouble{AsDouble: v}
		}
		out = append(out, pb)
	}
	return out
}

func histogramDataPoints[N int64 | float64](dps []metricdata.HistogramDataPoint[N]) []*metricspb.HistogramDataPoint {
	out := make([]*metricspb.HistogramDataPoint, 0, len(dps))
	for _, dp := range dps {
		sum := float64(dp.Sum)
		pb := &metricspb.HistogramDataPoint{
			Attributes:        AttrSet(dp.Attributes),
			StartTimeUnixNano: timeUnixNano(dp.StartTime),
			TimeUnixNano:      timeUnixNano(dp.Time),
			Count:             dp.Count,
			Sum:               &sum,
			BucketCounts:      dp.BucketCounts,
			ExplicitBounds:    dp.Bounds,
		}
		if v, ok := dp.Min.Value(); ok {
			f := float64(v)
			pb.Min = &f
		}
		if v, ok := dp.Max.Value(); ok {
			f := float64(v)
			pb.Max = &f
		}
		out = append(out, pb)
	}
	return out
}

func expoHistogramDataPoints[N int64 | float64](dps []metricdata.ExponentialHistogramDataPoint[N]) []*metricspb.ExponentialHistogramDataPoint {
	out := make([]*metricspb.ExponentialHistogramDataPoint, 0, len(dps))
	for _, dp := range dps {
		sum := float64(dp.Sum)
		pb := &metricspb.ExponentialHistogramDataPoint{
			Attributes:        AttrSet(dp.Attributes),
			StartTimeUnixNano: timeUnixNano(dp.StartTime),
			TimeUnixNano:      timeUnixNano(dp.Time),
			Count:             dp.Count,
			Sum:               &sum,
			Scale:             dp.Scale,
			ZeroCount:         dp.ZeroCount,
			ZeroThreshold:     dp.ZeroThreshold,
			Positive: &metricspb.ExponentialHistogramDataPoint_Buckets{
				Offset:       dp.PositiveBucket.Offset,
				BucketCounts: dp.PositiveBucket.Counts,
			},
			Negative: &metricspb.ExponentialHistogramDataPoint_Buckets{
				Offset:       dp.NegativeBucket.Offset,
				BucketCounts: dp.NegativeBucket.Counts,
			},
		}
		if v, ok := dp.Min.Value(); ok {
			f := float64(v)
			pb.Min = &f
		}
		if v, ok := dp.Max.Value(); ok {
			f := float64(v)
			pb.Max = &f
		}
		out = append(out, pb)
	}
	return out
}

func temporality(t metricdata.Temporality) metricspb.AggregationTemporality {
	switch t {
	case metricdata.DeltaTemporality:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_DELTA
	case metricdata.CumulativeTemporality:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE
	default:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_UNSPECIFIED
	}
}
