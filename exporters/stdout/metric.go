// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/metric"
	"github.com/z5labs/otelsdk/metric/metricdata"

	"go.opentelemetry.io/otel/attribute"
)

// MetricExporter writes each collection as one JSON value. It declares
// cumulative temporality and default aggregations.
type MetricExporter struct {
	mu  sync.Mutex
	enc *json.Encoder

	temporality metric.TemporalitySelector

	shutdown atomic.Bool
}

var _ metric.Exporter = (*MetricExporter)(nil)

// NewMetricExporter returns a MetricExporter writing to os.Stdout
// unless redirected with WithWriter.
func NewMetricExporter(opts ...Option) *MetricExporter {
	return &MetricExporter{
		enc:         newEncoder(opts),
		temporality: metric.DefaultTemporalitySelector,
	}
}

// Temporality implements metric.Exporter.
func (e *MetricExporter) Temporality(kind metric.InstrumentKind) metricdata.Temporality {
	return e.temporality(kind)
}

// Aggregation implements metric.Exporter.
func (e *MetricExporter) Aggregation(kind metric.InstrumentKind) metric.Aggregation {
	return metric.DefaultAggregationSelector(kind)
}

type resourceMetricsView struct {
	Resource     []attribute.KeyValue
	ScopeMetrics []scopeMetricsView
}

type scopeMetricsView struct {
	Scope   instrumentation.Scope
	Metrics []metricsView
}

type metricsView struct {
	Name        string
	Description string `json:",omitempty"`
	Unit        string `json:",omitempty"`
	Data        any
}

type dataPointView struct {
	Attributes []attribute.KeyValue
	StartTime  time.Time
	Time       time.Time
	Value      any
}

type histogramDataPointView struct {
	Attributes   []attribute.KeyValue
	StartTime    time.Time
	Time         time.Time
	Count        uint64
	Bounds       []float64
	BucketCounts []uint64
	Min          any `json:",omitempty"`
	Max          any `json:",omitempty"`
	Sum          any
}

// Export writes rm as one JSON value.
func (e *MetricExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	if e.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	view := resourceMetricsView{
		Resource: rm.Resource.Attributes(),
	}
	for _, sm := range rm.ScopeMetrics {
		smv := scopeMetricsView{Scope: sm.Scope}
		for _, m := range sm.Metrics {
			smv.Metrics = append(smv.Metrics, metricsView{
				Name:        m.Name,
				Description: m.Description,
				Unit:        m.Unit,
				Data:        aggregationView(m.Data),
			})
		}
		view.ScopeMetrics = append(view.ScopeMetrics, smv)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(view)
}

func aggregationView(data metricdata.Aggregation) any {
	switch data := data.(type) {
	case metricdata.Gauge[int64]:
		return gaugeView(data)
	case metricdata.Gauge[float64]:
		return gaugeView(data)
	case metricdata.Sum[int64]:
		return sumView(data)
	case metricdata.Sum[float64]:
		return sumView(data)
	case metricdata.Histogram[int64]:
		return histogramView(data)
	case metricdata.Histogram[float64]:
		return histogramView(data)
	case metricdata.ExponentialHistogram[int64]:
		return expoHistogramView(data)
	case metricdata.ExponentialHistogram[float64]:
		return expoHistogramView(data)
	default:
		return map[string]string{"Type": fmt.Sprintf("%T", data)}
	}
}

func gaugeView[N int64 | float64](g metricdata.Gauge[N]) any {
	return struct {
		Type       string
		DataPoints []dataPointView
	}{
		Type:       "Gauge",
		DataPoints: dataPointViews(g.DataPoints),
	}
}

func sumView[N int64 | float64](s metricdata.Sum[N]) any {
	return struct {
		Type        string
		Temporality string
		IsMonotonic bool
		DataPoints  []dataPointView
	}{
		Type:        "Sum",
		Temporality: s.Temporality.String(),
		IsMonotonic: s.IsMonotonic,
		DataPoints:  dataPointViews(s.DataPoints),
	}
}

func histogramView[N int64 | float64](h metricdata.Histogram[N]) any {
	dps := make([]histogramDataPointView, 0, len(h.DataPoints))
	for _, dp := range h.DataPoints {
		view := histogramDataPointView{
			Attributes:   dp.Attributes.ToSlice(),
			StartTime:    dp.StartTime,
			Time:         dp.Time,
			Count:        dp.Count,
			Bounds:       dp.Bounds,
			BucketCounts: dp.BucketCounts,
			Sum:          dp.Sum,
		}
		if v, ok := dp.Min.Value(); ok {
			view.Min = v
		}
		if v, ok := dp.Max.Value(); ok {
			view.Max = v
		}
		dps = append(dps, view)
	}

	return struct {
		Type        string
		Temporality string
		DataPoints  []histogramDataPointView
	}{
		Type:        "Histogram",
		Temporality: h.Temporality.String(),
		DataPoints:  dps,
	}
}

type expoHistogramDataPointView struct {
	Attributes     []attribute.KeyValue
	StartTime      time.Time
	Time           time.Time
	Count          uint64
	Scale          int32
	ZeroCount      uint64
	PositiveBucket metricdata.ExponentialBucket
	NegativeBucket metricdata.ExponentialBucket
	Min            any `json:",omitempty"`
	Max            any `json:",omitempty"`
	Sum            any
}

func expoHistogramView[N int64 | float64](h metricdata.ExponentialHistogram[N]) any {
	dps := make([]expoHistogramDataPointView, 0, len(h.DataPoints))
	for _, dp := range h.DataPoints {
		view := expoHistogramDataPointView{
			Attributes:     dp.Attributes.ToSlice(),
			StartTime:      dp.StartTime,
			Time:           dp.Time,
			Count:          dp.Count,
			Scale:          dp.Scale,
			ZeroCount:      dp.ZeroCount,
			PositiveBucket: dp.PositiveBucket,
			NegativeBucket: dp.NegativeBucket,
			Sum:            dp.Sum,
		}
		if v, ok := dp.Min.Value(); ok {
			view.Min = v
		}
		if v, ok := dp.Max.Value(); ok {
			view.Max = v
		}
		dps = append(dps, view)
	}

	return struct {
		Type        string
		Temporality string
		DataPoints  []expoHistogramDataPointView
	}{
		Type:        "ExponentialHistogram",
		Temporality: h.Temporality.String(),
		DataPoints:  dps,
	}
}

func dataPointViews[N int64 | float64](dps []metricdata.DataPoint[N]) []dataPointView {
	out := make([]dataPointView, 0, len(dps))
	for _, dp := range dps {
		out = append(out, dataPointView{
			Attributes: dp.Attributes.ToSlice(),
			StartTime:  dp.StartTime,
			Time:       dp.Time,
			Value:      dp.Value,
		})
	}
	return out
}

// ForceFlush is a no-op; every collection is written as it is exported.
func (e *MetricExporter) ForceFlush(ctx context.Context) error {
	return ctx.Err()
}

// Shutdown stops the exporter. It is idempotent; later calls return
// otelsdk.ErrAlreadyShutdown.
func (e *MetricExporter) Shutdown(context.Context) error {
	if !e.shutdown.CompareAndSwap(false, true) {
		return otelsdk.ErrAlreadyShutdown
	}
	return nil
}
