// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/z5labs/otelsdk"
	sdklog "github.com/z5labs/otelsdk/log"
	"github.com/z5labs/otelsdk/metric"
	"github.com/z5labs/otelsdk/metric/metricdata"
	sdktrace "github.com/z5labs/otelsdk/trace"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceExporter(t *testing.T) {
	var buf bytes.Buffer
	e := NewTraceExporter(WithWriter(&buf))

	err := e.ExportSpans(context.Background(), []*sdktrace.SpanData{
		{
			Name: "first",
			SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
				TraceID: trace.TraceID{0x01},
				SpanID:  trace.SpanID{0x02},
			}),
			SpanKind:   trace.SpanKindClient,
			StartTime:  time.Unix(1700000000, 0),
			EndTime:    time.Unix(1700000001, 0),
			Attributes: []attribute.KeyValue{attribute.String("peer", "db")},
			Events:     []sdktrace.Event{{Name: "retry"}},
		},
		{Name: "second"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &doc))
	require.Equal(t, "first", doc["Name"])
	require.Equal(t, "client", doc["SpanKind"])
	require.Len(t, doc["Events"], 1)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	require.Equal(t, "second", doc["Name"])
}

func TestTraceExporter_Shutdown(t *testing.T) {
	var buf bytes.Buffer
	e := NewTraceExporter(WithWriter(&buf))

	require.NoError(t, e.Shutdown(context.Background()))
	require.ErrorIs(t, e.Shutdown(context.Background()), otelsdk.ErrAlreadyShutdown)
	require.ErrorIs(t, e.ExportSpans(context.Background(), []*sdktrace.SpanData{{Name: "late"}}), otelsdk.ErrAlreadyShutdown)
	require.Empty(t, buf.String())
}

func TestMetricExporter(t *testing.T) {
	var buf bytes.Buffer
	e := NewMetricExporter(WithWriter(&buf))

	require.Equal(t, metricdata.CumulativeTemporality, e.Temporality(metric.InstrumentKindCounter))

	err := e.Export(context.Background(), &metricdata.ResourceMetrics{
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Metrics: []metricdata.Metrics{
				{
					Name: "requests",
					Data: metricdata.Sum[int64]{
						Temporality: metricdata.CumulativeTemporality,
						IsMonotonic: true,
						DataPoints: []metricdata.DataPoint[int64]{{
							Attributes: attribute.NewSet(attribute.String("route", "/")),
							Value:      7,
						}},
					},
				},
				{
					Name: "latency",
					Data: metricdata.Histogram[float64]{
						DataPoints: []metricdata.HistogramDataPoint[float64]{{
							Count:        2,
							Sum:          3,
							Min:          metricdata.NewExtrema(1.0),
							Max:          metricdata.NewExtrema(2.0),
							Bounds:       []float64{5},
							BucketCounts: []uint64{2, 0},
						}},
					},
				},
			},
		}},
	})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	sms := doc["ScopeMetrics"].([]any)
	require.Len(t, sms, 1)
	metrics := sms[0].(map[string]any)["Metrics"].([]any)
	require.Len(t, metrics, 2)

	sum := metrics[0].(map[string]any)["Data"].(map[string]any)
	require.Equal(t, "Sum", sum["Type"])
	require.Equal(t, "Cumulative", sum["Temporality"])
	require.Equal(t, float64(7), sum["DataPoints"].([]any)[0].(map[string]any)["Value"])

	hist := metrics[1].(map[string]any)["Data"].(map[string]any)
	require.Equal(t, "Histogram", hist["Type"])
	dp := hist["DataPoints"].([]any)[0].(map[string]any)
	require.Equal(t, float64(1), dp["Min"])
	require.Equal(t, float64(2), dp["Max"])
}

func TestMetricExporter_Shutdown(t *testing.T) {
	e := NewMetricExporter(WithWriter(&bytes.Buffer{}))

	require.NoError(t, e.Shutdown(context.Background()))
	require.ErrorIs(t, e.Shutdown(context.Background()), otelsdk.ErrAlreadyShutdown)
	require.ErrorIs(t, e.Export(context.Background(), &metricdata.ResourceMetrics{}), otelsdk.ErrAlreadyShutdown)
}

func TestLogExporter(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogExporter(WithWriter(&buf))

	var r sdklog.Record
	r.SetTimestamp(time.Unix(1700000000, 0))
	r.SetSeverity(log.SeverityWarn)
	r.SetBody(log.StringValue("disk nearly full"))
	r.SetTraceID(trace.TraceID{0x01})
	r.AddAttributes(
		log.String("mount", "/var"),
		log.Int64("free_mb", 42),
	)

	require.NoError(t, e.Export(context.Background(), []sdklog.Record{r}))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "WARN", doc["Severity"])
	require.Equal(t, "disk nearly full", doc["Body"])
	require.Equal(t, trace.TraceID{0x01}.String(), doc["TraceID"])

	attrs := doc["Attributes"].(map[string]any)
	require.Equal(t, "/var", attrs["mount"])
	require.Equal(t, float64(42), attrs["free_mb"])

	// No span context was recorded.
	_, ok := doc["SpanID"]
	require.False(t, ok)
}

func TestLogExporter_PrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogExporter(WithWriter(&buf), WithPrettyPrint())

	var r sdklog.Record
	r.SetBody(log.StringValue("hi"))
	require.NoError(t, e.Export(context.Background(), []sdklog.Record{r}))

	require.Contains(t, buf.String(), "\n\t")
}

func TestLogExporter_Shutdown(t *testing.T) {
	e := NewLogExporter(WithWriter(&bytes.Buffer{}))

	require.NoError(t, e.Shutdown(context.Background()))
	require.ErrorIs(t, e.Shutdown(context.Background()), otelsdk.ErrAlreadyShutdown)
	require.ErrorIs(t, e.Export(context.Background(), nil), otelsdk.ErrAlreadyShutdown)
}
