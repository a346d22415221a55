// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transform

import (
	"testing"
	"time"

	sdklog "github.com/z5labs/otelsdk/log"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
)

func TestLogs_Fields(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	var r sdklog.Record
	r.SetTimestamp(ts)
	r.SetObservedTimestamp(ts.Add(time.Millisecond))
	r.SetSeverity(log.SeverityError)
	r.SetSeverityText("ERROR")
	r.SetEventName("request.failed")
	r.SetBody(log.StringValue("connection refused"))
	r.SetTraceID(trace.TraceID(testTraceID))
	r.SetSpanID(trace.SpanID(testSpanID))
	r.SetTraceFlags(trace.FlagsSampled)
	r.AddAttributes(
		log.String("peer", "db-1"),
		log.Int64("attempt", 3),
	)

	out := Logs([]sdklog.Record{r})
	require.Len(t, out, 1)
	require.Len(t, out[0].ScopeLogs, 1)
	require.Len(t, out[0].ScopeLogs[0].LogRecords, 1)

	lr := out[0].ScopeLogs[0].LogRecords[0]
	require.Equal(t, uint64(1700000000000000000), lr.TimeUnixNano)
	require.Equal(t, lr.TimeUnixNano+1_000_000, lr.ObservedTimeUnixNano)
	require.Equal(t, int32(log.SeverityError), int32(lr.SeverityNumber))
	require.Equal(t, "ERROR", lr.SeverityText)
	require.Equal(t, "request.failed", lr.EventName)
	require.Equal(t, "connection refused", lr.Body.GetStringValue())
	require.Equal(t, testTraceID[:], lr.TraceId)
	require.Equal(t, testSpanID[:], lr.SpanId)
	require.Equal(t, uint32(trace.FlagsSampled), lr.Flags)

	require.Len(t, lr.Attributes, 2)
	require.Equal(t, "peer", lr.Attributes[0].Key)
	require.Equal(t, "db-1", lr.Attributes[0].Value.GetStringValue())
	require.Equal(t, int64(3), lr.Attributes[1].Value.GetIntValue())
}

func TestLogs_NoTraceContext(t *testing.T) {
	var r sdklog.Record
	r.SetBody(log.StringValue("hello"))

	out := Logs([]sdklog.Record{r})
	lr := out[0].ScopeLogs[0].LogRecords[0]
	require.Nil(t, lr.TraceId)
	require.Nil(t, lr.SpanId)
}

func TestLogs_TargetOverridesScopeName(t *testing.T) {
	var a, b sdklog.Record
	a.SetBody(log.StringValue("one"))
	a.SetTarget("app::db")
	b.SetBody(log.StringValue("two"))

	out := Logs([]sdklog.Record{a, b})
	require.Len(t, out, 1)
	require.Len(t, out[0].ScopeLogs, 2)
	require.Equal(t, "app::db", out[0].ScopeLogs[0].Scope.GetName())
	require.Equal(t, "", out[0].ScopeLogs[1].Scope.GetName())
}

func TestLogValue_Kinds(t *testing.T) {
	testCases := []struct {
		name   string
		value  log.Value
		assert func(t *testing.T, av *commonpb.AnyValue)
	}{
		{
			name:  "empty",
			value: log.Value{},
			assert: func(t *testing.T, av *commonpb.AnyValue) {
				require.Nil(t, av.Value)
			},
		},
		{
			name:  "bool",
			value: log.BoolValue(true),
			assert: func(t *testing.T, av *commonpb.AnyValue) {
				require.True(t, av.GetBoolValue())
			},
		},
		{
			name:  "float",
			value: log.Float64Value(1.5),
			assert: func(t *testing.T, av *commonpb.AnyValue) {
				require.Equal(t, 1.5, av.GetDoubleValue())
			},
		},
		{
			name:  "bytes",
			value: log.BytesValue([]byte{0x01, 0x02}),
			assert: func(t *testing.T, av *commonpb.AnyValue) {
				require.Equal(t, []byte{0x01, 0x02}, av.GetBytesValue())
			},
		},
		{
			name:  "slice",
			value: log.SliceValue(log.Int64Value(1), log.StringValue("x")),
			assert: func(t *testing.T, av *commonpb.AnyValue) {
				vals := av.GetArrayValue().GetValues()
				require.Len(t, vals, 2)
				require.Equal(t, int64(1), vals[0].GetIntValue())
				require.Equal(t, "x", vals[1].GetStringValue())
			},
		},
		{
			name:  "map",
			value: log.MapValue(log.String("k", "v")),
			assert: func(t *testing.T, av *commonpb.AnyValue) {
				kvs := av.GetKvlistValue().GetValues()
				require.Len(t, kvs, 1)
				require.Equal(t, "k", kvs[0].Key)
				require.Equal(t, "v", kvs[0].Value.GetStringValue())
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			testCase.assert(t, logValue(testCase.value))
		})
	}
}
