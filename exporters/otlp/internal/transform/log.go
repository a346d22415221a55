// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transform

import (
	"github.com/z5labs/otelsdk/instrumentation"
	sdklog "github.com/z5labs/otelsdk/log"
	"github.com/z5labs/otelsdk/resource"

	"go.opentelemetry.io/otel/log"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
)

// Logs transforms log records into OTLP ResourceLogs, grouped first by
// resource, then by instrumentation scope. A record's Target, when
// set, replaces its scope name.
func Logs(records []sdklog.Record) []*logspb.ResourceLogs {
	if len(records) == 0 {
		return nil
	}

	type scopeKey struct {
		res   *resource.Resource
		scope instrumentation.Scope
	}

	var out []*logspb.ResourceLogs
	byResource := make(map[*resource.Resource]*logspb.ResourceLogs)
	byScope := make(map[scopeKey]*logspb.ScopeLogs)

	for i := range records {
		r := &records[i]

		rl, ok := byResource[r.Resource()]
		if !ok {
			rl = &logspb.ResourceLogs{
				Resource:  Resource(r.Resource()),
				SchemaUrl: resourceSchemaURL(r.Resource()),
			}
			byResource[r.Resource()] = rl
			out = append(out, rl)
		}

		scope := r.InstrumentationScope()
		if target := r.Target(); target != "" {
			scope.Name = target
		}

		key := scopeKey{res: r.Resource(), scope: scope}
		sl, ok := byScope[key]
		if !ok {
			sl = &logspb.ScopeLogs{
				Scope:     Scope(scope),
				SchemaUrl: scope.SchemaURL,
			}
			byScope[key] = sl
			rl.ScopeLogs = append(rl.ScopeLogs, sl)
		}

		sl.LogRecords = append(sl.LogRecords, logRecord(r))
	}
	return out
}

func logRecord(r *sdklog.Record) *logspb.LogRecord {
	tid := r.TraceID()
	sid := r.SpanID()

	lr := &logspb.LogRecord{
		TimeUnixNano:           timeUnixNano(r.Timestamp()),
		ObservedTimeUnixNano:   timeUnixNano(r.ObservedTimestamp()),
		SeverityNumber:         logspb.SeverityNumber(r.Severity()),
		SeverityText:           r.SeverityText(),
		EventName:              r.EventName(),
		Body:                   logValue(r.Body()),
		Attributes:             logAttrs(r),
		DroppedAttributesCount: clampUint32(r.DroppedAttributes()),
		Flags:                  uint32(r.TraceFlags()),
	}
	if tid.IsValid() {
		lr.TraceId = tid[:]
	}
	if sid.IsValid() {
		lr.SpanId = sid[:]
	}
	return lr
}

func logAttrs(r *sdklog.Record) []*commonpb.KeyValue {
	n := r.AttributesLen()
	if n == 0 {
		return nil
	}

	out := make([]*commonpb.KeyValue, 0, n)
	r.WalkAttributes(func(kv log.KeyValue) bool {
		out = append(out, &commonpb.KeyValue{
			Key:   kv.Key,
			Value: logValue(kv.Value),
		})
		return true
	})
	return out
}

func logValue(v log.Value) *commonpb.AnyValue {
	av := new(commonpb.AnyValue)
	switch v.Kind() {
	case log.KindBool:
		av.Value = &commonpb.AnyValue_BoolValue{BoolValue: v.AsBool()}
	case log.KindInt64:
		av.Value = &commonpb.AnyValue_IntValue{IntValue: v.AsInt64()}
	case log.KindFloat64:
		av.Value = &commonpb.AnyValue_DoubleValue{DoubleValue: v.AsFloat64()}
	case log.KindString:
		av.Value = &commonpb.AnyValue_StringValue{StringValue: v.AsString()}
	case log.KindBytes:
		av.Value = &commonpb.AnyValue_BytesValue{BytesValue: v.AsBytes()}
	case log.KindSlice:
		vals := v.AsSlice()
		converted := make([]*commonpb.AnyValue, len(vals))
		for i, e := range vals {
			converted[i] = logValue(e)
		}
		av.Value = &commonpb.AnyValue_ArrayValue{
			ArrayValue: &commonpb.ArrayValue{Values: converted},
		}
	case log.KindMap:
		kvs := v.AsMap()
		converted := make([]*commonpb.KeyValue, len(kvs))
		for i, kv := range kvs {
			converted[i] = &commonpb.KeyValue{Key: kv.Key, Value: logValue(kv.Value)}
		}
		av.Value = &commonpb.AnyValue_KvlistValue{
			KvlistValue: &commonpb.KeyValueList{Values: converted},
		}
	default:
		// KindEmpty marshals as an unset AnyValue.
	}
	return av
}
