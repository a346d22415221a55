// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package transform converts the SDK's collected data into the
// generated OTLP protobuf messages.
package transform

import (
	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/resource"

	"go.opentelemetry.io/otel/attribute"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
)

// KeyValues transforms a slice of attributes into OTLP key-values.
func KeyValues(attrs []attribute.KeyValue) []*commonpb.KeyValue {
	if len(attrs) == 0 {
		return nil
	}

	out := make([]*commonpb.KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		out = append(out, KeyValue(kv))
	}
	return out
}

// AttrSet transforms an attribute set into OTLP key-values.
func AttrSet(s attribute.Set) []*commonpb.KeyValue {
	return KeyValues(s.ToSlice())
}

// KeyValue transforms an attribute into an OTLP key-value.
func KeyValue(kv attribute.KeyValue) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: string(kv.Key), Value: Value(kv.Value)}
}

// Value transforms an attribute value into an OTLP AnyValue.
func Value(v attribute.Value) *commonpb.AnyValue {
	av := new(commonpb.AnyValue)
	switch v.Type() {
	case attribute.BOOL:
		av.Value = &commonpb.AnyValue_BoolValue{BoolValue: v.AsBool()}
	case attribute.BOOLSLICE:
		av.Value = &commonpb.AnyValue_ArrayValue{ArrayValue: boolSliceValues(v.AsBoolSlice())}
	case attribute.INT64:
		av.Value = &commonpb.AnyValue_IntValue{IntValue: v.AsInt64()}
	case attribute.INT64SLICE:
		av.Value = &commonpb.AnyValue_ArrayValue{ArrayValue: int64SliceValues(v.AsInt64Slice())}
	case attribute.FLOAT64:
		av.Value = &commonpb.AnyValue_DoubleValue{DoubleValue: v.AsFloat64()}
	case attribute.FLOAT64SLICE:
		av.Value = &commonpb.AnyValue_ArrayValue{ArrayValue: float64SliceValues(v.AsFloat64Slice())}
	case attribute.STRINGSLICE:
		av.Value = &commonpb.AnyValue_ArrayValue{ArrayValue: stringSliceValues(v.AsStringSlice())}
	default:
		av.Value = &commonpb.AnyValue_StringValue{StringValue: v.Emit()}
	}
	return av
}

func boolSliceValues(vals []bool) *commonpb.ArrayValue {
	converted := make([]*commonpb.AnyValue, len(vals))
	for i, v := range vals {
		converted[i] = &commonpb.AnyValue{
			Value: &commonpb.AnyValue_BoolValue{BoolValue: v},
		}
	}
	return &commonpb.ArrayValue{Values: converted}
}

func int64SliceValues(vals []int64) *commonpb.ArrayValue {
	converted := make([]*commonpb.AnyValue, len(vals))
	for i, v := range vals {
		converted[i] = &commonpb.AnyValue{
			Value: &commonpb.AnyValue_IntValue{IntValue: v},
		}
	}
	return &commonpb.ArrayValue{Values: converted}
}

func float64SliceValues(vals []float64) *commonpb.ArrayValue {
	converted := make([]*commonpb.AnyValue, len(vals))
	for i, v := range vals {
		converted[i] = &commonpb.AnyValue{
			Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v},
		}
	}
	return &commonpb.ArrayValue{Values: converted}
}

func stringSliceValues(vals []string) *commonpb.ArrayValue {
	converted := make([]*commonpb.AnyValue, len(vals))
	for i, v := range vals {
		converted[i] = &commonpb.AnyValue{
			Value: &commonpb.AnyValue_StringValue{StringValue: v},
		}
	}
	return &commonpb.ArrayValue{Values: converted}
}

// Resource transforms a Resource into an OTLP Resource.
func Resource(r *resource.Resource) *resourcepb.Resource {
	if r == nil {
		return nil
	}
	return &resourcepb.Resource{Attributes: KeyValues(r.Attributes())}
}

func resourceSchemaURL(r *resource.Resource) string {
	if r == nil {
		return ""
	}
	return r.SchemaURL()
}

// Scope transforms an instrumentation scope into an OTLP
// InstrumentationScope.
func Scope(s instrumentation.Scope) *commonpb.InstrumentationScope {
	return &commonpb.InstrumentationScope{
		Name:       s.Name,
		Version:    s.Version,
		Attributes: AttrSet(s.Attributes),
	}
}
