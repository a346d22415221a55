// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlpjson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

func testSpan() *tracepb.Span {
	return &tracepb.Span{
		TraceId:           []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanId:            []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00, 0x11},
		ParentSpanId:      []byte{0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01},
		Name:              "op",
		StartTimeUnixNano: 1700000000000000000,
		EndTimeUnixNano:   1700000000000000042,
	}
}

func TestMarshal_HexIDs(t *testing.T) {
	data, err := Marshal(testSpan())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	require.Equal(t, "0102030405060708090a0b0c0d0e0f10", doc["traceId"])
	require.Equal(t, "aabbccddeeff0011", doc["spanId"])
	require.Equal(t, "0101010101010101", doc["parentSpanId"])

	// 64-bit integers stay decimal strings.
	require.Equal(t, "1700000000000000000", doc["startTimeUnixNano"])
}

func TestRoundTrip(t *testing.T) {
	in := testSpan()

	data, err := Marshal(in)
	require.NoError(t, err)

	var out tracepb.Span
	require.NoError(t, Unmarshal(data, &out))
	require.True(t, proto.Equal(in, &out))
}

func TestMarshal_NestedIDs(t *testing.T) {
	rs := &tracepb.ResourceSpans{
		ScopeSpans: []*tracepb.ScopeSpans{{
			Spans: []*tracepb.Span{testSpan()},
		}},
	}

	data, err := Marshal(rs)
	require.NoError(t, err)
	require.Contains(t, string(data), `"traceId":"0102030405060708090a0b0c0d0e0f10"`)

	var out tracepb.ResourceSpans
	require.NoError(t, Unmarshal(data, &out))
	require.True(t, proto.Equal(rs, &out))
}
