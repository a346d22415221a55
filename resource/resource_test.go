// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNewWithAttributes(t *testing.T) {
	t.Run("drops empty keys", func(t *testing.T) {
		r := NewWithAttributes(
			"",
			attribute.String("", "dropped"),
			attribute.String("a", "1"),
		)
		require.Equal(t, 1, r.Len())
		require.Equal(t, []attribute.KeyValue{attribute.String("a", "1")}, r.Attributes())
	})

	t.Run("last duplicate wins", func(t *testing.T) {
		r := NewWithAttributes(
			"",
			attribute.String("a", "old"),
			attribute.String("a", "new"),
		)
		require.Equal(t, []attribute.KeyValue{attribute.String("a", "new")}, r.Attributes())
	})
}

func TestMerge(t *testing.T) {
	testCases := []struct {
		name      string
		a         *Resource
		b         *Resource
		want      []attribute.KeyValue
		wantSchema string
	}{
		{
			name: "b overrides a",
			a:    NewWithAttributes("https://a", attribute.String("k", "a"), attribute.Int("only.a", 1)),
			b:    NewWithAttributes("https://b", attribute.String("k", "b")),
			want: []attribute.KeyValue{
				attribute.String("k", "b"),
				attribute.Int("only.a", 1),
			},
			wantSchema: "https://b",
		},
		{
			name:       "empty schema does not override",
			a:          NewWithAttributes("https://a", attribute.String("k", "a")),
			b:          NewWithAttributes("", attribute.String("k2", "b")),
			want:       []attribute.KeyValue{attribute.String("k", "a"), attribute.String("k2", "b")},
			wantSchema: "https://a",
		},
		{
			name: "nil operands",
			a:    nil,
			b:    NewWithAttributes("", attribute.Bool("b", true)),
			want: []attribute.KeyValue{attribute.Bool("b", true)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			merged := Merge(tc.a, tc.b)
			require.ElementsMatch(t, tc.want, merged.Attributes())
			require.Equal(t, tc.wantSchema, merged.SchemaURL())
		})
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "fruit-stand")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=prod,region=eu-west-1")

	r := Default()

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range r.Attributes() {
		attrs[kv.Key] = kv.Value
	}

	require.Equal(t, "fruit-stand", attrs["service.name"].AsString())
	require.Equal(t, "prod", attrs["deployment.environment"].AsString())
	require.Equal(t, "otelsdk", attrs["telemetry.sdk.name"].AsString())
	require.Equal(t, "go", attrs["telemetry.sdk.language"].AsString())
	require.NotEmpty(t, attrs["telemetry.sdk.version"].AsString())
}

func TestDetect(t *testing.T) {
	t.Run("joins detector errors and keeps successes", func(t *testing.T) {
		boom := detectorFunc(func(context.Context) (*Resource, error) {
			return nil, context.DeadlineExceeded
		})

		r, err := Detect(context.Background(), boom, ServiceName("svc"))
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Equal(t, 1, r.Len())
	})
}
