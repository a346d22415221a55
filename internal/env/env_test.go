// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	testCases := []struct {
		name   string
		env    map[string]string
		lookup []string
		want   string
		wantOk bool
	}{
		{
			name:   "first set variable wins",
			env:    map[string]string{"A": "one", "B": "two"},
			lookup: []string{"A", "B"},
			want:   "one",
			wantOk: true,
		},
		{
			name:   "skips empty variables",
			env:    map[string]string{"A": "  ", "B": "two"},
			lookup: []string{"A", "B"},
			want:   "two",
			wantOk: true,
		},
		{
			name:   "nothing set",
			lookup: []string{"A", "B"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			v, ok := String(tc.lookup...)
			require.Equal(t, tc.wantOk, ok)
			require.Equal(t, tc.want, v)
		})
	}
}

func TestDurationMillis(t *testing.T) {
	t.Run("parses milliseconds", func(t *testing.T) {
		t.Setenv("OTEL_EXPORTER_OTLP_TIMEOUT", "2500")

		d, ok := DurationMillis("OTEL_EXPORTER_OTLP_TIMEOUT")
		require.True(t, ok)
		require.Equal(t, 2500*time.Millisecond, d)
	})

	t.Run("rejects negative values", func(t *testing.T) {
		t.Setenv("OTEL_EXPORTER_OTLP_TIMEOUT", "-1")

		d := DurationMillisOr(10*time.Second, "OTEL_EXPORTER_OTLP_TIMEOUT")
		require.Equal(t, 10*time.Second, d)
	})
}

func TestHeaders(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want map[string]string
	}{
		{
			name: "multiple pairs",
			in:   "api-key=secret,tenant=acme",
			want: map[string]string{"api-key": "secret", "tenant": "acme"},
		},
		{
			name: "url decodes values",
			in:   "authorization=Basic%20dXNlcg==",
			want: map[string]string{"authorization": "Basic dXNlcg=="},
		},
		{
			name: "skips malformed entries",
			in:   "ok=1,missingvalue,=emptykey",
			want: map[string]string{"ok": "1"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Headers(tc.in))
		})
	}
}
