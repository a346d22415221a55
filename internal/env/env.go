// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package env implements typed lookups of the OTEL_* environment
// variables shared across the SDK.
package env

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// String returns the value of the first set, non-empty variable in
// names.
func String(names ...string) (string, bool) {
	for _, name := range names {
		v := strings.TrimSpace(os.Getenv(name))
		if v != "" {
			return v, true
		}
	}
	return "", false
}

// StringOr is like String but falls back to def.
func StringOr(def string, names ...string) string {
	v, ok := String(names...)
	if !ok {
		return def
	}
	return v
}

// Int parses the first set variable in names as a base-10 integer.
func Int(names ...string) (int, bool) {
	v, ok := String(names...)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IntOr is like Int but falls back to def.
func IntOr(def int, names ...string) int {
	n, ok := Int(names...)
	if !ok {
		return def
	}
	return n
}

// DurationMillis parses the first set variable in names as a whole
// number of milliseconds, the unit the OTEL_* duration variables use.
func DurationMillis(names ...string) (time.Duration, bool) {
	n, ok := Int(names...)
	if !ok || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}

// DurationMillisOr is like DurationMillis but falls back to def.
func DurationMillisOr(def time.Duration, names ...string) time.Duration {
	d, ok := DurationMillis(names...)
	if !ok {
		return def
	}
	return d
}

// Headers parses a comma separated list of key=value pairs, the format
// of OTEL_EXPORTER_OTLP_HEADERS. Values are URL-decoded. Malformed
// entries and entries with empty keys are skipped.
func Headers(s string) map[string]string {
	hdrs := make(map[string]string)
	for pair := range strings.SplitSeq(s, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		hdrs[key] = value
	}
	return hdrs
}
