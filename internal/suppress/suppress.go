// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package suppress marks a context as carrying telemetry produced by
// the SDK itself. Emitters short-circuit to no-ops when the flag is
// set, which keeps exporter-internal logs and spans from re-entering
// the pipeline they are being exported through.
package suppress

import "context"

type suppressKey struct{}

// With returns a context flagged as SDK-internal.
func With(ctx context.Context) context.Context {
	if IsSuppressed(ctx) {
		return ctx
	}
	return context.WithValue(ctx, suppressKey{}, true)
}

// IsSuppressed reports whether ctx carries the SDK-internal flag.
func IsSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(suppressKey{}).(bool)
	return v
}
