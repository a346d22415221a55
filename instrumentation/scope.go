// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package instrumentation describes the library producing telemetry.
package instrumentation

import "go.opentelemetry.io/otel/attribute"

// Scope identifies the instrumentation library that produced a piece
// of telemetry. Providers hand out one emitter per distinct Scope.
type Scope struct {
	// Name is the name of the instrumented library, typically its
	// import path.
	Name string
	// Version is the version of the instrumented library.
	Version string
	// SchemaURL of the telemetry emitted by the library.
	SchemaURL string
	// Attributes of the telemetry emitted by the library.
	Attributes attribute.Set
}
