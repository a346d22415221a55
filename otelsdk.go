// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelsdk is an OpenTelemetry client SDK: it ingests spans, log
// records and metric measurements produced through the
// go.opentelemetry.io/otel API modules, aggregates and batches them, and
// delivers them to exporters speaking the OTLP wire protocol.
//
// The signal pipelines live in the trace, log and metric packages. The
// exporters/otlp packages provide OTLP exporters over gRPC,
// HTTP/protobuf and HTTP/JSON, while exporters/stdout provides
// human-readable debugging exporters.
package otelsdk

import "errors"

// Version is the current release version of the SDK.
const Version = "0.1.0"

var (
	// ErrAlreadyShutdown is returned by operations invoked on a
	// provider, processor, reader or exporter after its Shutdown
	// method has completed.
	ErrAlreadyShutdown = errors.New("already shutdown")

	// ErrTimeout is returned when a flush or shutdown deadline elapsed
	// before all pending telemetry was handled. Work already in flight
	// is not aborted.
	ErrTimeout = errors.New("deadline exceeded before completion")
)
