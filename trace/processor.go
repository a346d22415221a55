// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package trace

import (
	"context"

	"github.com/z5labs/otelsdk/resource"
)

// SpanProcessor sits between span completion and export. Processors
// registered with a provider are invoked in registration order.
type SpanProcessor interface {
	// OnEnd is called synchronously on the ending goroutine for every
	// completed span. It must return quickly and must not block on IO.
	OnEnd(s *SpanData)

	// ForceFlush exports all spans the processor is holding.
	ForceFlush(ctx context.Context) error

	// Shutdown flushes remaining spans, shuts the downstream exporter
	// down, and releases resources. Later calls return
	// otelsdk.ErrAlreadyShutdown.
	Shutdown(ctx context.Context) error
}

// ResourceAware is implemented by processors and exporters that want
// the provider's resource. SetResource is called once, before any
// telemetry flows.
type ResourceAware interface {
	SetResource(*resource.Resource)
}

// SpanExporter ships batches of ended spans to a backend.
type SpanExporter interface {
	// ExportSpans serializes and transmits spans. The batch is owned
	// by the exporter for the duration of the call.
	ExportSpans(ctx context.Context, spans []*SpanData) error

	// ForceFlush pushes any buffered telemetry to the backend.
	ForceFlush(ctx context.Context) error

	// Shutdown stops the exporter. Later ExportSpans calls fail with
	// otelsdk.ErrAlreadyShutdown.
	Shutdown(ctx context.Context) error
}
