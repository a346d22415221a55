// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package log

import (
	"context"

	"github.com/z5labs/otelsdk/resource"

	"go.opentelemetry.io/otel/log"
)

// Processor handles log records emitted by a Logger.
//
// OnEmit receives a mutable record and may enrich it; mutations are
// visible to processors registered later. A processor that retains the
// record past OnEmit must Clone it first.
type Processor interface {
	OnEmit(ctx context.Context, r *Record) error

	// ForceFlush exports every record received before the call.
	ForceFlush(ctx context.Context) error

	// Shutdown flushes and releases resources. The processor drops
	// all records after Shutdown returns.
	Shutdown(ctx context.Context) error
}

// FilterProcessor is an optional Processor extension letting a
// processor report up front whether it would handle a record, so
// bridges can skip building records nobody wants.
type FilterProcessor interface {
	Enabled(ctx context.Context, param log.EnabledParameters) bool
}

// ResourceAware is implemented by processors and exporters that need
// the provider resource. The provider calls SetResource once at
// construction, before any record flows.
type ResourceAware interface {
	SetResource(r *resource.Resource)
}

// Exporter ships batches of log records to a backend.
//
// Export owns the passed slice only for the duration of the call.
type Exporter interface {
	Export(ctx context.Context, records []Record) error
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
