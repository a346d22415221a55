// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package tracetest provides span exporters for testing trace
// pipelines.
package tracetest

import (
	"context"
	"sync"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/resource"
	"github.com/z5labs/otelsdk/trace"
)

// InMemoryExporter accumulates exported spans in memory.
type InMemoryExporter struct {
	mu       sync.Mutex
	spans    []*trace.SpanData
	resource *resource.Resource
	shutdown bool
}

var _ trace.SpanExporter = (*InMemoryExporter)(nil)

// NewInMemoryExporter returns an empty InMemoryExporter.
func NewInMemoryExporter() *InMemoryExporter {
	return &InMemoryExporter{}
}

// ExportSpans appends spans to the in-memory store.
func (e *InMemoryExporter) ExportSpans(_ context.Context, spans []*trace.SpanData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return otelsdk.ErrAlreadyShutdown
	}
	e.spans = append(e.spans, spans...)
	return nil
}

// ForceFlush is a no-op.
func (e *InMemoryExporter) ForceFlush(context.Context) error { return nil }

// Shutdown marks the exporter as shut down. Stored spans are retained
// for inspection.
func (e *InMemoryExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdown = true
	return nil
}

// SetResource records the provider resource handed down the pipeline.
func (e *InMemoryExporter) SetResource(r *resource.Resource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resource = r
}

// Resource returns the resource received via SetResource.
func (e *InMemoryExporter) Resource() *resource.Resource {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resource
}

// GetSpans returns a copy of all exported spans.
func (e *InMemoryExporter) GetSpans() []*trace.SpanData {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*trace.SpanData, len(e.spans))
	copy(out, e.spans)
	return out
}

// Reset discards all stored spans.
func (e *InMemoryExporter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = nil
}
