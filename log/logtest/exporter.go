// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package logtest provides log exporters for testing.
package logtest

import (
	"context"
	"sync"

	sdklog "github.com/z5labs/otelsdk/log"
	"github.com/z5labs/otelsdk/resource"
)

// InMemoryExporter accumulates exported records in memory.
type InMemoryExporter struct {
	mu       sync.Mutex
	records  []sdklog.Record
	resource *resource.Resource
}

var _ sdklog.Exporter = (*InMemoryExporter)(nil)

// NewInMemoryExporter returns an empty InMemoryExporter.
func NewInMemoryExporter() *InMemoryExporter {
	return &InMemoryExporter{}
}

// Export appends records to the in-memory store.
func (e *InMemoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, records...)
	return nil
}

// ForceFlush is a no-op.
func (e *InMemoryExporter) ForceFlush(context.Context) error { return nil }

// Shutdown clears the stored records.
func (e *InMemoryExporter) Shutdown(context.Context) error {
	e.Reset()
	return nil
}

// GetRecords returns a copy of all records exported so far.
func (e *InMemoryExporter) GetRecords() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]sdklog.Record, len(e.records))
	copy(out, e.records)
	return out
}

// Reset discards all stored records.
func (e *InMemoryExporter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = nil
}

// SetResource records the provider resource.
func (e *InMemoryExporter) SetResource(r *resource.Resource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resource = r
}

// Resource returns the resource passed by the provider, if any.
func (e *InMemoryExporter) Resource() *resource.Resource {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resource
}
