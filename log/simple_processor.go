// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package log

import (
	"context"
	"sync"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/internal/suppress"
	"github.com/z5labs/otelsdk/resource"
)

// SimpleProcessor exports each record synchronously as it is emitted.
// Export calls are serialized. Meant for tests and debugging; use
// BatchProcessor in production.
type SimpleProcessor struct {
	mu       sync.Mutex
	exporter Exporter
	shutdown bool
}

var _ Processor = (*SimpleProcessor)(nil)

// NewSimpleProcessor returns a SimpleProcessor exporting to exporter.
func NewSimpleProcessor(exporter Exporter) *SimpleProcessor {
	return &SimpleProcessor{exporter: exporter}
}

// OnEmit exports r immediately on the calling goroutine.
func (p *SimpleProcessor) OnEmit(ctx context.Context, r *Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return nil
	}
	return p.exporter.Export(suppress.With(ctx), []Record{r.Clone()})
}

// ForceFlush flushes the exporter.
func (p *SimpleProcessor) ForceFlush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return otelsdk.ErrAlreadyShutdown
	}
	return p.exporter.ForceFlush(ctx)
}

// Shutdown shuts the exporter down. Later calls return
// otelsdk.ErrAlreadyShutdown.
func (p *SimpleProcessor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return otelsdk.ErrAlreadyShutdown
	}
	p.shutdown = true
	return p.exporter.Shutdown(ctx)
}

// SetResource forwards the provider resource to the exporter.
func (p *SimpleProcessor) SetResource(r *resource.Resource) {
	if ra, ok := p.exporter.(ResourceAware); ok {
		ra.SetResource(r)
	}
}
