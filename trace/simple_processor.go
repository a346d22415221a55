// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package trace

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/internal/selflog"
	"github.com/z5labs/otelsdk/internal/suppress"
	"github.com/z5labs/otelsdk/resource"
)

// SimpleSpanProcessor exports each span synchronously as it ends. Only
// one export runs at a time. It exists for debugging; production
// pipelines should use the BatchSpanProcessor.
type SimpleSpanProcessor struct {
	mu       sync.Mutex
	exporter SpanExporter
	shutdown atomic.Bool
}

var _ SpanProcessor = (*SimpleSpanProcessor)(nil)

// NewSimpleSpanProcessor returns a SimpleSpanProcessor exporting to
// exporter.
func NewSimpleSpanProcessor(exporter SpanExporter) *SimpleSpanProcessor {
	return &SimpleSpanProcessor{exporter: exporter}
}

// OnEnd exports s and blocks until the export completes.
func (p *SimpleSpanProcessor) OnEnd(s *SpanData) {
	if p.shutdown.Load() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.exporter.ExportSpans(suppress.With(context.Background()), []*SpanData{s})
	if err != nil {
		selflog.Error("simple span processor export failed", "error", err)
	}
}

// ForceFlush is a no-op; nothing is ever buffered.
func (p *SimpleSpanProcessor) ForceFlush(ctx context.Context) error {
	if p.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}
	return p.exporter.ForceFlush(ctx)
}

// Shutdown shuts the exporter down.
func (p *SimpleSpanProcessor) Shutdown(ctx context.Context) error {
	if !p.shutdown.CompareAndSwap(false, true) {
		return otelsdk.ErrAlreadyShutdown
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exporter.Shutdown(ctx)
}

// SetResource forwards the provider resource to the exporter.
func (p *SimpleSpanProcessor) SetResource(r *resource.Resource) {
	if ra, ok := p.exporter.(ResourceAware); ok {
		ra.SetResource(r)
	}
}
