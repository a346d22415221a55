// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package trace implements the tracing signal: a TracerProvider wiring
// samplers, span limits and span processors to the
// go.opentelemetry.io/otel/trace API.
package trace

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/concurrent"
	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/internal/selflog"
	"github.com/z5labs/otelsdk/resource"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

// TracerProvider hands out Tracers bound to a shared pipeline of span
// processors. It implements trace.TracerProvider.
//
// A TracerProvider is built once and must be shut down explicitly;
// after Shutdown every Tracer it handed out becomes a no-op.
type TracerProvider struct {
	embedded.TracerProvider

	state *providerState
}

// providerState is shared between the provider and every tracer it
// hands out, so tracers stay safe to use regardless of which handle
// triggered shutdown.
type providerState struct {
	resource    *resource.Resource
	sampler     Sampler
	idGenerator IDGenerator
	spanLimits  SpanLimits
	processors  []SpanProcessor

	tracers  *concurrent.Cache[instrumentation.Scope, trace.Tracer]
	shutdown atomic.Bool
}

var _ trace.TracerProvider = (*TracerProvider)(nil)

// TracerProviderOption configures a TracerProvider.
type TracerProviderOption func(*providerState)

// WithResource sets the resource describing the telemetry producer.
// Defaults to resource.Default().
func WithResource(r *resource.Resource) TracerProviderOption {
	return func(s *providerState) {
		s.resource = r
	}
}

// WithSampler sets the sampler consulted at span creation. Defaults to
// ParentBased(AlwaysSample()).
func WithSampler(sampler Sampler) TracerProviderOption {
	return func(s *providerState) {
		if sampler != nil {
			s.sampler = sampler
		}
	}
}

// WithIDGenerator sets the trace/span id generator. Defaults to a
// cryptographically random generator.
func WithIDGenerator(gen IDGenerator) TracerProviderOption {
	return func(s *providerState) {
		if gen != nil {
			s.idGenerator = gen
		}
	}
}

// WithSpanLimits sets the per-span attribute, event and link limits.
func WithSpanLimits(limits SpanLimits) TracerProviderOption {
	return func(s *providerState) {
		s.spanLimits = limits
	}
}

// WithSpanProcessor registers a processor. Processors are invoked in
// registration order for every ended span.
func WithSpanProcessor(sp SpanProcessor) TracerProviderOption {
	return func(s *providerState) {
		if sp != nil {
			s.processors = append(s.processors, sp)
		}
	}
}

// NewTracerProvider returns a TracerProvider configured with opts.
func NewTracerProvider(opts ...TracerProviderOption) *TracerProvider {
	state := &providerState{
		sampler:     ParentBased(AlwaysSample()),
		idGenerator: defaultIDGenerator(),
		spanLimits:  NewSpanLimits(),
		tracers:     concurrent.NewCache[instrumentation.Scope, trace.Tracer](),
	}
	for _, o := range opts {
		o(state)
	}
	if state.resource == nil {
		state.resource = resource.Default()
	}

	for _, sp := range state.processors {
		if ra, ok := sp.(ResourceAware); ok {
			ra.SetResource(state.resource)
		}
	}

	return &TracerProvider{state: state}
}

// Tracer returns the Tracer for the given instrumentation scope. Equal
// scopes return the same Tracer. After Shutdown a no-op Tracer is
// returned.
func (p *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if name == "" {
		selflog.Debug("tracer created with empty instrumentation scope name")
	}

	cfg := trace.NewTracerConfig(opts...)
	scope := instrumentation.Scope{
		Name:       name,
		Version:    cfg.InstrumentationVersion(),
		SchemaURL:  cfg.SchemaURL(),
		Attributes: cfg.InstrumentationAttributes(),
	}

	if p.state.shutdown.Load() {
		return noop.NewTracerProvider().Tracer(name)
	}

	t, _ := p.state.tracers.GetOr(scope, func() (trace.Tracer, error) {
		return &tracer{state: p.state, scope: scope}, nil
	})
	return t
}

// ForceFlush drains every registered span processor. Processor flushes
// run concurrently; the first error is returned once all complete or
// ctx expires.
func (p *TracerProvider) ForceFlush(ctx context.Context) error {
	if p.state.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, sp := range p.state.processors {
		g.Go(func() error {
			return sp.ForceFlush(ctx)
		})
	}
	return g.Wait()
}

// Shutdown flushes and stops every registered span processor in
// registration order. It is idempotent; later calls return
// otelsdk.ErrAlreadyShutdown. The first processor error is returned,
// the rest are logged.
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	if !p.state.shutdown.CompareAndSwap(false, true) {
		return otelsdk.ErrAlreadyShutdown
	}

	var firstErr error
	for _, sp := range p.state.processors {
		err := sp.Shutdown(ctx)
		if err == nil || errors.Is(err, otelsdk.ErrAlreadyShutdown) {
			continue
		}
		if firstErr == nil {
			firstErr = err
			continue
		}
		selflog.Error("span processor shutdown failed", "error", err)
	}
	return firstErr
}

func (s *providerState) onEnd(sd *SpanData) {
	for _, sp := range s.processors {
		sp.OnEnd(sd)
	}
}
