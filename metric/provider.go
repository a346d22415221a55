// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package metric implements the metrics signal: a MeterProvider wiring
// views, readers and exporters to the go.opentelemetry.io/otel/metric
// API.
package metric

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/concurrent"
	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/internal/selflog"
	"github.com/z5labs/otelsdk/resource"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"
)

// MeterProvider hands out Meters feeding a pipeline per registered
// Reader. It implements metric.MeterProvider.
//
// A MeterProvider is built once and must be shut down explicitly; after
// Shutdown every Meter it handed out becomes a no-op.
type MeterProvider struct {
	embedded.MeterProvider

	state *meterProviderState
}

// meterProviderState is shared between the provider and every meter it
// hands out, so meters stay safe to use regardless of which handle
// triggered shutdown.
type meterProviderState struct {
	resource *resource.Resource
	readers  []Reader
	views    []View

	pipelines []*pipeline

	meters   *concurrent.Cache[instrumentation.Scope, metric.Meter]
	shutdown atomic.Bool
}

var _ metric.MeterProvider = (*MeterProvider)(nil)

// MeterProviderOption configures a MeterProvider.
type MeterProviderOption func(*meterProviderState)

// WithResource sets the resource describing the telemetry producer.
// Defaults to resource.Default().
func WithResource(r *resource.Resource) MeterProviderOption {
	return func(s *meterProviderState) {
		s.resource = r
	}
}

// WithReader registers a Reader. Each reader gets its own pipeline and
// aggregation state; a measurement fans out to every reader.
func WithReader(r Reader) MeterProviderOption {
	return func(s *meterProviderState) {
		if r != nil {
			s.readers = append(s.readers, r)
		}
	}
}

// WithView registers views. Views are evaluated in registration order
// against every created instrument; all matching views apply.
func WithView(views ...View) MeterProviderOption {
	return func(s *meterProviderState) {
		for _, v := range views {
			if v != nil {
				s.views = append(s.views, v)
			}
		}
	}
}

// NewMeterProvider returns a MeterProvider configured with opts.
func NewMeterProvider(opts ...MeterProviderOption) *MeterProvider {
	state := &meterProviderState{
		meters: concurrent.NewCache[instrumentation.Scope, metric.Meter](),
	}
	for _, o := range opts {
		o(state)
	}
	if state.resource == nil {
		state.resource = resource.Default()
	}

	for _, r := range state.readers {
		pipe := newPipeline(state.resource, r, state.views)
		r.register(pipe)
		state.pipelines = append(state.pipelines, pipe)
	}

	return &MeterProvider{state: state}
}

// Meter returns the Meter for the given instrumentation scope. Equal
// scopes return the same Meter. After Shutdown a no-op Meter is
// returned.
func (p *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if name == "" {
		selflog.Debug("meter created with empty instrumentation scope name")
	}

	cfg := metric.NewMeterConfig(opts...)
	scope := instrumentation.Scope{
		Name:       name,
		Version:    cfg.InstrumentationVersion(),
		SchemaURL:  cfg.SchemaURL(),
		Attributes: cfg.InstrumentationAttributes(),
	}

	if p.state.shutdown.Load() {
		return noop.NewMeterProvider().Meter(name)
	}

	m, _ := p.state.meters.GetOr(scope, func() (metric.Meter, error) {
		return newMeter(scope, p.state), nil
	})
	return m
}

// ForceFlush flushes every registered reader that supports flushing,
// such as PeriodicReader. Reader flushes run concurrently; the first
// error is returned once all complete or ctx expires.
func (p *MeterProvider) ForceFlush(ctx context.Context) error {
	if p.state.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range p.state.readers {
		f, ok := r.(interface{ ForceFlush(context.Context) error })
		if !ok {
			continue
		}
		g.Go(func() error {
			return f.ForceFlush(ctx)
		})
	}
	return g.Wait()
}

// Shutdown stops every registered reader in registration order. It is
// idempotent; later calls return otelsdk.ErrAlreadyShutdown. The first
// reader error is returned, the rest are logged.
func (p *MeterProvider) Shutdown(ctx context.Context) error {
	if !p.state.shutdown.CompareAndSwap(false, true) {
		return otelsdk.ErrAlreadyShutdown
	}

	var firstErr error
	for _, r := range p.state.readers {
		err := r.Shutdown(ctx)
		if err == nil || errors.Is(err, otelsdk.ErrAlreadyShutdown) {
			continue
		}
		if firstErr == nil {
			firstErr = err
			continue
		}
		selflog.Error("metric reader shutdown failed", "error", err)
	}
	return firstErr
}
