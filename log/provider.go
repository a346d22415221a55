// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package log

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/concurrent"
	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/internal/selflog"
	"github.com/z5labs/otelsdk/resource"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
	"go.opentelemetry.io/otel/log/noop"
	"golang.org/x/sync/errgroup"
)

// LoggerProvider hands out Loggers bound to a shared chain of record
// processors. It implements log.LoggerProvider.
type LoggerProvider struct {
	embedded.LoggerProvider

	state *loggerProviderState
}

type loggerProviderState struct {
	resource   *resource.Resource
	limits     RecordLimits
	processors []Processor

	loggers  *concurrent.Cache[instrumentation.Scope, log.Logger]
	shutdown atomic.Bool
}

var _ log.LoggerProvider = (*LoggerProvider)(nil)

// LoggerProviderOption configures a LoggerProvider.
type LoggerProviderOption func(*loggerProviderState)

// WithResource sets the resource describing the telemetry producer.
// Defaults to resource.Default().
func WithResource(r *resource.Resource) LoggerProviderOption {
	return func(s *loggerProviderState) {
		s.resource = r
	}
}

// WithRecordLimits sets the per-record attribute limits.
func WithRecordLimits(limits RecordLimits) LoggerProviderOption {
	return func(s *loggerProviderState) {
		s.limits = limits
	}
}

// WithProcessor registers a processor. Processors are invoked in
// registration order for every emitted record.
func WithProcessor(p Processor) LoggerProviderOption {
	return func(s *loggerProviderState) {
		if p != nil {
			s.processors = append(s.processors, p)
		}
	}
}

// NewLoggerProvider returns a LoggerProvider configured with opts.
func NewLoggerProvider(opts ...LoggerProviderOption) *LoggerProvider {
	state := &loggerProviderState{
		limits:  NewRecordLimits(),
		loggers: concurrent.NewCache[instrumentation.Scope, log.Logger](),
	}
	for _, o := range opts {
		o(state)
	}
	if state.resource == nil {
		state.resource = resource.Default()
	}

	for _, p := range state.processors {
		if ra, ok := p.(ResourceAware); ok {
			ra.SetResource(state.resource)
		}
	}

	return &LoggerProvider{state: state}
}

// Logger returns the Logger for the given instrumentation scope. Equal
// scopes return the same Logger. After Shutdown a no-op Logger is
// returned.
func (p *LoggerProvider) Logger(name string, opts ...log.LoggerOption) log.Logger {
	if name == "" {
		selflog.Debug("logger created with empty instrumentation scope name")
	}

	cfg := log.NewLoggerConfig(opts...)
	scope := instrumentation.Scope{
		Name:       name,
		Version:    cfg.InstrumentationVersion(),
		SchemaURL:  cfg.SchemaURL(),
		Attributes: cfg.InstrumentationAttributes(),
	}

	if p.state.shutdown.Load() {
		return noop.NewLoggerProvider().Logger(name)
	}

	l, _ := p.state.loggers.GetOr(scope, func() (log.Logger, error) {
		return &logger{state: p.state, scope: scope}, nil
	})
	return l
}

// ForceFlush drains every registered processor. Processor flushes run
// concurrently; the first error is returned once all complete or ctx
// expires.
func (p *LoggerProvider) ForceFlush(ctx context.Context) error {
	if p.state.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, proc := range p.state.processors {
		g.Go(func() error {
			return proc.ForceFlush(ctx)
		})
	}
	return g.Wait()
}

// Shutdown flushes and stops every registered processor in
// registration order. It is idempotent; later calls return
// otelsdk.ErrAlreadyShutdown. The first processor error is returned,
// the rest are logged.
func (p *LoggerProvider) Shutdown(ctx context.Context) error {
	if !p.state.shutdown.CompareAndSwap(false, true) {
		return otelsdk.ErrAlreadyShutdown
	}

	var firstErr error
	for _, proc := range p.state.processors {
		err := proc.Shutdown(ctx)
		if err == nil || errors.Is(err, otelsdk.ErrAlreadyShutdown) {
			continue
		}
		if firstErr == nil {
			firstErr = err
			continue
		}
		selflog.Error("log processor shutdown failed", "error", err)
	}
	return firstErr
}
