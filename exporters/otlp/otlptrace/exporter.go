// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otlptrace exports spans over OTLP. The transport is selected
// by the resolved protocol: grpc, http/protobuf or http/json.
package otlptrace

import (
	"context"
	"sync/atomic"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/transform"
	"github.com/z5labs/otelsdk/trace"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

// client abstracts the transports. Each implementation uploads
// serialized spans and reports partial success through the internal
// diagnostics logger.
type client interface {
	UploadTraces(ctx context.Context, rs []*tracepb.ResourceSpans) error
	Shutdown(ctx context.Context) error
}

// Exporter exports spans to an OTLP endpoint.
type Exporter struct {
	client client

	shutdown atomic.Bool
}

var _ trace.SpanExporter = (*Exporter)(nil)

// New returns an Exporter for the configuration resolved from opts and
// the OTEL_EXPORTER_OTLP_* environment.
func New(ctx context.Context, opts ...otlp.Option) (*Exporter, error) {
	cfg, err := otlp.NewConfig(otlp.SignalTraces, opts...)
	if err != nil {
		return nil, err
	}

	var c client
	if cfg.Protocol == otlp.ProtocolGRPC {
		c, err = newGRPCClient(cfg)
	} else {
		c, err = newHTTPClient(cfg)
	}
	if err != nil {
		return nil, err
	}
	return &Exporter{client: c}, nil
}

// ExportSpans transforms and uploads spans.
func (e *Exporter) ExportSpans(ctx context.Context, spans []*trace.SpanData) error {
	if e.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	rs := transform.Spans(spans)
	if len(rs) == 0 {
		return nil
	}
	return e.client.UploadTraces(ctx, rs)
}

// ForceFlush is a no-op; the exporter holds no buffered state.
func (e *Exporter) ForceFlush(ctx context.Context) error {
	return ctx.Err()
}

// Shutdown stops the exporter. It is idempotent; later calls return
// otelsdk.ErrAlreadyShutdown.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if !e.shutdown.CompareAndSwap(false, true) {
		return otelsdk.ErrAlreadyShutdown
	}
	return e.client.Shutdown(ctx)
}
