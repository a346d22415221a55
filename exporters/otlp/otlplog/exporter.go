// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otlplog exports log records over OTLP. The transport is
// selected by the resolved protocol: grpc, http/protobuf or http/json.
package otlplog

import (
	"context"
	"sync/atomic"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/transform"
	"github.com/z5labs/otelsdk/log"

	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
)

type client interface {
	UploadLogs(ctx context.Context, rl []*logspb.ResourceLogs) error
	Shutdown(ctx context.Context) error
}

// Exporter exports log records to an OTLP endpoint.
type Exporter struct {
	client client

	shutdown atomic.Bool
}

var _ log.Exporter = (*Exporter)(nil)

// New returns an Exporter for the configuration resolved from opts and
// the OTEL_EXPORTER_OTLP_* environment.
func New(ctx context.Context, opts ...otlp.Option) (*Exporter, error) {
	cfg, err := otlp.NewConfig(otlp.SignalLogs, opts...)
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

// Export transforms and uploads records.
func (e *Exporter) Export(ctx context.Context, records []log.Record) error {
	if e.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	rl := transform.Logs(records)
	if len(rl) == 0 {
		return nil
	}
	return e.client.UploadLogs(ctx, rl)
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
