// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otlpmetric exports collected metrics over OTLP. The transport
// is selected by the resolved protocol: grpc, http/protobuf or
// http/json. The exporter declares its temporality preference from
// OTEL_EXPORTER_OTLP_METRICS_TEMPORALITY_PREFERENCE unless overridden.
package otlpmetric

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/transform"
	"github.com/z5labs/otelsdk/internal/env"
	"github.com/z5labs/otelsdk/internal/selflog"
	"github.com/z5labs/otelsdk/metric"
	"github.com/z5labs/otelsdk/metric/metricdata"

	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

type client interface {
	UploadMetrics(ctx context.Context, rm *metricspb.ResourceMetrics) error
	Shutdown(ctx context.Context) error
}

// Option configures the metric exporter beyond the shared transport
// options.
type Option func(*config)

type config struct {
	otlpOpts    []otlp.Option
	temporality metric.TemporalitySelector
	aggregation metric.AggregationSelector
}

// WithTransportOptions forwards shared OTLP transport options.
func WithTransportOptions(opts ...otlp.Option) Option {
	return func(c *config) {
		c.otlpOpts = append(c.otlpOpts, opts...)
	}
}

// WithTemporalitySelector overrides the temporality preference.
func WithTemporalitySelector(selector metric.TemporalitySelector) Option {
	return func(c *config) {
		if selector != nil {
			c.temporality = selector
		}
	}
}

// WithAggregationSelector overrides the default aggregation the
// exporter declares per instrument kind.
func WithAggregationSelector(selector metric.AggregationSelector) Option {
	return func(c *config) {
		if selector != nil {
			c.aggregation = selector
		}
	}
}

// envTemporality maps OTEL_EXPORTER_OTLP_METRICS_TEMPORALITY_PREFERENCE
// onto a selector.
func envTemporality() (metric.TemporalitySelector, error) {
	pref, ok := env.String("OTEL_EXPORTER_OTLP_METRICS_TEMPORALITY_PREFERENCE")
	if !ok {
		return metric.DefaultTemporalitySelector, nil
	}
	switch pref {
	case "cumulative":
		return metric.DefaultTemporalitySelector, nil
	case "delta":
		return metric.DeltaTemporalitySelector, nil
	case "lowmemory":
		return metric.LowMemoryTemporalitySelector, nil
	default:
		return nil, fmt.Errorf("unknown temporality preference: %q", pref)
	}
}

// Exporter exports collected metrics to an OTLP endpoint.
type Exporter struct {
	client      client
	temporality metric.TemporalitySelector
	aggregation metric.AggregationSelector

	shutdown atomic.Bool
}

var _ metric.Exporter = (*Exporter)(nil)

// New returns an Exporter for the configuration resolved from opts and
// the OTEL_EXPORTER_OTLP_* environment.
func New(ctx context.Context, opts ...Option) (*Exporter, error) {
	cfg := config{aggregation: metric.DefaultAggregationSelector}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.temporality == nil {
		selector, err := envTemporality()
		if err != nil {
			return nil, err
		}
		cfg.temporality = selector
	}

	transportCfg, err := otlp.NewConfig(otlp.SignalMetrics, cfg.otlpOpts...)
	if err != nil {
		return nil, err
	}

	var c client
	if transportCfg.Protocol == otlp.ProtocolGRPC {
		c, err = newGRPCClient(transportCfg)
	} else {
		c, err = newHTTPClient(transportCfg)
	}
	if err != nil {
		return nil, err
	}

	return &Exporter{
		client:      c,
		temporality: cfg.temporality,
		aggregation: cfg.aggregation,
	}, nil
}

// Temporality returns the temporality the exporter declares for kind.
func (e *Exporter) Temporality(kind metric.InstrumentKind) metricdata.Temporality {
	return e.temporality(kind)
}

// Aggregation returns the default aggregation the exporter declares for
// kind.
func (e *Exporter) Aggregation(kind metric.InstrumentKind) metric.Aggregation {
	return e.aggregation(kind)
}

// Export transforms and uploads rm. Metrics with unknown aggregations
// are dropped from the upload and logged.
func (e *Exporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	if e.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	pb, err := transform.ResourceMetrics(rm)
	if err != nil {
		selflog.Warn("dropping unexportable metric data", "error", err)
	}
	if pb == nil || len(pb.ScopeMetrics) == 0 {
		return nil
	}
	return e.client.UploadMetrics(ctx, pb)
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
