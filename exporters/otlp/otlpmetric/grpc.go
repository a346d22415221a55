// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlpmetric

import (
	"context"

	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/otlpgrpc"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/retry"
	"github.com/z5labs/otelsdk/internal/selflog"

	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	"google.golang.org/grpc"
)

type grpcClient struct {
	cfg         otlp.Config
	conn        *grpc.ClientConn
	msc         colmetricspb.MetricsServiceClient
	callOpts    []grpc.CallOption
	requestFunc retry.RequestFunc
}

func newGRPCClient(cfg otlp.Config) (*grpcClient, error) {
	conn, err := otlpgrpc.NewConn(cfg)
	if err != nil {
		return nil, err
	}
	return &grpcClient{
		cfg:         cfg,
		conn:        conn,
		msc:         colmetricspb.NewMetricsServiceClient(conn),
		callOpts:    otlpgrpc.CallOptions(cfg),
		requestFunc: otlpgrpc.RetryConfig(cfg).RequestFunc(otlpgrpc.Evaluate),
	}, nil
}

func (c *grpcClient) UploadMetrics(ctx context.Context, rm *metricspb.ResourceMetrics) error {
	ctx, cancel := otlpgrpc.ExportContext(ctx, c.cfg)
	defer cancel()

	return c.requestFunc(ctx, func(ctx context.Context) error {
		resp, err := c.msc.Export(ctx, &colmetricspb.ExportMetricsServiceRequest{
			ResourceMetrics: []*metricspb.ResourceMetrics{rm},
		}, c.callOpts...)
		if err != nil {
			return err
		}
		if ps := resp.GetPartialSuccess(); ps != nil && (ps.GetRejectedDataPoints() != 0 || ps.GetErrorMessage() != "") {
			selflog.Warn("otlp endpoint rejected metric data points",
				"rejected", ps.GetRejectedDataPoints(), "message", ps.GetErrorMessage())
		}
		return nil
	})
}

func (c *grpcClient) Shutdown(context.Context) error {
	return c.conn.Close()
}
