// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlptrace

import (
	"context"

	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/otlpgrpc"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/retry"
	"github.com/z5labs/otelsdk/internal/selflog"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
)

type grpcClient struct {
	cfg         otlp.Config
	conn        *grpc.ClientConn
	tsc         coltracepb.TraceServiceClient
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
		tsc:         coltracepb.NewTraceServiceClient(conn),
		callOpts:    otlpgrpc.CallOptions(cfg),
		requestFunc: otlpgrpc.RetryConfig(cfg).RequestFunc(otlpgrpc.Evaluate),
	}, nil
}

func (c *grpcClient) UploadTraces(ctx context.Context, rs []*tracepb.ResourceSpans) error {
	ctx, cancel := otlpgrpc.ExportContext(ctx, c.cfg)
	defer cancel()

	return c.requestFunc(ctx, func(ctx context.Context) error {
		resp, err := c.tsc.Export(ctx, &coltracepb.ExportTraceServiceRequest{
			ResourceSpans: rs,
		}, c.callOpts...)
		if err != nil {
			return err
		}
		if ps := resp.GetPartialSuccess(); ps != nil && (ps.GetRejectedSpans() != 0 || ps.GetErrorMessage() != "") {
			selflog.Warn("otlp endpoint rejected spans",
				"rejected", ps.GetRejectedSpans(), "message", ps.GetErrorMessage())
		}
		return nil
	})
}

func (c *grpcClient) Shutdown(context.Context) error {
	return c.conn.Close()
}
