// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlplog

import (
	"context"

	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/otlpgrpc"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/retry"
	"github.com/z5labs/otelsdk/internal/selflog"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"google.golang.org/grpc"
)

type grpcClient struct {
	cfg         otlp.Config
	conn        *grpc.ClientConn
	lsc         collogspb.LogsServiceClient
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
		lsc:         collogspb.NewLogsServiceClient(conn),
		callOpts:    otlpgrpc.CallOptions(cfg),
		requestFunc: otlpgrpc.RetryConfig(cfg).RequestFunc(otlpgrpc.Evaluate),
	}, nil
}

func (c *grpcClient) UploadLogs(ctx context.Context, rl []*logspb.ResourceLogs) error {
	ctx, cancel := otlpgrpc.ExportContext(ctx, c.cfg)
	defer cancel()

	return c.requestFunc(ctx, func(ctx context.Context) error {
		resp, err := c.lsc.Export(ctx, &collogspb.ExportLogsServiceRequest{
			ResourceLogs: rl,
		}, c.callOpts...)
		if err != nil {
			return err
		}
		if ps := resp.GetPartialSuccess(); ps != nil && (ps.GetRejectedLogRecords() != 0 || ps.GetErrorMessage() != "") {
			selflog.Warn("otlp endpoint rejected log records",
				"rejected", ps.GetRejectedLogRecords(), "message", ps.GetErrorMessage())
		}
		return nil
	})
}

func (c *grpcClient) Shutdown(context.Context) error {
	return c.conn.Close()
}
