// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otlpgrpc implements the gRPC transport plumbing shared by the
// OTLP exporters: connection setup from a resolved config, per-call
// metadata and timeout handling, and the status-code classification the
// retry policy consults.
package otlpgrpc

import (
	"context"
	"time"

	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/retry"
	"github.com/z5labs/otelsdk/internal/selflog"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// NewConn opens a client connection to cfg's endpoint.
func NewConn(cfg otlp.Config) (*grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if !cfg.Insecure {
		creds = credentials.NewTLS(cfg.TLSConfig)
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithUserAgent("otelsdk-otlp"),
	}
	return grpc.NewClient(cfg.Endpoint, opts...)
}

// CallOptions returns the per-call options cfg implies. grpc-go ships
// no zstd compressor, so zstd degrades to gzip on this transport.
func CallOptions(cfg otlp.Config) []grpc.CallOption {
	switch cfg.Compression {
	case otlp.CompressionGzip:
		return []grpc.CallOption{grpc.UseCompressor(gzip.Name)}
	case otlp.CompressionZstd:
		selflog.WarnOnce("otlp-grpc-zstd",
			"zstd compression is not available on the grpc transport, using gzip",
			"signal", string(cfg.Signal))
		return []grpc.CallOption{grpc.UseCompressor(gzip.Name)}
	default:
		return nil
	}
}

// ExportContext bounds ctx with cfg's timeout and attaches cfg's
// headers as outgoing metadata.
func ExportContext(ctx context.Context, cfg otlp.Config) (context.Context, context.CancelFunc) {
	if len(cfg.Headers) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, metadata.New(cfg.Headers))
	}
	return context.WithTimeout(ctx, cfg.Timeout)
}

// RetryConfig converts cfg's retry policy into the decorator's config.
func RetryConfig(cfg otlp.Config) retry.Config {
	return retry.Config{
		Enabled:         cfg.Retry.Enabled,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
	}
}

// Evaluate classifies an export error: Unavailable, ResourceExhausted
// and DeadlineExceeded are transient; a RetryInfo detail supplies the
// server-imposed delay.
func Evaluate(err error) (bool, time.Duration) {
	s, ok := status.FromError(err)
	if !ok || s.Code() == codes.OK {
		return false, 0
	}

	switch s.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true, throttleDelay(s)
	default:
		return false, 0
	}
}

func throttleDelay(s *status.Status) time.Duration {
	for _, detail := range s.Details() {
		if t, ok := detail.(*errdetails.RetryInfo); ok {
			return t.RetryDelay.AsDuration()
		}
	}
	return 0
}
