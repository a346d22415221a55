// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlptrace

import (
	"compress/gzip"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/otlpjson"
	sdktrace "github.com/z5labs/otelsdk/trace"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

func testSpan(name string) *sdktrace.SpanData {
	return &sdktrace.SpanData{
		Name: name,
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
			SpanID:  trace.SpanID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00, 0x11},
		}),
		StartTime: time.Unix(1700000000, 0),
		EndTime:   time.Unix(1700000001, 0),
	}
}

// collectorHandler records decoded export requests posted to an OTLP
// HTTP endpoint.
type collectorHandler struct {
	mu       sync.Mutex
	requests []*coltracepb.ExportTraceServiceRequest
	headers  []http.Header

	// failures is the number of requests to reject with 503 before
	// accepting.
	failures int
}

func (h *collectorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.headers = append(h.headers, r.Header.Clone())

	if h.failures > 0 {
		h.failures--
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req coltracepb.ExportTraceServiceRequest
	if r.Header.Get("Content-Type") == "application/json" {
		err = otlpjson.Unmarshal(data, &req)
	} else {
		err = proto.Unmarshal(data, &req)
	}
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.requests = append(h.requests, &req)
	w.WriteHeader(http.StatusOK)
}

func (h *collectorHandler) spanNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var names []string
	for _, req := range h.requests {
		for _, rs := range req.ResourceSpans {
			for _, ss := range rs.ScopeSpans {
				for _, s := range ss.Spans {
					names = append(names, s.Name)
				}
			}
		}
	}
	return names
}

func newHTTPExporter(t *testing.T, h http.Handler, opts ...otlp.Option) (*Exporter, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]otlp.Option{
		otlp.WithProtocol(otlp.ProtocolHTTPProtobuf),
		otlp.WithEndpointURL(srv.URL + "/v1/traces"),
	}, opts...)

	e, err := New(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown(context.Background()) })
	return e, srv
}

func TestExporter_HTTPProtobuf(t *testing.T) {
	h := &collectorHandler{}
	e, _ := newHTTPExporter(t, h)

	err := e.ExportSpans(context.Background(), []*sdktrace.SpanData{testSpan("hello")})
	require.NoError(t, err)

	require.Equal(t, []string{"hello"}, h.spanNames())

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Equal(t, "application/x-protobuf", h.headers[0].Get("Content-Type"))
	require.True(t, strings.HasPrefix(h.headers[0].Get("User-Agent"), "otelsdk-otlp/"))
}

func TestExporter_HTTPJSON(t *testing.T) {
	h := &collectorHandler{}
	e, _ := newHTTPExporter(t, h, otlp.WithProtocol(otlp.ProtocolHTTPJSON))

	err := e.ExportSpans(context.Background(), []*sdktrace.SpanData{testSpan("json-span")})
	require.NoError(t, err)

	require.Equal(t, []string{"json-span"}, h.spanNames())

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Equal(t, "application/json", h.headers[0].Get("Content-Type"))
}

func TestExporter_HTTPGzip(t *testing.T) {
	h := &collectorHandler{}
	e, _ := newHTTPExporter(t, h, otlp.WithCompression(otlp.CompressionGzip))

	err := e.ExportSpans(context.Background(), []*sdktrace.SpanData{testSpan("compressed")})
	require.NoError(t, err)

	require.Equal(t, []string{"compressed"}, h.spanNames())

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Equal(t, "gzip", h.headers[0].Get("Content-Encoding"))
}

func TestExporter_HTTPHeaders(t *testing.T) {
	h := &collectorHandler{}
	e, _ := newHTTPExporter(t, h, otlp.WithHeaders(map[string]string{"api-key": "secret"}))

	err := e.ExportSpans(context.Background(), []*sdktrace.SpanData{testSpan("s")})
	require.NoError(t, err)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Equal(t, "secret", h.headers[0].Get("api-key"))
}

func TestExporter_HTTPRetriesServiceUnavailable(t *testing.T) {
	h := &collectorHandler{failures: 2}
	e, _ := newHTTPExporter(t, h, otlp.WithRetry(otlp.RetryConfig{
		Enabled:         true,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxElapsedTime:  5 * time.Second,
	}))

	err := e.ExportSpans(context.Background(), []*sdktrace.SpanData{testSpan("eventually")})
	require.NoError(t, err)

	require.Equal(t, []string{"eventually"}, h.spanNames())

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.headers, 3)
}

func TestExporter_HTTPFailsWithoutRetry(t *testing.T) {
	h := &collectorHandler{failures: 1}
	e, _ := newHTTPExporter(t, h)

	err := e.ExportSpans(context.Background(), []*sdktrace.SpanData{testSpan("dropped")})
	require.Error(t, err)
	require.Empty(t, h.spanNames())
}

func TestExporter_EmptyBatchSkipsUpload(t *testing.T) {
	h := &collectorHandler{}
	e, _ := newHTTPExporter(t, h)

	require.NoError(t, e.ExportSpans(context.Background(), nil))

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Empty(t, h.requests)
}

func TestExporter_Shutdown(t *testing.T) {
	h := &collectorHandler{}
	e, _ := newHTTPExporter(t, h)

	require.NoError(t, e.Shutdown(context.Background()))
	require.ErrorIs(t, e.Shutdown(context.Background()), otelsdk.ErrAlreadyShutdown)
	require.ErrorIs(t, e.ExportSpans(context.Background(), []*sdktrace.SpanData{testSpan("late")}), otelsdk.ErrAlreadyShutdown)
}

// traceService is an in-process OTLP collector used by the gRPC tests.
type traceService struct {
	coltracepb.UnimplementedTraceServiceServer

	mu       sync.Mutex
	requests []*coltracepb.ExportTraceServiceRequest
	headers  []metadata.MD
	failures int
}

func (s *traceService) Export(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		s.headers = append(s.headers, md)
	}
	if s.failures > 0 {
		s.failures--
		return nil, status.Error(codes.Unavailable, "try again")
	}

	s.requests = append(s.requests, req)
	return &coltracepb.ExportTraceServiceResponse{}, nil
}

func newGRPCExporter(t *testing.T, svc *traceService, opts ...otlp.Option) *Exporter {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	coltracepb.RegisterTraceServiceServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	opts = append([]otlp.Option{
		otlp.WithEndpoint(lis.Addr().String()),
		otlp.WithInsecure(),
	}, opts...)

	e, err := New(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown(context.Background()) })
	return e
}

func TestExporter_GRPC(t *testing.T) {
	svc := &traceService{}
	e := newGRPCExporter(t, svc, otlp.WithHeaders(map[string]string{"api-key": "secret"}))

	err := e.ExportSpans(context.Background(), []*sdktrace.SpanData{testSpan("over-grpc")})
	require.NoError(t, err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.requests, 1)
	require.Equal(t, "over-grpc", svc.requests[0].ResourceSpans[0].ScopeSpans[0].Spans[0].Name)
	require.Equal(t, []string{"secret"}, svc.headers[0].Get("api-key"))
}

func TestExporter_GRPCRetriesUnavailable(t *testing.T) {
	svc := &traceService{failures: 2}
	e := newGRPCExporter(t, svc, otlp.WithRetry(otlp.RetryConfig{
		Enabled:         true,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxElapsedTime:  5 * time.Second,
	}))

	err := e.ExportSpans(context.Background(), []*sdktrace.SpanData{testSpan("retried")})
	require.NoError(t, err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.requests, 1)
}

func TestExporter_GRPCFailsWithoutRetry(t *testing.T) {
	svc := &traceService{failures: 1}
	e := newGRPCExporter(t, svc)

	err := e.ExportSpans(context.Background(), []*sdktrace.SpanData{testSpan("dropped")})
	require.Error(t, err)
	require.Equal(t, codes.Unavailable, status.Code(err))
}
