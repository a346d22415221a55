// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlplog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/exporters/otlp"
	sdklog "github.com/z5labs/otelsdk/log"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/proto"
)

type collectorHandler struct {
	mu       sync.Mutex
	requests []*collogspb.ExportLogsServiceRequest
}

func (h *collectorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req collogspb.ExportLogsServiceRequest
	if err := proto.Unmarshal(data, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.requests = append(h.requests, &req)
	w.WriteHeader(http.StatusOK)
}

func newHTTPExporter(t *testing.T, h http.Handler) *Exporter {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	e, err := New(context.Background(),
		otlp.WithProtocol(otlp.ProtocolHTTPProtobuf),
		otlp.WithEndpointURL(srv.URL+"/v1/logs"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown(context.Background()) })
	return e
}

func TestExporter_HTTPProtobuf(t *testing.T) {
	h := &collectorHandler{}
	e := newHTTPExporter(t, h)

	var r sdklog.Record
	r.SetSeverity(log.SeverityInfo)
	r.SetBody(log.StringValue("user signed in"))

	require.NoError(t, e.Export(context.Background(), []sdklog.Record{r}))

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.requests, 1)

	lr := h.requests[0].ResourceLogs[0].ScopeLogs[0].LogRecords[0]
	require.Equal(t, "user signed in", lr.Body.GetStringValue())
	require.Equal(t, int32(log.SeverityInfo), int32(lr.SeverityNumber))
}

func TestExporter_EmptyBatchSkipsUpload(t *testing.T) {
	h := &collectorHandler{}
	e := newHTTPExporter(t, h)

	require.NoError(t, e.Export(context.Background(), nil))

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Empty(t, h.requests)
}

func TestExporter_Shutdown(t *testing.T) {
	h := &collectorHandler{}
	e := newHTTPExporter(t, h)

	require.NoError(t, e.Shutdown(context.Background()))
	require.ErrorIs(t, e.Shutdown(context.Background()), otelsdk.ErrAlreadyShutdown)

	var r sdklog.Record
	r.SetBody(log.StringValue("late"))
	require.ErrorIs(t, e.Export(context.Background(), []sdklog.Record{r}), otelsdk.ErrAlreadyShutdown)
}
