// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlptrace

import (
	"context"

	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/otlphttp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/otlpjson"
	"github.com/z5labs/otelsdk/internal/selflog"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

type httpClient struct {
	client *otlphttp.Client
}

func newHTTPClient(cfg otlp.Config) (*httpClient, error) {
	return &httpClient{client: otlphttp.NewClient(cfg)}, nil
}

func (c *httpClient) UploadTraces(ctx context.Context, rs []*tracepb.ResourceSpans) error {
	req := &coltracepb.ExportTraceServiceRequest{ResourceSpans: rs}

	var body []byte
	var err error
	if c.client.ContentType() == otlphttp.ContentTypeJSON {
		body, err = otlpjson.Marshal(req)
	} else {
		body, err = proto.Marshal(req)
	}
	if err != nil {
		return err
	}

	respBody, respContentType, err := c.client.Do(ctx, body)
	if err != nil {
		return err
	}
	if len(respBody) == 0 {
		return nil
	}

	var resp coltracepb.ExportTraceServiceResponse
	switch respContentType {
	case otlphttp.ContentTypeProto:
		err = proto.Unmarshal(respBody, &resp)
	case otlphttp.ContentTypeJSON:
		err = otlpjson.Unmarshal(respBody, &resp)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	if ps := resp.GetPartialSuccess(); ps != nil && (ps.GetRejectedSpans() != 0 || ps.GetErrorMessage() != "") {
		selflog.Warn("otlp endpoint rejected spans",
			"rejected", ps.GetRejectedSpans(), "message", ps.GetErrorMessage())
	}
	return nil
}

func (c *httpClient) Shutdown(ctx context.Context) error {
	return c.client.Stop(ctx)
}
