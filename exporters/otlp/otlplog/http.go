// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlplog

import (
	"context"

	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/otlphttp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/otlpjson"
	"github.com/z5labs/otelsdk/internal/selflog"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"google.golang.org/protobuf/proto"
)

type httpClient struct {
	client *otlphttp.Client
}

func newHTTPClient(cfg otlp.Config) (*httpClient, error) {
	return &httpClient{client: otlphttp.NewClient(cfg)}, nil
}

func (c *httpClient) UploadLogs(ctx context.Context, rl []*logspb.ResourceLogs) error {
	req := &collogspb.ExportLogsServiceRequest{ResourceLogs: rl}

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

	var resp collogspb.ExportLogsServiceResponse
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

	if ps := resp.GetPartialSuccess(); ps != nil && (ps.GetRejectedLogRecords() != 0 || ps.GetErrorMessage() != "") {
		selflog.Warn("otlp endpoint rejected log records",
			"rejected", ps.GetRejectedLogRecords(), "message", ps.GetErrorMessage())
	}
	return nil
}

func (c *httpClient) Shutdown(ctx context.Context) error {
	return c.client.Stop(ctx)
}
