// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlpmetric

import (
	"context"

	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/otlphttp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/otlpjson"
	"github.com/z5labs/otelsdk/internal/selflog"

	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	"google.golang.org/protobuf/proto"
)

type httpClient struct {
	client *otlphttp.Client
}

func newHTTPClient(cfg otlp.Config) (*httpClient, error) {
	return &httpClient{client: otlphttp.NewClient(cfg)}, nil
}

func (c *httpClient) UploadMetrics(ctx context.Context, rm *metricspb.ResourceMetrics) error {
	req := &colmetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{rm},
	}

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

	var resp colmetricspb.ExportMetricsServiceResponse
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

	if ps := resp.GetPartialSuccess(); ps != nil && (ps.GetRejectedDataPoints() != 0 || ps.GetErrorMessage() != "") {
		selflog.Warn("otlp endpoint rejected metric data points",
			"rejected", ps.GetRejectedDataPoints(), "message", ps.GetErrorMessage())
	}
	return nil
}

func (c *httpClient) Shutdown(ctx context.Context) error {
	return c.client.Stop(ctx)
}
