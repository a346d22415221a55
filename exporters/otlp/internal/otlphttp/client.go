// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otlphttp implements the HTTP transport shared by the OTLP
// exporters: request construction, gzip/zstd body compression, the
// retryable-status classification and Retry-After handling.
package otlphttp

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/exporters/otlp"
	"github.com/z5labs/otelsdk/exporters/otlp/internal/retry"

	"github.com/klauspost/compress/zstd"
)

// ContentTypeProto and ContentTypeJSON are the OTLP/HTTP payload
// content types.
const (
	ContentTypeProto = "application/x-protobuf"
	ContentTypeJSON  = "application/json"
)

var gzPool = sync.Pool{
	New: func() any {
		return gzip.NewWriter(io.Discard)
	},
}

// zstdEncoder is the process-wide stateless zstd encoder; EncodeAll on
// a nil-writer encoder is safe for concurrent use.
var zstdEncoder, _ = zstd.NewWriter(nil)

// transport mirrors http.DefaultTransport so a replaced or mutated
// default cannot affect export traffic.
var transport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// Client posts OTLP payloads for a single signal.
type Client struct {
	cfg         otlp.Config
	contentType string
	client      *http.Client
	requestFunc retry.RequestFunc

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewClient returns a Client posting payloads of cfg's signal to
// cfg.Endpoint. The content type follows cfg.Protocol.
func NewClient(cfg otlp.Config) *Client {
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	if cfg.TLSConfig != nil {
		cloned := transport.Clone()
		cloned.TLSClientConfig = cfg.TLSConfig
		httpClient.Transport = cloned
	}

	contentType := ContentTypeProto
	if cfg.Protocol == otlp.ProtocolHTTPJSON {
		contentType = ContentTypeJSON
	}

	rc := retry.Config{
		Enabled:         cfg.Retry.Enabled,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
	}

	return &Client{
		cfg:         cfg,
		contentType: contentType,
		client:      httpClient,
		requestFunc: rc.RequestFunc(evaluate),
		stopCh:      make(chan struct{}),
	}
}

// ContentType returns the content type requests carry.
func (c *Client) ContentType() string { return c.contentType }

// Do posts body and returns the response payload and its content type
// for partial-success inspection. Retryable failures are retried per
// the configured policy before being returned.
func (c *Client) Do(ctx context.Context, body []byte) ([]byte, string, error) {
	select {
	case <-c.stopCh:
		return nil, "", otelsdk.ErrAlreadyShutdown
	default:
	}

	ctx, cancel := c.contextWithStop(ctx)
	defer cancel()

	req, err := c.newRequest(body)
	if err != nil {
		return nil, "", err
	}

	var respBody []byte
	var respContentType string
	err = c.requestFunc(ctx, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		req.reset(ctx)
		resp, err := c.client.Do(req.Request)
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Temporary() {
			return newResponseError(http.Header{})
		}
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch sc := resp.StatusCode; {
		case sc >= 200 && sc <= 299:
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, resp.Body); err != nil {
				return err
			}
			respBody = buf.Bytes()
			respContentType = resp.Header.Get("Content-Type")
			return nil
		case sc == http.StatusTooManyRequests,
			sc == http.StatusBadGateway,
			sc == http.StatusServiceUnavailable,
			sc == http.StatusGatewayTimeout:
			// Drain the body to reuse the connection.
			_, _ = io.Copy(io.Discard, resp.Body)
			return newResponseError(resp.Header)
		default:
			return fmt.Errorf("export to %s failed: %s", req.URL, resp.Status)
		}
	})
	if err != nil {
		return nil, "", err
	}
	return respBody, respContentType, nil
}

// Stop interrupts in-flight requests and rejects new ones.
func (c *Client) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	return ctx.Err()
}

func (c *Client) newRequest(body []byte) (request, error) {
	u := url.URL{Scheme: c.scheme(), Host: c.cfg.Endpoint, Path: c.cfg.URLPath}
	r, err := http.NewRequest(http.MethodPost, u.String(), nil)
	if err != nil {
		return request{}, err
	}

	r.Header.Set("User-Agent", "otelsdk-otlp/"+otelsdk.Version)
	for k, v := range c.cfg.Headers {
		r.Header.Set(k, v)
	}
	r.Header.Set("Content-Type", c.contentType)

	req := request{Request: r}
	switch c.cfg.Compression {
	case otlp.CompressionGzip:
		r.ContentLength = -1
		r.Header.Set("Content-Encoding", "gzip")

		gz := gzPool.Get().(*gzip.Writer)
		defer gzPool.Put(gz)

		var buf bytes.Buffer
		gz.Reset(&buf)
		if _, err := gz.Write(body); err != nil {
			return req, err
		}
		if err := gz.Close(); err != nil {
			return req, err
		}
		req.bodyReader = bodyReader(buf.Bytes())
	case otlp.CompressionZstd:
		r.ContentLength = -1
		r.Header.Set("Content-Encoding", "zstd")
		req.bodyReader = bodyReader(zstdEncoder.EncodeAll(body, nil))
	default:
		r.ContentLength = int64(len(body))
		req.bodyReader = bodyReader(body)
	}
	return req, nil
}

func (c *Client) scheme() string {
	if c.cfg.Insecure {
		return "http"
	}
	return "https"
}

func (c *Client) contextWithStop(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-ctx.Done():
		case <-c.stopCh:
			cancel()
		}
	}()
	return ctx, cancel
}

func bodyReader(buf []byte) func() io.ReadCloser {
	return func() io.ReadCloser {
		return io.NopCloser(bytes.NewReader(buf))
	}
}

// request wraps an http.Request with a resettable body so the same
// payload serves every retry attempt.
type request struct {
	*http.Request

	bodyReader func() io.ReadCloser
}

func (r *request) reset(ctx context.Context) {
	r.Body = r.bodyReader()
	r.Request = r.Request.WithContext(ctx)
}

// retryableError is a transient transport failure, optionally carrying
// a server-imposed Retry-After delay in seconds.
type retryableError struct {
	throttle int64
}

func newResponseError(header http.Header) error {
	var rErr retryableError
	if s, ok := header["Retry-After"]; ok {
		if t, err := strconv.ParseInt(s[0], 10, 64); err == nil {
			rErr.throttle = t
		}
	}
	return rErr
}

func (e retryableError) Error() string {
	return "retry-able request failure"
}

func evaluate(err error) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}
	rErr, ok := err.(retryableError)
	if !ok {
		return false, 0
	}
	return true, time.Duration(rErr.throttle) * time.Second
}
