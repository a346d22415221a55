// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otlp holds the transport-neutral configuration shared by the
// OTLP trace, metric and log exporters: endpoint resolution with the
// OTEL_EXPORTER_OTLP_* environment precedence, protocol and compression
// selection, headers, TLS and the optional retry policy.
package otlp

import (
	"crypto/tls"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/z5labs/otelsdk/internal/env"
)

// Protocol selects the OTLP transport.
type Protocol string

const (
	ProtocolGRPC         Protocol = "grpc"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
	ProtocolHTTPJSON     Protocol = "http/json"
)

// UnknownProtocolError is returned when a protocol setting is none of
// grpc, http/protobuf or http/json.
type UnknownProtocolError struct {
	Protocol string
}

func (e UnknownProtocolError) Error() string {
	return fmt.Sprintf("unknown otlp protocol: %q", e.Protocol)
}

// Compression selects the payload compression.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// UnknownCompressionError is returned when a compression setting is
// none of none, gzip or zstd.
type UnknownCompressionError struct {
	Compression string
}

func (e UnknownCompressionError) Error() string {
	return fmt.Sprintf("unknown otlp compression: %q", e.Compression)
}

// InvalidEndpointError is returned when an endpoint setting cannot be
// parsed as a URL.
type InvalidEndpointError struct {
	Endpoint string
	Err      error
}

func (e InvalidEndpointError) Error() string {
	return fmt.Sprintf("invalid otlp endpoint %q: %v", e.Endpoint, e.Err)
}

func (e InvalidEndpointError) Unwrap() error { return e.Err }

// Signal names the telemetry signal an exporter carries. It selects the
// per-signal environment variables and the default HTTP URL path.
type Signal string

const (
	SignalTraces  Signal = "traces"
	SignalMetrics Signal = "metrics"
	SignalLogs    Signal = "logs"
)

// envInfix returns the OTEL_EXPORTER_OTLP_<INFIX>_ fragment of the
// signal-specific variables.
func (s Signal) envInfix() string {
	return strings.ToUpper(string(s))
}

func (s Signal) urlPath() string {
	return "/v1/" + string(s)
}

// Default transport settings.
const (
	DefaultGRPCEndpoint = "localhost:4317"
	DefaultHTTPEndpoint = "localhost:4318"
	DefaultTimeout      = 10 * time.Second
)

// RetryConfig configures the optional export retry decorator. The zero
// value disables retries, the base design: a failed export is surfaced
// to the batch processor or reader that triggered it.
type RetryConfig struct {
	Enabled bool
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration
	// MaxElapsedTime caps the total time spent retrying one export.
	MaxElapsedTime time.Duration
}

// DefaultRetryConfig is the policy used when retries are enabled
// without explicit intervals.
var DefaultRetryConfig = RetryConfig{
	Enabled:         true,
	InitialInterval: 5 * time.Second,
	MaxInterval:     30 * time.Second,
	MaxElapsedTime:  time.Minute,
}

// Config is the resolved exporter configuration for one signal.
type Config struct {
	Signal   Signal
	Protocol Protocol

	// Endpoint is the host:port to connect to.
	Endpoint string
	// URLPath is the request path used by the HTTP transports.
	URLPath string
	// Insecure disables TLS.
	Insecure bool

	Headers     map[string]string
	Timeout     time.Duration
	Compression Compression
	TLSConfig   *tls.Config
	Retry       RetryConfig
}

type configOverrides struct {
	protocol    Protocol
	endpoint    string
	endpointURL string
	insecure    *bool
	headers     map[string]string
	timeout     time.Duration
	compression Compression
	tlsConfig   *tls.Config
	retry       *RetryConfig
}

// Option overrides a setting resolved from the environment.
type Option func(*configOverrides)

// WithProtocol sets the transport protocol.
func WithProtocol(p Protocol) Option {
	return func(o *configOverrides) {
		o.protocol = p
	}
}

// WithEndpoint sets the host:port to connect to, keeping the default
// URL path and TLS setting.
func WithEndpoint(endpoint string) Option {
	return func(o *configOverrides) {
		o.endpoint = endpoint
	}
}

// WithEndpointURL sets the full endpoint URL. The scheme selects TLS
// (http disables it) and, for the HTTP transports, the path replaces
// the default /v1/{signal}.
func WithEndpointURL(u string) Option {
	return func(o *configOverrides) {
		o.endpointURL = u
	}
}

// WithInsecure disables TLS.
func WithInsecure() Option {
	return func(o *configOverrides) {
		insecure := true
		o.insecure = &insecure
	}
}

// WithHeaders adds headers (gRPC metadata) to every export request,
// merged over any headers from the environment.
func WithHeaders(headers map[string]string) Option {
	return func(o *configOverrides) {
		if o.headers == nil {
			o.headers = make(map[string]string, len(headers))
		}
		maps.Copy(o.headers, headers)
	}
}

// WithTimeout bounds a single export call.
func WithTimeout(d time.Duration) Option {
	return func(o *configOverrides) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithCompression sets the payload compression.
func WithCompression(c Compression) Option {
	return func(o *configOverrides) {
		o.compression = c
	}
}

// WithTLSConfig sets the TLS configuration used when the endpoint is
// not insecure.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *configOverrides) {
		o.tlsConfig = cfg
	}
}

// WithRetry enables the retry decorator with the given policy.
func WithRetry(rc RetryConfig) Option {
	return func(o *configOverrides) {
		o.retry = &rc
	}
}

// NewConfig resolves the configuration for signal: programmatic options
// first, then the signal-specific environment variables, then the
// generic ones, then the built-in defaults.
func NewConfig(signal Signal, opts ...Option) (Config, error) {
	var o configOverrides
	for _, opt := range opts {
		opt(&o)
	}

	infix := signal.envInfix()

	cfg := Config{
		Signal:  signal,
		Timeout: DefaultTimeout,
	}

	proto := string(o.protocol)
	if proto == "" {
		proto = env.StringOr(string(ProtocolGRPC),
			"OTEL_EXPORTER_OTLP_"+infix+"_PROTOCOL",
			"OTEL_EXPORTER_OTLP_PROTOCOL",
		)
	}
	switch Protocol(proto) {
	case ProtocolGRPC, ProtocolHTTPProtobuf, ProtocolHTTPJSON:
		cfg.Protocol = Protocol(proto)
	default:
		return Config{}, UnknownProtocolError{Protocol: proto}
	}

	if err := resolveEndpoint(&cfg, &o, infix); err != nil {
		return Config{}, err
	}

	cfg.Headers = resolveHeaders(&o, infix)

	cfg.Timeout = env.DurationMillisOr(cfg.Timeout,
		"OTEL_EXPORTER_OTLP_"+infix+"_TIMEOUT",
		"OTEL_EXPORTER_OTLP_TIMEOUT",
	)
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}

	compression := string(o.compression)
	if compression == "" {
		compression = env.StringOr(string(CompressionNone),
			"OTEL_EXPORTER_OTLP_"+infix+"_COMPRESSION",
			"OTEL_EXPORTER_OTLP_COMPRESSION",
		)
	}
	switch Compression(compression) {
	case CompressionNone, CompressionGzip, CompressionZstd:
		cfg.Compression = Compression(compression)
	default:
		return Config{}, UnknownCompressionError{Compression: compression}
	}

	cfg.TLSConfig = o.tlsConfig
	if o.retry != nil {
		cfg.Retry = *o.retry
	}
	return cfg, nil
}

// resolveEndpoint fills Endpoint, URLPath and Insecure. A bare
// WithEndpoint keeps the default path; endpoint URLs (programmatic or
// env) carry scheme and, on the signal-specific forms, an explicit
// path. The generic env endpoint is a base URL the signal path is
// appended to.
func resolveEndpoint(cfg *Config, o *configOverrides, infix string) error {
	defaultPath := cfg.Signal.urlPath()

	if o.endpoint != "" {
		cfg.Endpoint = o.endpoint
		cfg.URLPath = defaultPath
		cfg.Insecure = o.insecure != nil && *o.insecure
		return nil
	}

	if o.endpointURL != "" {
		return applyEndpointURL(cfg, o, o.endpointURL, defaultPath, false)
	}

	if raw, ok := env.String("OTEL_EXPORTER_OTLP_" + infix + "_ENDPOINT"); ok {
		return applyEndpointURL(cfg, o, raw, defaultPath, false)
	}
	if raw, ok := env.String("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
		// The generic endpoint is a base URL; the signal path is
		// appended for the HTTP transports.
		return applyEndpointURL(cfg, o, raw, defaultPath, true)
	}

	if cfg.Protocol == ProtocolGRPC {
		cfg.Endpoint = DefaultGRPCEndpoint
	} else {
		cfg.Endpoint = DefaultHTTPEndpoint
	}
	cfg.URLPath = defaultPath
	cfg.Insecure = true
	if o.insecure != nil {
		cfg.Insecure = *o.insecure
	}
	return nil
}

func applyEndpointURL(cfg *Config, o *configOverrides, raw, defaultPath string, appendPath bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return InvalidEndpointError{Endpoint: raw, Err: err}
	}
	if u.Host == "" {
		return InvalidEndpointError{Endpoint: raw, Err: fmt.Errorf("missing host")}
	}

	cfg.Endpoint = u.Host
	cfg.Insecure = u.Scheme == "http"
	if o.insecure != nil {
		cfg.Insecure = *o.insecure
	}

	path := u.Path
	if appendPath {
		path = strings.TrimSuffix(path, "/") + defaultPath
	} else if path == "" || path == "/" {
		path = defaultPath
	}
	cfg.URLPath = path
	return nil
}

func resolveHeaders(o *configOverrides, infix string) map[string]string {
	headers := make(map[string]string)
	if raw, ok := env.String("OTEL_EXPORTER_OTLP_HEADERS"); ok {
		maps.Copy(headers, env.Headers(raw))
	}
	if raw, ok := env.String("OTEL_EXPORTER_OTLP_" + infix + "_HEADERS"); ok {
		maps.Copy(headers, env.Headers(raw))
	}
	maps.Copy(headers, o.headers)
	return headers
}
