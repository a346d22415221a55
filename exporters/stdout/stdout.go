// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package stdout provides debugging exporters which write each exported
// batch as JSON lines. They are meant for local development and tests,
// not for production telemetry.
package stdout

import (
	"encoding/json"
	"io"
	"os"
)

type config struct {
	w      io.Writer
	pretty bool
}

// Option configures the stdout exporters.
type Option func(*config)

// WithWriter redirects output away from os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.w = w
	}
}

// WithPrettyPrint indents the emitted JSON for human consumption.
func WithPrettyPrint() Option {
	return func(c *config) {
		c.pretty = true
	}
}

func newEncoder(opts []Option) *json.Encoder {
	cfg := config{w: os.Stdout}
	for _, o := range opts {
		o(&cfg)
	}

	enc := json.NewEncoder(cfg.w)
	if cfg.pretty {
		enc.SetIndent("", "\t")
	}
	return enc
}
