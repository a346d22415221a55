// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/internal/env"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// Detector discovers resource attributes from the environment the
// process runs in.
type Detector interface {
	Detect(context.Context) (*Resource, error)
}

// Detect runs every detector in order and merges the results. Later
// detectors override earlier ones. Detector errors are joined and
// returned alongside the merged resource built from the detectors
// that succeeded.
func Detect(ctx context.Context, detectors ...Detector) (*Resource, error) {
	r := Empty()
	var errs []error
	for _, d := range detectors {
		if d == nil {
			continue
		}
		detected, err := d.Detect(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r = Merge(r, detected)
	}
	return r, errors.Join(errs...)
}

// Default returns the resource every provider starts from: the
// telemetry.sdk.* identity, the OTEL_SERVICE_NAME /
// OTEL_RESOURCE_ATTRIBUTES environment entries, and a fallback
// service.name derived from the executable.
func Default() *Resource {
	r, _ := Detect(
		context.Background(),
		TelemetrySDK(),
		fallbackServiceName{},
		FromEnv(),
	)
	return r
}

type detectorFunc func(context.Context) (*Resource, error)

func (f detectorFunc) Detect(ctx context.Context) (*Resource, error) {
	return f(ctx)
}

// StringDetector returns a Detector producing a single attribute whose
// value comes from f.
func StringDetector(schemaURL string, k attribute.Key, f func() (string, error)) Detector {
	return detectorFunc(func(context.Context) (*Resource, error) {
		v, err := f()
		if err != nil {
			return nil, err
		}
		return NewWithAttributes(schemaURL, k.String(v)), nil
	})
}

// TelemetrySDK returns a Detector reporting the SDK's own identity.
func TelemetrySDK() Detector {
	return detectorFunc(func(context.Context) (*Resource, error) {
		return NewWithAttributes(
			semconv.SchemaURL,
			semconv.TelemetrySDKName("otelsdk"),
			semconv.TelemetrySDKLanguageGo,
			semconv.TelemetrySDKVersion(otelsdk.Version),
		), nil
	})
}

// Host returns a Detector reporting the hostname.
func Host() Detector {
	return StringDetector(semconv.SchemaURL, semconv.HostNameKey, os.Hostname)
}

// ServiceName returns a Detector reporting name as service.name.
func ServiceName(name string) Detector {
	return StringDetector(semconv.SchemaURL, semconv.ServiceNameKey, func() (string, error) {
		return name, nil
	})
}

// ServiceVersion returns a Detector reporting version as
// service.version.
func ServiceVersion(version string) Detector {
	return StringDetector(semconv.SchemaURL, semconv.ServiceVersionKey, func() (string, error) {
		return version, nil
	})
}

// FromEnv returns a Detector reading OTEL_RESOURCE_ATTRIBUTES
// (comma separated key=value pairs, values URL-decoded) and
// OTEL_SERVICE_NAME. OTEL_SERVICE_NAME takes precedence over a
// service.name entry in OTEL_RESOURCE_ATTRIBUTES.
func FromEnv() Detector {
	return detectorFunc(func(context.Context) (*Resource, error) {
		var attrs []attribute.KeyValue
		if raw, ok := env.String("OTEL_RESOURCE_ATTRIBUTES"); ok {
			for k, v := range env.Headers(raw) {
				attrs = append(attrs, attribute.String(k, v))
			}
		}
		if name, ok := env.String("OTEL_SERVICE_NAME"); ok {
			attrs = append(attrs, semconv.ServiceName(name))
		}
		if len(attrs) == 0 {
			return Empty(), nil
		}
		return NewWithAttributes("", attrs...), nil
	})
}

type fallbackServiceName struct{}

func (fallbackServiceName) Detect(context.Context) (*Resource, error) {
	name := "unknown_service:go"
	if executable, err := os.Executable(); err == nil {
		name = "unknown_service:" + filepath.Base(executable)
	}
	return NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(name)), nil
}
