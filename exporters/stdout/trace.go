// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stdout

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/instrumentation"
	sdktrace "github.com/z5labs/otelsdk/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TraceExporter writes each ended span as one JSON value.
type TraceExporter struct {
	mu  sync.Mutex
	enc *json.Encoder

	shutdown atomic.Bool
}

var _ sdktrace.SpanExporter = (*TraceExporter)(nil)

// NewTraceExporter returns a TraceExporter writing to os.Stdout unless
// redirected with WithWriter.
func NewTraceExporter(opts ...Option) *TraceExporter {
	return &TraceExporter{enc: newEncoder(opts)}
}

type spanView struct {
	Name              string
	SpanContext       trace.SpanContext
	Parent            trace.SpanContext
	SpanKind          string
	StartTime         time.Time
	EndTime           time.Time
	Status            sdktrace.Status
	Attributes        []attribute.KeyValue
	Events            []eventView           `json:",omitempty"`
	Links             []linkView            `json:",omitempty"`
	DroppedAttributes int                   `json:",omitempty"`
	DroppedEvents     int                   `json:",omitempty"`
	DroppedLinks      int                   `json:",omitempty"`
	Resource          []attribute.KeyValue  `json:",omitempty"`
	Scope             instrumentation.Scope `json:",omitempty"`
}

type eventView struct {
	Name       string
	Time       time.Time
	Attributes []attribute.KeyValue `json:",omitempty"`
}

type linkView struct {
	SpanContext trace.SpanContext
	Attributes  []attribute.KeyValue `json:",omitempty"`
}

// ExportSpans writes one JSON value per span.
func (e *TraceExporter) ExportSpans(_ context.Context, spans []*sdktrace.SpanData) error {
	if e.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sd := range spans {
		if sd == nil {
			continue
		}

		view := spanView{
			Name:              sd.Name,
			SpanContext:       sd.SpanContext,
			Parent:            sd.Parent,
			SpanKind:          sd.SpanKind.String(),
			StartTime:         sd.StartTime,
			EndTime:           sd.EndTime,
			Status:            sd.Status,
			Attributes:        sd.Attributes,
			DroppedAttributes: sd.DroppedAttributes,
			DroppedEvents:     sd.DroppedEvents,
			DroppedLinks:      sd.DroppedLinks,
			Resource:          sd.Resource.Attributes(),
			Scope:             sd.InstrumentationScope,
		}
		for _, ev := range sd.Events {
			view.Events = append(view.Events, eventView{
				Name:       ev.Name,
				Time:       ev.Time,
				Attributes: ev.Attributes,
			})
		}
		for _, l := range sd.Links {
			view.Links = append(view.Links, linkView{
				SpanContext: l.SpanContext,
				Attributes:  l.Attributes,
			})
		}

		if err := e.enc.Encode(view); err != nil {
			return err
		}
	}
	return nil
}

// ForceFlush is a no-op; every span is written as it is exported.
func (e *TraceExporter) ForceFlush(ctx context.Context) error {
	return ctx.Err()
}

// Shutdown stops the exporter. It is idempotent; later calls return
// otelsdk.ErrAlreadyShutdown.
func (e *TraceExporter) Shutdown(context.Context) error {
	if !e.shutdown.CompareAndSwap(false, true) {
		return otelsdk.ErrAlreadyShutdown
	}
	return nil
}
