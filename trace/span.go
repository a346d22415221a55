// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package trace

import (
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
)

// recordingSpan is the mutable state behind a sampled or record-only
// span. All mutation is silently ignored once the span has ended.
type recordingSpan struct {
	embedded.Span

	tracer *tracer
	sc     trace.SpanContext
	parent trace.SpanContext

	mu        sync.Mutex
	name      string
	kind      trace.SpanKind
	startTime time.Time
	status    Status
	ended     bool

	attributes        []attribute.KeyValue
	droppedAttributes int

	events        []Event
	droppedEvents int

	links        []Link
	droppedLinks int
}

var _ trace.Span = (*recordingSpan)(nil)

func (s *recordingSpan) SpanContext() trace.SpanContext { return s.sc }

func (s *recordingSpan) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ended
}

func (s *recordingSpan) TracerProvider() trace.TracerProvider {
	return &TracerProvider{state: s.tracer.state}
}

func (s *recordingSpan) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.name = name
}

func (s *recordingSpan) SetStatus(code codes.Code, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	// Status may only be upgraded; Ok wins over Error and clears the
	// description.
	if code < s.status.Code {
		return
	}
	if code == codes.Error {
		s.status = Status{Code: code, Description: description}
		return
	}
	s.status = Status{Code: code}
}

func (s *recordingSpan) SetAttributes(kvs ...attribute.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	for _, kv := range kvs {
		s.addAttribute(kv)
	}
}

// addAttribute appends kv, keeping the first-seen items once the limit
// is reached. Callers must hold s.mu unless the span is still being
// constructed.
func (s *recordingSpan) addAttribute(kv attribute.KeyValue) {
	if !kv.Valid() {
		s.droppedAttributes++
		return
	}
	limit := s.tracer.state.spanLimits.AttributeCountLimit
	if limit >= 0 && len(s.attributes) >= limit {
		s.droppedAttributes++
		return
	}
	s.attributes = append(s.attributes, kv)
}

func (s *recordingSpan) AddEvent(name string, opts ...trace.EventOption) {
	cfg := trace.NewEventConfig(opts...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.addEvent(name, cfg.Timestamp(), cfg.Attributes())
}

func (s *recordingSpan) addEvent(name string, ts time.Time, attrs []attribute.KeyValue) {
	limits := s.tracer.state.spanLimits
	if limits.EventCountLimit >= 0 && len(s.events) >= limits.EventCountLimit {
		s.droppedEvents++
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	e := Event{Name: name, Time: ts}
	for _, kv := range attrs {
		if limits.AttributePerEventCountLimit >= 0 && len(e.Attributes) >= limits.AttributePerEventCountLimit {
			e.DroppedAttributes++
			continue
		}
		e.Attributes = append(e.Attributes, kv)
	}
	s.events = append(s.events, e)
}

func (s *recordingSpan) RecordError(err error, opts ...trace.EventOption) {
	if err == nil {
		return
	}
	cfg := trace.NewEventConfig(opts...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}

	attrs := append(cfg.Attributes(),
		semconv.ExceptionType(errorType(err)),
		semconv.ExceptionMessage(err.Error()),
	)
	s.addEvent(semconv.ExceptionEventName, cfg.Timestamp(), attrs)
}

func errorType(err error) string {
	t := reflect.TypeOf(err)
	if t == nil {
		return ""
	}
	return t.String()
}

func (s *recordingSpan) AddLink(link trace.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.addLink(link)
}

func (s *recordingSpan) addLink(link trace.Link) {
	if !link.SpanContext.IsValid() && len(link.Attributes) == 0 {
		return
	}
	limits := s.tracer.state.spanLimits
	if limits.LinkCountLimit >= 0 && len(s.links) >= limits.LinkCountLimit {
		s.droppedLinks++
		return
	}

	l := Link{SpanContext: link.SpanContext}
	for _, kv := range link.Attributes {
		if limits.AttributePerLinkCountLimit >= 0 && len(l.Attributes) >= limits.AttributePerLinkCountLimit {
			l.DroppedAttributes++
			continue
		}
		l.Attributes = append(l.Attributes, kv)
	}
	s.links = append(s.links, l)
}

// End snapshots the span into a SpanData and hands it to every
// registered processor in order. Only the first End has any effect.
func (s *recordingSpan) End(opts ...trace.SpanEndOption) {
	cfg := trace.NewSpanEndConfig(opts...)

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true

	endTime := cfg.Timestamp()
	if endTime.IsZero() {
		endTime = time.Now()
	}
	if endTime.Before(s.startTime) {
		endTime = s.startTime
	}

	sd := &SpanData{
		Name:                 s.name,
		SpanContext:          s.sc,
		Parent:               s.parent,
		SpanKind:             s.kind,
		StartTime:            s.startTime,
		EndTime:              endTime,
		Status:               s.status,
		Attributes:           s.attributes,
		Events:               s.events,
		Links:                s.links,
		DroppedAttributes:    s.droppedAttributes,
		DroppedEvents:        s.droppedEvents,
		DroppedLinks:         s.droppedLinks,
		Resource:             s.tracer.state.resource,
		InstrumentationScope: s.tracer.scope,
	}
	s.mu.Unlock()

	s.tracer.state.onEnd(sd)
}

// nonRecordingSpan propagates a span context without recording.
type nonRecordingSpan struct {
	embedded.Span

	tracer *tracer
	sc     trace.SpanContext
}

var _ trace.Span = nonRecordingSpan{}

func (s nonRecordingSpan) SpanContext() trace.SpanContext        { return s.sc }
func (nonRecordingSpan) IsRecording() bool                       { return false }
func (nonRecordingSpan) SetStatus(codes.Code, string)            {}
func (nonRecordingSpan) SetAttributes(...attribute.KeyValue)     {}
func (nonRecordingSpan) End(...trace.SpanEndOption)              {}
func (nonRecordingSpan) RecordError(error, ...trace.EventOption) {}
func (nonRecordingSpan) AddEvent(string, ...trace.EventOption)   {}
func (nonRecordingSpan) AddLink(trace.Link)                      {}
func (nonRecordingSpan) SetName(string)                          {}

func (s nonRecordingSpan) TracerProvider() trace.TracerProvider {
	return &TracerProvider{state: s.tracer.state}
}
