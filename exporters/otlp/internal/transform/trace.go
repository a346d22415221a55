// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transform

import (
	"time"

	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/resource"
	sdktrace "github.com/z5labs/otelsdk/trace"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

// Spans transforms span snapshots into OTLP ResourceSpans, grouped
// first by resource, then by instrumentation scope.
func Spans(sds []*sdktrace.SpanData) []*tracepb.ResourceSpans {
	if len(sds) == 0 {
		return nil
	}

	type scopeKey struct {
		res   *resource.Resource
		scope instrumentation.Scope
	}

	var out []*tracepb.ResourceSpans
	byResource := make(map[*resource.Resource]*tracepb.ResourceSpans)
	byScope := make(map[scopeKey]*tracepb.ScopeSpans)

	for _, sd := range sds {
		if sd == nil {
			continue
		}

		rs, ok := byResource[sd.Resource]
		if !ok {
			rs = &tracepb.ResourceSpans{
				Resource:  Resource(sd.Resource),
				SchemaUrl: resourceSchemaURL(sd.Resource),
			}
			byResource[sd.Resource] = rs
			out = append(out, rs)
		}

		key := scopeKey{res: sd.Resource, scope: sd.InstrumentationScope}
		ss, ok := byScope[key]
		if !ok {
			ss = &tracepb.ScopeSpans{
				Scope:     Scope(sd.InstrumentationScope),
				SchemaUrl: sd.InstrumentationScope.SchemaURL,
			}
			byScope[key] = ss
			rs.ScopeSpans = append(rs.ScopeSpans, ss)
		}

		ss.Spans = append(ss.Spans, span(sd))
	}
	return out
}

func span(sd *sdktrace.SpanData) *tracepb.Span {
	tid := sd.SpanContext.TraceID()
	sid := sd.SpanContext.SpanID()

	s := &tracepb.Span{
		TraceId:                tid[:],
		SpanId:                 sid[:],
		TraceState:             sd.SpanContext.TraceState().String(),
		Name:                   sd.Name,
		Kind:                   spanKind(sd.SpanKind),
		StartTimeUnixNano:      timeUnixNano(sd.StartTime),
		EndTimeUnixNano:        timeUnixNano(sd.EndTime),
		Attributes:             KeyValues(sd.Attributes),
		DroppedAttributesCount: clampUint32(sd.DroppedAttributes),
		Events:                 spanEvents(sd.Events),
		DroppedEventsCount:     clampUint32(sd.DroppedEvents),
		Links:                  spanLinks(sd.Links),
		DroppedLinksCount:      clampUint32(sd.DroppedLinks),
		Status: &tracepb.Status{
			Code:    statusCode(sd.Status.Code),
			Message: sd.Status.Description,
		},
	}
	if sd.Parent.HasSpanID() {
		pid := sd.Parent.SpanID()
		s.ParentSpanId = pid[:]
	}
	return s
}

func spanEvents(events []sdktrace.Event) []*tracepb.Span_Event {
	if len(events) == 0 {
		return nil
	}

	out := make([]*tracepb.Span_Event, 0, len(events))
	for _, e := range events {
		out = append(out, &tracepb.Span_Event{
			Name:                   e.Name,
			TimeUnixNano:           timeUnixNano(e.Time),
			Attributes:             KeyValues(e.Attributes),
			DroppedAttributesCount: clampUint32(e.DroppedAttributes),
		})
	}
	return out
}

func spanLinks(links []sdktrace.Link) []*tracepb.Span_Link {
	if len(links) == 0 {
		return nil
	}

	out := make([]*tracepb.Span_Link, 0, len(links))
	for _, l := range links {
		tid := l.SpanContext.TraceID()
		sid := l.SpanContext.SpanID()
		out = append(out, &tracepb.Span_Link{
			TraceId:                tid[:],
			SpanId:                 sid[:],
			TraceState:             l.SpanContext.TraceState().String(),
			Attributes:             KeyValues(l.Attributes),
			DroppedAttributesCount: clampUint32(l.DroppedAttributes),
		})
	}
	return out
}

func spanKind(k trace.SpanKind) tracepb.Span_SpanKind {
	switch k {
	case trace.SpanKindInternal:
		return tracepb.Span_SPAN_KIND_INTERNAL
	case trace.SpanKindServer:
		return tracepb.Span_SPAN_KIND_SERVER
	case trace.SpanKindClient:
		return tracepb.Span_SPAN_KIND_CLIENT
	case trace.SpanKindProducer:
		return tracepb.Span_SPAN_KIND_PRODUCER
	case trace.SpanKindConsumer:
		return tracepb.Span_SPAN_KIND_CONSUMER
	default:
		return tracepb.Span_SPAN_KIND_UNSPECIFIED
	}
}

func statusCode(c codes.Code) tracepb.Status_StatusCode {
	switch c {
	case codes.Ok:
		return tracepb.Status_STATUS_CODE_OK
	case codes.Error:
		return tracepb.Status_STATUS_CODE_ERROR
	default:
		return tracepb.Status_STATUS_CODE_UNSET
	}
}

// timeUnixNano returns t as nanoseconds since the epoch, with the zero
// time mapping to zero.
func timeUnixNano(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	n := t.UnixNano()
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func clampUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}
