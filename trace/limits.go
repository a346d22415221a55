// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package trace

import "github.com/z5labs/otelsdk/internal/env"

// SpanLimits bound the number of attributes, events and links a single
// span retains. When a limit is reached the span keeps the first
// recorded items and counts the rest as dropped.
type SpanLimits struct {
	// AttributeCountLimit is the maximum number of attributes per span.
	AttributeCountLimit int
	// EventCountLimit is the maximum number of events per span.
	EventCountLimit int
	// LinkCountLimit is the maximum number of links per span.
	LinkCountLimit int
	// AttributePerEventCountLimit is the maximum number of attributes
	// per event.
	AttributePerEventCountLimit int
	// AttributePerLinkCountLimit is the maximum number of attributes
	// per link.
	AttributePerLinkCountLimit int
}

// NewSpanLimits returns the default limits (128 everywhere), with the
// OTEL_SPAN_ATTRIBUTE_COUNT_LIMIT, OTEL_SPAN_EVENT_COUNT_LIMIT and
// OTEL_SPAN_LINK_COUNT_LIMIT environment variables applied.
func NewSpanLimits() SpanLimits {
	return SpanLimits{
		AttributeCountLimit:         env.IntOr(128, "OTEL_SPAN_ATTRIBUTE_COUNT_LIMIT"),
		EventCountLimit:             env.IntOr(128, "OTEL_SPAN_EVENT_COUNT_LIMIT"),
		LinkCountLimit:              env.IntOr(128, "OTEL_SPAN_LINK_COUNT_LIMIT"),
		AttributePerEventCountLimit: env.IntOr(128, "OTEL_EVENT_ATTRIBUTE_COUNT_LIMIT"),
		AttributePerLinkCountLimit:  env.IntOr(128, "OTEL_LINK_ATTRIBUTE_COUNT_LIMIT"),
	}
}
