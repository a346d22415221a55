// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package trace

import (
	"context"
	crand "crypto/rand"

	"go.opentelemetry.io/otel/trace"
)

// IDGenerator produces trace and span ids for new spans.
type IDGenerator interface {
	// NewIDs returns ids for a new root span.
	NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID)
	// NewSpanID returns a span id for a child span of traceID.
	NewSpanID(ctx context.Context, traceID trace.TraceID) trace.SpanID
}

// randomIDGenerator draws non-zero ids from crypto/rand.
type randomIDGenerator struct{}

func defaultIDGenerator() IDGenerator {
	return randomIDGenerator{}
}

func (randomIDGenerator) NewIDs(context.Context) (trace.TraceID, trace.SpanID) {
	var tid trace.TraceID
	for !tid.IsValid() {
		_, _ = crand.Read(tid[:])
	}
	var sid trace.SpanID
	for !sid.IsValid() {
		_, _ = crand.Read(sid[:])
	}
	return tid, sid
}

func (randomIDGenerator) NewSpanID(context.Context, trace.TraceID) trace.SpanID {
	var sid trace.SpanID
	for !sid.IsValid() {
		_, _ = crand.Read(sid[:])
	}
	return sid
}
