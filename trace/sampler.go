// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package trace

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SamplingDecision is the verdict of a Sampler.
type SamplingDecision int

const (
	// Drop discards the span. A non-recording span is still returned
	// so context keeps propagating.
	Drop SamplingDecision = iota
	// RecordOnly records the span locally without setting the sampled
	// trace flag.
	RecordOnly
	// RecordAndSample records the span and sets the sampled flag.
	RecordAndSample
)

// SamplingParameters is the input to a sampling decision.
type SamplingParameters struct {
	ParentContext context.Context
	TraceID       trace.TraceID
	Name          string
	Kind          trace.SpanKind
	Attributes    []attribute.KeyValue
	Links         []trace.Link
}

// SamplingResult carries the decision plus attributes and tracestate
// the sampler wants attached to the span.
type SamplingResult struct {
	Decision   SamplingDecision
	Attributes []attribute.KeyValue
	Tracestate trace.TraceState
}

// Sampler decides at span creation whether the span is recorded and
// sampled.
type Sampler interface {
	ShouldSample(parameters SamplingParameters) SamplingResult
	Description() string
}

type alwaysOnSampler struct{}

func (alwaysOnSampler) ShouldSample(p SamplingParameters) SamplingResult {
	return SamplingResult{
		Decision:   RecordAndSample,
		Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
	}
}

func (alwaysOnSampler) Description() string { return "AlwaysOnSampler" }

// AlwaysSample returns a Sampler that samples every span.
func AlwaysSample() Sampler { return alwaysOnSampler{} }

type alwaysOffSampler struct{}

func (alwaysOffSampler) ShouldSample(p SamplingParameters) SamplingResult {
	return SamplingResult{
		Decision:   Drop,
		Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
	}
}

func (alwaysOffSampler) Description() string { return "AlwaysOffSampler" }

// NeverSample returns a Sampler that drops every span.
func NeverSample() Sampler { return alwaysOffSampler{} }

type traceIDRatioSampler struct {
	fraction    float64
	upperBound  uint64
	description string
}

func (s traceIDRatioSampler) ShouldSample(p SamplingParameters) SamplingResult {
	psc := trace.SpanContextFromContext(p.ParentContext)
	// Deterministic on the trace id so every participant in the trace
	// reaches the same verdict.
	x := binary.BigEndian.Uint64(p.TraceID[8:16]) >> 1
	if x < s.upperBound {
		return SamplingResult{
			Decision:   RecordAndSample,
			Tracestate: psc.TraceState(),
		}
	}
	return SamplingResult{
		Decision:   Drop,
		Tracestate: psc.TraceState(),
	}
}

func (s traceIDRatioSampler) Description() string { return s.description }

// TraceIDRatioBased returns a Sampler sampling the given fraction of
// traces, decided deterministically from the trace id. Fractions at or
// above 1 always sample; at or below 0 never sample.
func TraceIDRatioBased(fraction float64) Sampler {
	if fraction >= 1 {
		return AlwaysSample()
	}
	if fraction <= 0 {
		fraction = 0
	}
	return traceIDRatioSampler{
		fraction:    fraction,
		upperBound:  uint64(fraction * (1 << 63)),
		description: fmt.Sprintf("TraceIDRatioBased{%g}", fraction),
	}
}

// ParentBasedSamplerOption overrides one of the non-root samplers of a
// parent based sampler.
type ParentBasedSamplerOption func(*parentBasedSampler)

// WithRemoteParentSampled sets the sampler used when the remote parent
// is sampled. Defaults to AlwaysSample.
func WithRemoteParentSampled(s Sampler) ParentBasedSamplerOption {
	return func(pb *parentBasedSampler) {
		pb.remoteParentSampled = s
	}
}

// WithRemoteParentNotSampled sets the sampler used when the remote
// parent is not sampled. Defaults to NeverSample.
func WithRemoteParentNotSampled(s Sampler) ParentBasedSamplerOption {
	return func(pb *parentBasedSampler) {
		pb.remoteParentNotSampled = s
	}
}

// WithLocalParentSampled sets the sampler used when the local parent
// is sampled. Defaults to AlwaysSample.
func WithLocalParentSampled(s Sampler) ParentBasedSamplerOption {
	return func(pb *parentBasedSampler) {
		pb.localParentSampled = s
	}
}

// WithLocalParentNotSampled sets the sampler used when the local
// parent is not sampled. Defaults to NeverSample.
func WithLocalParentNotSampled(s Sampler) ParentBasedSamplerOption {
	return func(pb *parentBasedSampler) {
		pb.localParentNotSampled = s
	}
}

type parentBasedSampler struct {
	root                   Sampler
	remoteParentSampled    Sampler
	remoteParentNotSampled Sampler
	localParentSampled     Sampler
	localParentNotSampled  Sampler
}

// ParentBased returns a Sampler that defers to the parent span's
// sampling verdict when a parent exists and consults root otherwise.
func ParentBased(root Sampler, opts ...ParentBasedSamplerOption) Sampler {
	if root == nil {
		root = AlwaysSample()
	}
	pb := &parentBasedSampler{
		root:                   root,
		remoteParentSampled:    AlwaysSample(),
		remoteParentNotSampled: NeverSample(),
		localParentSampled:     AlwaysSample(),
		localParentNotSampled:  NeverSample(),
	}
	for _, o := range opts {
		o(pb)
	}
	return pb
}

func (pb *parentBasedSampler) ShouldSample(p SamplingParameters) SamplingResult {
	psc := trace.SpanContextFromContext(p.ParentContext)
	if !psc.IsValid() {
		return pb.root.ShouldSample(p)
	}

	switch {
	case psc.IsRemote() && psc.IsSampled():
		return pb.remoteParentSampled.ShouldSample(p)
	case psc.IsRemote():
		return pb.remoteParentNotSampled.ShouldSample(p)
	case psc.IsSampled():
		return pb.localParentSampled.ShouldSample(p)
	default:
		return pb.localParentNotSampled.ShouldSample(p)
	}
}

func (pb *parentBasedSampler) Description() string {
	return fmt.Sprintf("ParentBased{root:%s}", pb.root.Description())
}
