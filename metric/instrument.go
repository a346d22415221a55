// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metric

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/internal/suppress"
	"github.com/z5labs/otelsdk/metric/internal/aggregate"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
)

var (
	// ErrInstrumentName is returned when an instrument is created with
	// an invalid name. The returned instrument is a no-op.
	ErrInstrumentName = errors.New("invalid instrument name")

	// ErrConfiguration is returned when a provider, view or aggregation
	// is built with invalid settings.
	ErrConfiguration = errors.New("invalid configuration")
)

// InstrumentKind is the identifier of a group of instruments that all
// perform the same function.
type InstrumentKind uint8

const (
	// instrumentKindUndefined is an undefined instrument kind.
	instrumentKindUndefined InstrumentKind = iota
	// InstrumentKindCounter identifies a group of instruments that
	// record increasing values synchronously with the code path they
	// are measuring.
	InstrumentKindCounter
	// InstrumentKindUpDownCounter identifies a group of instruments
	// that record increasing and decreasing values synchronously.
	InstrumentKindUpDownCounter
	// InstrumentKindHistogram identifies a group of instruments that
	// record a distribution of values synchronously.
	InstrumentKindHistogram
	// InstrumentKindObservableCounter identifies a group of instruments
	// that record increasing values in an asynchronous callback.
	InstrumentKindObservableCounter
	// InstrumentKindObservableUpDownCounter identifies a group of
	// instruments that record increasing and decreasing values in an
	// asynchronous callback.
	InstrumentKindObservableUpDownCounter
	// InstrumentKindObservableGauge identifies a group of instruments
	// that record current values in an asynchronous callback.
	InstrumentKindObservableGauge
	// InstrumentKindGauge identifies a group of instruments that record
	// instantaneous values synchronously.
	InstrumentKindGauge
)

func (k InstrumentKind) String() string {
	switch k {
	case InstrumentKindCounter:
		return "Counter"
	case InstrumentKindUpDownCounter:
		return "UpDownCounter"
	case InstrumentKindHistogram:
		return "Histogram"
	case InstrumentKindObservableCounter:
		return "ObservableCounter"
	case InstrumentKindObservableUpDownCounter:
		return "ObservableUpDownCounter"
	case InstrumentKindObservableGauge:
		return "ObservableGauge"
	case InstrumentKindGauge:
		return "Gauge"
	default:
		return "undefined"
	}
}

// Instrument describes properties an instrument is created with. It is
// used both as the descriptor of created instruments and as the match
// criteria of a View.
type Instrument struct {
	Name        string
	Description string
	Unit        string
	Kind        InstrumentKind
	Scope       instrumentation.Scope
}

// Stream describes the stream of data an instrument produces. Views
// return a Stream to transform the instrument they matched.
type Stream struct {
	Name        string
	Description string
	Unit        string
	// Aggregation the stream uses for an instrument. A nil or
	// AggregationDefault value keeps the kind's default.
	Aggregation Aggregation
	// AttributeFilter drops attributes from measurements before
	// aggregation. Measurements with formerly distinct attribute sets
	// merge after projection.
	AttributeFilter attribute.Filter
	// CardinalityLimit caps the number of distinct attribute sets
	// aggregated for the stream. Zero keeps the default limit,
	// a negative value removes the limit.
	CardinalityLimit int
}

// instrument names: 1-255 chars, alphabetic first char, then
// alphanumerics, '_', '.', '/' and '-'.
var instrumentNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_./-]{0,254}$`)

func validateInstrumentName(name string) error {
	if instrumentNameRe.MatchString(name) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInstrumentName, name)
}

// int64Inst is the storage backing every synchronous int64 instrument.
// An instrument with no resolved aggregate functions is a no-op.
type int64Inst struct {
	embedded.Int64Counter
	embedded.Int64UpDownCounter
	embedded.Int64Histogram
	embedded.Int64Gauge

	measures []aggregate.Measure[int64]
}

var (
	_ metric.Int64Counter       = (*int64Inst)(nil)
	_ metric.Int64UpDownCounter = (*int64Inst)(nil)
	_ metric.Int64Histogram     = (*int64Inst)(nil)
	_ metric.Int64Gauge         = (*int64Inst)(nil)
)

func (i *int64Inst) Add(ctx context.Context, val int64, opts ...metric.AddOption) {
	c := metric.NewAddConfig(opts)
	i.aggregate(ctx, val, c.Attributes())
}

func (i *int64Inst) Record(ctx context.Context, val int64, opts ...metric.RecordOption) {
	c := metric.NewRecordConfig(opts)
	i.aggregate(ctx, val, c.Attributes())
}

func (i *int64Inst) aggregate(ctx context.Context, val int64, s attribute.Set) {
	if suppress.IsSuppressed(ctx) {
		return
	}
	for _, in := range i.measures {
		in(ctx, val, s)
	}
}

// float64Inst is the storage backing every synchronous float64
// instrument.
type float64Inst struct {
	embedded.Float64Counter
	embedded.Float64UpDownCounter
	embedded.Float64Histogram
	embedded.Float64Gauge

	measures []aggregate.Measure[float64]
}

var (
	_ metric.Float64Counter       = (*float64Inst)(nil)
	_ metric.Float64UpDownCounter = (*float64Inst)(nil)
	_ metric.Float64Histogram     = (*float64Inst)(nil)
	_ metric.Float64Gauge         = (*float64Inst)(nil)
)

func (i *float64Inst) Add(ctx context.Context, val float64, opts ...metric.AddOption) {
	c := metric.NewAddConfig(opts)
	i.aggregate(ctx, val, c.Attributes())
}

func (i *float64Inst) Record(ctx context.Context, val float64, opts ...metric.RecordOption) {
	c := metric.NewRecordConfig(opts)
	i.aggregate(ctx, val, c.Attributes())
}

func (i *float64Inst) aggregate(ctx context.Context, val float64, s attribute.Set) {
	if suppress.IsSuppressed(ctx) {
		return
	}
	for _, in := range i.measures {
		in(ctx, val, s)
	}
}

// observableValue is the storage backing observable instruments.
// Callbacks report observations through it at collection time.
type observableValue[N int64 | float64] struct {
	meter    *meter
	measures []aggregate.Measure[N]
}

func (o *observableValue[N]) observe(ctx context.Context, val N, s attribute.Set) {
	for _, in := range o.measures {
		in(ctx, val, s)
	}
}

func (o *observableValue[N]) hasMeasures() bool { return len(o.measures) > 0 }

// int64Observable is every asynchronous int64 instrument.
type int64Observable struct {
	embedded.Int64ObservableCounter
	embedded.Int64ObservableUpDownCounter
	embedded.Int64ObservableGauge
	metric.Int64Observable

	*observableValue[int64]
}

var (
	_ metric.Int64ObservableCounter       = int64Observable{}
	_ metric.Int64ObservableUpDownCounter = int64Observable{}
	_ metric.Int64ObservableGauge         = int64Observable{}
)

// float64Observable is every asynchronous float64 instrument.
type float64Observable struct {
	embedded.Float64ObservableCounter
	embedded.Float64ObservableUpDownCounter
	embedded.Float64ObservableGauge
	metric.Float64Observable

	*observableValue[float64]
}

var (
	_ metric.Float64ObservableCounter       = float64Observable{}
	_ metric.Float64ObservableUpDownCounter = float64Observable{}
	_ metric.Float64ObservableGauge         = float64Observable{}
)
