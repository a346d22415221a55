// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metric

import (
	"context"
	"errors"
	"sync"

	"github.com/z5labs/otelsdk/concurrent"
	"github.com/z5labs/otelsdk/instrumentation"
	"github.com/z5labs/otelsdk/internal/selflog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
)

// errUnknownObservable is returned by RegisterCallback when an
// instrument was not created by the registering meter.
var errUnknownObservable = errors.New("observable not created by this meter")

// instID uniquely identifies an instrument within a meter so repeated
// creations with identical settings share storage.
type instID struct {
	Name        string
	Description string
	Unit        string
	Kind        InstrumentKind
}

// meter handles the creation and coordination of all metric
// instruments of one instrumentation scope.
type meter struct {
	embedded.Meter

	scope instrumentation.Scope
	state *meterProviderState

	int64Insts       *concurrent.Cache[instID, *int64Inst]
	float64Insts     *concurrent.Cache[instID, *float64Inst]
	int64Observables *concurrent.Cache[instID, int64Observable]
	flt64Observables *concurrent.Cache[instID, float64Observable]
}

var _ metric.Meter = (*meter)(nil)

func newMeter(scope instrumentation.Scope, state *meterProviderState) *meter {
	return &meter{
		scope:            scope,
		state:            state,
		int64Insts:       concurrent.NewCache[instID, *int64Inst](),
		float64Insts:     concurrent.NewCache[instID, *float64Inst](),
		int64Observables: concurrent.NewCache[instID, int64Observable](),
		flt64Observables: concurrent.NewCache[instID, float64Observable](),
	}
}

func (m *meter) int64Inst(inst Instrument, boundaries []float64) (*int64Inst, error) {
	if err := validateInstrumentName(inst.Name); err != nil {
		selflog.WarnOnce("instrument-name-"+inst.Name,
			"disabling instrument with invalid name", "name", inst.Name, "kind", inst.Kind.String())
		return &int64Inst{}, err
	}

	id := instID{Name: inst.Name, Description: inst.Description, Unit: inst.Unit, Kind: inst.Kind}
	return m.int64Insts.GetOr(id, func() (*int64Inst, error) {
		measures, err := resolveMeasures[int64](m, inst, boundaries)
		if err != nil {
			return nil, err
		}
		return &int64Inst{measures: measures}, nil
	})
}

func (m *meter) float64Inst(inst Instrument, boundaries []float64) (*float64Inst, error) {
	if err := validateInstrumentName(inst.Name); err != nil {
		selflog.WarnOnce("instrument-name-"+inst.Name,
			"disabling instrument with invalid name", "name", inst.Name, "kind", inst.Kind.String())
		return &float64Inst{}, err
	}

	id := instID{Name: inst.Name, Description: inst.Description, Unit: inst.Unit, Kind: inst.Kind}
	return m.float64Insts.GetOr(id, func() (*float64Inst, error) {
		measures, err := resolveMeasures[float64](m, inst, boundaries)
		if err != nil {
			return nil, err
		}
		return &float64Inst{measures: measures}, nil
	})
}

func (m *meter) int64Observable(inst Instrument) (int64Observable, error) {
	if err := validateInstrumentName(inst.Name); err != nil {
		selflog.WarnOnce("instrument-name-"+inst.Name,
			"disabling instrument with invalid name", "name", inst.Name, "kind", inst.Kind.String())
		return int64Observable{observableValue: &observableValue[int64]{meter: m}}, err
	}

	id := instID{Name: inst.Name, Description: inst.Description, Unit: inst.Unit, Kind: inst.Kind}
	return m.int64Observables.GetOr(id, func() (int64Observable, error) {
		measures, err := resolveMeasures[int64](m, inst, nil)
		if err != nil {
			return int64Observable{}, err
		}
		return int64Observable{observableValue: &observableValue[int64]{meter: m, measures: measures}}, nil
	})
}

func (m *meter) float64Observable(inst Instrument) (float64Observable, error) {
	if err := validateInstrumentName(inst.Name); err != nil {
		selflog.WarnOnce("instrument-name-"+inst.Name,
			"disabling instrument with invalid name", "name", inst.Name, "kind", inst.Kind.String())
		return float64Observable{observableValue: &observableValue[float64]{meter: m}}, err
	}

	id := instID{Name: inst.Name, Description: inst.Description, Unit: inst.Unit, Kind: inst.Kind}
	return m.flt64Observables.GetOr(id, func() (float64Observable, error) {
		measures, err := resolveMeasures[float64](m, inst, nil)
		if err != nil {
			return float64Observable{}, err
		}
		return float64Observable{observableValue: &observableValue[float64]{meter: m, measures: measures}}, nil
	})
}

// Int64Counter returns a new instrument identified by name and
// configured with options. The instrument is used to synchronously
// record increasing int64 measurements.
func (m *meter) Int64Counter(name string, options ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	cfg := metric.NewInt64CounterConfig(options...)
	return m.int64Inst(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindCounter,
		Scope:       m.scope,
	}, nil)
}

// Int64UpDownCounter returns a new instrument used to synchronously
// record int64 measurements that may go up or down.
func (m *meter) Int64UpDownCounter(name string, options ...metric.Int64UpDownCounterOption) (metric.Int64UpDownCounter, error) {
	cfg := metric.NewInt64UpDownCounterConfig(options...)
	return m.int64Inst(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindUpDownCounter,
		Scope:       m.scope,
	}, nil)
}

// Int64Histogram returns a new instrument used to synchronously record
// the distribution of int64 measurements.
func (m *meter) Int64Histogram(name string, options ...metric.Int64HistogramOption) (metric.Int64Histogram, error) {
	cfg := metric.NewInt64HistogramConfig(options...)
	return m.int64Inst(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindHistogram,
		Scope:       m.scope,
	}, cfg.ExplicitBucketBoundaries())
}

// Int64Gauge returns a new instrument used to synchronously record
// instantaneous int64 measurements.
func (m *meter) Int64Gauge(name string, options ...metric.Int64GaugeOption) (metric.Int64Gauge, error) {
	cfg := metric.NewInt64GaugeConfig(options...)
	return m.int64Inst(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindGauge,
		Scope:       m.scope,
	}, nil)
}

// Int64ObservableCounter returns a new instrument used to report
// monotonic increasing int64 measurements once per collection cycle.
func (m *meter) Int64ObservableCounter(name string, options ...metric.Int64ObservableCounterOption) (metric.Int64ObservableCounter, error) {
	cfg := metric.NewInt64ObservableCounterConfig(options...)
	obs, err := m.int64Observable(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindObservableCounter,
		Scope:       m.scope,
	})
	if err != nil {
		return obs, err
	}
	m.registerInt64Callbacks(obs, cfg.Callbacks())
	return obs, nil
}

// Int64ObservableUpDownCounter returns a new instrument used to report
// int64 measurements that may go up or down once per collection cycle.
func (m *meter) Int64ObservableUpDownCounter(name string, options ...metric.Int64ObservableUpDownCounterOption) (metric.Int64ObservableUpDownCounter, error) {
	cfg := metric.NewInt64ObservableUpDownCounterConfig(options...)
	obs, err := m.int64Observable(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindObservableUpDownCounter,
		Scope:       m.scope,
	})
	if err != nil {
		return obs, err
	}
	m.registerInt64Callbacks(obs, cfg.Callbacks())
	return obs, nil
}

// Int64ObservableGauge returns a new instrument used to report
// instantaneous int64 measurements once per collection cycle.
func (m *meter) Int64ObservableGauge(name string, options ...metric.Int64ObservableGaugeOption) (metric.Int64ObservableGauge, error) {
	cfg := metric.NewInt64ObservableGaugeConfig(options...)
	obs, err := m.int64Observable(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindObservableGauge,
		Scope:       m.scope,
	})
	if err != nil {
		return obs, err
	}
	m.registerInt64Callbacks(obs, cfg.Callbacks())
	return obs, nil
}

// Float64Counter returns a new instrument used to synchronously record
// increasing float64 measurements.
func (m *meter) Float64Counter(name string, options ...metric.Float64CounterOption) (metric.Float64Counter, error) {
	cfg := metric.NewFloat64CounterConfig(options...)
	return m.float64Inst(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindCounter,
		Scope:       m.scope,
	}, nil)
}

// Float64UpDownCounter returns a new instrument used to synchronously
// record float64 measurements that may go up or down.
func (m *meter) Float64UpDownCounter(name string, options ...metric.Float64UpDownCounterOption) (metric.Float64UpDownCounter, error) {
	cfg := metric.NewFloat64UpDownCounterConfig(options...)
	return m.float64Inst(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindUpDownCounter,
		Scope:       m.scope,
	}, nil)
}

// Float64Histogram returns a new instrument used to synchronously
// record the distribution of float64 measurements.
func (m *meter) Float64Histogram(name string, options ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	cfg := metric.NewFloat64HistogramConfig(options...)
	return m.float64Inst(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindHistogram,
		Scope:       m.scope,
	}, cfg.ExplicitBucketBoundaries())
}

// Float64Gauge returns a new instrument used to synchronously record
// instantaneous float64 measurements.
func (m *meter) Float64Gauge(name string, options ...metric.Float64GaugeOption) (metric.Float64Gauge, error) {
	cfg := metric.NewFloat64GaugeConfig(options...)
	return m.float64Inst(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindGauge,
		Scope:       m.scope,
	}, nil)
}

// Float64ObservableCounter returns a new instrument used to report
// monotonic increasing float64 measurements once per collection cycle.
func (m *meter) Float64ObservableCounter(name string, options ...metric.Float64ObservableCounterOption) (metric.Float64ObservableCounter, error) {
	cfg := metric.NewFloat64ObservableCounterConfig(options...)
	obs, err := m.float64Observable(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindObservableCounter,
		Scope:       m.scope,
	})
	if err != nil {
		return obs, err
	}
	m.registerFloat64Callbacks(obs, cfg.Callbacks())
	return obs, nil
}

// Float64ObservableUpDownCounter returns a new instrument used to
// report float64 measurements that may go up or down once per
// collection cycle.
func (m *meter) Float64ObservableUpDownCounter(name string, options ...metric.Float64ObservableUpDownCounterOption) (metric.Float64ObservableUpDownCounter, error) {
	cfg := metric.NewFloat64ObservableUpDownCounterConfig(options...)
	obs, err := m.float64Observable(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindObservableUpDownCounter,
		Scope:       m.scope,
	})
	if err != nil {
		return obs, err
	}
	m.registerFloat64Callbacks(obs, cfg.Callbacks())
	return obs, nil
}

// Float64ObservableGauge returns a new instrument used to report
// instantaneous float64 measurements once per collection cycle.
func (m *meter) Float64ObservableGauge(name string, options ...metric.Float64ObservableGaugeOption) (metric.Float64ObservableGauge, error) {
	cfg := metric.NewFloat64ObservableGaugeConfig(options...)
	obs, err := m.float64Observable(Instrument{
		Name:        name,
		Description: cfg.Description(),
		Unit:        cfg.Unit(),
		Kind:        InstrumentKindObservableGauge,
		Scope:       m.scope,
	})
	if err != nil {
		return obs, err
	}
	m.registerFloat64Callbacks(obs, cfg.Callbacks())
	return obs, nil
}

// registerInt64Callbacks binds the per-instrument callbacks of obs to
// every pipeline. They run, in registration order, at the start of
// each collection.
func (m *meter) registerInt64Callbacks(obs int64Observable, callbacks []metric.Int64Callback) {
	if !obs.hasMeasures() {
		// Dropped by views; no reason to observe.
		return
	}
	for _, cb := range callbacks {
		c := &callback{invoke: func(ctx context.Context) error {
			return cb(ctx, int64Observer{ctx: ctx, obs: obs})
		}}
		for _, pipe := range m.state.pipelines {
			pipe.addCallback(c)
		}
	}
}

func (m *meter) registerFloat64Callbacks(obs float64Observable, callbacks []metric.Float64Callback) {
	if !obs.hasMeasures() {
		return
	}
	for _, cb := range callbacks {
		c := &callback{invoke: func(ctx context.Context) error {
			return cb(ctx, float64Observer{ctx: ctx, obs: obs})
		}}
		for _, pipe := range m.state.pipelines {
			pipe.addCallback(c)
		}
	}
}

// RegisterCallback registers f to be called during the collection of a
// measurement cycle to observe the given instruments. All instruments
// must be created by m.
func (m *meter) RegisterCallback(f metric.Callback, insts ...metric.Observable) (metric.Registration, error) {
	obsrv := observer{
		int64s:   make(map[*observableValue[int64]]struct{}),
		float64s: make(map[*observableValue[float64]]struct{}),
	}

	anyObserved := false
	for _, inst := range insts {
		switch o := inst.(type) {
		case int64Observable:
			if o.observableValue == nil || o.meter != m {
				return nil, errUnknownObservable
			}
			obsrv.int64s[o.observableValue] = struct{}{}
			anyObserved = anyObserved || o.hasMeasures()
		case float64Observable:
			if o.observableValue == nil || o.meter != m {
				return nil, errUnknownObservable
			}
			obsrv.float64s[o.observableValue] = struct{}{}
			anyObserved = anyObserved || o.hasMeasures()
		default:
			return nil, errUnknownObservable
		}
	}
	if !anyObserved {
		// Every instrument was dropped by views; nothing to run.
		return noopRegistration{}, nil
	}

	c := &callback{invoke: func(ctx context.Context) error {
		o := obsrv
		o.ctx = ctx
		return f(ctx, o)
	}}
	for _, pipe := range m.state.pipelines {
		pipe.addCallback(c)
	}

	return &registration{meter: m, cb: c}, nil
}

type registration struct {
	embedded.Registration

	meter *meter
	cb    *callback
	once  sync.Once
}

// Unregister removes the callback from every pipeline. It is safe to
// call multiple times.
func (r *registration) Unregister() error {
	r.once.Do(func() {
		for _, pipe := range r.meter.state.pipelines {
			pipe.removeCallback(r.cb)
		}
	})
	return nil
}

type noopRegistration struct {
	embedded.Registration
}

func (noopRegistration) Unregister() error { return nil }

// observer delivers callback observations to the instruments'
// aggregations.
type observer struct {
	embedded.Observer

	ctx      context.Context
	int64s   map[*observableValue[int64]]struct{}
	float64s map[*observableValue[float64]]struct{}
}

var _ metric.Observer = observer{}

func (o observer) ObserveInt64(i metric.Int64Observable, v int64, opts ...metric.ObserveOption) {
	obs, ok := i.(int64Observable)
	if !ok {
		selflog.Error("observed instrument created by a different SDK")
		return
	}
	if _, registered := o.int64s[obs.observableValue]; !registered {
		selflog.Error("observed instrument not registered with callback")
		return
	}
	c := metric.NewObserveConfig(opts)
	obs.observe(o.ctx, v, c.Attributes())
}

func (o observer) ObserveFloat64(i metric.Float64Observable, v float64, opts ...metric.ObserveOption) {
	obs, ok := i.(float64Observable)
	if !ok {
		selflog.Error("observed instrument created by a different SDK")
		return
	}
	if _, registered := o.float64s[obs.observableValue]; !registered {
		selflog.Error("observed instrument not registered with callback")
		return
	}
	c := metric.NewObserveConfig(opts)
	obs.observe(o.ctx, v, c.Attributes())
}

// int64Observer delivers per-instrument callback observations.
type int64Observer struct {
	embedded.Int64Observer

	ctx context.Context
	obs int64Observable
}

var _ metric.Int64Observer = int64Observer{}

func (o int64Observer) Observe(v int64, opts ...metric.ObserveOption) {
	c := metric.NewObserveConfig(opts)
	o.obs.observe(o.ctx, v, c.Attributes())
}

// float64Observer delivers per-instrument callback observations.
type float64Observer struct {
	embedded.Float64Observer

	ctx context.Context
	obs float64Observable
}

var _ metric.Float64Observer = float64Observer{}

func (o float64Observer) Observe(v float64, opts ...metric.ObserveOption) {
	c := metric.NewObserveConfig(opts)
	o.obs.observe(o.ctx, v, c.Attributes())
}
