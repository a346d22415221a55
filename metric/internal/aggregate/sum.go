// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/z5labs/otelsdk/metric/metricdata"

	"go.opentelemetry.io/otel/attribute"
)

type sumValue[N int64 | float64] struct {
	n   atomicCounter[N]
	res attribute.Set
}

// valueMap is the storage for sums. Measurements update existing
// points with an atomic add under the shared read lock; only the
// insertion of a new attribute set takes the write lock. Collection
// takes the write lock, which also quiesces in-flight adds.
type valueMap[N int64 | float64] struct {
	sync.RWMutex
	limit  limiter[*sumValue[N]]
	values map[attribute.Distinct]*sumValue[N]
}

func newValueMap[N int64 | float64](limit int) *valueMap[N] {
	return &valueMap[N]{
		limit:  newLimiter[*sumValue[N]](limit),
		values: make(map[attribute.Distinct]*sumValue[N]),
	}
}

func (s *valueMap[N]) measure(_ context.Context, value N, attr attribute.Set) {
	s.RLock()
	v, ok := s.values[attr.Equivalent()]
	if ok {
		v.n.add(value)
		s.RUnlock()
		return
	}
	s.RUnlock()

	s.Lock()
	defer s.Unlock()

	attr = s.limit.Attributes(attr, s.values)
	v, ok = s.values[attr.Equivalent()]
	if !ok {
		v = &sumValue[N]{res: attr}
		s.values[attr.Equivalent()] = v
	}
	v.n.add(value)
}

// newSum returns an aggregator that summarizes a set of measurements as
// their arithmetic sum.
func newSum[N int64 | float64](monotonic bool, limit int) *sum[N] {
	return &sum[N]{
		valueMap:  newValueMap[N](limit),
		monotonic: monotonic,
		start:     now(),
	}
}

// sum summarizes a set of measurements made as their arithmetic sum.
type sum[N int64 | float64] struct {
	*valueMap[N]

	monotonic bool
	start     time.Time
}

func (s *sum[N]) delta(dest *metricdata.Aggregation) int {
	t := now()

	sData, _ := (*dest).(metricdata.Sum[N])
	sData.Temporality = metricdata.DeltaTemporality
	sData.IsMonotonic = s.monotonic

	s.Lock()
	defer s.Unlock()

	n := len(s.values)
	dPts := reset(sData.DataPoints, n, n)
	i := 0
	for _, val := range s.values {
		dPts[i].Attributes = val.res
		dPts[i].StartTime = s.start
		dPts[i].Time = t
		dPts[i].Value = val.n.load()
		i++
	}
	// Delta resets the aggregation cycle: forget every point and start
	// a fresh interval.
	clear(s.values)
	s.start = t

	sData.DataPoints = dPts
	*dest = sData
	return n
}

func (s *sum[N]) cumulative(dest *metricdata.Aggregation) int {
	t := now()

	sData, _ := (*dest).(metricdata.Sum[N])
	sData.Temporality = metricdata.CumulativeTemporality
	sData.IsMonotonic = s.monotonic

	s.Lock()
	defer s.Unlock()

	n := len(s.values)
	dPts := reset(sData.DataPoints, n, n)
	i := 0
	for _, val := range s.values {
		dPts[i].Attributes = val.res
		dPts[i].StartTime = s.start
		dPts[i].Time = t
		dPts[i].Value = val.n.load()
		i++
	}

	sData.DataPoints = dPts
	*dest = sData
	return n
}

// newPrecomputedSum returns an aggregator for observable instruments
// whose callbacks report precomputed absolute sums.
func newPrecomputedSum[N int64 | float64](monotonic bool, limit int) *precomputedSum[N] {
	return &precomputedSum[N]{
		limit:     newLimiter[precomputedValue[N]](limit),
		values:    make(map[attribute.Distinct]precomputedValue[N]),
		monotonic: monotonic,
		start:     now(),
	}
}

type precomputedValue[N int64 | float64] struct {
	value N
	res   attribute.Set
}

// precomputedSum summarizes absolute sums reported by callbacks. Only
// the last value reported per attribute set per collection cycle is
// kept. Delta temporality exports the difference from the previously
// exported value.
type precomputedSum[N int64 | float64] struct {
	sync.Mutex
	limit  limiter[precomputedValue[N]]
	values map[attribute.Distinct]precomputedValue[N]

	monotonic bool
	start     time.Time

	reported map[attribute.Distinct]N
}

func (s *precomputedSum[N]) measure(_ context.Context, value N, attr attribute.Set) {
	s.Lock()
	defer s.Unlock()

	attr = s.limit.Attributes(attr, s.values)
	s.values[attr.Equivalent()] = precomputedValue[N]{value: value, res: attr}
}

func (s *precomputedSum[N]) delta(dest *metricdata.Aggregation) int {
	t := now()

	sData, _ := (*dest).(metricdata.Sum[N])
	sData.Temporality = metricdata.DeltaTemporality
	sData.IsMonotonic = s.monotonic

	s.Lock()
	defer s.Unlock()

	newReported := make(map[attribute.Distinct]N, len(s.values))
	n := len(s.values)
	dPts := reset(sData.DataPoints, n, n)
	i := 0
	for key, val := range s.values {
		dPts[i].Attributes = val.res
		dPts[i].StartTime = s.start
		dPts[i].Time = t
		dPts[i].Value = val.value - s.reported[key]
		newReported[key] = val.value
		i++
	}
	clear(s.values)
	s.reported = newReported
	s.start = t

	sData.DataPoints = dPts
	*dest = sData
	return n
}

func (s *precomputedSum[N]) cumulative(dest *metricdata.Aggregation) int {
	t := now()

	sData, _ := (*dest).(metricdata.Sum[N])
	sData.Temporality = metricdata.CumulativeTemporality
	sData.IsMonotonic = s.monotonic

	s.Lock()
	defer s.Unlock()

	n := len(s.values)
	dPts := reset(sData.DataPoints, n, n)
	i := 0
	for _, val := range s.values {
		dPts[i].Attributes = val.res
		dPts[i].StartTime = s.start
		dPts[i].Time = t
		dPts[i].Value = val.value
		i++
	}
	clear(s.values)

	sData.DataPoints = dPts
	*dest = sData
	return n
}
