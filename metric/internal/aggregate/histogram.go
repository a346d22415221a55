// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package aggregate

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/z5labs/otelsdk/metric/metricdata"

	"go.opentelemetry.io/otel/attribute"
)

type buckets[N int64 | float64] struct {
	mu sync.Mutex

	attrs  attribute.Set
	counts []uint64
	count  uint64
	total  N
	min    N
	max    N
}

// newBuckets returns buckets with n counts.
func newBuckets[N int64 | float64](attrs attribute.Set, n int) *buckets[N] {
	return &buckets[N]{attrs: attrs, counts: make([]uint64, n)}
}

// bin records a measurement of value into bucket idx.
func (b *buckets[N]) bin(idx int, value N) {
	b.counts[idx]++
	b.count++
	if value < b.min || b.count == 1 {
		b.min = value
	}
	if value > b.max || b.count == 1 {
		b.max = value
	}
}

func (b *buckets[N]) sum(value N) { b.total += value }

// histValues aggregates measurements into explicit buckets. A bucket
// update holds the map read lock for its whole duration plus a
// fine-grained per-point lock, so collection under the write lock
// observes every update fully or not at all.
type histValues[N int64 | float64] struct {
	sync.RWMutex

	noSum  bool
	bounds []float64

	limit  limiter[*buckets[N]]
	values map[attribute.Distinct]*buckets[N]
}

func newHistValues[N int64 | float64](bounds []float64, noSum bool, limit int) *histValues[N] {
	// The responsibility of keeping all buckets correctly associated
	// with the passed boundaries is ultimately this type's. Make a copy
	// so the caller cannot invalidate the sort order.
	b := slices.Clone(bounds)
	slices.Sort(b)
	return &histValues[N]{
		noSum:  noSum,
		bounds: b,
		limit:  newLimiter[*buckets[N]](limit),
		values: make(map[attribute.Distinct]*buckets[N]),
	}
}

func (s *histValues[N]) measure(_ context.Context, value N, attr attribute.Set) {
	// This search will return an index in the range [0, len(s.bounds)],
	// where it will return len(s.bounds) if value is greater than the
	// last element of s.bounds. This aligns with the buckets in that the
	// length of buckets is len(s.bounds)+1, with the last bucket
	// representing (s.bounds[len(s.bounds)-1], +inf).
	idx := sort.SearchFloat64s(s.bounds, float64(value))

	// The map lock stays held while the bucket is updated. If it were
	// released first, a collection could snapshot and discard the bucket
	// before the update lands, losing the measurement.
	s.RLock()
	b, ok := s.values[attr.Equivalent()]
	if ok {
		b.mu.Lock()
		b.bin(idx, value)
		if !s.noSum {
			b.sum(value)
		}
		b.mu.Unlock()
		s.RUnlock()
		return
	}
	s.RUnlock()

	s.Lock()
	defer s.Unlock()

	attr = s.limit.Attributes(attr, s.values)
	b, ok = s.values[attr.Equivalent()]
	if !ok {
		// N+1 buckets. For example:
		//
		//   bounds = [0, 5, 10]
		//
		// implies
		//
		//   buckets = (-inf, 0], (0, 5.0], (5.0, 10.0], (10.0, +inf)
		b = newBuckets[N](attr, len(s.bounds)+1)
		s.values[attr.Equivalent()] = b
	}
	b.bin(idx, value)
	if !s.noSum {
		b.sum(value)
	}
}

// newHistogram returns a histogram aggregate function that summarizes a
// set of measurements as a histogram with explicitly defined buckets.
func newHistogram[N int64 | float64](boundaries []float64, noMinMax, noSum bool, limit int) *histogram[N] {
	return &histogram[N]{
		histValues: newHistValues[N](boundaries, noSum, limit),
		noMinMax:   noMinMax,
		start:      now(),
	}
}

type histogram[N int64 | float64] struct {
	*histValues[N]

	noMinMax bool
	start    time.Time
}

func (s *histogram[N]) delta(dest *metricdata.Aggregation) int {
	t := now()

	hData, _ := (*dest).(metricdata.Histogram[N])
	hData.Temporality = metricdata.DeltaTemporality

	s.Lock()
	defer s.Unlock()

	n := len(s.values)
	hData.DataPoints = reset(hData.DataPoints, n, n)
	i := 0
	for _, val := range s.values {
		s.snapshot(&hData.DataPoints[i], val, t)
		i++
	}
	clear(s.values)
	s.start = t

	*dest = hData
	return n
}

func (s *histogram[N]) cumulative(dest *metricdata.Aggregation) int {
	t := now()

	hData, _ := (*dest).(metricdata.Histogram[N])
	hData.Temporality = metricdata.CumulativeTemporality

	s.Lock()
	defer s.Unlock()

	n := len(s.values)
	hData.DataPoints = reset(hData.DataPoints, n, n)
	i := 0
	for _, val := range s.values {
		s.snapshot(&hData.DataPoints[i], val, t)
		i++
	}

	*dest = hData
	return n
}

func (s *histogram[N]) snapshot(dPt *metricdata.HistogramDataPoint[N], val *buckets[N], t time.Time) {
	dPt.Attributes = val.attrs
	dPt.StartTime = s.start
	dPt.Time = t
	dPt.Count = val.count
	dPt.Bounds = slices.Clone(s.bounds)
	// Every bucket update runs while holding the map lock, so the write
	// lock held by the caller quiesces measurers and the counts can be
	// copied without taking the point lock.
	dPt.BucketCounts = slices.Clone(val.counts)
	if !s.noSum {
		dPt.Sum = val.total
	}
	if !s.noMinMax && val.count > 0 {
		dPt.Min = metricdata.NewExtrema(val.min)
		dPt.Max = metricdata.NewExtrema(val.max)
	}
}
