// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package aggregate

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/z5labs/otelsdk/internal/selflog"
	"github.com/z5labs/otelsdk/metric/metricdata"

	"go.opentelemetry.io/otel/attribute"
)

const (
	expoMaxScale = 20
	expoMinScale = -10
)

// expoHistogramDataPoint is a single bucketed set of measurements using
// base-2 exponentially scaled buckets.
type expoHistogramDataPoint[N int64 | float64] struct {
	mu sync.Mutex

	attrs attribute.Set

	count uint64
	min   N
	max   N
	sum   N

	maxSize  int
	noMinMax bool
	noSum    bool

	scale int32

	posBuckets expoBuckets
	negBuckets expoBuckets
	zeroCount  uint64
}

func newExpoHistogramDataPoint[N int64 | float64](attrs attribute.Set, maxSize int, maxScale int32, noMinMax, noSum bool) *expoHistogramDataPoint[N] {
	f := math.MaxFloat64
	ma := N(f) // if N is int64, max overflows to -9223372036854775808
	if ma < 0 {
		ma = N(math.MaxInt64)
	}
	mi := -ma
	return &expoHistogramDataPoint[N]{
		attrs:    attrs,
		min:      ma,
		max:      mi,
		maxSize:  maxSize,
		noMinMax: noMinMax,
		noSum:    noSum,
		scale:    maxScale,
	}
}

// record adds a new measurement to the histogram. It will rescale the
// buckets if needed.
func (p *expoHistogramDataPoint[N]) record(v N) {
	p.count++

	if !p.noMinMax {
		if v < p.min {
			p.min = v
		}
		if v > p.max {
			p.max = v
		}
	}
	if !p.noSum {
		p.sum += v
	}

	absV := math.Abs(float64(v))

	if absV == 0.0 {
		p.zeroCount++
		return
	}

	bin := p.getBin(absV)

	bucket := &p.posBuckets
	if v < 0 {
		bucket = &p.negBuckets
	}

	// If the new bin would make the counts larger than maxSize, we need
	// to downscale current measurements.
	if scaleDelta := p.scaleChange(bin, bucket.startBin, len(bucket.counts)); scaleDelta > 0 {
		if p.scale-scaleDelta < expoMinScale {
			// With a scale of -10 there is only two buckets for the
			// whole range of float64 values. This can only happen if
			// there is a max size of 1.
			selflog.WarnOnce("expo-histogram-scale-underflow",
				"exponential histogram scale underflow", "value", float64(v))
			return
		}
		p.scale -= scaleDelta
		p.posBuckets.downscale(scaleDelta)
		p.negBuckets.downscale(scaleDelta)

		bin = p.getBin(absV)
	}

	bucket.record(bin)
}

// getBin returns the bin v should be recorded into at the current
// scale.
func (p *expoHistogramDataPoint[N]) getBin(v float64) int32 {
	frac, expInt := math.Frexp(v)
	exp := int32(expInt)
	if p.scale <= 0 {
		// Because of the choice of fraction is always 1 power of 2
		// higher than we want.
		var correction int32 = 1
		if frac == .5 {
			// If v is an exact power of 2 the frac will be .5 and the
			// exp will be the power of 2.
			correction = 2
		}
		return (exp - correction) >> (-p.scale)
	}
	return exp<<p.scale + int32(math.Log(frac)*scaleFactors[p.scale]) - 1
}

// scaleFactors are constants used in calculating the logarithm index.
// They are equivalent to 2^index/log(2).
var scaleFactors = [21]float64{
	math.Ldexp(math.Log2E, 0),
	math.Ldexp(math.Log2E, 1),
	math.Ldexp(math.Log2E, 2),
	math.Ldexp(math.Log2E, 3),
	math.Ldexp(math.Log2E, 4),
	math.Ldexp(math.Log2E, 5),
	math.Ldexp(math.Log2E, 6),
	math.Ldexp(math.Log2E, 7),
	math.Ldexp(math.Log2E, 8),
	math.Ldexp(math.Log2E, 9),
	math.Ldexp(math.Log2E, 10),
	math.Ldexp(math.Log2E, 11),
	math.Ldexp(math.Log2E, 12),
	math.Ldexp(math.Log2E, 13),
	math.Ldexp(math.Log2E, 14),
	math.Ldexp(math.Log2E, 15),
	math.Ldexp(math.Log2E, 16),
	math.Ldexp(math.Log2E, 17),
	math.Ldexp(math.Log2E, 18),
	math.Ldexp(math.Log2E, 19),
	math.Ldexp(math.Log2E, 20),
}

// scaleChange returns the magnitude of the scale change needed to fit
// bin in the bucket. If no scale change is needed 0 is returned.
func (p *expoHistogramDataPoint[N]) scaleChange(bin, startBin int32, length int) int32 {
	if length == 0 {
		// No need to rescale if there are no buckets.
		return 0
	}

	low := int(startBin)
	high := int(bin)
	if startBin >= bin {
		low = int(bin)
		high = int(startBin) + length - 1
	} else {
		low = int(startBin)
		high = int(bin)
	}

	var count int32
	for high-low >= p.maxSize {
		low = low >> 1
		high = high >> 1
		count++
		if count > expoMaxScale-expoMinScale {
			return count
		}
	}
	return count
}

// expoBuckets is a set of buckets in an exponential histogram.
type expoBuckets struct {
	startBin int32
	counts   []uint64
}

// record increments the count for the given bin, and expands the
// buckets if needed. Size changes must be done before calling this
// function.
func (b *expoBuckets) record(bin int32) {
	if len(b.counts) == 0 {
		b.counts = []uint64{1}
		b.startBin = bin
		return
	}

	endBin := int(b.startBin) + len(b.counts) - 1

	// if the new bin is inside the current range
	if bin >= b.startBin && int(bin) <= endBin {
		b.counts[bin-b.startBin]++
		return
	}
	// if the new bin is before the current start, add buckets to the
	// front
	if bin < b.startBin {
		origLen := len(b.counts)
		newLength := endBin - int(bin) + 1
		shift := int(b.startBin - bin)

		if newLength > cap(b.counts) {
			b.counts = append(b.counts, make([]uint64, newLength-origLen)...)
		} else {
			b.counts = b.counts[:newLength]
		}

		copy(b.counts[shift:], b.counts[:origLen])
		for i := 1; i < shift; i++ {
			b.counts[i] = 0
		}
		b.startBin = bin
		b.counts[0] = 1
		return
	}
	// the new bin is after the end, add buckets to the back
	if int(bin-b.startBin) < cap(b.counts) {
		oldLen := len(b.counts)
		b.counts = b.counts[:bin-b.startBin+1]
		for i := oldLen; i < len(b.counts); i++ {
			b.counts[i] = 0
		}
		b.counts[bin-b.startBin] = 1
		return
	}

	end := make([]uint64, int(bin-b.startBin)-len(b.counts)+1)
	b.counts = append(b.counts, end...)
	b.counts[bin-b.startBin] = 1
}

// downscale shrinks a bucket by a factor of 2*s. It will sum counts
// into the correct lower resolution bucket.
func (b *expoBuckets) downscale(delta int32) {
	// Example of downscaling delta = 2:
	//
	// bins:    -6 -5 -4 -3 -2 -1  0  1  2
	// counts:   3  1  2  3  4  5  6  7  8
	//
	// new bins:-2 -1  0
	// counts:   4 14 21
	if len(b.counts) <= 1 || delta < 1 {
		b.startBin = b.startBin >> delta
		return
	}

	steps := int32(1) << delta
	offset := b.startBin % steps
	offset = (offset + steps) % steps // to make offset positive
	for i := 1; i < len(b.counts); i++ {
		idx := i + int(offset)
		if idx%int(steps) == 0 {
			b.counts[idx/int(steps)] = b.counts[i]
			continue
		}
		b.counts[idx/int(steps)] += b.counts[i]
	}

	lastIdx := (len(b.counts) - 1 + int(offset)) / int(steps)
	b.counts = b.counts[:lastIdx+1]
	b.startBin = b.startBin >> delta
}

// newExponentialHistogram returns an aggregator that summarizes a set
// of measurements as an exponential histogram.
func newExponentialHistogram[N int64 | float64](maxSize, maxScale int32, noMinMax, noSum bool, limit int) *expoHistogram[N] {
	return &expoHistogram[N]{
		noMinMax: noMinMax,
		noSum:    noSum,
		maxSize:  int(maxSize),
		maxScale: maxScale,

		limit:  newLimiter[*expoHistogramDataPoint[N]](limit),
		values: make(map[attribute.Distinct]*expoHistogramDataPoint[N]),

		start: now(),
	}
}

// expoHistogram summarizes a set of measurements as an histogram with
// exponentially defined buckets.
type expoHistogram[N int64 | float64] struct {
	noMinMax bool
	noSum    bool
	maxSize  int
	maxScale int32

	valuesMu sync.RWMutex
	limit    limiter[*expoHistogramDataPoint[N]]
	values   map[attribute.Distinct]*expoHistogramDataPoint[N]

	start time.Time
}

func (e *expoHistogram[N]) measure(_ context.Context, value N, attr attribute.Set) {
	// Ignore NaN and infinity.
	if math.IsInf(float64(value), 0) || math.IsNaN(float64(value)) {
		return
	}

	// The map lock stays held while the point is updated. If it were
	// released first, a collection could snapshot and discard the point
	// before the update lands, losing the measurement.
	e.valuesMu.RLock()
	v, ok := e.values[attr.Equivalent()]
	if ok {
		v.mu.Lock()
		v.record(value)
		v.mu.Unlock()
		e.valuesMu.RUnlock()
		return
	}
	e.valuesMu.RUnlock()

	e.valuesMu.Lock()
	defer e.valuesMu.Unlock()

	attr = e.limit.Attributes(attr, e.values)
	v, ok = e.values[attr.Equivalent()]
	if !ok {
		v = newExpoHistogramDataPoint[N](attr, e.maxSize, e.maxScale, e.noMinMax, e.noSum)
		e.values[attr.Equivalent()] = v
	}
	v.record(value)
}

func (e *expoHistogram[N]) delta(dest *metricdata.Aggregation) int {
	t := now()

	hData, _ := (*dest).(metricdata.ExponentialHistogram[N])
	hData.Temporality = metricdata.DeltaTemporality

	e.valuesMu.Lock()
	defer e.valuesMu.Unlock()

	n := len(e.values)
	hData.DataPoints = reset(hData.DataPoints, n, n)
	i := 0
	for _, val := range e.values {
		e.snapshot(&hData.DataPoints[i], val, t)
		i++
	}
	clear(e.values)
	e.start = t

	*dest = hData
	return n
}

func (e *expoHistogram[N]) cumulative(dest *metricdata.Aggregation) int {
	t := now()

	hData, _ := (*dest).(metricdata.ExponentialHistogram[N])
	hData.Temporality = metricdata.CumulativeTemporality

	e.valuesMu.Lock()
	defer e.valuesMu.Unlock()

	n := len(e.values)
	hData.DataPoints = reset(hData.DataPoints, n, n)
	i := 0
	for _, val := range e.values {
		e.snapshot(&hData.DataPoints[i], val, t)
		i++
	}

	*dest = hData
	return n
}

func (e *expoHistogram[N]) snapshot(dPt *metricdata.ExponentialHistogramDataPoint[N], val *expoHistogramDataPoint[N], t time.Time) {
	val.mu.Lock()
	defer val.mu.Unlock()

	dPt.Attributes = val.attrs
	dPt.StartTime = e.start
	dPt.Time = t
	dPt.Count = val.count
	dPt.Scale = val.scale
	dPt.ZeroCount = val.zeroCount
	dPt.ZeroThreshold = 0.0

	dPt.PositiveBucket.Offset = val.posBuckets.startBin
	dPt.PositiveBucket.Counts = reset(dPt.PositiveBucket.Counts, len(val.posBuckets.counts), len(val.posBuckets.counts))
	copy(dPt.PositiveBucket.Counts, val.posBuckets.counts)

	dPt.NegativeBucket.Offset = val.negBuckets.startBin
	dPt.NegativeBucket.Counts = reset(dPt.NegativeBucket.Counts, len(val.negBuckets.counts), len(val.negBuckets.counts))
	copy(dPt.NegativeBucket.Counts, val.negBuckets.counts)

	if !e.noSum {
		dPt.Sum = val.sum
	}
	if !e.noMinMax && val.count > 0 {
		dPt.Min = metricdata.NewExtrema(val.min)
		dPt.Max = metricdata.NewExtrema(val.max)
	}
}
