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

// datapoint is timestamped measurement data.
type datapoint[N int64 | float64] struct {
	attrs     attribute.Set
	timestamp time.Time
	value     N
}

func newLastValue[N int64 | float64](limit int) *lastValue[N] {
	return &lastValue[N]{
		limit:  newLimiter[datapoint[N]](limit),
		values: make(map[attribute.Distinct]datapoint[N]),
		start:  now(),
	}
}

// lastValue summarizes a set of measurements as the last one made.
type lastValue[N int64 | float64] struct {
	sync.Mutex

	limit  limiter[datapoint[N]]
	values map[attribute.Distinct]datapoint[N]
	start  time.Time
}

func (s *lastValue[N]) measure(_ context.Context, value N, attr attribute.Set) {
	s.Lock()
	defer s.Unlock()

	attr = s.limit.Attributes(attr, s.values)
	s.values[attr.Equivalent()] = datapoint[N]{
		attrs:     attr,
		timestamp: now(),
		value:     value,
	}
}

func (s *lastValue[N]) delta(dest *metricdata.Aggregation) int {
	gData, _ := (*dest).(metricdata.Gauge[N])

	s.Lock()
	defer s.Unlock()

	n := s.copyDpts(&gData.DataPoints)
	// Delta reports only the values observed this cycle.
	clear(s.values)
	s.start = now()

	*dest = gData
	return n
}

func (s *lastValue[N]) cumulative(dest *metricdata.Aggregation) int {
	gData, _ := (*dest).(metricdata.Gauge[N])

	s.Lock()
	defer s.Unlock()

	n := s.copyDpts(&gData.DataPoints)

	*dest = gData
	return n
}

// copyDpts copies the datapoints held by s into dest, stamped with the
// time each value was last observed. The number of datapoints copied
// is returned.
func (s *lastValue[N]) copyDpts(dest *[]metricdata.DataPoint[N]) int {
	n := len(s.values)
	*dest = reset(*dest, n, n)

	i := 0
	for _, v := range s.values {
		(*dest)[i].Attributes = v.attrs
		(*dest)[i].StartTime = s.start
		(*dest)[i].Time = v.timestamp
		(*dest)[i].Value = v.value
		i++
	}
	return n
}
