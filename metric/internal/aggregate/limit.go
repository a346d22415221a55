// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package aggregate

import "go.opentelemetry.io/otel/attribute"

// overflowSet identifies the synthetic data point that absorbs
// measurements arriving after the cardinality limit is reached.
var overflowSet = attribute.NewSet(attribute.Bool("otel.metric.overflow", true))

// limiter enforces the per-stream cardinality limit.
//
// The limit counts distinct measured attribute sets; the overflow
// point is carried in addition to them, so a limit of n yields at most
// n+1 exported data points.
type limiter[V any] struct {
	aggLimit int
}

func newLimiter[V any](aggregation int) limiter[V] {
	return limiter[V]{aggLimit: aggregation}
}

// Attributes returns the attribute set to aggregate a measurement for
// attrs under: attrs itself while below the limit or already tracked,
// the overflow set otherwise. A limit <= 0 means unlimited.
func (l limiter[V]) Attributes(attrs attribute.Set, measurements map[attribute.Distinct]V) attribute.Set {
	if l.aggLimit > 0 {
		_, exists := measurements[attrs.Equivalent()]
		if !exists && len(measurements) >= l.aggLimit {
			return overflowSet
		}
	}

	return attrs
}
