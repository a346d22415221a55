// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metricdata

// Temporality defines the window that an aggregation was calculated over.
type Temporality uint8

const (
	// undefinedTemporality represents an unset Temporality.
	undefinedTemporality Temporality = iota

	// CumulativeTemporality defines a measurement interval that continues
	// to expand forward in time from a starting point. New measurements
	// are added to all previous measurements since a start time.
	CumulativeTemporality

	// DeltaTemporality defines a measurement interval that resets each
	// cycle. Measurements from one cycle are recorded independently,
	// measurements from other cycles do not affect them.
	DeltaTemporality
)

func (t Temporality) String() string {
	switch t {
	case CumulativeTemporality:
		return "Cumulative"
	case DeltaTemporality:
		return "Delta"
	default:
		return "undefined"
	}
}
