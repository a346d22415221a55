// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package log

import "github.com/z5labs/otelsdk/internal/env"

// DefaultAttributeCountLimit is the default cap on attributes per log
// record.
const DefaultAttributeCountLimit = 128

// RecordLimits caps the number of attributes recorded per log record.
// Attributes past the limit are dropped and counted.
type RecordLimits struct {
	// AttributeCountLimit is the maximum number of attributes per
	// record. Zero or negative means unlimited.
	AttributeCountLimit int
}

// NewRecordLimits returns limits seeded from the
// OTEL_LOGRECORD_ATTRIBUTE_COUNT_LIMIT environment variable, falling
// back to the default.
func NewRecordLimits() RecordLimits {
	return RecordLimits{
		AttributeCountLimit: env.IntOr(DefaultAttributeCountLimit, "OTEL_LOGRECORD_ATTRIBUTE_COUNT_LIMIT"),
	}
}
