// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package metric

import (
	"regexp"
	"strings"

	"github.com/z5labs/otelsdk/internal/selflog"
)

// View transforms the stream produced by a matched instrument. A View
// that does not match returns false.
type View func(Instrument) (Stream, bool)

// NewView returns a View matching instruments by criteria and replacing
// the matched fields of their stream with the non-zero fields of mask.
//
// Zero-value criteria fields match everything. The criteria Name may
// use the wildcards '*' (any number of characters) and '?' (exactly
// one character); a wildcard criteria cannot be combined with a mask
// rename, such a view is dropped.
func NewView(criteria Instrument, mask Stream) View {
	var matchName func(string) bool
	switch {
	case strings.ContainsAny(criteria.Name, "*?"):
		if mask.Name != "" {
			selflog.Error("dropping view renaming multiple instruments",
				"criteria", criteria.Name, "rename", mask.Name)
			return func(Instrument) (Stream, bool) { return Stream{}, false }
		}
		re := regexp.MustCompile(wildcardToRe(criteria.Name))
		matchName = re.MatchString
	case criteria.Name != "":
		matchName = func(name string) bool { return name == criteria.Name }
	default:
		matchName = func(string) bool { return true }
	}

	return func(i Instrument) (Stream, bool) {
		if !matchName(i.Name) {
			return Stream{}, false
		}
		if criteria.Kind != instrumentKindUndefined && criteria.Kind != i.Kind {
			return Stream{}, false
		}
		if criteria.Unit != "" && criteria.Unit != i.Unit {
			return Stream{}, false
		}
		if criteria.Description != "" && criteria.Description != i.Description {
			return Stream{}, false
		}
		if criteria.Scope.Name != "" && criteria.Scope.Name != i.Scope.Name {
			return Stream{}, false
		}
		if criteria.Scope.Version != "" && criteria.Scope.Version != i.Scope.Version {
			return Stream{}, false
		}

		s := Stream{
			Name:             i.Name,
			Description:      i.Description,
			Unit:             i.Unit,
			Aggregation:      mask.Aggregation,
			AttributeFilter:  mask.AttributeFilter,
			CardinalityLimit: mask.CardinalityLimit,
		}
		if mask.Name != "" {
			s.Name = mask.Name
		}
		if mask.Description != "" {
			s.Description = mask.Description
		}
		if mask.Unit != "" {
			s.Unit = mask.Unit
		}
		return s, true
	}
}

// wildcardToRe anchors name and rewrites its wildcards into a regular
// expression.
func wildcardToRe(name string) string {
	pattern := regexp.QuoteMeta(name)
	pattern = strings.ReplaceAll(pattern, `\*`, ".*")
	pattern = strings.ReplaceAll(pattern, `\?`, ".")
	return "^" + pattern + "$"
}
