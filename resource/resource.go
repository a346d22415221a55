// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package resource describes the entity producing telemetry as an
// immutable set of attributes.
//
// A Resource is built once per provider, usually via Detect, and is
// attached by exporters to every exported batch rather than to each
// individual record.
package resource

import (
	"go.opentelemetry.io/otel/attribute"
)

// Resource is an immutable description of the entity producing
// telemetry. The zero value, and nil, are both valid empty resources.
type Resource struct {
	attrs     attribute.Set
	schemaURL string
}

// NewWithAttributes returns a Resource with attrs and the given schema
// URL. Attributes with empty keys are dropped. Duplicate keys are
// resolved by attribute.NewSet semantics (last value wins).
func NewWithAttributes(schemaURL string, attrs ...attribute.KeyValue) *Resource {
	valid := make([]attribute.KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		if kv.Key == "" {
			continue
		}
		valid = append(valid, kv)
	}
	return &Resource{
		attrs:     attribute.NewSet(valid...),
		schemaURL: schemaURL,
	}
}

// Empty returns a Resource with no attributes.
func Empty() *Resource {
	return &Resource{}
}

// Attributes returns a copy of the resource attributes.
func (r *Resource) Attributes() []attribute.KeyValue {
	if r == nil {
		return nil
	}
	return r.attrs.ToSlice()
}

// Set returns the underlying attribute set.
func (r *Resource) Set() *attribute.Set {
	if r == nil {
		r = Empty()
	}
	return &r.attrs
}

// SchemaURL returns the schema URL of the resource.
func (r *Resource) SchemaURL() string {
	if r == nil {
		return ""
	}
	return r.schemaURL
}

// Len returns the number of attributes.
func (r *Resource) Len() int {
	if r == nil {
		return 0
	}
	return r.attrs.Len()
}

// Equal reports whether r and other have the same attributes and
// schema URL.
func (r *Resource) Equal(other *Resource) bool {
	if r == nil {
		r = Empty()
	}
	if other == nil {
		other = Empty()
	}
	return r.schemaURL == other.schemaURL && r.attrs.Equals(&other.attrs)
}

// Merge returns a Resource combining a and b. Attributes of b take
// precedence over attributes of a with the same key; the later
// non-empty schema URL wins.
func Merge(a, b *Resource) *Resource {
	if a == nil && b == nil {
		return Empty()
	}
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}

	schemaURL := a.schemaURL
	if b.schemaURL != "" {
		schemaURL = b.schemaURL
	}

	// NewSet resolves duplicates in favor of the last occurrence, so b
	// goes last.
	combined := append(a.Attributes(), b.Attributes()...)
	return NewWithAttributes(schemaURL, combined...)
}
