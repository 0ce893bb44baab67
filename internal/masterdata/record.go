// Package masterdata holds the per-case master record consumed by the PDF pipeline.
package masterdata

import (
	"strings"

	"casedocs/internal/pdffill/format"
)

// Record is the flat, wide per-case row. Values are JSON-shaped: strings,
// float64, bool, nested maps (addresses) and arrays. The pipeline never mutates it.
type Record map[string]any

// Lineage flags.
const (
	FatherIsPolish = "father_is_polish"
	MotherIsPolish = "mother_is_polish"
)

// Lookup resolves a dotted path.
func (r Record) Lookup(path string) (any, bool) {
	return format.NestedValue(map[string]any(r), path)
}

// String returns the trimmed text of key, or "".
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	return format.Text(v)
}

// Flag reports whether key holds a true-ish boolean. Only real booleans and the
// strings "true"/"t"/"yes" count; anything else is false.
func (r Record) Flag(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "yes":
			return true
		}
	}
	return false
}

// Clone returns a shallow copy so callers can overlay derived fields.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge overlays fields on a copy of r.
func (r Record) Merge(fields map[string]any) Record {
	out := r.Clone()
	for k, v := range fields {
		out[k] = v
	}
	return out
}
