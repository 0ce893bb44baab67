// Package format converts raw master-record values into PDF-ready strings.
//
// Every function here is total: unparseable or absent input yields "", which
// the filler treats as "not filled". Nothing in this package returns an error.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the output layout for every date written into a template.
const DateLayout = "02.01.2006"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Date renders a date-like value as DD.MM.YYYY, or "" when it cannot be parsed.
// Numbers are read as Unix milliseconds.
func Date(value any) string {
	t, ok := parseDate(value)
	if !ok {
		return ""
	}
	return t.Format(DateLayout)
}

func parseDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(v)).UTC(), true
	case int:
		return time.UnixMilli(int64(v)).UTC(), true
	case int64:
		return time.UnixMilli(v).UTC(), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

var addressParts = []string{"street", "city", "state", "zip", "country"}

// Address joins the present components of a structured address with ", ".
func Address(address map[string]any) string {
	parts := make([]string, 0, len(addressParts))
	for _, key := range addressParts {
		if s := Text(address[key]); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Array joins the truthy elements of list with ", ".
func Array(list []any) string {
	parts := make([]string, 0, len(list))
	for _, item := range list {
		if !Truthy(item) {
			continue
		}
		if s := Text(item); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Boolean renders true as "Yes", false as "No" and anything else as "".
func Boolean(value any) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case *bool:
		if v == nil {
			return ""
		}
		return Boolean(*v)
	}
	return ""
}

// NestedValue walks a dotted path ("a.b.c") through nested maps.
// It reports false as soon as an intermediate is missing or not a map.
func NestedValue(record map[string]any, path string) (any, bool) {
	if record == nil || path == "" {
		return nil, false
	}
	var current any = record
	for _, key := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// FieldValue formats value for the template field named hint.
//
// Dispatch follows the target field's naming convention: names containing
// "date" or "dob" are dates, names containing "address" format a structured
// address. Otherwise arrays and booleans get their own rendering and anything
// else is stringified and trimmed.
func FieldValue(value any, hint string) string {
	if value == nil {
		return ""
	}
	name := strings.ToLower(hint)
	if strings.Contains(name, "date") || strings.Contains(name, "dob") {
		return Date(value)
	}
	if strings.Contains(name, "address") {
		if m, ok := asMap(value); ok {
			return Address(m)
		}
	}
	switch v := value.(type) {
	case []any:
		return Array(v)
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return Array(items)
	case bool, *bool:
		return Boolean(v)
	}
	return Text(value)
}

// Text stringifies a scalar and trims surrounding whitespace.
func Text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return fmt.Sprintf("%d", int64(v))
		}
		return strings.TrimSpace(fmt.Sprint(v))
	case time.Time:
		return Date(v)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

// Truthy mirrors the loose truthiness of record values: nil, "", false and 0 are falsy.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case int:
		return v != 0
	case int64:
		return v != 0
	}
	return true
}

func asMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	}
	return nil, false
}
