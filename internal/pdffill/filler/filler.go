// Package filler applies a mapping table to a record and writes the values into a form.
package filler

import (
	"errors"
	"math"
	"strings"

	"casedocs/internal/pdffill/bloodline"
	"casedocs/internal/pdffill/format"
	"casedocs/internal/pdffill/mapping"
)

// ErrFieldNotFound is reported per field when a mapped target is absent from the template.
var ErrFieldNotFound = errors.New("field not found in template")

// FieldError is one non-fatal per-field failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result summarizes one fill run.
type Result struct {
	TotalFields    int          `json:"total_fields"`
	FilledFields   int          `json:"filled_fields"`
	EmptyFields    []string     `json:"empty_fields"`
	Errors         []FieldError `json:"errors"`
	UnmappedFields []string     `json:"unmapped_fields"`
}

// Coverage is the filled share of mapped fields as a rounded percentage.
func (r Result) Coverage() int {
	if r.TotalFields == 0 {
		return 0
	}
	return int(math.Round(float64(r.FilledFields) / float64(r.TotalFields) * 100))
}

// Fill attempts every mapping entry in order against record, writing into form.
// It never stops early: each entry ends up filled, empty or in Errors.
func Fill(form Form, table *mapping.Table, record map[string]any) Result {
	res := Result{
		TotalFields:    len(table.Fields),
		EmptyFields:    []string{},
		Errors:         []FieldError{},
		UnmappedFields: []string{},
	}

	for _, field := range table.Fields {
		raw := resolve(field, record)
		value := formatValue(field, raw)
		if value == "" {
			res.EmptyFields = append(res.EmptyFields, field.Target)
			continue
		}

		var err error
		switch form.FieldKind(field.Target) {
		case FieldText:
			err = form.SetText(field.Target, value)
		case FieldCheckbox:
			err = form.SetCheckbox(field.Target, Checked(raw))
		default:
			err = ErrFieldNotFound
		}
		if err != nil {
			res.Errors = append(res.Errors, FieldError{Field: field.Target, Message: err.Error()})
			continue
		}
		res.FilledFields++
	}

	targeted := make(map[string]struct{}, len(table.Fields))
	for _, field := range table.Fields {
		targeted[field.Target] = struct{}{}
	}
	for _, name := range form.FieldNames() {
		if _, ok := targeted[name]; !ok {
			res.UnmappedFields = append(res.UnmappedFields, name)
		}
	}
	return res
}

// resolve returns the unformatted value for a field. Concatenations are
// already joined strings.
func resolve(field mapping.Field, record map[string]any) any {
	if field.Concat() {
		parts := make([]string, 0, len(field.Sources))
		for _, src := range field.Sources {
			v, _ := format.NestedValue(record, src)
			if !format.Truthy(v) {
				continue
			}
			if s := format.Text(v); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return nil
		}
		return strings.Join(parts, " ")
	}

	if field.Kind == mapping.KindFullName {
		for _, prefix := range personPrefixes(field.Source) {
			first, _ := format.NestedValue(record, prefix+"_first_name")
			last, _ := format.NestedValue(record, prefix+"_last_name")
			if name := bloodline.FullName(format.Text(first), format.Text(last)); name != "" {
				return name
			}
		}
		return nil
	}

	v, _ := format.NestedValue(record, field.Source)
	return v
}

var nameSuffixes = []string{"_first_name", "_last_name", "_full_name"}

// personPrefixes lists the person prefixes to try for source, in order: the
// source with its name suffix stripped, then its first underscore-delimited token.
func personPrefixes(source string) []string {
	var prefixes []string
	for _, suffix := range nameSuffixes {
		if p, ok := strings.CutSuffix(source, suffix); ok && p != "" {
			prefixes = append(prefixes, p)
			break
		}
	}
	token := source
	if i := strings.Index(source, "_"); i > 0 {
		token = source[:i]
	}
	if len(prefixes) == 0 || prefixes[0] != token {
		prefixes = append(prefixes, token)
	}
	return prefixes
}

func formatValue(field mapping.Field, raw any) string {
	if raw == nil {
		return ""
	}
	switch field.Format {
	case mapping.FormatDate:
		return format.Date(raw)
	case mapping.FormatBoolean:
		if s := format.Boolean(raw); s != "" {
			return s
		}
		if format.Text(raw) == "" {
			return ""
		}
		return format.Boolean(Checked(raw))
	case mapping.FormatText:
		return format.Text(raw)
	default:
		return format.FieldValue(raw, field.Target)
	}
}

var checkedValues = map[string]struct{}{
	"true": {}, "yes": {}, "1": {}, "y": {}, "checked": {}, "on": {},
}

// Checked reports whether a raw record value should tick a checkbox.
func Checked(value any) bool {
	if b, ok := value.(bool); ok {
		return b
	}
	_, ok := checkedValues[strings.ToLower(format.Text(value))]
	return ok
}
