// Package mapping holds the static target-field → source-path tables, one per template type.
//
// Tables are embedded YAML loaded once at startup. Each field's kind is fixed at
// load time: either tagged explicitly in YAML or classified from its target name.
package mapping

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind tells the filler how to resolve a field's value.
type Kind string

const (
	// KindFullName composes "{first} {last}" from the source column's person prefix.
	KindFullName Kind = "full_name"
	// KindComponent is a single name part (first, last, maiden...).
	KindComponent Kind = "component"
	// KindScalar is any other single value.
	KindScalar Kind = "scalar"
)

// Format selects the formatter applied to a resolved value.
type Format string

const (
	FormatAuto    Format = "auto"
	FormatDate    Format = "date"
	FormatBoolean Format = "boolean"
	FormatText    Format = "text"
)

// Field maps one template field to its source path(s).
type Field struct {
	Target  string
	Source  string
	Sources []string
	Kind    Kind
	Format  Format
}

// Concat reports whether the field joins several source paths.
func (f Field) Concat() bool {
	return len(f.Sources) > 1
}

// Table is the mapping for one template type. Field order is the fill order.
type Table struct {
	Template TemplateType
	Fields   []Field
}

// Targets returns the target field names in order.
func (t *Table) Targets() []string {
	out := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = f.Target
	}
	return out
}

type rawTable struct {
	Template string     `yaml:"template"`
	Fields   []rawField `yaml:"fields"`
}

type rawField struct {
	Target string `yaml:"target"`
	Source string `yaml:"source"`
	Kind   string `yaml:"kind"`
	Format string `yaml:"format"`
}

//go:embed tables/*.yaml
var tableFS embed.FS

// Registry resolves a template type to its table.
type Registry struct {
	tables map[TemplateType]*Table
}

// LoadEmbedded parses the tables compiled into the binary.
// Every template type must have exactly one table.
func LoadEmbedded() (*Registry, error) {
	entries, err := tableFS.ReadDir("tables")
	if err != nil {
		return nil, fmt.Errorf("read embedded tables: %w", err)
	}
	reg := &Registry{tables: make(map[TemplateType]*Table, len(entries))}
	for _, entry := range entries {
		data, err := tableFS.ReadFile(path.Join("tables", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		table, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if _, dup := reg.tables[table.Template]; dup {
			return nil, fmt.Errorf("%s: duplicate table for %s", entry.Name(), table.Template)
		}
		reg.tables[table.Template] = table
	}
	for _, t := range TemplateTypes {
		if _, ok := reg.tables[t]; !ok {
			return nil, fmt.Errorf("no mapping table for template %s", t)
		}
	}
	return reg, nil
}

// MustLoadEmbedded panics if the embedded tables are malformed. The tables are
// compiled in, so a failure is a build defect.
func MustLoadEmbedded() *Registry {
	reg, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	return reg
}

// Table returns the mapping for t.
func (r *Registry) Table(t TemplateType) (*Table, error) {
	table, ok := r.tables[t]
	if !ok {
		return nil, fmt.Errorf("no mapping table for template %s", t)
	}
	return table, nil
}

// Parse decodes one YAML table and fixes every field's kind and format.
func Parse(data []byte) (*Table, error) {
	var raw rawTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode mapping table: %w", err)
	}
	tt, err := ParseTemplateType(raw.Template)
	if err != nil {
		return nil, err
	}

	table := &Table{Template: tt, Fields: make([]Field, 0, len(raw.Fields))}
	seen := make(map[string]struct{}, len(raw.Fields))
	for i, rf := range raw.Fields {
		f, err := compileField(rf)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		if _, dup := seen[f.Target]; dup {
			return nil, fmt.Errorf("field %d: duplicate target %q", i, f.Target)
		}
		seen[f.Target] = struct{}{}
		table.Fields = append(table.Fields, f)
	}
	return table, nil
}

func compileField(rf rawField) (Field, error) {
	target := strings.TrimSpace(rf.Target)
	source := strings.TrimSpace(rf.Source)
	if target == "" || source == "" {
		return Field{}, fmt.Errorf("target and source are required")
	}

	f := Field{Target: target, Source: source}
	for _, part := range strings.Split(source, "|") {
		if part = strings.TrimSpace(part); part != "" {
			f.Sources = append(f.Sources, part)
		}
	}
	if len(f.Sources) == 0 {
		return Field{}, fmt.Errorf("source %q has no paths", source)
	}

	switch k := Kind(strings.TrimSpace(rf.Kind)); k {
	case "":
		f.Kind = Classify(target)
	case KindFullName, KindComponent, KindScalar:
		f.Kind = k
	default:
		return Field{}, fmt.Errorf("unknown kind %q", rf.Kind)
	}

	switch fm := Format(strings.TrimSpace(rf.Format)); fm {
	case "":
		f.Format = FormatAuto
	case FormatAuto, FormatDate, FormatBoolean, FormatText:
		f.Format = fm
	default:
		return Field{}, fmt.Errorf("unknown format %q", rf.Format)
	}
	return f, nil
}

var componentMarkers = []string{"first", "last", "maiden", "middle", "given", "surname"}

// Classify infers a kind from a target field name: names mentioning "name" or
// "full" are full names unless they also name a single component.
func Classify(target string) Kind {
	name := strings.ToLower(target)
	if !strings.Contains(name, "name") && !strings.Contains(name, "full") {
		return KindScalar
	}
	for _, marker := range componentMarkers {
		if strings.Contains(name, marker) {
			return KindComponent
		}
	}
	return KindFullName
}
