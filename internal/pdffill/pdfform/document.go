// Package pdfform adapts AcroForm PDFs read by pdfcpu to the filler's Form interface.
package pdfform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"casedocs/internal/pdffill/filler"
)

const dateFieldFormat = "dd.mm.yyyy"

type field struct {
	id    string
	name  string
	pages []int
	typ   form.FieldType
	kind  filler.FieldKind
}

// Document is a loaded template with pending field writes.
// It is not safe for concurrent use.
type Document struct {
	src    []byte
	conf   *model.Configuration
	fields map[string]field
	text   map[string]string
	checks map[string]bool
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Load enumerates the template's form fields. Field kinds are fixed here;
// anything other than text, date and checkbox fields is FieldUnknown.
func Load(pdf []byte) (*Document, error) {
	conf := newConfiguration()
	fields, err := api.FormFields(bytes.NewReader(pdf), conf)
	if err != nil {
		return nil, fmt.Errorf("read form fields: %w", err)
	}

	doc := &Document{
		src:    pdf,
		conf:   conf,
		fields: make(map[string]field, len(fields)),
		text:   map[string]string{},
		checks: map[string]bool{},
	}
	for _, f := range fields {
		name := f.Name
		if name == "" {
			name = f.ID
		}
		doc.fields[name] = field{
			id:    f.ID,
			name:  f.Name,
			pages: f.Pages,
			typ:   f.Typ,
			kind:  kindOf(f.Typ),
		}
	}
	return doc, nil
}

func kindOf(t form.FieldType) filler.FieldKind {
	switch t {
	case form.FTText, form.FTDate:
		return filler.FieldText
	case form.FTCheckBox:
		return filler.FieldCheckbox
	default:
		return filler.FieldUnknown
	}
}

func (d *Document) FieldKind(name string) filler.FieldKind {
	f, ok := d.fields[name]
	if !ok {
		return filler.FieldUnknown
	}
	return f.kind
}

func (d *Document) SetText(name, value string) error {
	if d.FieldKind(name) != filler.FieldText {
		return fmt.Errorf("%s is not a text field", name)
	}
	d.text[name] = value
	return nil
}

func (d *Document) SetCheckbox(name string, checked bool) error {
	if d.FieldKind(name) != filler.FieldCheckbox {
		return fmt.Errorf("%s is not a checkbox", name)
	}
	d.checks[name] = checked
	return nil
}

// FieldNames returns all field names in sorted order.
func (d *Document) FieldNames() []string {
	names := make([]string, 0, len(d.fields))
	for n := range d.fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Bytes renders the template with every pending write applied.
func (d *Document) Bytes() ([]byte, error) {
	if len(d.text) == 0 && len(d.checks) == 0 {
		return d.src, nil
	}
	payload, err := json.Marshal(d.formData())
	if err != nil {
		return nil, fmt.Errorf("encode form data: %w", err)
	}
	var out bytes.Buffer
	if err := api.FillForm(bytes.NewReader(d.src), bytes.NewReader(payload), &out, d.conf); err != nil {
		return nil, fmt.Errorf("fill form: %w", err)
	}
	return out.Bytes(), nil
}

// pdfcpu's JSON import format for FillForm.
type formGroup struct {
	Forms []formData `json:"forms"`
}

type formData struct {
	TextFields []textField  `json:"textfield,omitempty"`
	DateFields []dateField  `json:"datefield,omitempty"`
	CheckBoxes []checkField `json:"checkbox,omitempty"`
}

type textField struct {
	Pages []int  `json:"pages"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type dateField struct {
	Pages  []int  `json:"pages"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Format string `json:"format"`
	Value  string `json:"value"`
}

type checkField struct {
	Pages []int  `json:"pages"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

func (d *Document) formData() formGroup {
	var fd formData
	for _, name := range sortedKeys(d.text) {
		f := d.fields[name]
		if f.typ == form.FTDate {
			fd.DateFields = append(fd.DateFields, dateField{
				Pages: f.pages, ID: f.id, Name: f.name, Format: dateFieldFormat, Value: d.text[name],
			})
			continue
		}
		fd.TextFields = append(fd.TextFields, textField{Pages: f.pages, ID: f.id, Name: f.name, Value: d.text[name]})
	}
	for _, name := range sortedKeys(d.checks) {
		f := d.fields[name]
		fd.CheckBoxes = append(fd.CheckBoxes, checkField{Pages: f.pages, ID: f.id, Name: f.name, Value: d.checks[name]})
	}
	return formGroup{Forms: []formData{fd}}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
