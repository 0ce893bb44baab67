package filler

// FieldKind is the type of a named form field, fixed when the template is loaded.
type FieldKind int

const (
	FieldUnknown FieldKind = iota
	FieldText
	FieldCheckbox
)

func (k FieldKind) String() string {
	switch k {
	case FieldText:
		return "text"
	case FieldCheckbox:
		return "checkbox"
	default:
		return "unknown"
	}
}

// Form is a loaded, mutable form document.
type Form interface {
	// FieldKind returns FieldUnknown for names the template does not define.
	FieldKind(name string) FieldKind
	SetText(name, value string) error
	SetCheckbox(name string, checked bool) error
	FieldNames() []string
}
