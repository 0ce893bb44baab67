package mapping

import (
	"fmt"
	"strings"
)

// TemplateType is one of the fixed document kinds the pipeline can fill.
type TemplateType string

const (
	POAAdult      TemplateType = "poa-adult"
	POAMinor      TemplateType = "poa-minor"
	POASpouses    TemplateType = "poa-spouses"
	FamilyTree    TemplateType = "family-tree"
	Citizenship   TemplateType = "citizenship"
	Registration  TemplateType = "registration"
	Transcription TemplateType = "transcription"
)

// TemplateTypes lists the closed set in a stable order.
var TemplateTypes = []TemplateType{
	POAAdult, POAMinor, POASpouses, FamilyTree, Citizenship, Registration, Transcription,
}

var aliases = map[string]TemplateType{
	"umiejscowienie": Registration,
	"uzupelnienie":   Transcription,
}

// ParseTemplateType accepts canonical names and the Polish registry aliases.
func ParseTemplateType(s string) (TemplateType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if t, ok := aliases[name]; ok {
		return t, nil
	}
	for _, t := range TemplateTypes {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown template type %q", s)
}

// ObjectName is the template binary's name in the templates bucket.
func (t TemplateType) ObjectName() string {
	return string(t) + ".pdf"
}

// UsesBloodline reports whether the template is filled from the resolved family view.
func (t TemplateType) UsesBloodline() bool {
	return t == FamilyTree
}

func (t TemplateType) String() string {
	return string(t)
}
