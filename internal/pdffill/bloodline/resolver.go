// Package bloodline projects a master record onto the family-tree schema by
// choosing the Polish line of descent (paternal or maternal).
//
// The maternal line is used only when the mother is flagged Polish and the
// father is not. Every other combination, including both flags set or neither,
// resolves paternal.
package bloodline

import (
	"strconv"
	"strings"

	"casedocs/internal/masterdata"
)

// Lineage names the line of descent a view was resolved from.
type Lineage string

const (
	Paternal Lineage = "paternal"
	Maternal Lineage = "maternal"
)

// MaxMinorChildren is fixed by the family-tree form layout.
const MaxMinorChildren = 3

// maxSourceChildren bounds the child_N columns scanned in the master record.
const maxSourceChildren = 10

// Person is one resolved slot of the family tree. Dates are verbatim source values.
type Person struct {
	FirstName          string
	LastName           string
	MaidenName         string
	FullName           string
	BirthDate          string
	BirthPlace         string
	MarriageDate       string
	MarriagePlace      string
	EmigrationDate     string
	NaturalizationDate string
	DeathDate          string
	DeathPlace         string
}

// View is the bloodline-disambiguated projection used for family-tree filling.
type View struct {
	Lineage           Lineage
	Applicant         Person
	ApplicantSpouse   Person
	PolishParent      Person
	OtherParent       Person
	PolishGrandfather Person
	PolishGrandmother Person
	GreatGrandfather  Person
	GreatGrandmother  Person
	MinorChildren     []Person
}

// line maps each lineage-dependent slot to its source column prefix.
type line struct {
	parent           string
	otherParent      string
	grandfather      string
	grandmother      string
	greatGrandfather string
	greatGrandmother string
}

var lines = map[Lineage]line{
	Paternal: {
		parent: "father", otherParent: "mother",
		grandfather: "pgf", grandmother: "pgm",
		greatGrandfather: "pggf", greatGrandmother: "pggm",
	},
	Maternal: {
		parent: "mother", otherParent: "father",
		grandfather: "mgf", grandmother: "mgm",
		greatGrandfather: "mggf", greatGrandmother: "mggm",
	},
}

// ChooseLineage applies the bloodline rule to the two ancestry flags.
func ChooseLineage(fatherIsPolish, motherIsPolish bool) Lineage {
	if motherIsPolish && !fatherIsPolish {
		return Maternal
	}
	return Paternal
}

// FullName joins the present name parts with a single space.
func FullName(first, last string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{first, last} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Resolve builds the family-tree view of record. It never fails; missing
// source columns resolve to empty strings.
func Resolve(record masterdata.Record) View {
	lineage := ChooseLineage(record.Flag(masterdata.FatherIsPolish), record.Flag(masterdata.MotherIsPolish))
	l := lines[lineage]

	return View{
		Lineage:           lineage,
		Applicant:         person(record, "applicant"),
		ApplicantSpouse:   person(record, "spouse"),
		PolishParent:      person(record, l.parent),
		OtherParent:       person(record, l.otherParent),
		PolishGrandfather: person(record, l.grandfather),
		PolishGrandmother: person(record, l.grandmother),
		GreatGrandfather:  person(record, l.greatGrandfather),
		GreatGrandmother:  person(record, l.greatGrandmother),
		MinorChildren:     minorChildren(record),
	}
}

func person(record masterdata.Record, prefix string) Person {
	get := func(suffix string) string {
		return record.String(prefix + "_" + suffix)
	}
	p := Person{
		FirstName:          get("first_name"),
		LastName:           get("last_name"),
		MaidenName:         get("maiden_name"),
		BirthDate:          get("dob"),
		BirthPlace:         get("pob"),
		MarriageDate:       get("marriage_date"),
		MarriagePlace:      get("marriage_place"),
		EmigrationDate:     get("emigration_date"),
		NaturalizationDate: get("naturalization_date"),
		DeathDate:          get("death_date"),
		DeathPlace:         get("death_place"),
	}
	p.FullName = FullName(p.FirstName, p.LastName)
	return p
}

func minorChildren(record masterdata.Record) []Person {
	children := make([]Person, 0, MaxMinorChildren)
	for i := 1; i <= maxSourceChildren && len(children) < MaxMinorChildren; i++ {
		p := person(record, "child_"+strconv.Itoa(i))
		if p.FirstName == "" && p.LastName == "" {
			continue
		}
		children = append(children, p)
	}
	return children
}

// Fields flattens the view into "{slot}_{field}" keys matching the family-tree
// mapping table, plus "lineage". Minor children use slots minor_1..minor_3.
func (v View) Fields() map[string]any {
	out := map[string]any{"lineage": string(v.Lineage)}
	slots := []struct {
		name string
		p    Person
	}{
		{"applicant", v.Applicant},
		{"applicant_spouse", v.ApplicantSpouse},
		{"polish_parent", v.PolishParent},
		{"other_parent", v.OtherParent},
		{"polish_grandfather", v.PolishGrandfather},
		{"polish_grandmother", v.PolishGrandmother},
		{"great_grandfather", v.GreatGrandfather},
		{"great_grandmother", v.GreatGrandmother},
	}
	for _, s := range slots {
		s.p.flatten(s.name, out)
	}
	for i, child := range v.MinorChildren {
		child.flatten("minor_"+strconv.Itoa(i+1), out)
	}
	return out
}

func (p Person) flatten(slot string, out map[string]any) {
	out[slot+"_first_name"] = p.FirstName
	out[slot+"_last_name"] = p.LastName
	out[slot+"_maiden_name"] = p.MaidenName
	out[slot+"_full_name"] = p.FullName
	out[slot+"_dob"] = p.BirthDate
	out[slot+"_pob"] = p.BirthPlace
	out[slot+"_marriage_date"] = p.MarriageDate
	out[slot+"_marriage_place"] = p.MarriagePlace
	out[slot+"_emigration_date"] = p.EmigrationDate
	out[slot+"_naturalization_date"] = p.NaturalizationDate
	out[slot+"_death_date"] = p.DeathDate
	out[slot+"_death_place"] = p.DeathPlace
}
