package filler

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/suite"

	"casedocs/internal/pdffill/mapping"
)

// =============================================================================
// Filler Test Suite
// =============================================================================
// Justification for unit tests: Fill is pure apart from the form handle, so
// every per-field outcome (filled, empty, error) is checked against an
// in-memory form.

type fakeForm struct {
	kinds    map[string]FieldKind
	text     map[string]string
	checks   map[string]bool
	failText map[string]error
}

func newFakeForm(text []string, checkboxes []string) *fakeForm {
	f := &fakeForm{
		kinds:    map[string]FieldKind{},
		text:     map[string]string{},
		checks:   map[string]bool{},
		failText: map[string]error{},
	}
	for _, n := range text {
		f.kinds[n] = FieldText
	}
	for _, n := range checkboxes {
		f.kinds[n] = FieldCheckbox
	}
	return f
}

func (f *fakeForm) FieldKind(name string) FieldKind { return f.kinds[name] }

func (f *fakeForm) SetText(name, value string) error {
	if err := f.failText[name]; err != nil {
		return err
	}
	f.text[name] = value
	return nil
}

func (f *fakeForm) SetCheckbox(name string, checked bool) error {
	f.checks[name] = checked
	return nil
}

func (f *fakeForm) FieldNames() []string {
	names := make([]string, 0, len(f.kinds))
	for n := range f.kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type FillerSuite struct {
	suite.Suite
}

func TestFillerSuite(t *testing.T) {
	suite.Run(t, new(FillerSuite))
}

func table(fields ...mapping.Field) *mapping.Table {
	for i := range fields {
		f := &fields[i]
		if f.Kind == "" {
			f.Kind = mapping.KindScalar
		}
		if f.Format == "" {
			f.Format = mapping.FormatAuto
		}
		if len(f.Sources) == 0 {
			f.Sources = []string{f.Source}
		}
	}
	return &mapping.Table{Template: mapping.POAAdult, Fields: fields}
}

// =============================================================================
// Dotted paths and empties
// =============================================================================

func (s *FillerSuite) TestDottedPath() {
	tbl := table(mapping.Field{Target: "targetA", Source: "a.b"})

	s.Run("present value fills", func() {
		form := newFakeForm([]string{"targetA"}, nil)
		res := Fill(form, tbl, map[string]any{"a": map[string]any{"b": "x"}})
		s.Equal(1, res.FilledFields)
		s.Empty(res.EmptyFields)
		s.Empty(res.Errors)
		s.Equal("x", form.text["targetA"])
	})

	s.Run("missing leaf is empty, not written", func() {
		form := newFakeForm([]string{"targetA"}, nil)
		res := Fill(form, tbl, map[string]any{"a": map[string]any{}})
		s.Equal(0, res.FilledFields)
		s.Equal([]string{"targetA"}, res.EmptyFields)
		s.NotContains(form.text, "targetA")
	})

	s.Run("whitespace only is empty", func() {
		form := newFakeForm([]string{"targetA"}, nil)
		res := Fill(form, tbl, map[string]any{"a": map[string]any{"b": "   "}})
		s.Equal([]string{"targetA"}, res.EmptyFields)
	})
}

// =============================================================================
// Concatenation and name composition
// =============================================================================

func (s *FillerSuite) TestPipeConcatenation() {
	tbl := table(mapping.Field{Target: "combined", Source: "first|last", Sources: []string{"first", "last"}})

	s.Run("empty parts are excluded", func() {
		form := newFakeForm([]string{"combined"}, nil)
		res := Fill(form, tbl, map[string]any{"first": "Jan", "last": ""})
		s.Equal(1, res.FilledFields)
		s.Equal("Jan", form.text["combined"])
	})

	s.Run("all parts joined with a space", func() {
		form := newFakeForm([]string{"combined"}, nil)
		Fill(form, tbl, map[string]any{"first": "Jan", "last": "Kowalski"})
		s.Equal("Jan Kowalski", form.text["combined"])
	})

	s.Run("no parts is empty", func() {
		form := newFakeForm([]string{"combined"}, nil)
		res := Fill(form, tbl, map[string]any{})
		s.Equal([]string{"combined"}, res.EmptyFields)
	})
}

func (s *FillerSuite) TestFullName() {
	record := map[string]any{
		"father_first_name": "Józef",
		"father_last_name":  "Nowak",
		"mother_first_name": "Anna",
	}

	s.Run("prefix from first name suffix", func() {
		form := newFakeForm([]string{"father"}, nil)
		Fill(form, table(mapping.Field{Target: "father", Source: "father_first_name", Kind: mapping.KindFullName}), record)
		s.Equal("Józef Nowak", form.text["father"])
	})

	s.Run("prefix from full name suffix", func() {
		form := newFakeForm([]string{"father"}, nil)
		Fill(form, table(mapping.Field{Target: "father", Source: "father_full_name", Kind: mapping.KindFullName}), record)
		s.Equal("Józef Nowak", form.text["father"])
	})

	s.Run("stripped prefix empty falls back to first token", func() {
		form := newFakeForm([]string{"father"}, nil)
		res := Fill(form, table(mapping.Field{Target: "father", Source: "father_x_first_name", Kind: mapping.KindFullName}), record)
		s.Equal("Józef Nowak", form.text["father"])
		s.Empty(res.EmptyFields)
	})

	s.Run("prefix from first token", func() {
		form := newFakeForm([]string{"father"}, nil)
		Fill(form, table(mapping.Field{Target: "father", Source: "father_name", Kind: mapping.KindFullName}), record)
		s.Equal("Józef Nowak", form.text["father"])
	})

	s.Run("single part", func() {
		form := newFakeForm([]string{"mother"}, nil)
		Fill(form, table(mapping.Field{Target: "mother", Source: "mother_last_name", Kind: mapping.KindFullName}), record)
		s.Equal("Anna", form.text["mother"])
	})

	s.Run("no parts is empty", func() {
		form := newFakeForm([]string{"pgf"}, nil)
		res := Fill(form, table(mapping.Field{Target: "pgf", Source: "pgf_first_name", Kind: mapping.KindFullName}), record)
		s.Equal([]string{"pgf"}, res.EmptyFields)
	})
}

// =============================================================================
// Formatting and checkboxes
// =============================================================================

func (s *FillerSuite) TestFormatting() {
	record := map[string]any{
		"dob":     "1950-03-01",
		"addr":    map[string]any{"street": "Main 1", "city": "Kraków"},
		"married": true,
		"flag":    "yes",
		"count":   float64(3),
	}
	tbl := table(
		mapping.Field{Target: "applicant_dob", Source: "dob"},
		mapping.Field{Target: "home_address", Source: "addr"},
		mapping.Field{Target: "is_married", Source: "married"},
		mapping.Field{Target: "flag_text", Source: "flag", Format: mapping.FormatBoolean},
		mapping.Field{Target: "event", Source: "dob", Format: mapping.FormatDate},
		mapping.Field{Target: "count_dob", Source: "count", Format: mapping.FormatText},
	)
	form := newFakeForm([]string{"applicant_dob", "home_address", "is_married", "flag_text", "event", "count_dob"}, nil)

	res := Fill(form, tbl, record)

	s.Equal(6, res.FilledFields)
	s.Equal("01.03.1950", form.text["applicant_dob"])
	s.Equal("Main 1, Kraków", form.text["home_address"])
	s.Equal("Yes", form.text["is_married"])
	s.Equal("Yes", form.text["flag_text"])
	s.Equal("01.03.1950", form.text["event"])
	s.Equal("3", form.text["count_dob"])
}

func (s *FillerSuite) TestCheckbox() {
	tbl := table(
		mapping.Field{Target: "cb_true", Source: "a"},
		mapping.Field{Target: "cb_on", Source: "b"},
		mapping.Field{Target: "cb_one", Source: "c"},
		mapping.Field{Target: "cb_no", Source: "d"},
		mapping.Field{Target: "cb_false", Source: "e"},
	)
	form := newFakeForm(nil, []string{"cb_true", "cb_on", "cb_one", "cb_no", "cb_false"})

	res := Fill(form, tbl, map[string]any{"a": true, "b": "ON", "c": float64(1), "d": "no", "e": false})

	s.Equal(5, res.FilledFields)
	s.True(form.checks["cb_true"])
	s.True(form.checks["cb_on"])
	s.True(form.checks["cb_one"])
	s.False(form.checks["cb_no"])
	s.False(form.checks["cb_false"])
}

func (s *FillerSuite) TestChecked() {
	for _, v := range []any{true, "true", "YES", "1", "y", "Checked", " on ", float64(1)} {
		s.True(Checked(v), "%v", v)
	}
	for _, v := range []any{false, "false", "no", "0", "", nil, "maybe", float64(2)} {
		s.False(Checked(v), "%v", v)
	}
}

// =============================================================================
// Errors and coverage
// =============================================================================

func (s *FillerSuite) TestMissingFieldIsReportedOnce() {
	tbl := table(
		mapping.Field{Target: "present", Source: "a"},
		mapping.Field{Target: "absent", Source: "b"},
		mapping.Field{Target: "blank", Source: "c"},
	)
	form := newFakeForm([]string{"present", "blank", "extra"}, nil)

	res := Fill(form, tbl, map[string]any{"a": "x", "b": "y"})

	s.Equal(3, res.TotalFields)
	s.Equal(1, res.FilledFields)
	s.Equal([]string{"blank"}, res.EmptyFields)
	s.Require().Len(res.Errors, 1)
	s.Equal("absent", res.Errors[0].Field)
	s.Equal(ErrFieldNotFound.Error(), res.Errors[0].Message)
	s.Equal([]string{"extra"}, res.UnmappedFields)
}

func (s *FillerSuite) TestWriteErrorDoesNotAbort() {
	tbl := table(
		mapping.Field{Target: "first", Source: "a"},
		mapping.Field{Target: "second", Source: "b"},
	)
	form := newFakeForm([]string{"first", "second"}, nil)
	form.failText["first"] = errors.New("value too long")

	res := Fill(form, tbl, map[string]any{"a": "x", "b": "y"})

	s.Equal(1, res.FilledFields)
	s.Require().Len(res.Errors, 1)
	s.Equal(FieldError{Field: "first", Message: "value too long"}, res.Errors[0])
	s.Equal("y", form.text["second"])
}

func (s *FillerSuite) TestCoverage() {
	s.Equal(70, Result{TotalFields: 10, FilledFields: 7}.Coverage())
	s.Equal(67, Result{TotalFields: 3, FilledFields: 2}.Coverage())
	s.Equal(100, Result{TotalFields: 4, FilledFields: 4}.Coverage())
	s.Equal(0, Result{}.Coverage())
}

func (s *FillerSuite) TestEmbeddedTableAgainstRecord() {
	reg, err := mapping.LoadEmbedded()
	s.Require().NoError(err)
	tbl, err := reg.Table(mapping.POAAdult)
	s.Require().NoError(err)

	form := newFakeForm(tbl.Targets(), nil)
	res := Fill(form, tbl, map[string]any{
		"applicant_first_name": "Maria",
		"applicant_last_name":  "Wiśniewska",
		"applicant_dob":        "1980-12-24",
	})

	s.Equal(len(tbl.Fields), res.TotalFields)
	s.Equal(4, res.FilledFields)
	s.Empty(res.Errors)
	s.Equal("Maria Wiśniewska", form.text["applicant_full_name"])
	s.Equal("24.12.1980", form.text["applicant_dob"])
}
