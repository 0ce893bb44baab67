package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDate(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "iso date", input: "1952-07-04", want: "04.07.1952"},
		{name: "rfc3339 timestamp", input: "1987-11-23T10:15:00Z", want: "23.11.1987"},
		{name: "timestamp without zone", input: "2001-02-03T04:05:06", want: "03.02.2001"},
		{name: "already polish format", input: "09.05.1945", want: "09.05.1945"},
		{name: "us slash format", input: "12/31/1999", want: "31.12.1999"},
		{name: "long english month", input: "March 7, 1921", want: "07.03.1921"},
		{name: "time value", input: time.Date(1930, 1, 2, 0, 0, 0, 0, time.UTC), want: "02.01.1930"},
		{name: "epoch millis", input: float64(0), want: "01.01.1970"},
		{name: "empty string", input: "", want: ""},
		{name: "whitespace", input: "   ", want: ""},
		{name: "garbage", input: "not a date", want: ""},
		{name: "impossible day", input: "1990-02-31", want: ""},
		{name: "nil", input: nil, want: ""},
		{name: "zero time", input: time.Time{}, want: ""},
		{name: "bool", input: true, want: ""},
		{name: "map", input: map[string]any{"y": 1}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, Date(tt.input))
			})
		})
	}
}

func TestAddress(t *testing.T) {
	t.Run("skips falsy parts", func(t *testing.T) {
		got := Address(map[string]any{
			"street":  "ul. Marszałkowska 1",
			"city":    "Warszawa",
			"state":   "",
			"zip":     "00-001",
			"country": "Polska",
		})
		assert.Equal(t, "ul. Marszałkowska 1, Warszawa, 00-001, Polska", got)
	})

	t.Run("empty address", func(t *testing.T) {
		assert.Equal(t, "", Address(map[string]any{}))
		assert.Equal(t, "", Address(nil))
	})
}

func TestArray(t *testing.T) {
	assert.Equal(t, "Kraków, Gdańsk", Array([]any{"Kraków", "", nil, "Gdańsk", false}))
	assert.Equal(t, "", Array(nil))
}

func TestBoolean(t *testing.T) {
	yes, no := true, false
	assert.Equal(t, "Yes", Boolean(true))
	assert.Equal(t, "No", Boolean(false))
	assert.Equal(t, "Yes", Boolean(&yes))
	assert.Equal(t, "No", Boolean(&no))
	assert.Equal(t, "", Boolean(nil))
	assert.Equal(t, "", Boolean((*bool)(nil)))
}

func TestNestedValue(t *testing.T) {
	record := map[string]any{
		"a":       map[string]any{"b": map[string]any{"c": "deep"}},
		"flat":    "value",
		"strings": map[string]string{"k": "v"},
	}

	v, ok := NestedValue(record, "a.b.c")
	assert.True(t, ok)
	assert.Equal(t, "deep", v)

	v, ok = NestedValue(record, "strings.k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	for _, path := range []string{"a.x.c", "flat.b", "missing", "a.b.c.d", ""} {
		v, ok := NestedValue(record, path)
		assert.False(t, ok, path)
		assert.Nil(t, v, path)
	}

	_, ok = NestedValue(nil, "a")
	assert.False(t, ok)
}

func TestFieldValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		hint  string
		want  string
	}{
		{name: "date by name", value: "1960-01-15", hint: "father_birth_date", want: "15.01.1960"},
		{name: "dob by name", value: "1960-01-15", hint: "applicant_dob", want: "15.01.1960"},
		{name: "date hint unparseable", value: "unknown", hint: "marriage_date", want: ""},
		{name: "address map", value: map[string]any{"city": "Lwów", "country": "Polska"}, hint: "applicant_address", want: "Lwów, Polska"},
		{name: "address string", value: " 1 Main St ", hint: "applicant_address", want: "1 Main St"},
		{name: "array", value: []any{"PL", "US"}, hint: "citizenships", want: "PL, US"},
		{name: "bool", value: true, hint: "has_polish_passport", want: "Yes"},
		{name: "number", value: float64(3), hint: "children_count", want: "3"},
		{name: "fraction", value: 1.5, hint: "height", want: "1.5"},
		{name: "trimmed text", value: "  Kowalski ", hint: "surname", want: "Kowalski"},
		{name: "nil", value: nil, hint: "surname", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FieldValue(tt.value, tt.hint))
		})
	}
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy(true))
	assert.True(t, Truthy(float64(2)))
	assert.True(t, Truthy(map[string]any{}))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy("  "))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(float64(0)))
	assert.False(t, Truthy(nil))
}
