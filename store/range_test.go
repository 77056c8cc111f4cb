package store

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		area     string
		expected Range
	}{
		{"UsuariosTemporales", Range{Sheet: "UsuariosTemporales"}},
		{"UsuariosTemporales!B3:F3", Range{Sheet: "UsuariosTemporales", Column: 1, Row: 2, Bounded: true}},
		{"UsuariosTemporales!F12", Range{Sheet: "UsuariosTemporales", Column: 5, Row: 11, Bounded: true}},
		{"'Usuarios Temporales'!A2:F", Range{Sheet: "Usuarios Temporales", Column: 0, Row: 1, Bounded: true}},
		{"'Bob''s Sheet'!AA1", Range{Sheet: "Bob's Sheet", Column: 26, Row: 0, Bounded: true}},
	}

	for _, test := range tests {
		r, err := ParseRange(test.area)
		if err != nil {
			t.Fatalf("Unexpected error parsing range '%v' (%v)", test.area, err)
		}

		if !reflect.DeepEqual(*r, test.expected) {
			t.Errorf("Incorrect range for '%v'\n   expected: %+v\n   got:      %+v", test.area, test.expected, *r)
		}
	}
}

func TestParseInvalidRange(t *testing.T) {
	for _, area := range []string{"", "Sheet!", "Sheet!B0", "Sheet!3B"} {
		if _, err := ParseRange(area); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("Expected ErrInvalidRange for '%v', got %v", area, err)
		}
	}
}

func TestColumnIndex(t *testing.T) {
	tests := map[string]int{"A": 0, "b": 1, "F": 5, "Z": 25, "AA": 26, "AZ": 51}

	for column, expected := range tests {
		if index := ColumnIndex(column); index != expected {
			t.Errorf("Incorrect index for column %v - expected:%v, got:%v", column, expected, index)
		}
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"UsuariosTemporales":  "UsuariosTemporales",
		"Usuarios Temporales": "'Usuarios Temporales'",
		"Bob's":               "'Bob''s'",
	}

	for sheet, expected := range tests {
		if quoted := Quote(sheet); quoted != expected {
			t.Errorf("Incorrect quoted sheet name - expected:%v, got:%v", expected, quoted)
		}
	}
}
