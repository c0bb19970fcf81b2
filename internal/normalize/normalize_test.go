package normalize_test

import (
	"reflect"
	"testing"

	"github.com/westonopentrain/capsule-match/internal/normalize"
)

func TestLanguages(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want []string
	}{
		{
			name: "comma-split entries",
			raw:  []string{"English, Spanish"},
			want: []string{"English", "Spanish"},
		},
		{
			name: "strips proficiency qualifier",
			raw:  []string{"Slovak – Proficiency Level = Native"},
			want: []string{"Slovak"},
		},
		{
			name: "strips proficiency qualifier with ascii hyphen",
			raw:  []string{"French - Proficiency Level = Fluent"},
			want: []string{"French"},
		},
		{
			name: "case-insensitive dedup preserves first-seen casing",
			raw:  []string{"English", "english", "ENGLISH"},
			want: []string{"English"},
		},
		{
			name: "trims whitespace and drops empties",
			raw:  []string{"  German ,  , "},
			want: []string{"German"},
		},
		{
			name: "nil input yields nil output",
			raw:  nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize.Languages(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Languages(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCountry(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "  United States  ", want: "United States"},
		{raw: "France", want: "France"},
		{raw: "", want: ""},
	}
	for _, tt := range tests {
		got := normalize.Country(tt.raw)
		if got != tt.want {
			t.Errorf("Country(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
