package normalizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   \t\n ", nil},
		{"Acme Inc", []string{"acme", "inc"}},
		{"  ACME   INCORPORATED ", []string{"acme", "incorporated"}},
		{"Globex\tCo\nLtd", []string{"globex", "co", "ltd"}},
		{"O'Brien & Sons, LLC", []string{"o'brien", "&", "sons,", "llc"}},
		{"ÉCOLE Normale", []string{"école", "normale"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"Acme Inc",
		"  Mixed   CASE\tand\nwhitespace  ",
		"already normalized text",
		"",
	}
	for _, in := range inputs {
		first := Normalize(in)
		second := Normalize(Join(first))
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Normalize(Join(Normalize(%q))) = %q, want %q", in, second, first)
		}
	}
}

func TestClean(t *testing.T) {
	if got, want := Clean("  Hello \t  WORLD "), "hello world"; got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestFrequencies(t *testing.T) {
	got := Frequencies([]string{"acme", "inc", "acme"})
	want := map[string]int{"acme": 2, "inc": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Frequencies() = %v, want %v", got, want)
	}
}

func BenchmarkNormalize(b *testing.B) {
	text := strings.Repeat("Distributed  Record LINKAGE across\tdatasets ", 20)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Normalize(text)
	}
}
