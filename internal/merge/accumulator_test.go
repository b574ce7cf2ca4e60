package merge

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

func TestPascalCase(t *testing.T) {
	tests := map[string]string{
		"companies.csv":       "CompaniesCsv",
		"crm_export-2024.csv": "CrmExport2024Csv",
		"HTTPServer.csv":      "HttpServerCsv",
		"myFile.csv":          "MyFileCsv",
		"file2Data":           "File2Data",
		"école normale":       "ÉcoleNormale",
		"":                    "",
	}
	for in, want := range tests {
		if got := PascalCase(in); got != want {
			t.Errorf("PascalCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestColumnNames(t *testing.T) {
	got := ColumnNames("crm.csv", []string{"company", "city"})
	want := []string{"CrmCsv__company", "CrmCsv__city", "CrmCsv__match_certainty"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ColumnNames = %q, want %q", got, want)
	}
}

func TestReservePadsEveryRow(t *testing.T) {
	a := NewAccumulator([]string{"name"}, PolicyLast)
	a.AddPrimary([]string{"Acme Inc"})
	g, err := a.Reserve("crm.csv", []string{"company"})
	if err != nil {
		t.Fatal(err)
	}
	a.AddPrimary([]string{"Globex Co"})

	if want := []string{"name", "CrmCsv__company", "CrmCsv__match_certainty"}; !reflect.DeepEqual(a.Columns(), want) {
		t.Fatalf("Columns() = %q", a.Columns())
	}
	if g.Start != 1 || g.Width != 2 {
		t.Errorf("group = %+v", g)
	}
	for i, row := range a.Rows() {
		if len(row) != 3 {
			t.Fatalf("row %d width = %d, want 3", i, len(row))
		}
		if row[1].Present || row[2].Present {
			t.Errorf("row %d secondary cells should be absent: %+v", i, row)
		}
	}
}

func TestMergeAndRender(t *testing.T) {
	a := NewAccumulator([]string{"name"}, PolicyLast)
	a.AddPrimary([]string{"Acme Inc"})
	a.AddPrimary([]string{"Globex Co"})
	g, err := a.Reserve("crm.csv", []string{"company"})
	if err != nil {
		t.Fatal(err)
	}
	outcome, err := a.Merge(0, g, []string{"ACME INCORPORATED"}, 0.6931)
	if err != nil || outcome != Written {
		t.Fatalf("Merge = %v, %v", outcome, err)
	}

	records := slices.Collect(Records(a.Rows(), "-"))
	want := [][]string{
		{"Acme Inc", "ACME INCORPORATED", "0.6931"},
		{"Globex Co", "-", "-"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("Records = %q, want %q", records, want)
	}
}

func TestConflictPolicies(t *testing.T) {
	run := func(policy Policy) ([]string, []Outcome) {
		a := NewAccumulator([]string{"name"}, policy)
		a.AddPrimary([]string{"Acme"})
		g, err := a.Reserve("b.csv", []string{"v"})
		if err != nil {
			t.Fatal(err)
		}
		var outcomes []Outcome
		for _, m := range []struct {
			v     string
			score float64
		}{{"first", 2}, {"weaker", 1}, {"tie", 2}, {"stronger", 3}} {
			o, err := a.Merge(0, g, []string{m.v}, m.score)
			if err != nil {
				t.Fatal(err)
			}
			outcomes = append(outcomes, o)
		}
		return slices.Collect(Records(a.Rows(), ""))[0], outcomes
	}

	last, lastOutcomes := run(PolicyLast)
	if want := []string{"Acme", "stronger", "3"}; !reflect.DeepEqual(last, want) {
		t.Errorf("last policy row = %q, want %q", last, want)
	}
	if want := []Outcome{Written, Replaced, Replaced, Replaced}; !reflect.DeepEqual(lastOutcomes, want) {
		t.Errorf("last policy outcomes = %v", lastOutcomes)
	}

	best, bestOutcomes := run(PolicyBest)
	if want := []string{"Acme", "stronger", "3"}; !reflect.DeepEqual(best, want) {
		t.Errorf("best policy row = %q, want %q", best, want)
	}
	if want := []Outcome{Written, Kept, Kept, Replaced}; !reflect.DeepEqual(bestOutcomes, want) {
		t.Errorf("best policy outcomes = %v", bestOutcomes)
	}
}

func TestMergeErrors(t *testing.T) {
	a := NewAccumulator([]string{"name"}, PolicyLast)
	a.AddPrimary([]string{"Acme"})
	g, err := a.Reserve("b.csv", []string{"x", "y"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Merge(4, g, []string{"1", "2"}, 1); !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("out of range row = %v, want ErrInternal", err)
	}
	if _, err := a.Merge(0, g, []string{"1"}, 1); !errors.Is(err, apperrors.ErrMalformedRow) {
		t.Errorf("short values = %v, want ErrMalformedRow", err)
	}
	if _, err := a.Merge(0, Group{Dataset: "c.csv", Start: 3, Width: 2, id: 7}, []string{"1"}, 1); !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("foreign group = %v, want ErrInternal", err)
	}
	if _, err := a.Merge(0, g, []string{"1", "2"}, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Reserve("c.csv", []string{"z"}); !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("reserve after merge = %v, want ErrInternal", err)
	}
}

func TestReserveRejectsCollisions(t *testing.T) {
	a := NewAccumulator([]string{"name"}, PolicyLast)
	if _, err := a.Reserve("b.csv", []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Reserve("b.csv", []string{"x"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("duplicate dataset = %v, want ErrInvalidInput", err)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy("best"); err != nil || p != PolicyBest {
		t.Errorf("ParsePolicy(best) = %v, %v", p, err)
	}
	if p, err := ParsePolicy(""); err != nil || p != PolicyLast {
		t.Errorf("ParsePolicy('') = %v, %v", p, err)
	}
	if _, err := ParsePolicy("first"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("ParsePolicy(first) = %v", err)
	}
}

func TestFormatCertainty(t *testing.T) {
	for score, want := range map[float64]string{0.6931: "0.6931", 2: "2", 1.5: "1.5"} {
		if got := FormatCertainty(score); got != want {
			t.Errorf("FormatCertainty(%v) = %q, want %q", score, got, want)
		}
	}
}
