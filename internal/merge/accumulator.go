// Package merge holds the output table of a linkage run: one row per primary
// row, widened with every secondary dataset's columns.
package merge

import (
	"iter"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

// Value is one output cell. The zero Value is absent.
type Value struct {
	Text    string
	Present bool
}

func Text(s string) Value { return Value{Text: s, Present: true} }

// Render returns the cell text, or absent when the cell was never written.
func (v Value) Render(absent string) string {
	if !v.Present {
		return absent
	}
	return v.Text
}

// Policy decides what happens when a second secondary row targets a primary
// row that already holds a match from the same dataset.
type Policy int

const (
	// PolicyLast overwrites with the later row.
	PolicyLast Policy = iota
	// PolicyBest keeps the higher certainty; ties keep the earlier row.
	PolicyBest
)

// ParsePolicy maps a config conflict setting to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case config.ConflictLast, "":
		return PolicyLast, nil
	case config.ConflictBest:
		return PolicyBest, nil
	default:
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, 0, "unknown conflict policy %q", s)
	}
}

// Outcome describes the effect of a Merge call.
type Outcome int

const (
	Written Outcome = iota
	Replaced
	Kept
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Replaced:
		return "replaced"
	default:
		return "kept"
	}
}

// Group locates one secondary dataset's columns within a row.
type Group struct {
	Dataset string
	Start   int
	Width   int
	id      int
}

// Accumulator is the working output table. Rows are created from primary
// rows, widened by Reserve before any merge, and written in place by Merge.
type Accumulator struct {
	mu        sync.Mutex
	policy    Policy
	columns   []string
	lookup    map[string]struct{}
	groups    []Group
	rows      [][]Value
	certainty [][]float64
	merged    bool
}

// NewAccumulator starts a table whose leading columns are the primary
// dataset's headers.
func NewAccumulator(primaryHeaders []string, policy Policy) *Accumulator {
	a := &Accumulator{
		policy:  policy,
		columns: slices.Clone(primaryHeaders),
		lookup:  make(map[string]struct{}, len(primaryHeaders)),
	}
	for _, h := range primaryHeaders {
		a.lookup[h] = struct{}{}
	}
	return a
}

// AddPrimary appends a primary row and returns its id. Ids line up with the
// primary index's document ids.
func (a *Accumulator) AddPrimary(values []string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	row := make([]Value, len(a.columns))
	for i, v := range values {
		if i < len(row) {
			row[i] = Text(v)
		}
	}
	a.rows = append(a.rows, row)
	for g := range a.certainty {
		a.certainty[g] = append(a.certainty[g], 0)
	}
	return len(a.rows) - 1
}

// Reserve adds a secondary dataset's columns, absent in every row, and
// returns the group to merge into. It must be called before the first Merge.
func (a *Accumulator) Reserve(dataset string, headers []string) (Group, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.merged {
		return Group{}, apperrors.Newf(apperrors.ErrInternal, 0, "reserve %s: columns must be reserved before merging", dataset)
	}
	cols := ColumnNames(dataset, headers)
	for _, c := range cols {
		if _, dup := a.lookup[c]; dup {
			return Group{}, apperrors.Newf(apperrors.ErrInvalidInput, 0, "column %q already exists; is %s listed twice?", c, dataset)
		}
	}
	g := Group{Dataset: dataset, Start: len(a.columns), Width: len(cols), id: len(a.groups)}
	for _, c := range cols {
		a.lookup[c] = struct{}{}
	}
	a.columns = append(a.columns, cols...)
	a.groups = append(a.groups, g)
	for i, row := range a.rows {
		a.rows[i] = append(row, make([]Value, len(cols))...)
	}
	a.certainty = append(a.certainty, make([]float64, len(a.rows)))
	return g, nil
}

// Merge writes a matched secondary row and its certainty into the primary
// row rowID, subject to the conflict policy.
func (a *Accumulator) Merge(rowID int, g Group, values []string, certainty float64) (Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rowID < 0 || rowID >= len(a.rows) {
		return 0, apperrors.Newf(apperrors.ErrInternal, 0, "merge %s: row %d out of range", g.Dataset, rowID)
	}
	if g.id >= len(a.groups) || a.groups[g.id] != g {
		return 0, apperrors.Newf(apperrors.ErrInternal, 0, "merge %s: unknown column group", g.Dataset)
	}
	if len(values) != g.Width-1 {
		return 0, apperrors.Newf(apperrors.ErrMalformedRow, 0, "merge %s: got %d values for %d columns", g.Dataset, len(values), g.Width-1)
	}
	a.merged = true

	row := a.rows[rowID]
	outcome := Written
	if row[g.Start+g.Width-1].Present {
		if a.policy == PolicyBest && certainty <= a.certainty[g.id][rowID] {
			return Kept, nil
		}
		outcome = Replaced
	}
	for i, v := range values {
		row[g.Start+i] = Text(v)
	}
	row[g.Start+g.Width-1] = Text(FormatCertainty(certainty))
	a.certainty[g.id][rowID] = certainty
	return outcome, nil
}

// Columns returns the output schema.
func (a *Accumulator) Columns() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.columns)
}

// Len is the number of rows, always the primary row count.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rows)
}

// Row returns a copy of row i.
func (a *Accumulator) Row(i int) []Value {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.rows) {
		return nil
	}
	return slices.Clone(a.rows[i])
}

// Rows yields copies of every row in primary order.
func (a *Accumulator) Rows() iter.Seq2[int, []Value] {
	return func(yield func(int, []Value) bool) {
		for i := 0; i < a.Len(); i++ {
			if !yield(i, a.Row(i)) {
				return
			}
		}
	}
}

// Records renders rows as text with absent standing in for unwritten cells.
func Records(rows iter.Seq2[int, []Value], absent string) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		for _, row := range rows {
			record := make([]string, len(row))
			for i, v := range row {
				record[i] = v.Render(absent)
			}
			if !yield(record) {
				return
			}
		}
	}
}
