package dataset

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

// Field is one selected column. A zero Weight means 1.
type Field struct {
	Name   string
	Weight float64
}

// Selection is the set of columns a dataset contributes to matching: the
// searchable fields of the primary dataset or the query fields of a
// secondary one.
type Selection struct {
	Fields []Field
}

// Select builds a weight-1 selection over names.
func Select(names ...string) Selection {
	s := Selection{Fields: make([]Field, len(names))}
	for i, name := range names {
		s.Fields[i] = Field{Name: name, Weight: 1}
	}
	return s
}

func (s Selection) Empty() bool { return len(s.Fields) == 0 }

func (s Selection) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Weighted reports whether any field carries a weight other than 1.
func (s Selection) Weighted() bool {
	for _, f := range s.Fields {
		if f.Weight != 0 && f.Weight != 1 {
			return true
		}
	}
	return false
}

// Weights converts the selection into index field weights.
func (s Selection) Weights() index.FieldWeights {
	weights := make(index.FieldWeights, len(s.Fields))
	for _, f := range s.Fields {
		w := f.Weight
		if w == 0 {
			w = 1
		}
		weights[f.Name] = w
	}
	return weights
}

// Validate checks the selection against the dataset headers. An empty
// selection returns ErrEmptySelection, which callers treat as a warning.
func (s Selection) Validate(d *Dataset) error {
	if s.Empty() {
		return apperrors.Newf(apperrors.ErrEmptySelection, 0, "%s: no fields selected, no rows will match", d.Name)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if !d.HasHeader(f.Name) {
			return apperrors.Newf(apperrors.ErrInvalidInput, 0, "%s: unknown field %q", d.Name, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return apperrors.Newf(apperrors.ErrInvalidInput, 0, "%s: field %q selected twice", d.Name, f.Name)
		}
		if f.Weight < 0 {
			return apperrors.Newf(apperrors.ErrInvalidInput, 0, "%s: field %q has negative weight", d.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// ParseFields parses "name[:weight],name[:weight]". The weight separator is
// the last colon so column names may contain colons.
func ParseFields(list string) (Selection, error) {
	var s Selection
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field := Field{Name: part, Weight: 1}
		if i := strings.LastIndex(part, ":"); i > 0 {
			if w, err := strconv.ParseFloat(part[i+1:], 64); err == nil {
				if w <= 0 {
					return Selection{}, apperrors.Newf(apperrors.ErrInvalidInput, 0, "field %q: weight must be positive", part[:i])
				}
				field = Field{Name: part[:i], Weight: w}
			}
		}
		s.Fields = append(s.Fields, field)
	}
	return s, nil
}

// ParseSpec parses a "<file>=<fields>" flag value.
func ParseSpec(spec string) (string, Selection, error) {
	target, list, ok := strings.Cut(spec, "=")
	if !ok || strings.TrimSpace(target) == "" {
		return "", Selection{}, apperrors.Newf(apperrors.ErrInvalidInput, 0, "field spec %q: want <file>=<field>[:weight],...", spec)
	}
	sel, err := ParseFields(list)
	if err != nil {
		return "", Selection{}, err
	}
	return strings.TrimSpace(target), sel, nil
}

// Matches reports whether target names this dataset, either by the path it
// was opened with, its absolute path or its base name.
func (d *Dataset) Matches(target string) bool {
	if target == d.Path || target == d.Name {
		return true
	}
	if abs, err := filepath.Abs(target); err == nil && abs == d.Path {
		return true
	}
	return false
}
