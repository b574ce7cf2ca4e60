package merge

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// CertaintyHeader is appended to every secondary dataset's headers.
	CertaintyHeader = "match_certainty"
	separator       = "__"
)

// ColumnName prefixes a secondary header with its dataset name so headers
// shared between datasets stay distinct.
func ColumnName(dataset, header string) string {
	return PascalCase(dataset) + separator + header
}

// ColumnNames returns the columns a secondary dataset contributes: each
// header followed by the certainty column.
func ColumnNames(dataset string, headers []string) []string {
	cols := make([]string, 0, len(headers)+1)
	for _, h := range headers {
		cols = append(cols, ColumnName(dataset, h))
	}
	return append(cols, ColumnName(dataset, CertaintyHeader))
}

// PascalCase splits s into words on punctuation, spaces and lower-to-upper
// boundaries and title-cases each one: "crm_export.csv" -> "CrmExportCsv".
func PascalCase(s string) string {
	caser := cases.Title(language.Und)
	var b strings.Builder
	for _, word := range splitWords(s) {
		b.WriteString(caser.String(word))
	}
	return b.String()
}

func splitWords(s string) []string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(current) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	return words
}

// FormatCertainty renders a score with the fewest digits that round-trip.
func FormatCertainty(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
