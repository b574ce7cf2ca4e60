package linker

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/index"
	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/metrics"
)

// Status is the result of querying one secondary row.
type Status string

const (
	StatusMatched        Status = metrics.ResultMatched
	StatusUnmatched      Status = metrics.ResultUnmatched
	StatusEmptyQuery     Status = metrics.ResultEmptyQuery
	StatusBelowThreshold Status = metrics.ResultBelowGate
)

// Decision is the top-1 result for one query. DocID is -1 unless Status is
// StatusMatched or StatusBelowThreshold.
type Decision struct {
	Status       Status  `json:"status"`
	DocID        int     `json:"doc_id"`
	Certainty    float64 `json:"certainty"`
	MatchedTerms int     `json:"matched_terms"`
}

// Decide ranks query against ix and gates the head of the ranking.
func Decide(ix *index.Index, query []string, threshold scorer.Threshold) Decision {
	if len(query) == 0 {
		return Decision{Status: StatusEmptyQuery, DocID: -1}
	}
	best, ok := scorer.Best(ix, query)
	if !ok {
		return Decision{Status: StatusUnmatched, DocID: -1}
	}
	d := Decision{
		Status:       StatusMatched,
		DocID:        best.DocID,
		Certainty:    best.Score,
		MatchedTerms: best.MatchedTerms,
	}
	if !threshold.Accepts(best) {
		d.Status = StatusBelowThreshold
	}
	return d
}

// CacheKey identifies a query against one index and gate. Term order and
// repetition do not change the ranking, so the key uses the sorted distinct
// terms.
func CacheKey(fingerprint string, threshold scorer.Threshold, query []string) string {
	terms := slices.Clone(query)
	slices.Sort(terms)
	terms = slices.Compact(terms)

	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(threshold.MinScore, 'g', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(threshold.MinOverlap)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(terms, " ")))
	return hex.EncodeToString(h.Sum(nil))
}

// LinkEvent describes one processed secondary row.
type LinkEvent struct {
	RunID        string    `json:"run_id,omitempty"`
	Dataset      string    `json:"dataset"`
	Row          int       `json:"row"`
	Status       Status    `json:"status"`
	PrimaryRow   int       `json:"primary_row"`
	Certainty    float64   `json:"certainty,omitempty"`
	MatchedTerms int       `json:"matched_terms,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// DatasetReport summarizes the linkage of one secondary dataset.
type DatasetReport struct {
	Dataset        string        `json:"dataset"`
	Processed      int           `json:"processed"`
	Matched        int           `json:"matched"`
	Unmatched      int           `json:"unmatched"`
	EmptyQueries   int           `json:"empty_queries"`
	BelowThreshold int           `json:"below_threshold"`
	Conflicts      int           `json:"conflicts"`
	Duration       time.Duration `json:"duration"`
}

// Report summarizes a run.
type Report struct {
	Primary     string          `json:"primary"`
	PrimaryRows int             `json:"primary_rows"`
	Terms       int             `json:"terms"`
	Fingerprint string          `json:"fingerprint"`
	Datasets    []DatasetReport `json:"datasets"`
}

// Matched returns the number of matched rows across all datasets.
func (r *Report) Matched() int {
	n := 0
	for _, d := range r.Datasets {
		n += d.Matched
	}
	return n
}
