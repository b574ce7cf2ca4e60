// Package scorer ranks documents of a consolidated index against a query
// with BM25 over weighted term frequencies.
package scorer

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/index"
)

// ScoredDoc is one ranked candidate. MatchedTerms counts the distinct query
// terms the document contains.
type ScoredDoc struct {
	DocID        int     `json:"doc_id"`
	Score        float64 `json:"score"`
	MatchedTerms int     `json:"matched_terms"`
}

// Threshold gates the top-1 selection. The zero value accepts any document
// sharing at least one term.
type Threshold struct {
	MinScore   float64
	MinOverlap int
}

// Accepts reports whether doc passes the gate.
func (t Threshold) Accepts(doc ScoredDoc) bool {
	minOverlap := t.MinOverlap
	if minOverlap < 1 {
		minOverlap = 1
	}
	return doc.MatchedTerms >= minOverlap && doc.Score >= t.MinScore
}

// Score ranks every document that shares at least one distinct term with
// query, by descending score and then ascending document id. Documents with
// no shared term are not returned.
func Score(ix *index.Index, query []string) []ScoredDoc {
	if ix == nil || ix.DocCount() == 0 || len(query) == 0 {
		return nil
	}
	params := ix.Params()
	avgDocLength := ix.AvgDocLength()

	seen := make(map[string]struct{}, len(query))
	scores := make(map[int]*ScoredDoc)
	for _, term := range query {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		idf, ok := ix.IDF(term)
		if !ok {
			continue
		}
		for _, posting := range ix.Postings(term) {
			tfNorm := computeTFNorm(
				posting.Frequency,
				ix.DocLength(posting.DocID),
				avgDocLength,
				params,
			)
			doc, ok := scores[posting.DocID]
			if !ok {
				doc = &ScoredDoc{DocID: posting.DocID}
				scores[posting.DocID] = doc
			}
			doc.Score += idf * tfNorm
			doc.MatchedTerms++
		}
	}

	result := make([]ScoredDoc, 0, len(scores))
	for _, doc := range scores {
		doc.Score = round(doc.Score)
		result = append(result, *doc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	return result
}

// Best returns the highest ranked document, if any shares a query term.
func Best(ix *index.Index, query []string) (ScoredDoc, bool) {
	ranked := Score(ix, query)
	if len(ranked) == 0 {
		return ScoredDoc{}, false
	}
	return ranked[0], true
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64, params index.Params) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + params.K1*(1-params.B+params.B*lengthRatio)
	return (termFreq * (params.K1 + 1)) / denominator
}

func round(score float64) float64 {
	return math.Round(score*10000) / 10000
}
