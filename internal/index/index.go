package index

import (
	"maps"
	"math"
)

// IDF is the BM25 inverse document frequency with the +1 smoothing that
// keeps it positive for terms present in every document.
func IDF(totalDocs int, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

// Index is a consolidated, read-only inverted index. All statistics were
// fixed by Builder.Consolidate, so it is safe for concurrent readers.
type Index struct {
	params       Params
	weights      FieldWeights
	postings     map[string]PostingList
	docFreq      map[string]int
	idf          map[string]float64
	docs         []Document
	avgDocLength float64
	fingerprint  string
}

func (ix *Index) Params() Params { return ix.params }

// Weights returns a copy of the field weights the index was built with.
func (ix *Index) Weights() FieldWeights { return maps.Clone(ix.weights) }

func (ix *Index) DocCount() int { return len(ix.docs) }

func (ix *Index) TermCount() int { return len(ix.postings) }

// Postings returns the posting list for term in ascending document order.
// Callers must not modify it.
func (ix *Index) Postings(term string) PostingList {
	return ix.postings[term]
}

func (ix *Index) DocFreq(term string) int { return ix.docFreq[term] }

// IDF returns the frozen inverse document frequency of term.
func (ix *Index) IDF(term string) (float64, bool) {
	idf, ok := ix.idf[term]
	return idf, ok
}

// DocLength returns the weighted token count of document id.
func (ix *Index) DocLength(id int) float64 {
	if id < 0 || id >= len(ix.docs) {
		return 0
	}
	return ix.docs[id].Length
}

func (ix *Index) AvgDocLength() float64 { return ix.avgDocLength }

// Document returns a copy of the indexed row with the given id.
func (ix *Index) Document(id int) (Document, bool) {
	if id < 0 || id >= len(ix.docs) {
		return Document{}, false
	}
	doc := ix.docs[id]
	doc.Fields = maps.Clone(doc.Fields)
	return doc, true
}

// Fingerprint identifies the index content, weights and BM25 constants.
// Two indexes built from the same rows and settings share a fingerprint.
func (ix *Index) Fingerprint() string { return ix.fingerprint }
