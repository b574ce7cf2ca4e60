package index

// Posting records one document's occurrences of a term. Frequency is the
// weighted term frequency: each field's raw count multiplied by its weight.
type Posting struct {
	DocID     int
	Frequency float64
	Fields    map[string]int
}

// PostingList is ordered by ascending DocID.
type PostingList []Posting

// FieldWeights maps a selected field to its weight. Fields absent from the
// map are neither indexed nor queried.
type FieldWeights map[string]float64

// Document is one indexed primary row.
type Document struct {
	ID     int
	Fields map[string]string
	Length float64
}

// Params are the BM25 constants, frozen when the builder is created.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams returns the usual Okapi constants.
func DefaultParams() Params {
	return Params{K1: 1.2, B: 0.75}
}
