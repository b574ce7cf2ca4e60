package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/normalizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

// State is the lifecycle position of a Builder.
type State int

const (
	StateEmpty State = iota
	StateBuilding
	StateConsolidated
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateConsolidated:
		return "consolidated"
	default:
		return "unknown"
	}
}

// Builder accumulates weighted term statistics for a closed set of
// documents. It moves Empty -> Building -> Consolidated and never back.
type Builder struct {
	mu          sync.Mutex
	state       State
	params      Params
	weights     FieldWeights
	fields      []string
	configured  bool
	postings    map[string]PostingList
	docs        []Document
	totalLength float64
	hasher      hash.Hash
	logger      *slog.Logger
}

// NewBuilder returns an Empty builder scoring with params.
func NewBuilder(params Params) *Builder {
	return &Builder{
		params:   params,
		postings: make(map[string]PostingList),
		hasher:   sha256.New(),
		logger:   slog.Default().With("component", "index-builder"),
	}
}

// Configure sets the field weights. It must precede the first document.
// An empty weight set is accepted; such an index matches nothing.
func (b *Builder) Configure(weights FieldWeights) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateEmpty {
		return apperrors.Newf(apperrors.ErrInvalidIndexState, 0, "configure: index is %s", b.state)
	}
	for name, w := range weights {
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return apperrors.Newf(apperrors.ErrInvalidInput, 0, "field %q: weight must be positive, got %v", name, w)
		}
	}
	b.weights = maps.Clone(weights)
	if b.weights == nil {
		b.weights = FieldWeights{}
	}
	b.fields = slices.Sorted(maps.Keys(b.weights))
	b.configured = true

	b.hasher.Reset()
	fmt.Fprintf(b.hasher, "k1=%g;b=%g", b.params.K1, b.params.B)
	for _, name := range b.fields {
		fmt.Fprintf(b.hasher, ";%s=%g", strconv.Quote(name), b.weights[name])
	}
	b.hasher.Write([]byte{0x1d})
	return nil
}

// Start moves a configured Empty builder to Building. Calling it while
// already Building is a no-op.
func (b *Builder) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startLocked()
}

func (b *Builder) startLocked() error {
	switch {
	case b.state == StateConsolidated:
		return apperrors.New(apperrors.ErrInvalidIndexState, 0, "start: index is consolidated")
	case !b.configured:
		return apperrors.New(apperrors.ErrInvalidIndexState, 0, "start: field weights not configured")
	}
	b.state = StateBuilding
	return nil
}

// AddDocument indexes the weighted fields of one row and returns its id.
// Ids start at 0 and follow insertion order.
func (b *Builder) AddDocument(fields map[string]string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateConsolidated {
		return 0, apperrors.New(apperrors.ErrInvalidIndexState, 0, "add document: index is consolidated")
	}
	if err := b.startLocked(); err != nil {
		return 0, err
	}

	docID := len(b.docs)
	termFreq := make(map[string]float64)
	fieldCounts := make(map[string]map[string]int)
	var length float64
	for _, name := range b.fields {
		weight := b.weights[name]
		tokens := normalizer.Normalize(fields[name])
		for token, count := range normalizer.Frequencies(tokens) {
			termFreq[token] += weight * float64(count)
			counts, ok := fieldCounts[token]
			if !ok {
				counts = make(map[string]int, 1)
				fieldCounts[token] = counts
			}
			counts[name] = count
		}
		length += weight * float64(len(tokens))
		fmt.Fprintf(b.hasher, "%s\x1f%s\x1e", name, normalizer.Join(tokens))
	}
	b.hasher.Write([]byte{0x1d})

	for term, freq := range termFreq {
		b.postings[term] = append(b.postings[term], Posting{
			DocID:     docID,
			Frequency: freq,
			Fields:    fieldCounts[term],
		})
	}
	b.docs = append(b.docs, Document{
		ID:     docID,
		Fields: maps.Clone(fields),
		Length: length,
	})
	b.totalLength += length

	b.logger.Debug("document indexed",
		"doc_id", docID,
		"terms", len(termFreq),
		"length", length,
	)
	return docID, nil
}

// Consolidate freezes document frequencies, idf values and the average
// document length into an immutable Index. It is valid only while Building;
// a second call fails.
func (b *Builder) Consolidate() (*Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateBuilding {
		return nil, apperrors.Newf(apperrors.ErrInvalidIndexState, 0, "consolidate: index is %s", b.state)
	}

	n := len(b.docs)
	ix := &Index{
		params:      b.params,
		weights:     b.weights,
		postings:    b.postings,
		docFreq:     make(map[string]int, len(b.postings)),
		idf:         make(map[string]float64, len(b.postings)),
		docs:        b.docs,
		fingerprint: hex.EncodeToString(b.hasher.Sum(nil)),
	}
	for term, postings := range b.postings {
		ix.docFreq[term] = len(postings)
		ix.idf[term] = IDF(n, len(postings))
	}
	if n > 0 {
		ix.avgDocLength = b.totalLength / float64(n)
	}

	b.state = StateConsolidated
	b.postings = nil
	b.docs = nil

	b.logger.Info("index consolidated",
		"docs", len(ix.docs),
		"terms", len(ix.postings),
		"avg_doc_length", ix.avgDocLength,
	)
	return ix, nil
}

// State reports the builder's lifecycle position.
func (b *Builder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Len reports how many documents have been added so far.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.docs)
}
