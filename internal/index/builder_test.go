package index

import (
	"errors"
	"fmt"
	"math"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

func buildIndex(t *testing.T, weights FieldWeights, rows ...map[string]string) *Index {
	t.Helper()
	b := NewBuilder(DefaultParams())
	if err := b.Configure(weights); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i, row := range rows {
		id, err := b.AddDocument(row)
		if err != nil {
			t.Fatalf("AddDocument(%d): %v", i, err)
		}
		if id != i {
			t.Fatalf("AddDocument(%d) id = %d", i, id)
		}
	}
	ix, err := b.Consolidate()
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	return ix
}

func TestStateMachine(t *testing.T) {
	b := NewBuilder(DefaultParams())
	if b.State() != StateEmpty {
		t.Fatalf("new builder state = %s", b.State())
	}
	if _, err := b.AddDocument(map[string]string{"name": "x"}); !errors.Is(err, apperrors.ErrInvalidIndexState) {
		t.Errorf("AddDocument before Configure = %v, want ErrInvalidIndexState", err)
	}
	if _, err := b.Consolidate(); !errors.Is(err, apperrors.ErrInvalidIndexState) {
		t.Errorf("Consolidate while empty = %v, want ErrInvalidIndexState", err)
	}
	if err := b.Configure(FieldWeights{"name": 1}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := b.AddDocument(map[string]string{"name": "Acme"}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if b.State() != StateBuilding {
		t.Errorf("state after first document = %s, want building", b.State())
	}
	if err := b.Configure(FieldWeights{"name": 2}); !errors.Is(err, apperrors.ErrInvalidIndexState) {
		t.Errorf("Configure while building = %v, want ErrInvalidIndexState", err)
	}
	if _, err := b.Consolidate(); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if b.State() != StateConsolidated {
		t.Errorf("state = %s, want consolidated", b.State())
	}
	if _, err := b.AddDocument(map[string]string{"name": "Globex"}); !errors.Is(err, apperrors.ErrInvalidIndexState) {
		t.Errorf("AddDocument after Consolidate = %v, want ErrInvalidIndexState", err)
	}
	if _, err := b.Consolidate(); !errors.Is(err, apperrors.ErrInvalidIndexState) {
		t.Errorf("second Consolidate = %v, want ErrInvalidIndexState", err)
	}
	if err := b.Start(); !errors.Is(err, apperrors.ErrInvalidIndexState) {
		t.Errorf("Start after Consolidate = %v, want ErrInvalidIndexState", err)
	}
}

func TestConfigureRejectsBadWeights(t *testing.T) {
	for _, w := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		b := NewBuilder(DefaultParams())
		if err := b.Configure(FieldWeights{"name": w}); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("Configure(weight=%v) = %v, want ErrInvalidInput", w, err)
		}
	}
}

func TestWeightedStatistics(t *testing.T) {
	ix := buildIndex(t, FieldWeights{"name": 2, "city": 1},
		map[string]string{"name": "Acme Acme Inc", "city": "Springfield", "ignored": "acme"},
		map[string]string{"name": "Globex", "city": "Acme"},
		map[string]string{"name": "", "city": ""},
	)

	if ix.DocCount() != 3 {
		t.Fatalf("DocCount() = %d, want 3", ix.DocCount())
	}
	postings := ix.Postings("acme")
	if len(postings) != 2 {
		t.Fatalf("postings(acme) = %+v, want 2 entries", postings)
	}
	if postings[0].DocID != 0 || postings[0].Frequency != 4 {
		t.Errorf("doc 0 acme posting = %+v, want weighted tf 4", postings[0])
	}
	if postings[0].Fields["name"] != 2 {
		t.Errorf("doc 0 raw name count = %d, want 2", postings[0].Fields["name"])
	}
	if postings[1].DocID != 1 || postings[1].Frequency != 1 || postings[1].Fields["city"] != 1 {
		t.Errorf("doc 1 acme posting = %+v", postings[1])
	}
	if ix.DocFreq("acme") != 2 {
		t.Errorf("DocFreq(acme) = %d, want 2", ix.DocFreq("acme"))
	}

	// name tokens count twice: 3*2 + 1 = 7; 1*2 + 1 = 3; 0.
	if got := ix.DocLength(0); got != 7 {
		t.Errorf("DocLength(0) = %v, want 7", got)
	}
	if got := ix.DocLength(1); got != 3 {
		t.Errorf("DocLength(1) = %v, want 3", got)
	}
	if got := ix.AvgDocLength(); math.Abs(got-10.0/3) > 1e-12 {
		t.Errorf("AvgDocLength() = %v, want 10/3", got)
	}

	idf, ok := ix.IDF("acme")
	want := math.Log((3-2+0.5)/(2+0.5) + 1)
	if !ok || math.Abs(idf-want) > 1e-12 {
		t.Errorf("IDF(acme) = %v, %v; want %v", idf, ok, want)
	}
	if _, ok := ix.IDF("missing"); ok {
		t.Error("IDF of unknown term reported present")
	}
}

func TestDocumentRetrievalIsolated(t *testing.T) {
	ix := buildIndex(t, FieldWeights{"name": 1}, map[string]string{"name": "Acme", "id": "7"})
	doc, ok := ix.Document(0)
	if !ok || doc.Fields["id"] != "7" {
		t.Fatalf("Document(0) = %+v, %v", doc, ok)
	}
	doc.Fields["id"] = "mutated"
	again, _ := ix.Document(0)
	if again.Fields["id"] != "7" {
		t.Error("mutating a returned document changed the index")
	}
	if _, ok := ix.Document(5); ok {
		t.Error("Document(5) reported present")
	}
}

func TestEmptyIndex(t *testing.T) {
	ix := buildIndex(t, FieldWeights{"name": 1})
	if ix.DocCount() != 0 || ix.TermCount() != 0 || ix.AvgDocLength() != 0 {
		t.Errorf("empty index stats: docs=%d terms=%d avg=%v", ix.DocCount(), ix.TermCount(), ix.AvgDocLength())
	}
}

func TestFingerprint(t *testing.T) {
	rows := []map[string]string{{"name": "Acme Inc"}, {"name": "Globex"}}
	a := buildIndex(t, FieldWeights{"name": 1}, rows...)
	b := buildIndex(t, FieldWeights{"name": 1}, rows...)
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical builds produced different fingerprints")
	}
	c := buildIndex(t, FieldWeights{"name": 2}, rows...)
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different weights produced the same fingerprint")
	}
	d := buildIndex(t, FieldWeights{"name": 1}, rows[1], rows[0])
	if a.Fingerprint() == d.Fingerprint() {
		t.Error("different row order produced the same fingerprint")
	}
}

func BenchmarkAddDocument(b *testing.B) {
	builder := NewBuilder(DefaultParams())
	if err := builder.Configure(FieldWeights{"name": 2, "address": 1}); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = builder.AddDocument(map[string]string{
			"name":    fmt.Sprintf("Company %d Holdings", i),
			"address": "1 Infinite Loop Cupertino CA",
		})
	}
}

func TestIDFPositive(t *testing.T) {
	for n := 1; n <= 50; n++ {
		for df := 1; df <= n; df++ {
			if idf := IDF(n, df); idf <= 0 || math.IsNaN(idf) {
				t.Fatalf("IDF(%d, %d) = %v, want positive", n, df, idf)
			}
		}
	}

	// A term present in every document keeps a positive frozen idf.
	ix := buildIndex(t, FieldWeights{"name": 1},
		map[string]string{"name": "acme inc"},
		map[string]string{"name": "acme co"},
	)
	idf, ok := ix.IDF("acme")
	if !ok || idf <= 0 || idf != IDF(2, 2) {
		t.Errorf("IDF(acme) = %v, %v; want %v", idf, ok, IDF(2, 2))
	}
}
