package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func collect(t *testing.T, d *Dataset) ([]Record, error) {
	t.Helper()
	var rows []Record
	for rec, err := range d.Rows(context.Background()) {
		if err != nil {
			return rows, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func TestOpenAndRows(t *testing.T) {
	path := writeFile(t, "companies.csv", "\ufeffname,city\nAcme Inc,Springfield\n\"Globex, Co\",Cypress Creek\n")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.Name != "companies.csv" || !filepath.IsAbs(d.Path) {
		t.Errorf("Name/Path = %q/%q", d.Name, d.Path)
	}
	if want := []string{"name", "city"}; !reflect.DeepEqual(d.Headers, want) {
		t.Errorf("Headers = %q, want %q", d.Headers, want)
	}

	rows, err := collect(t, d)
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if v, _ := rows[1].Get("name"); v != "Globex, Co" {
		t.Errorf("row 2 name = %q", v)
	}
	if rows[1].Line != 2 {
		t.Errorf("row 2 line = %d", rows[1].Line)
	}
	if got := rows[0].Pick([]string{"city", "missing"}); !reflect.DeepEqual(got, map[string]string{"city": "Springfield"}) {
		t.Errorf("Pick = %v", got)
	}

	// The sequence is restartable.
	again, err := collect(t, d)
	if err != nil || len(again) != 2 {
		t.Errorf("second pass = %d rows, %v", len(again), err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, apperrors.ErrFileNotFound) {
		t.Errorf("Open(missing) = %v, want ErrFileNotFound", err)
	}
}

func TestOpenDirectory(t *testing.T) {
	_, err := Open(t.TempDir())
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Open(dir) = %v, want ErrInvalidInput", err)
	}
}

func TestHeaderProblems(t *testing.T) {
	for name, body := range map[string]string{
		"empty":     "",
		"duplicate": "name,name\na,b\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromBytes(name+".csv", []byte(body))
			if !errors.Is(err, apperrors.ErrMalformedRow) {
				t.Errorf("FromBytes = %v, want ErrMalformedRow", err)
			}
		})
	}
}

func TestMalformedRowStopsIteration(t *testing.T) {
	d, err := FromBytes("bad.csv", []byte("name,city\nAcme,Springfield\nGlobex\nInitech,Austin\n"))
	if err != nil {
		t.Fatal(err)
	}
	rows, err := collect(t, d)
	if !errors.Is(err, apperrors.ErrMalformedRow) {
		t.Fatalf("Rows error = %v, want ErrMalformedRow", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows before failure = %d, want 1", len(rows))
	}
}

func TestBrokenQuoteIsMalformed(t *testing.T) {
	d, err := FromBytes("quote.csv", []byte("name\n\"unterminated\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := collect(t, d); !errors.Is(err, apperrors.ErrMalformedRow) {
		t.Errorf("Rows error = %v, want ErrMalformedRow", err)
	}
}

func TestHeaderOnly(t *testing.T) {
	d, err := FromBytes("empty.csv", []byte("name,city\n"))
	if err != nil {
		t.Fatal(err)
	}
	rows, err := collect(t, d)
	if err != nil || len(rows) != 0 {
		t.Errorf("rows = %d, err = %v; want 0, nil", len(rows), err)
	}
}

func TestRowsHonoursContext(t *testing.T) {
	d, err := FromBytes("a.csv", []byte("name\na\nb\n"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, err := range d.Rows(ctx) {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
		break
	}
}

func TestEarlyBreak(t *testing.T) {
	d, err := FromBytes("a.csv", []byte("name\na\nb\nc\n"))
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for range d.Rows(context.Background()) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d rows", n)
	}
}

func TestQuotedHeaderAfterBOM(t *testing.T) {
	d, err := FromBytes("x.csv", []byte("\ufeff\"name\",\"city\"\nAcme,Springfield\n"))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if want := []string{"name", "city"}; !reflect.DeepEqual(d.Headers, want) {
		t.Errorf("Headers = %q, want %q", d.Headers, want)
	}
	rows, err := collect(t, d)
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 1 || rows[0].Values[0] != "Acme" {
		t.Errorf("rows = %+v", rows)
	}
}
