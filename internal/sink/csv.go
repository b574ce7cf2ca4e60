package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/merge"
)

// CSVWriter writes the table to a file. The file is written under a
// temporary name in the same directory and renamed into place, so a failed
// run never leaves a partial output.
type CSVWriter struct {
	path   string
	absent string
}

func NewCSV(path, absent string) *CSVWriter {
	return &CSVWriter{path: path, absent: absent}
}

func (w *CSVWriter) Path() string { return w.path }

func (w *CSVWriter) Write(ctx context.Context, t Table) (n int, err error) {
	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating output in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	cw := csv.NewWriter(tmp)
	if err := cw.Write(t.Columns()); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	for record := range merge.Records(t.Rows(), w.absent) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := cw.Write(record); err != nil {
			return n, fmt.Errorf("writing row %d: %w", n+1, err)
		}
		n++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("flushing %s: %w", w.path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return n, fmt.Errorf("setting mode on %s: %w", w.path, err)
	}
	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("syncing %s: %w", w.path, err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("closing %s: %w", w.path, err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return n, fmt.Errorf("renaming output to %s: %w", w.path, err)
	}
	return n, nil
}

func (w *CSVWriter) Close() error { return nil }
