// Package dataset opens the header-bearing CSV files csvlink links and
// streams their rows as a lazy, restartable sequence.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

const utf8BOM = "\ufeff"

// Dataset is one input table. Headers are read eagerly; rows are read
// each time Rows is ranged over.
type Dataset struct {
	Path    string
	Name    string
	Headers []string
	lookup  map[string]int
	open    func() (io.ReadCloser, error)
}

// Open resolves path, checks that it exists and reads its header row.
func Open(path string) (*Dataset, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.Newf(apperrors.ErrFileNotFound, 0, "%s", abs)
		}
		return nil, fmt.Errorf("checking %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 0, "%s is a directory", abs)
	}
	return newDataset(abs, filepath.Base(abs), func() (io.ReadCloser, error) {
		return os.Open(abs)
	})
}

// FromBytes builds a Dataset over in-memory CSV content.
func FromBytes(name string, data []byte) (*Dataset, error) {
	return newDataset(name, name, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

func newDataset(path, name string, open func() (io.ReadCloser, error)) (*Dataset, error) {
	d := &Dataset{Path: path, Name: name, open: open}
	headers, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	d.Headers = headers
	d.lookup = make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := d.lookup[h]; dup {
			return nil, apperrors.Newf(apperrors.ErrMalformedRow, 0, "%s: duplicate header %q", path, h)
		}
		d.lookup[h] = i
	}
	return d, nil
}

func (d *Dataset) readHeader() ([]string, error) {
	rc, err := d.open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", d.Path, err)
	}
	defer rc.Close()
	header, err := newReader(rc).Read()
	if err == io.EOF {
		return nil, apperrors.Newf(apperrors.ErrMalformedRow, 0, "%s: missing header row", d.Path)
	}
	if err != nil {
		return nil, parseError(d.Path, err)
	}
	return header, nil
}

// HasHeader reports whether name is one of the dataset's columns.
func (d *Dataset) HasHeader(name string) bool {
	_, ok := d.lookup[name]
	return ok
}

// Rows yields every data row in file order. Iteration stops after the first
// error, which is yielded with a zero Record. Each range re-reads the source.
func (d *Dataset) Rows(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rc, err := d.open()
		if err != nil {
			yield(Record{}, fmt.Errorf("opening %s: %w", d.Path, err))
			return
		}
		defer rc.Close()

		r := newReader(rc)
		if _, err := r.Read(); err != nil {
			if err != io.EOF {
				yield(Record{}, parseError(d.Path, err))
			}
			return
		}
		for line := 1; ; line++ {
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}
			values, err := r.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Record{}, parseError(d.Path, err))
				return
			}
			if len(values) != len(d.Headers) {
				yield(Record{}, apperrors.Newf(apperrors.ErrMalformedRow, 0,
					"%s: row %d has %d values, header has %d", d.Path, line, len(values), len(d.Headers)))
				return
			}
			if !yield(Record{Line: line, Values: values, dataset: d}, nil) {
				return
			}
		}
	}
}

// newReader skips a leading UTF-8 byte order mark before the CSV parser sees
// it, so a quoted first header still parses.
func newReader(r io.Reader) *csv.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && string(prefix) == utf8BOM {
		br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	return cr
}

func parseError(path string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return apperrors.Newf(apperrors.ErrMalformedRow, 0, "%s: line %d: %v", path, pe.Line, pe.Err)
	}
	return fmt.Errorf("reading %s: %w", path, err)
}
