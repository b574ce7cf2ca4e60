// Package sink writes a merged table to its destination: a CSV file, a
// SQLite database or a PostgreSQL table.
package sink

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/merge"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/postgres"
)

// Table is the merged output. *merge.Accumulator implements it.
type Table interface {
	Columns() []string
	Rows() iter.Seq2[int, []merge.Value]
}

// Writer persists a table and reports the number of rows written.
type Writer interface {
	Write(ctx context.Context, t Table) (int, error)
	Close() error
}

// Open returns the writer selected by cfg.Output.Sink.
func Open(ctx context.Context, cfg *config.Config) (Writer, error) {
	out := cfg.Output
	switch out.Sink {
	case config.SinkCSV, "":
		return NewCSV(out.FilePath(), out.AbsentValue), nil
	case config.SinkSQLite:
		return NewSQLite(out.FilePath(), out.Table), nil
	case config.SinkPostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrUnavailable, 0, "postgres sink: %v", err)
		}
		return NewPostgres(client, out.Table), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 0, "unknown output sink %q", out.Sink)
	}
}

// createTableSQL declares every column as TEXT. quote renders an identifier.
func createTableSQL(quote func(string) string, table string, columns []string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quote(c) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quote(table), strings.Join(defs, ", "))
}

func dropTableSQL(quote func(string) string, table string) string {
	return "DROP TABLE IF EXISTS " + quote(table)
}

// quoteIdent double-quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// args converts a row to driver arguments, absent cells becoming NULL.
func args(row []merge.Value) []any {
	out := make([]any, len(row))
	for i, v := range row {
		if v.Present {
			out[i] = v.Text
		}
	}
	return out
}
