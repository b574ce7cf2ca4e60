package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/postgres"
)

// PostgresWriter replaces a table with the output using COPY.
type PostgresWriter struct {
	client *postgres.Client
	table  string
}

func NewPostgres(client *postgres.Client, table string) *PostgresWriter {
	return &PostgresWriter{client: client, table: table}
}

func (w *PostgresWriter) Write(ctx context.Context, t Table) (int, error) {
	columns := t.Columns()
	n := 0
	err := w.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, dropTableSQL(pq.QuoteIdentifier, w.table)); err != nil {
			return fmt.Errorf("dropping %s: %w", w.table, err)
		}
		if _, err := tx.ExecContext(ctx, createTableSQL(pq.QuoteIdentifier, w.table, columns)); err != nil {
			return fmt.Errorf("creating %s: %w", w.table, err)
		}
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn(w.table, columns...))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		for _, row := range t.Rows() {
			if _, err := stmt.ExecContext(ctx, args(row)...); err != nil {
				stmt.Close()
				return fmt.Errorf("copying row %d: %w", n+1, err)
			}
			n++
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy: %w", err)
		}
		return stmt.Close()
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (w *PostgresWriter) Ping(ctx context.Context) error { return w.client.Ping(ctx) }

func (w *PostgresWriter) Close() error { return w.client.Close() }
