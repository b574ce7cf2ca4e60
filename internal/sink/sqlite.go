package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteWriter replaces a table in a SQLite database file with the output.
// The database is opened on the first Write. A database file created by a
// failed Write is removed again.
type SQLiteWriter struct {
	path  string
	table string
	db    *sql.DB
}

func NewSQLite(path, table string) *SQLiteWriter {
	return &SQLiteWriter{path: path, table: table}
}

func (w *SQLiteWriter) open(ctx context.Context) error {
	if w.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", w.path)
	if err != nil {
		return fmt.Errorf("opening sqlite %s: %w", w.path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("opening sqlite %s: %w", w.path, err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("configuring sqlite %s: %s: %w", w.path, pragma, err)
		}
	}
	w.db = db
	return nil
}

func (w *SQLiteWriter) Write(ctx context.Context, t Table) (n int, err error) {
	_, statErr := os.Stat(w.path)
	created := errors.Is(statErr, os.ErrNotExist)
	defer func() {
		if err != nil && created {
			w.discard()
		}
	}()
	if err := w.open(ctx); err != nil {
		return 0, err
	}
	return w.write(ctx, t)
}

func (w *SQLiteWriter) write(ctx context.Context, t Table) (n int, err error) {
	columns := t.Columns()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, dropTableSQL(quoteIdent, w.table)); err != nil {
		return 0, fmt.Errorf("dropping %s: %w", w.table, err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(quoteIdent, w.table, columns)); err != nil {
		return 0, fmt.Errorf("creating %s: %w", w.table, err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL(w.table, columns))
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range t.Rows() {
		if _, err := stmt.ExecContext(ctx, args(row)...); err != nil {
			return n, fmt.Errorf("inserting row %d: %w", n+1, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("committing %s: %w", w.table, err)
	}
	return n, nil
}

// discard closes the database and deletes its files.
func (w *SQLiteWriter) discard() {
	w.Close()
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		os.Remove(w.path + suffix)
	}
}

func (w *SQLiteWriter) Close() error {
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}

func insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), placeholders)
}
