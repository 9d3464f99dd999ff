package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/remote"
)

var errEntityDeleted = errors.New("entity is deleted")

// BulkOperation applies op to every record and returns one Result per
// record, in order.
//
// The whole call is one transaction; each record runs under its own
// savepoint so that a failing record is rolled back alone. Every record,
// successful or not, is journaled. An unknown record type or a database
// failure outside a single record fails the call and nothing is committed.
func (s *Store) BulkOperation(ctx context.Context, typeName string, op remote.Operation, records []remote.Record) ([]remote.Result, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("bulk %s: unknown operation", op)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("bulk %s: begin tx: %w", op, err)
	}
	defer tx.Rollback() // No-op if committed

	exists, err := s.tableExists(ctx, tx, typeName)
	if err != nil {
		return nil, fmt.Errorf("bulk %s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("bulk %s: unknown record type %q", op, typeName)
	}

	results := make([]remote.Result, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("bulk %s: %w", op, err)
		}
		if _, err := tx.ExecContext(ctx, "SAVEPOINT bulk_record"); err != nil {
			return nil, fmt.Errorf("bulk %s: savepoint: %w", op, err)
		}

		res, recErr := s.apply(ctx, tx, typeName, op, rec)
		if recErr != nil {
			if _, err := tx.ExecContext(ctx, "ROLLBACK TO bulk_record"); err != nil {
				return nil, fmt.Errorf("bulk %s: rollback record %d: %w", op, i, err)
			}
			res = remote.Result{ID: rec.ID, Errors: []string{recErr.Error()}}
		}
		if _, err := tx.ExecContext(ctx, "RELEASE bulk_record"); err != nil {
			return nil, fmt.Errorf("bulk %s: release record %d: %w", op, i, err)
		}

		if err := journal(ctx, tx, typeName, op, res); err != nil {
			return nil, fmt.Errorf("bulk %s: %w", op, err)
		}
		results[i] = res
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("bulk %s: commit: %w", op, err)
	}

	slog.Debug("bulk operation applied", "type", typeName, "operation", op, "records", len(records))
	return results, nil
}

// apply performs one record mutation inside the bulk transaction.
func (s *Store) apply(ctx context.Context, tx *sql.Tx, typeName string, op remote.Operation, rec remote.Record) (remote.Result, error) {
	table := dialect.QuoteIdent(typeName)
	idCol := dialect.QuoteIdent(ir.IDField)
	names := dataColumns(rec.Columns)

	switch op {
	case remote.OpInsert:
		id := s.ids.Generate()
		cols := []string{idCol}
		marks := []string{"?"}
		args := []any{id}
		for _, n := range names {
			cols = append(cols, dialect.QuoteIdent(n))
			marks = append(marks, "?")
			args = append(args, rec.Columns[n])
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(marks, ", "))
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return remote.Result{}, err
		}
		return remote.Result{Success: true, ID: id}, nil

	case remote.OpUpdate:
		if rec.ID == "" {
			return remote.Result{}, errors.New("missing Id")
		}
		if len(names) == 0 {
			var n int
			if err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", table, idCol), rec.ID).Scan(&n); err != nil {
				return remote.Result{}, err
			}
			if n == 0 {
				return remote.Result{}, errEntityDeleted
			}
			return remote.Result{Success: true, ID: rec.ID}, nil
		}
		sets := make([]string, len(names))
		args := make([]any, 0, len(names)+1)
		for i, n := range names {
			sets[i] = dialect.QuoteIdent(n) + " = ?"
			args = append(args, rec.Columns[n])
		}
		args = append(args, rec.ID)
		stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(sets, ", "), idCol)
		return s.execOne(ctx, tx, rec.ID, stmt, args...)

	default:
		if rec.ID == "" {
			return remote.Result{}, errors.New("missing Id")
		}
		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, idCol)
		return s.execOne(ctx, tx, rec.ID, stmt, rec.ID)
	}
}

// execOne runs a statement that must affect exactly the row id.
func (s *Store) execOne(ctx context.Context, tx *sql.Tx, id, stmt string, args ...any) (remote.Result, error) {
	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return remote.Result{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return remote.Result{}, err
	}
	if n == 0 {
		return remote.Result{}, errEntityDeleted
	}
	return remote.Result{Success: true, ID: id}, nil
}

// dataColumns returns the column names of a payload except Id, sorted so
// statements are generated deterministically.
func dataColumns(columns map[string]any) []string {
	names := make([]string, 0, len(columns))
	for n := range columns {
		if n == ir.IDField {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
