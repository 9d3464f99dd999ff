package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/recon/internal/remote"
)

// JournalEntry is one journaled record mutation.
type JournalEntry struct {
	Seq       int64
	TypeName  string
	Operation remote.Operation
	RecordID  string
	Success   bool
	Error     string
}

func journal(ctx context.Context, tx *sql.Tx, typeName string, op remote.Operation, res remote.Result) error {
	success := 0
	if res.Success {
		success = 1
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO operations (type_name, operation, record_id, success, error)
		VALUES (?, ?, ?, ?, ?)
	`, typeName, string(op), res.ID, success, strings.Join(res.Errors, "; "))
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

// Journal returns the journaled mutations of typeName, oldest first. An
// empty typeName returns the mutations of every record type.
//
// Returns an empty slice (not nil) if nothing was journaled.
func (s *Store) Journal(ctx context.Context, typeName string) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, type_name, operation, record_id, success, error
		FROM operations
		WHERE ? = '' OR type_name = ?
		ORDER BY seq ASC
	`, typeName, typeName)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		var e JournalEntry
		var op string
		var success int
		if err := rows.Scan(&e.Seq, &e.TypeName, &op, &e.RecordID, &success, &e.Error); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Operation = remote.Operation(op)
		e.Success = success == 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}
