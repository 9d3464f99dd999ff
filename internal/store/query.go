package store

import (
	"context"
	"fmt"

	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/remote"
)

var _ remote.Client = (*Store)(nil)

// Query runs a lookup query and returns every row in result order.
//
// The query text must be valid SQLite; render it with
// querysql.SQLiteDialect. TEXT values come back as strings, NUMERIC as
// int64 or float64, BOOLEAN as bool and NULL as nil.
//
// Returns an empty slice (not nil) if no rows match.
func (s *Store) Query(ctx context.Context, query string) ([]remote.Record, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	records := []remote.Record{}
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec := remote.Record{Columns: make(map[string]any, len(names))}
		for i, name := range names {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec.Columns[name] = v
		}
		if id, ok := rec.Columns[ir.IDField].(string); ok {
			rec.ID = id
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}
