package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/recon/internal/identity"
	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/querysql"
)

var dialect = querysql.SQLiteDialect{}

// column is one physical column of a record type table.
type column struct {
	name string
	decl string
}

// tableColumns lists the physical columns of rt in schema order, excluding
// the Id primary key. Compound fields contribute one column per sub-field.
func tableColumns(rt *ir.RecordType) []column {
	var cols []column
	for _, f := range rt.Fields {
		switch field := f.(type) {
		case *ir.PrimitiveField:
			if field.Column() == ir.IDField {
				continue
			}
			cols = append(cols, column{name: field.Column(), decl: declType(field.Kind)})
		case *ir.CompoundField:
			for _, sf := range field.SubFields {
				cols = append(cols, column{name: identity.ColumnName(sf.Name), decl: declType(sf.Kind)})
			}
		}
	}
	return cols
}

// declType maps a field kind to a SQLite declared type. BOOLEAN keeps
// numeric affinity and is scanned back as bool by the driver.
func declType(k ir.Kind) string {
	switch k {
	case ir.KindNumber:
		return "NUMERIC"
	case ir.KindBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// EnsureTable materializes rt as a table. A missing table is created;
// columns added to rt since the last call are appended. Existing columns
// are never dropped or retyped.
func (s *Store) EnsureTable(ctx context.Context, rt *ir.RecordType) error {
	cols := tableColumns(rt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ensure table %s: begin tx: %w", rt.Name, err)
	}
	defer tx.Rollback() // No-op if committed

	existing, err := existingColumns(ctx, tx, rt.Name)
	if err != nil {
		return fmt.Errorf("ensure table %s: %w", rt.Name, err)
	}

	table := dialect.QuoteIdent(rt.Name)
	if len(existing) == 0 {
		defs := []string{dialect.QuoteIdent(ir.IDField) + " TEXT PRIMARY KEY"}
		for _, c := range cols {
			defs = append(defs, dialect.QuoteIdent(c.name)+" "+c.decl)
		}
		stmt := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure table %s: create: %w", rt.Name, err)
		}
	} else {
		for _, c := range cols {
			if existing[c.name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, dialect.QuoteIdent(c.name), c.decl)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensure table %s: add column %s: %w", rt.Name, c.name, err)
			}
		}
	}

	names := make(ir.IRArray, 0, len(cols)+1)
	names = append(names, ir.IRString(ir.IDField))
	for _, c := range cols {
		names = append(names, ir.IRString(c.name))
	}
	columnsJSON, err := ir.MarshalCanonical(names)
	if err != nil {
		return fmt.Errorf("ensure table %s: %w", rt.Name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO record_types (name, columns, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET columns = excluded.columns, updated_at = excluded.updated_at
	`, rt.Name, string(columnsJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("ensure table %s: register: %w", rt.Name, err)
	}

	return tx.Commit()
}

// existingColumns returns the column names of a table, or an empty set
// when the table does not exist.
func existingColumns(ctx context.Context, q querier, typeName string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", dialect.QuoteIdent(typeName)))
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	return cols, nil
}
