package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/queryir"
)

// Default query-size limits. The remote store rejects queries longer than
// 100k characters; 200 clauses keeps each response well under one page.
const (
	DefaultMaxClauses = 200
	DefaultMaxLength  = 100_000
)

// Lookup describes one bulk identity lookup.
type Lookup struct {
	From    string         // Record type name
	Columns []string       // Selected columns, id first
	Match   []string       // Identity columns compared in each clause
	Rows    [][]ir.IRValue // One row of Match-aligned values per instance
	OrderBy string         // Optional stable order column
}

// Builder turns a Lookup into one or more independently executable queries
// of the form
//
//	SELECT <cols> FROM <type> WHERE (<c1> = <v1> AND ...) OR (...) ...
//
// with one clause per distinct row. Results of all queries are meant to be
// concatenated by the caller.
type Builder struct {
	Compiler   *Compiler
	MaxClauses int // Clauses per query; <= 0 means DefaultMaxClauses
	MaxLength  int // Characters per query; <= 0 means DefaultMaxLength
}

// NewBuilder creates a Builder with default limits for d.
func NewBuilder(d Dialect) *Builder {
	return &Builder{Compiler: NewCompiler(d)}
}

func (b *Builder) limits() (int, int) {
	maxClauses, maxLength := b.MaxClauses, b.MaxLength
	if maxClauses <= 0 {
		maxClauses = DefaultMaxClauses
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return maxClauses, maxLength
}

// Build renders the lookup queries. Rows with identical values produce a
// single clause. No rows means no queries.
//
// The returned slice is finite and can be iterated any number of times.
// Returns an error when a single clause cannot fit within MaxLength.
func (b *Builder) Build(l Lookup) ([]string, error) {
	if len(l.Rows) == 0 {
		return nil, nil
	}
	sel := queryir.Select{From: l.From, Columns: l.Columns, OrderBy: l.OrderBy}
	if res := queryir.Validate(sel); !res.Valid() {
		return nil, fmt.Errorf("invalid lookup: %w", res.Err())
	}

	clauses, err := b.clauses(l)
	if err != nil {
		return nil, err
	}

	maxClauses, maxLength := b.limits()
	prefix := b.Compiler.selectPrefix(sel) + " WHERE "
	suffix := b.Compiler.orderSuffix(sel)
	fixed := len(prefix) + len(suffix)

	var queries []string
	var batch []string
	length := fixed

	flush := func() {
		if len(batch) == 0 {
			return
		}
		queries = append(queries, prefix+strings.Join(batch, " OR ")+suffix)
		batch = nil
		length = fixed
	}

	for _, clause := range clauses {
		if fixed+len(clause) > maxLength {
			return nil, fmt.Errorf("lookup clause of %d characters exceeds max query length %d", len(clause), maxLength)
		}
		added := len(clause)
		if len(batch) > 0 {
			added += len(" OR ")
		}
		if len(batch) >= maxClauses || length+added > maxLength {
			flush()
			added = len(clause)
		}
		batch = append(batch, clause)
		length += added
	}
	flush()

	return queries, nil
}

// clauses compiles one parenthesized conjunction per distinct row.
func (b *Builder) clauses(l Lookup) ([]string, error) {
	seen := make(map[string]bool, len(l.Rows))
	out := make([]string, 0, len(l.Rows))
	for i, row := range l.Rows {
		if len(row) != len(l.Match) {
			return nil, fmt.Errorf("row %d has %d values for %d match columns", i, len(row), len(l.Match))
		}
		pred := queryir.Clause(l.Match, row)
		if res := queryir.Validate(queryir.Select{From: l.From, Columns: l.Columns, Filter: pred}); !res.Valid() {
			return nil, fmt.Errorf("row %d: %w", i, res.Err())
		}
		sql, err := b.Compiler.CompilePredicate(pred)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		clause := "(" + sql + ")"
		if seen[clause] {
			continue
		}
		seen[clause] = true
		out = append(out, clause)
	}
	return out, nil
}
