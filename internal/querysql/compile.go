package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/queryir"
)

// Compiler compiles QueryIR to query text for a remote store.
//
// The remote store accepts a single query string, so values are
// interpolated as literals. CRITICAL: every string literal goes through
// Dialect.QuoteString; nothing is concatenated unescaped.
type Compiler struct {
	Dialect Dialect
}

// NewCompiler creates a Compiler for d. A nil dialect selects
// BackslashDialect.
func NewCompiler(d Dialect) *Compiler {
	if d == nil {
		d = BackslashDialect{}
	}
	return &Compiler{Dialect: d}
}

// Compile converts a QueryIR query to query text.
func (c *Compiler) Compile(q queryir.Query) (string, error) {
	if res := queryir.Validate(q); !res.Valid() {
		return "", fmt.Errorf("invalid query: %w", res.Err())
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *Compiler) compileSelect(q queryir.Select) (string, error) {
	var where string
	if q.Filter != nil {
		filter, err := c.CompilePredicate(q.Filter)
		if err != nil {
			return "", fmt.Errorf("compile filter: %w", err)
		}
		where = filter
	}
	return c.assemble(q, where), nil
}

// selectPrefix renders "SELECT <columns> FROM <from>".
func (c *Compiler) selectPrefix(q queryir.Select) string {
	cols := make([]string, len(q.Columns))
	for i, col := range q.Columns {
		cols[i] = c.Dialect.QuoteIdent(col)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), c.Dialect.QuoteIdent(q.From))
}

// orderSuffix renders the optional ORDER BY clause.
func (c *Compiler) orderSuffix(q queryir.Select) string {
	if q.OrderBy == "" {
		return ""
	}
	return " ORDER BY " + c.Dialect.QuoteIdent(q.OrderBy)
}

func (c *Compiler) assemble(q queryir.Select, where string) string {
	var sb strings.Builder
	sb.WriteString(c.selectPrefix(q))
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	sb.WriteString(c.orderSuffix(q))
	return sb.String()
}

// CompilePredicate compiles a predicate to a WHERE fragment.
func (c *Compiler) CompilePredicate(p queryir.Predicate) (string, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.IsNull:
		return c.Dialect.NullComparison(c.Dialect.QuoteIdent(pred.Field)), nil
	case *queryir.IsNull:
		return c.CompilePredicate(*pred)
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case *queryir.And:
		return c.CompilePredicate(*pred)
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	case *queryir.Or:
		return c.CompilePredicate(*pred)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles "field = literal". A null literal becomes the
// dialect's null comparison.
func (c *Compiler) compileEquals(eq queryir.Equals) (string, error) {
	field := c.Dialect.QuoteIdent(eq.Field)
	if ir.IsNull(eq.Value) {
		return c.Dialect.NullComparison(field), nil
	}
	lit, err := c.Literal(eq.Value)
	if err != nil {
		return "", fmt.Errorf("field %s: %w", eq.Field, err)
	}
	return field + " = " + lit, nil
}

// compileJunction joins children with op. Children that are themselves
// junctions are parenthesized so precedence never depends on the dialect.
func (c *Compiler) compileJunction(children []queryir.Predicate, op, empty string) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	parts := make([]string, len(children))
	for i, child := range children {
		sql, err := c.CompilePredicate(child)
		if err != nil {
			return "", err
		}
		if isJunction(child) && len(children) > 1 {
			sql = "(" + sql + ")"
		}
		parts[i] = sql
	}
	return strings.Join(parts, op), nil
}

func isJunction(p queryir.Predicate) bool {
	switch p.(type) {
	case queryir.And, *queryir.And, queryir.Or, *queryir.Or:
		return true
	}
	return false
}

// Literal renders a scalar value: strings in NFC escaped by the dialect,
// numbers in canonical text, booleans per dialect.
func (c *Compiler) Literal(v ir.IRValue) (string, error) {
	switch val := v.(type) {
	case ir.IRString:
		return c.Dialect.QuoteString(norm.NFC.String(string(val))), nil
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10), nil
	case ir.IRFloat:
		b, err := ir.MarshalCanonical(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case ir.IRBool:
		return c.Dialect.Bool(bool(val)), nil
	case nil, ir.IRNull:
		return "null", nil
	default:
		return "", fmt.Errorf("%T cannot be used as a query literal", v)
	}
}
