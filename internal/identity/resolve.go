package identity

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/recon/internal/ir"
)

// Column is one remote-queryable column contributing to a record's identity.
type Column struct {
	Source   string  // Local field name
	Sub      string  // Sub-field name; empty unless Compound
	Remote   string  // Remote column name
	Kind     ir.Kind // Primitive kind used to normalize values
	Compound bool    // True when the column is a member of a compound field
}

// ColumnName derives the remote column of a compound sub-field: first rune
// upper-cased, rest unchanged.
func ColumnName(sub string) string {
	r, size := utf8.DecodeRuneInString(sub)
	if r == utf8.RuneError {
		return sub
	}
	return string(unicode.ToUpper(r)) + sub[size:]
}

// Expand resolves identity field names into the flat list of remote columns.
//
// Primitive fields yield their external name. Compound fields yield one
// column per sub-field, in schema order. The remote id column is prepended
// unless the identity already covers it, because lookups must always carry
// an identifier back.
//
// Returns *ir.SchemaError when a name is not a field of rt or is listed twice.
func Expand(rt *ir.RecordType, names []string) ([]Column, error) {
	seen := make(map[string]bool, len(names))
	var cols []Column
	hasID := false

	for _, name := range names {
		if seen[name] {
			return nil, &ir.SchemaError{TypeName: rt.Name, Field: name, Message: "identity field listed twice"}
		}
		seen[name] = true

		f, ok := rt.Field(name)
		if !ok {
			return nil, &ir.SchemaError{TypeName: rt.Name, Field: name, Message: "identity field does not exist"}
		}

		switch field := f.(type) {
		case *ir.PrimitiveField:
			col := Column{Source: field.Name, Remote: field.Column(), Kind: field.Kind}
			if col.Remote == ir.IDField {
				hasID = true
			}
			cols = append(cols, col)
		case *ir.CompoundField:
			if len(field.SubFields) == 0 {
				return nil, &ir.SchemaError{TypeName: rt.Name, Field: name, Message: "compound field has no sub-fields"}
			}
			for _, sub := range field.SubFields {
				cols = append(cols, Column{
					Source:   field.Name,
					Sub:      sub.Name,
					Remote:   ColumnName(sub.Name),
					Kind:     sub.Kind,
					Compound: true,
				})
			}
		default:
			return nil, &ir.SchemaError{TypeName: rt.Name, Field: name, Message: fmt.Sprintf("unsupported field type %T", f)}
		}
	}

	if !hasID {
		cols = append([]Column{{Source: ir.IDField, Remote: ir.IDField, Kind: ir.KindString}}, cols...)
	}
	return cols, nil
}

// Resolver binds a record type to its IdentitySpec and extracts ordered
// identity values from local instances and remote rows.
type Resolver struct {
	Type   *ir.RecordType
	Fields []string // IdentitySpec, in declared order

	columns  []Column
	identity []Column // columns minus a prepended id column
}

// NewResolver expands fields against rt.
func NewResolver(rt *ir.RecordType, fields []string) (*Resolver, error) {
	cols, err := Expand(rt, fields)
	if err != nil {
		return nil, err
	}
	identity := cols
	if len(cols) > 0 && cols[0].Source == ir.IDField && !containsString(fields, ir.IDField) {
		identity = cols[1:]
	}
	return &Resolver{
		Type:     rt,
		Fields:   append([]string(nil), fields...),
		columns:  cols,
		identity: identity,
	}, nil
}

// Columns returns every column a lookup query must select, id first.
func (r *Resolver) Columns() []Column {
	return r.columns
}

// IdentityColumns returns the columns that take part in matching.
func (r *Resolver) IdentityColumns() []Column {
	return r.identity
}

// ColumnNames returns the remote names of Columns.
func (r *Resolver) ColumnNames() []string {
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.Remote
	}
	return names
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
