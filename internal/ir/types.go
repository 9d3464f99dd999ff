package ir

import "fmt"

// IDField is the remote store's unique identifier column.
const IDField = "Id"

// Kind is the primitive type of a field.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindBoolean:
		return true
	}
	return false
}

// Field describes one field of a record type.
//
// This is a sealed interface: only *PrimitiveField and *CompoundField
// implement it, so consumers can switch exhaustively on the variant.
type Field interface {
	FieldName() string
	field()
}

// PrimitiveField maps to exactly one remote column.
type PrimitiveField struct {
	Name         string `json:"name"`
	ExternalName string `json:"external_name,omitempty"` // Remote column; defaults to Name
	Kind         Kind   `json:"kind"`
	Createable   bool   `json:"createable"`
	Updateable   bool   `json:"updateable"`
}

func (f *PrimitiveField) FieldName() string { return f.Name }
func (*PrimitiveField) field()              {}

// Column returns the remote column name of the field.
func (f *PrimitiveField) Column() string {
	if f.ExternalName != "" {
		return f.ExternalName
	}
	return f.Name
}

// CompoundField is a fixed set of named sub-fields, each stored in its own
// remote column (e.g. an address made of street and city).
type CompoundField struct {
	Name      string           `json:"name"`
	SubFields []PrimitiveField `json:"sub_fields"`
}

func (f *CompoundField) FieldName() string { return f.Name }
func (*CompoundField) field()              {}

// RecordType identifies a schema: a name and its ordered field list.
// Immutable once compiled.
type RecordType struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field returns the field with the given local name.
func (rt *RecordType) Field(name string) (Field, bool) {
	for _, f := range rt.Fields {
		if f.FieldName() == name {
			return f, true
		}
	}
	return nil, false
}

// SchemaError reports a schema lookup that could not be resolved.
type SchemaError struct {
	TypeName string
	Field    string
	Message  string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema error: %s.%s: %s", e.TypeName, e.Field, e.Message)
	}
	return fmt.Sprintf("schema error: %s: %s", e.TypeName, e.Message)
}
