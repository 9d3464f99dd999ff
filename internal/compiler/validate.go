package compiler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/recon/internal/identity"
	"github.com/roach88/recon/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// RecordType errors (E101-E109)
	ErrMissingIDField   = "E101" // record type has no Id column
	ErrDuplicateColumn  = "E102" // two fields share a remote column
	ErrUnwritableRecord = "E103" // no field is createable

	// DataManagement errors (E110-E119)
	ErrEmptyIdentity        = "E110" // managed type resolves to an empty identity
	ErrUnknownIdentityField = "E111" // identity names a missing field
	ErrUnknownOverrideType  = "E112" // override for an undeclared record type
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled record types against the data management
// configuration. Returns all errors found (does not fail-fast).
//
// dm may be nil, in which case only the record types are checked.
func Validate(types []*ir.RecordType, dm *ir.DataManagement) []ValidationError {
	var errs []ValidationError

	declared := make(map[string]bool, len(types))
	for _, rt := range types {
		declared[rt.Name] = true
		errs = append(errs, validateRecordType(rt)...)
	}

	if dm == nil {
		return errs
	}

	for _, rt := range types {
		if !dm.IsManaged(rt.Name) {
			continue
		}
		fields := dm.IdentityFor(rt.Name)
		if len(fields) == 0 {
			errs = append(errs, ValidationError{
				Field:   "dataManagement.identityFields",
				Message: fmt.Sprintf("managed record type %q has an empty identity", rt.Name),
				Code:    ErrEmptyIdentity,
			})
			continue
		}
		if _, err := identity.Expand(rt, fields); err != nil {
			var schemaErr *ir.SchemaError
			msg := err.Error()
			if errors.As(err, &schemaErr) {
				msg = fmt.Sprintf("%s: %s", schemaErr.Field, schemaErr.Message)
			}
			errs = append(errs, ValidationError{
				Field:   "recordType." + rt.Name,
				Message: msg,
				Code:    ErrUnknownIdentityField,
			})
		}
	}

	overridden := make([]string, 0, len(dm.Overrides))
	for name := range dm.Overrides {
		overridden = append(overridden, name)
	}
	sort.Strings(overridden)
	for _, name := range overridden {
		if !declared[name] {
			errs = append(errs, ValidationError{
				Field:   "dataManagement.overrides." + name,
				Message: fmt.Sprintf("override for undeclared record type %q", name),
				Code:    ErrUnknownOverrideType,
			})
		}
	}

	return errs
}

func validateRecordType(rt *ir.RecordType) []ValidationError {
	var errs []ValidationError
	path := "recordType." + rt.Name

	columns := make(map[string]string)
	claim := func(column, field string) {
		if prev, ok := columns[column]; ok {
			errs = append(errs, ValidationError{
				Field:   path + "." + field,
				Message: fmt.Sprintf("column %q already used by field %q", column, prev),
				Code:    ErrDuplicateColumn,
			})
			return
		}
		columns[column] = field
	}

	writable := false
	for _, f := range rt.Fields {
		switch field := f.(type) {
		case *ir.PrimitiveField:
			claim(field.Column(), field.Name)
			writable = writable || field.Createable
		case *ir.CompoundField:
			for _, sf := range field.SubFields {
				claim(identity.ColumnName(sf.Name), field.Name+"."+sf.Name)
				writable = writable || sf.Createable
			}
		}
	}

	if _, ok := columns[ir.IDField]; !ok {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("record type must declare the %s field", ir.IDField),
			Code:    ErrMissingIDField,
		})
	}
	if !writable {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: "record type has no createable field",
			Code:    ErrUnwritableRecord,
		})
	}

	return errs
}
