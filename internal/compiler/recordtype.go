package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/recon/internal/ir"
)

// CompileRecordType parses a CUE value into a RecordType.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the record type struct itself, labelled with the type name:
//
//	recordType: Account: {
//		fields: {
//			Id:   "string"
//			Name: "string"
//			code: {kind: "number", external: "Code__c", updateable: false}
//			address: compound: {
//				street: "string"
//				city:   "string"
//			}
//		}
//	}
//
// A primitive field is either a kind string or a struct with kind and the
// optional external, createable and updateable keys. Fields are writable
// unless stated otherwise; the Id field is never writable. Field order
// follows declaration order.
func CompileRecordType(v cue.Value) (*ir.RecordType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rt := &ir.RecordType{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		rt.Name = labels[len(labels)-1].String()
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		fv := iter.Value()

		compound := fv.LookupPath(cue.ParsePath("compound"))
		if compound.Exists() {
			field, err := parseCompound(rt.Name, name, compound)
			if err != nil {
				return nil, err
			}
			rt.Fields = append(rt.Fields, field)
			continue
		}

		field, err := parsePrimitive(rt.Name+"."+name, name, fv)
		if err != nil {
			return nil, err
		}
		if field.Column() == ir.IDField {
			field.Createable = false
			field.Updateable = false
		}
		rt.Fields = append(rt.Fields, field)
	}

	if len(rt.Fields) == 0 {
		return nil, &CompileError{
			Field:   "fields",
			Message: "at least one field is required",
			Pos:     fieldsVal.Pos(),
		}
	}

	return rt, nil
}

func parseCompound(typeName, name string, v cue.Value) (*ir.CompoundField, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	field := &ir.CompoundField{Name: name}
	for iter.Next() {
		sub := iter.Label()
		pf, err := parsePrimitive(fmt.Sprintf("%s.%s.%s", typeName, name, sub), sub, iter.Value())
		if err != nil {
			return nil, err
		}
		if pf.ExternalName != "" {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s.%s.%s", typeName, name, sub),
				Message: "compound sub-fields cannot rename their column",
				Pos:     iter.Value().Pos(),
			}
		}
		field.SubFields = append(field.SubFields, *pf)
	}

	if len(field.SubFields) == 0 {
		return nil, &CompileError{
			Field:   typeName + "." + name,
			Message: "compound field needs at least one sub-field",
			Pos:     v.Pos(),
		}
	}
	return field, nil
}

// parsePrimitive accepts the kind shorthand or the full struct form.
func parsePrimitive(path, name string, v cue.Value) (*ir.PrimitiveField, error) {
	field := &ir.PrimitiveField{Name: name, Createable: true, Updateable: true}

	if kind, err := v.String(); err == nil {
		field.Kind = ir.Kind(kind)
		return field, checkKind(path, field.Kind, v)
	}

	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   path,
			Message: "must be a kind string or a field struct",
			Pos:     v.Pos(),
		}
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return nil, &CompileError{Field: path, Message: "kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	field.Kind = ir.Kind(kind)
	if err := checkKind(path, field.Kind, kindVal); err != nil {
		return nil, err
	}

	if ext := v.LookupPath(cue.ParsePath("external")); ext.Exists() {
		if field.ExternalName, err = ext.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if c := v.LookupPath(cue.ParsePath("createable")); c.Exists() {
		if field.Createable, err = c.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if u := v.LookupPath(cue.ParsePath("updateable")); u.Exists() {
		if field.Updateable, err = u.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	return field, nil
}

func checkKind(path string, k ir.Kind, v cue.Value) error {
	if k.Valid() {
		return nil
	}
	return &CompileError{
		Field:   path,
		Message: fmt.Sprintf("unsupported kind %q (want string, number or boolean)", k),
		Pos:     v.Pos(),
	}
}
