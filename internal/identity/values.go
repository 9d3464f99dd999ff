package identity

import (
	"fmt"

	"github.com/roach88/recon/internal/ir"
)

// LocalValues builds the ordered identity-value object of a local instance.
//
// Keys follow the IdentitySpec order. A compound field becomes a nested
// object keyed by sub-field name in schema order. Absent and null values
// both become ir.IRNull, and every value is coerced to its field kind.
func (r *Resolver) LocalValues(inst *ir.Instance) (*ir.IRObject, error) {
	out := &ir.IRObject{}
	for _, name := range r.Fields {
		f, _ := r.Type.Field(name)
		raw, _ := inst.Values.Get(name)

		switch field := f.(type) {
		case *ir.PrimitiveField:
			if ir.IsNull(raw) && field.Column() == ir.IDField && inst.ID != "" {
				raw = ir.IRString(inst.ID)
			}
			v, err := ir.Coerce(field.Kind, raw)
			if err != nil {
				return nil, fmt.Errorf("%s: field %s: %w", inst.DisplayName(), name, err)
			}
			out.Set(name, v)
		case *ir.CompoundField:
			var nested *ir.IRObject
			if !ir.IsNull(raw) {
				obj, ok := raw.(*ir.IRObject)
				if !ok {
					return nil, fmt.Errorf("%s: field %s: compound value must be a mapping, got %T", inst.DisplayName(), name, raw)
				}
				nested = obj
			}
			sub := &ir.IRObject{}
			for _, sf := range field.SubFields {
				sv, _ := nested.Get(sf.Name)
				v, err := ir.Coerce(sf.Kind, sv)
				if err != nil {
					return nil, fmt.Errorf("%s: field %s.%s: %w", inst.DisplayName(), name, sf.Name, err)
				}
				sub.Set(sf.Name, v)
			}
			out.Set(name, sub)
		}
	}
	return out, nil
}

// RemoteValues rebuilds the ordered identity-value object from a remote
// row's raw columns. Compound sub-columns are reassembled under their
// source field; missing columns and nulls become ir.IRNull, matching the
// local absence semantics of LocalValues.
func (r *Resolver) RemoteValues(columns map[string]any) (*ir.IRObject, error) {
	out := &ir.IRObject{}
	for _, col := range r.identity {
		raw, err := ir.FromRaw(columns[col.Remote])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Remote, err)
		}
		v, err := ir.Coerce(col.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Remote, err)
		}

		if !col.Compound {
			out.Set(col.Source, v)
			continue
		}
		existing, ok := out.Get(col.Source)
		nested, isObj := existing.(*ir.IRObject)
		if !ok || !isObj {
			nested = &ir.IRObject{}
			out.Set(col.Source, nested)
		}
		nested.Set(col.Sub, v)
	}
	return out, nil
}

// LocalHash returns the identity hash of a local instance.
func (r *Resolver) LocalHash(inst *ir.Instance) (string, error) {
	values, err := r.LocalValues(inst)
	if err != nil {
		return "", err
	}
	return ir.IdentityHash(values)
}

// RemoteHash returns the identity hash of a remote row.
func (r *Resolver) RemoteHash(columns map[string]any) (string, error) {
	values, err := r.RemoteValues(columns)
	if err != nil {
		return "", err
	}
	return ir.IdentityHash(values)
}

// QueryValues returns the instance's identity values flattened to one value
// per IdentityColumns entry, in the same order.
func (r *Resolver) QueryValues(inst *ir.Instance) ([]ir.IRValue, error) {
	values, err := r.LocalValues(inst)
	if err != nil {
		return nil, err
	}
	out := make([]ir.IRValue, len(r.identity))
	for i, col := range r.identity {
		v, _ := values.Get(col.Source)
		if col.Compound {
			v, _ = v.(*ir.IRObject).Get(col.Sub)
		}
		out[i] = v
	}
	return out, nil
}
