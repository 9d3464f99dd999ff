package ir

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FromRaw converts a raw value returned by a remote store or a decoder into
// an IRValue. Map keys are sorted because raw maps carry no order.
func FromRaw(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case []byte:
		return IRString(string(val)), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case float32:
		return NewIRNumber(float64(val))
	case float64:
		return NewIRNumber(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return IRInt(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return NewIRNumber(f)
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromRaw(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		obj := &IRObject{}
		for _, k := range keys {
			irElem, err := FromRaw(val[k])
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj.Set(k, irElem)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported raw type: %T", v)
	}
}

// ToRaw converts an IRValue into a plain Go value suitable for a remote
// store call (string, int64, float64, bool, nil, []any, map[string]any).
func ToRaw(v IRValue) any {
	switch val := v.(type) {
	case nil, IRNull:
		return nil
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRFloat:
		return float64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToRaw(elem)
		}
		return out
	case *IRObject:
		out := make(map[string]any, val.Len())
		for _, k := range val.Keys() {
			elem, _ := val.Get(k)
			out[k] = ToRaw(elem)
		}
		return out
	default:
		return nil
	}
}

// Coerce normalizes v to the representation of kind so that a local
// declaration and a remote row holding the same logical value produce the
// same canonical bytes. Null passes through unchanged.
func Coerce(kind Kind, v IRValue) (IRValue, error) {
	if IsNull(v) {
		return IRNull{}, nil
	}
	switch kind {
	case KindString:
		return coerceString(v)
	case KindNumber:
		return coerceNumber(v)
	case KindBoolean:
		return coerceBool(v)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

// coerceString returns strings in NFC, the form the identity hash uses, so
// that payloads and query literals carry the bytes that were hashed.
func coerceString(v IRValue) (IRValue, error) {
	switch val := v.(type) {
	case IRString:
		return IRString(norm.NFC.String(string(val))), nil
	case IRInt, IRFloat, IRBool:
		b, err := MarshalCanonical(val)
		if err != nil {
			return nil, err
		}
		return IRString(string(b)), nil
	default:
		return nil, fmt.Errorf("cannot use %T as string", v)
	}
}

func coerceNumber(v IRValue) (IRValue, error) {
	switch val := v.(type) {
	case IRInt:
		return val, nil
	case IRFloat:
		return NewIRNumber(float64(val))
	case IRString:
		s := strings.TrimSpace(string(val))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IRInt(n), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot use %q as number", string(val))
		}
		return NewIRNumber(f)
	default:
		return nil, fmt.Errorf("cannot use %T as number", v)
	}
}

func coerceBool(v IRValue) (IRValue, error) {
	switch val := v.(type) {
	case IRBool:
		return val, nil
	case IRInt:
		switch val {
		case 0:
			return IRBool(false), nil
		case 1:
			return IRBool(true), nil
		}
		return nil, fmt.Errorf("cannot use %d as boolean", int64(val))
	case IRString:
		b, err := strconv.ParseBool(strings.TrimSpace(string(val)))
		if err != nil {
			return nil, fmt.Errorf("cannot use %q as boolean", string(val))
		}
		return IRBool(b), nil
	default:
		return nil, fmt.Errorf("cannot use %T as boolean", v)
	}
}
