package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// IRObject is an insertion-ordered map of string keys to IRValue elements.
//
// Order is part of the value: two objects with the same entries in a
// different order marshal (and therefore hash) differently. Always use
// *IRObject; the zero value is ready to use.
type IRObject struct {
	keys []string
	vals map[string]IRValue
}

func (*IRObject) irValue() {}

// IRPair represents a key-value pair for typed IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// O is a shorthand for IRPair for ergonomic construction.
// Example: NewIRObject(O("name", IRString("cart")), O("count", IRInt(5)))
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// NewIRObject creates an IRObject holding pairs in the given order.
// A repeated key keeps its first position and its last value.
func NewIRObject(pairs ...IRPair) *IRObject {
	obj := &IRObject{}
	for _, p := range pairs {
		obj.Set(p.Key, p.Value)
	}
	return obj
}

// Set stores value under key. New keys are appended; existing keys keep
// their position.
func (o *IRObject) Set(key string, value IRValue) {
	if o.vals == nil {
		o.vals = make(map[string]IRValue)
	}
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	if value == nil {
		value = IRNull{}
	}
	o.vals[key] = value
}

// Get returns the value stored under key.
func (o *IRObject) Get(key string) (IRValue, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// Delete removes key, preserving the order of the remaining keys.
func (o *IRObject) Delete(key string) {
	if o == nil {
		return
	}
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the keys in insertion order.
func (o *IRObject) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// Len returns the number of entries.
func (o *IRObject) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Clone returns a deep copy of the object.
func (o *IRObject) Clone() *IRObject {
	out := &IRObject{}
	if o == nil {
		return out
	}
	for _, k := range o.keys {
		out.Set(k, cloneValue(o.vals[k]))
	}
	return out
}

func cloneValue(v IRValue) IRValue {
	switch val := v.(type) {
	case *IRObject:
		return val.Clone()
	case IRArray:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			arr[i] = cloneValue(elem)
		}
		return arr
	default:
		return v
	}
}

// MarshalJSON writes the object with keys in insertion order.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing.
func (o *IRObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalIRValue(o.vals[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalIRValue marshals an IRValue to plain JSON bytes.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return []byte("null"), nil
	case IRString:
		return json.Marshal(string(val))
	case IRInt:
		return json.Marshal(int64(val))
	case IRFloat:
		return json.Marshal(float64(val))
	case IRBool:
		return json.Marshal(bool(val))
	case IRArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case *IRObject:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

// UnmarshalYAML decodes a YAML mapping into the object, keeping the key
// order of the document.
func (o *IRObject) UnmarshalYAML(node *yaml.Node) error {
	v, err := fromYAMLNode(node)
	if err != nil {
		return err
	}
	obj, ok := v.(*IRObject)
	if !ok {
		return fmt.Errorf("line %d: expected mapping, got %T", node.Line, v)
	}
	*o = *obj
	return nil
}

func fromYAMLNode(node *yaml.Node) (IRValue, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return IRNull{}, nil
		}
		return fromYAMLNode(node.Content[0])
	case yaml.AliasNode:
		return fromYAMLNode(node.Alias)
	case yaml.MappingNode:
		obj := &IRObject{}
		for i := 0; i+1 < len(node.Content); i += 2 {
			val, err := fromYAMLNode(node.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", node.Content[i].Value, err)
			}
			obj.Set(node.Content[i].Value, val)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make(IRArray, len(node.Content))
		for i, elem := range node.Content {
			val, err := fromYAMLNode(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = val
		}
		return arr, nil
	case yaml.ScalarNode:
		return fromYAMLScalar(node)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", node.Line, node.Kind)
	}
}

func fromYAMLScalar(node *yaml.Node) (IRValue, error) {
	switch node.ShortTag() {
	case "!!null":
		return IRNull{}, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, err
		}
		return IRBool(b), nil
	case "!!int":
		if n, err := strconv.ParseInt(node.Value, 0, 64); err == nil {
			return IRInt(n), nil
		}
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return NewIRNumber(f)
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return NewIRNumber(f)
	default:
		return IRString(node.Value), nil
	}
}
