// Package changes reads change lists from YAML and binds them to compiled
// record types.
//
// A change list document looks like:
//
//	changes:
//	  - action: add
//	    type: Account
//	    name: acme
//	    values:
//	      Name: Acme
//	      address: {street: 1 Main, city: Springfield}
//	  - action: modify
//	    type: Account
//	    id: 0019000000abc
//	    values: {Name: Acme Corp}
//
// Values are decoded through yaml.Node so key order survives.
package changes

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recon/internal/ir"
)

// Schema resolves record type names.
type Schema interface {
	RecordType(name string) (*ir.RecordType, bool)
}

// Types is a Schema over a plain slice of record types.
type Types []*ir.RecordType

// RecordType returns the type named name.
func (ts Types) RecordType(name string) (*ir.RecordType, bool) {
	for _, rt := range ts {
		if rt.Name == name {
			return rt, true
		}
	}
	return nil, false
}

type file struct {
	Changes []Entry `yaml:"changes"`
}

// Entry is one change as written in YAML.
type Entry struct {
	Action ir.Action    `yaml:"action"`
	Type   string       `yaml:"type"`
	Name   string       `yaml:"name,omitempty"`
	ID     string       `yaml:"id,omitempty"`
	Values *ir.IRObject `yaml:"values,omitempty"`
	// Before is the prior state of a modify; defaults to a copy of Values.
	Before *ir.IRObject `yaml:"before,omitempty"`
}

// Load reads a changes file and binds every entry to its record type.
func Load(path string, schema Schema) ([]ir.Change, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading changes file: %w", err)
	}
	return Parse(data, schema)
}

// Parse decodes a changes document.
func Parse(data []byte, schema Schema) ([]ir.Change, error) {
	var doc file
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing changes file: %w", err)
	}
	return Bind(doc.Changes, schema)
}

// Bind converts entries to changes. Errors name the offending entry by
// index.
func Bind(entries []Entry, schema Schema) ([]ir.Change, error) {
	out := make([]ir.Change, 0, len(entries))
	for i, entry := range entries {
		c, err := entry.Change(schema)
		if err != nil {
			return nil, fmt.Errorf("changes[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Change binds e to its record type.
func (e Entry) Change(schema Schema) (ir.Change, error) {
	rt, ok := schema.RecordType(e.Type)
	if !ok {
		return ir.Change{}, fmt.Errorf("unknown record type %q", e.Type)
	}

	var values *ir.IRObject
	if e.Values != nil {
		values = e.Values.Clone()
	}
	inst := ir.NewInstance(rt, e.Name, values)
	inst.ID = e.ID

	switch e.Action {
	case ir.ActionAdd:
		return ir.Add(inst), nil
	case ir.ActionRemove:
		return ir.Remove(inst), nil
	case ir.ActionModify:
		prior := inst.Values.Clone()
		if e.Before != nil {
			prior = e.Before.Clone()
		}
		before := ir.NewInstance(rt, e.Name, prior)
		before.ID = e.ID
		return ir.Modify(before, inst), nil
	default:
		return ir.Change{}, fmt.Errorf("unknown action %q (want add, remove or modify)", e.Action)
	}
}

// Group is a run of changes sharing one record type and action.
type Group struct {
	TypeName string
	Action   ir.Action
	Changes  []ir.Change
}

// Partition splits changes by (type, action). Groups appear in the order of
// their first change; changes keep their relative order.
func Partition(changes []ir.Change) []Group {
	type key struct {
		typeName string
		action   ir.Action
	}
	index := make(map[key]int)
	var groups []Group
	for _, c := range changes {
		k := key{c.Data().TypeName(), c.Action}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{TypeName: k.typeName, Action: k.action})
		}
		groups[i].Changes = append(groups[i].Changes, c)
	}
	return groups
}
