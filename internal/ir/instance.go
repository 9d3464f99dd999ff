package ir

// Instance is a locally declared record pending reconciliation.
//
// ID is empty until the remote store assigns one (insert) or the matcher
// finds an existing record (upsert). The engine mutates ID in place; it
// never removes an instance.
type Instance struct {
	Type   *RecordType `json:"-"`
	Name   string      `json:"name,omitempty"`
	Values *IRObject   `json:"values"`
	ID     string      `json:"id,omitempty"`
}

// NewInstance creates an instance of rt. A nil values object is replaced by
// an empty one.
func NewInstance(rt *RecordType, name string, values *IRObject) *Instance {
	if values == nil {
		values = &IRObject{}
	}
	return &Instance{Type: rt, Name: name, Values: values}
}

// DisplayName returns the name used in error reports.
func (i *Instance) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	typeName := ""
	if i.Type != nil {
		typeName = i.Type.Name
	}
	if i.ID != "" {
		return typeName + "(" + i.ID + ")"
	}
	return typeName + "(<new>)"
}

// TypeName returns the record type name, or "" when the type is unset.
func (i *Instance) TypeName() string {
	if i.Type == nil {
		return ""
	}
	return i.Type.Name
}

// Action is the intended operation of a change.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionModify Action = "modify"
)

// Change ties a local instance to an intended operation.
//
//   - Add: After set
//   - Remove: Before set
//   - Modify: Before and After set
type Change struct {
	Action Action    `json:"action"`
	Before *Instance `json:"before,omitempty"`
	After  *Instance `json:"after,omitempty"`
}

// Add returns an add change for inst.
func Add(inst *Instance) Change {
	return Change{Action: ActionAdd, After: inst}
}

// Remove returns a remove change for inst.
func Remove(inst *Instance) Change {
	return Change{Action: ActionRemove, Before: inst}
}

// Modify returns a modify change from before to after.
func Modify(before, after *Instance) Change {
	return Change{Action: ActionModify, Before: before, After: after}
}

// Data returns the instance carrying the change's resulting state: After for
// add and modify, Before for remove.
func (c Change) Data() *Instance {
	if c.After != nil {
		return c.After
	}
	return c.Before
}
