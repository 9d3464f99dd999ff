package engine

import (
	"context"
	"fmt"

	"github.com/roach88/recon/internal/ir"
)

// PlanStep is one planned mutation.
type PlanStep struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// Plan is the dry-run counterpart of a DeployOutcome: the lookup queries a
// Deploy call would run and the mutation each change would turn into.
type Plan struct {
	TypeName string     `json:"type"`
	Action   ir.Action  `json:"action"`
	Queries  []string   `json:"queries"`
	Inserts  []PlanStep `json:"inserts"`
	Updates  []PlanStep `json:"updates"`
	Deletes  []PlanStep `json:"deletes"`
	Errors   []string   `json:"errors"`
}

func newPlan(typeName string, action ir.Action) *Plan {
	return &Plan{
		TypeName: typeName,
		Action:   action,
		Queries:  []string{},
		Inserts:  []PlanStep{},
		Updates:  []PlanStep{},
		Deletes:  []PlanStep{},
		Errors:   []string{},
	}
}

// Plan runs the lookup queries of a change group and classifies its
// changes without issuing any bulk call. Instances are not modified.
//
// Plan fails on the same preconditions and transport errors as Deploy.
func (e *Engine) Plan(ctx context.Context, changes []ir.Change) (*Plan, error) {
	if len(changes) == 0 {
		return newPlan("", ""), nil
	}
	g, err := e.checkGroup(changes)
	if err != nil {
		return nil, err
	}
	p := newPlan(g.rt.Name, g.action)

	switch g.action {
	case ir.ActionAdd:
		instances := make([]*ir.Instance, len(changes))
		for i, c := range changes {
			instances[i] = c.After
		}
		if err := e.planLookup(ctx, g, p, instances, func(c Classified) {
			p.Inserts = append(p.Inserts, PlanStep{Name: c.Instance.DisplayName()})
		}); err != nil {
			return nil, err
		}

	case ir.ActionRemove:
		var unresolved []*ir.Instance
		for _, c := range changes {
			if c.Before.ID != "" {
				p.Deletes = append(p.Deletes, PlanStep{Name: c.Before.DisplayName(), ID: c.Before.ID})
				continue
			}
			unresolved = append(unresolved, c.Before)
		}
		if len(unresolved) > 0 {
			if err := e.planLookup(ctx, g, p, unresolved, func(c Classified) {
				p.Errors = append(p.Errors, formatError(c.Instance, []string{"no matching remote record"}))
			}); err != nil {
				return nil, err
			}
		}

	case ir.ActionModify:
		for _, c := range changes {
			id := c.After.ID
			if id == "" {
				id = c.Before.ID
			}
			if id != c.Before.ID {
				p.Errors = append(p.Errors, formatError(c.After, []string{
					fmt.Sprintf("changing the remote identifier from %q to %q is not supported", c.Before.ID, id),
				}))
				continue
			}
			p.Updates = append(p.Updates, PlanStep{Name: c.After.DisplayName(), ID: id})
		}
	}
	return p, nil
}

// planLookup matches instances and records existing matches as updates
// (or deletes for a remove group). Unmatched instances go to onNew.
func (e *Engine) planLookup(ctx context.Context, g *group, p *Plan, instances []*ir.Instance, onNew func(Classified)) error {
	r, err := e.resolver(g.rt)
	if err != nil {
		return err
	}
	m, queries, err := e.match(ctx, g.rt, r, instances)
	if err != nil {
		return err
	}
	p.Queries = append(p.Queries, queries...)

	for _, ex := range m.Existing {
		step := PlanStep{Name: ex.Instance.DisplayName(), ID: ex.Record.ID}
		if g.action == ir.ActionRemove {
			p.Deletes = append(p.Deletes, step)
		} else {
			p.Updates = append(p.Updates, step)
		}
	}
	for _, n := range m.New {
		onNew(n)
	}
	for _, d := range m.Duplicates {
		p.Errors = append(p.Errors, formatError(d.Instance, []string{duplicateMessage(instances[d.First])}))
	}
	for _, inv := range m.Invalid {
		p.Errors = append(p.Errors, formatError(inv.Instance, []string{inv.Err.Error()}))
	}
	return nil
}
