package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/recon/internal/identity"
	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/metrics"
	"github.com/roach88/recon/internal/querysql"
	"github.com/roach88/recon/internal/remote"
	"github.com/roach88/recon/internal/telemetry"
)

// Engine reconciles change groups against a remote store.
//
// The engine holds no per-call state: schema and data-management settings
// are read-only, and each Deploy call works on its own instance set. Calls
// for different record types may run concurrently. Concurrent calls for the
// same record type can race at the remote store (two inserts for one absent
// record); callers that need stronger guarantees serialize per type.
type Engine struct {
	client   remote.Client
	dm       *ir.DataManagement
	builder  *querysql.Builder
	executor *Executor
}

// Option configures an Engine.
type Option func(*Engine)

// WithBuilder sets the lookup query builder. The default renders the
// backslash dialect with default size limits.
func WithBuilder(b *querysql.Builder) Option {
	return func(e *Engine) {
		e.builder = b
	}
}

// New creates an Engine reconciling against client with the given
// data-management configuration. dm must have been compiled.
func New(client remote.Client, dm *ir.DataManagement, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		dm:       dm,
		builder:  querysql.NewBuilder(nil),
		executor: NewExecutor(client),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// group is a validated change group.
type group struct {
	rt      *ir.RecordType
	action  ir.Action
	changes []ir.Change
}

// Deploy applies one change group: changes of a single record type and a
// single action kind.
//
// The returned outcome is never nil. A precondition or transport failure
// aborts the whole group and is returned as a *DeployError; the outcome then
// holds no applied changes and exactly that one error. Per-record failures
// only show up in the outcome.
func (e *Engine) Deploy(ctx context.Context, changes []ir.Change) (*DeployOutcome, error) {
	if len(changes) == 0 {
		return &DeployOutcome{Applied: []ir.Change{}, Errors: []string{}}, nil
	}

	g, err := e.checkGroup(changes)
	if err != nil {
		slog.Error("deploy precondition failed", "error", err)
		return fatalOutcome(err), err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "recon.deploy")
	span.SetAttributes(
		attribute.String("recon.type", g.rt.Name),
		attribute.String("recon.action", string(g.action)),
		attribute.Int("recon.changes", len(changes)),
	)
	defer span.End()

	start := time.Now()
	defer func() { metrics.ObserveDeploy(g.rt.Name, time.Since(start)) }()

	slog.Info("deploying change group",
		"type", g.rt.Name,
		"action", g.action,
		"changes", len(changes),
	)

	var out *DeployOutcome
	switch g.action {
	case ir.ActionAdd:
		out, err = e.deployAdd(ctx, g)
	case ir.ActionRemove:
		out, err = e.deployRemove(ctx, g)
	case ir.ActionModify:
		out, err = e.deployModify(ctx, g)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deploy failed")
		slog.Error("deploy failed", "type", g.rt.Name, "action", g.action, "error", err)
		return fatalOutcome(err), err
	}

	span.SetAttributes(
		attribute.Int("recon.applied", len(out.Applied)),
		attribute.Int("recon.errors", len(out.Errors)),
	)
	slog.Info("change group deployed",
		"type", g.rt.Name,
		"action", g.action,
		"applied", len(out.Applied),
		"errors", len(out.Errors),
	)
	return out, nil
}

// checkGroup validates the preconditions shared by every action kind.
func (e *Engine) checkGroup(changes []ir.Change) (*group, error) {
	g := &group{changes: changes}
	for i, c := range changes {
		if err := checkChange(c); err != nil {
			return nil, newPreconditionError(ErrCodeInvalidChange, "", "change %d: %v", i, err)
		}
		rt := c.Data().Type
		if g.rt == nil {
			g.rt = rt
			g.action = c.Action
		}
		if rt.Name != g.rt.Name || (c.Before != nil && c.Before.TypeName() != g.rt.Name) {
			return nil, newPreconditionError(ErrCodeMixedTypes, g.rt.Name,
				"change group mixes record types %q and %q", g.rt.Name, c.Data().TypeName())
		}
		if c.Action != g.action {
			return nil, newPreconditionError(ErrCodeMixedActions, g.rt.Name,
				"change group mixes %s and %s changes", g.action, c.Action)
		}
	}

	if e.dm == nil {
		return nil, newPreconditionError(ErrCodeMissingIdentity, g.rt.Name, "no data management configuration")
	}
	if !e.dm.IsManaged(g.rt.Name) {
		return nil, newPreconditionError(ErrCodeUnmanagedType, g.rt.Name, "record type is not managed by content")
	}
	return g, nil
}

func checkChange(c ir.Change) error {
	switch c.Action {
	case ir.ActionAdd:
		if c.After == nil {
			return fmt.Errorf("add change has no instance")
		}
	case ir.ActionRemove:
		if c.Before == nil {
			return fmt.Errorf("remove change has no instance")
		}
	case ir.ActionModify:
		if c.Before == nil || c.After == nil {
			return fmt.Errorf("modify change needs both before and after")
		}
	default:
		return fmt.Errorf("unknown action %q", c.Action)
	}
	if c.Data().Type == nil {
		return fmt.Errorf("instance %s has no record type", c.Data().DisplayName())
	}
	return nil
}

// resolver builds the identity resolver for the group's record type.
func (e *Engine) resolver(rt *ir.RecordType) (*identity.Resolver, error) {
	fields := e.dm.IdentityFor(rt.Name)
	if len(fields) == 0 {
		return nil, newPreconditionError(ErrCodeMissingIdentity, rt.Name, "no identity fields configured")
	}
	r, err := identity.NewResolver(rt, fields)
	if err != nil {
		return nil, &DeployError{
			Code:     ErrCodeMissingIdentity,
			Message:  "identity fields do not resolve",
			TypeName: rt.Name,
			Err:      err,
		}
	}
	return r, nil
}

// lookupQueries renders the lookup queries for instances. Instances whose
// identity values cannot be read are left out; Match reports them.
func (e *Engine) lookupQueries(rt *ir.RecordType, r *identity.Resolver, instances []*ir.Instance) ([]string, error) {
	idCols := r.IdentityColumns()
	match := make([]string, len(idCols))
	for i, c := range idCols {
		match[i] = c.Remote
	}

	rows := make([][]ir.IRValue, 0, len(instances))
	for _, inst := range instances {
		values, err := r.QueryValues(inst)
		if err != nil {
			continue
		}
		rows = append(rows, values)
	}

	queries, err := e.builder.Build(querysql.Lookup{
		From:    rt.Name,
		Columns: r.ColumnNames(),
		Match:   match,
		Rows:    rows,
		OrderBy: ir.IDField,
	})
	if err != nil {
		return nil, fmt.Errorf("build lookup queries for %s: %w", rt.Name, err)
	}
	return queries, nil
}

// runQueries executes the lookup queries concurrently and concatenates
// their rows in query order. The first failure cancels the others.
func (e *Engine) runQueries(ctx context.Context, typeName string, queries []string) ([]remote.Record, error) {
	results := make([][]remote.Record, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			qctx, span := telemetry.Tracer().Start(gctx, "recon.lookup")
			span.SetAttributes(
				attribute.String("recon.type", typeName),
				attribute.Int("recon.query_length", len(q)),
			)
			defer span.End()

			rows, err := e.client.Query(qctx, q)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "lookup failed")
				return NewTransportError(typeName, "query", err)
			}
			metrics.RecordLookup(typeName, len(rows))
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []remote.Record
	for _, rows := range results {
		records = append(records, rows...)
	}
	slog.Debug("lookup completed", "type", typeName, "queries", len(queries), "rows", len(records))
	return records, nil
}

// match resolves instances against the remote store.
func (e *Engine) match(ctx context.Context, rt *ir.RecordType, r *identity.Resolver, instances []*ir.Instance) (MatchResult, []string, error) {
	queries, err := e.lookupQueries(rt, r, instances)
	if err != nil {
		return MatchResult{}, nil, err
	}
	records, err := e.runQueries(ctx, rt.Name, queries)
	if err != nil {
		return MatchResult{}, queries, err
	}
	return Match(r, instances, records), queries, nil
}

// failUnusable records the Duplicates and Invalid partitions as per-change
// errors.
func failUnusable(agg *aggregator, m MatchResult) {
	for _, d := range m.Duplicates {
		agg.fail(d.Index, duplicateMessage(agg.changes[d.First].Data()))
	}
	for _, inv := range m.Invalid {
		agg.failErr(inv.Index, inv.Err)
	}
}

// deployAdd upserts the group: matched instances are updated under their
// existing identifier, the rest are inserted.
func (e *Engine) deployAdd(ctx context.Context, g *group) (*DeployOutcome, error) {
	r, err := e.resolver(g.rt)
	if err != nil {
		return nil, err
	}

	instances := make([]*ir.Instance, len(g.changes))
	for i, c := range g.changes {
		instances[i] = c.After
	}

	m, _, err := e.match(ctx, g.rt, r, instances)
	if err != nil {
		return nil, err
	}

	agg := newAggregator(g.rt.Name, g.changes)
	failUnusable(agg, m)

	for _, ex := range m.Existing {
		ex.Instance.ID = ex.Record.ID
	}

	var insertResults, updateResults []OperationResult
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		insertResults, err = e.executor.Execute(egctx, g.rt.Name, remote.OpInsert, instancesOf(m.New))
		return err
	})
	eg.Go(func() error {
		var err error
		updateResults, err = e.executor.Execute(egctx, g.rt.Name, remote.OpUpdate, instancesOf(m.Existing))
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	agg.results(indexesOf(m.New), insertResults, ir.ActionAdd)
	agg.results(indexesOf(m.Existing), updateResults, ir.ActionModify)
	return agg.outcome(), nil
}

// deployRemove deletes the group. Instances without an identifier are
// first resolved through the identity lookup.
func (e *Engine) deployRemove(ctx context.Context, g *group) (*DeployOutcome, error) {
	agg := newAggregator(g.rt.Name, g.changes)

	var targets []*ir.Instance
	var indexes []int
	var unresolved []*ir.Instance
	var unresolvedIdx []int
	for i, c := range g.changes {
		if c.Before.ID != "" {
			targets = append(targets, c.Before)
			indexes = append(indexes, i)
			continue
		}
		unresolved = append(unresolved, c.Before)
		unresolvedIdx = append(unresolvedIdx, i)
	}

	if len(unresolved) > 0 {
		r, err := e.resolver(g.rt)
		if err != nil {
			return nil, err
		}
		m, _, err := e.match(ctx, g.rt, r, unresolved)
		if err != nil {
			return nil, err
		}
		remap(&m, unresolvedIdx)
		failUnusable(agg, m)
		for _, n := range m.New {
			agg.fail(n.Index, "no matching remote record")
		}
		for _, ex := range m.Existing {
			ex.Instance.ID = ex.Record.ID
			targets = append(targets, ex.Instance)
			indexes = append(indexes, ex.Index)
		}
	}

	results, err := e.executor.Execute(ctx, g.rt.Name, remote.OpDelete, targets)
	if err != nil {
		return nil, err
	}
	agg.results(indexes, results, ir.ActionRemove)
	return agg.outcome(), nil
}

// deployModify updates the group. A change whose identifier differs
// between before and after is rejected without being sent; an after state
// with no identifier inherits the one from before.
func (e *Engine) deployModify(ctx context.Context, g *group) (*DeployOutcome, error) {
	agg := newAggregator(g.rt.Name, g.changes)

	var targets []*ir.Instance
	var indexes []int
	for i, c := range g.changes {
		if c.After.ID == "" {
			c.After.ID = c.Before.ID
		}
		if c.Before.ID != c.After.ID {
			agg.fail(i, fmt.Sprintf("changing the remote identifier from %q to %q is not supported", c.Before.ID, c.After.ID))
			continue
		}
		targets = append(targets, c.After)
		indexes = append(indexes, i)
	}

	results, err := e.executor.Execute(ctx, g.rt.Name, remote.OpUpdate, targets)
	if err != nil {
		return nil, err
	}
	agg.results(indexes, results, ir.ActionModify)
	return agg.outcome(), nil
}

func duplicateMessage(first *ir.Instance) string {
	return fmt.Sprintf("duplicate identity in deploy group (same as %s)", first.DisplayName())
}

func indexesOf(entries []Classified) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Index
	}
	return out
}

// remap rewrites partition indexes from positions in a subset back to
// positions in the change group.
func remap(m *MatchResult, positions []int) {
	for _, part := range [][]Classified{m.Existing, m.New, m.Duplicates, m.Invalid} {
		for i := range part {
			part[i].Index = positions[part[i].Index]
		}
	}
	for i := range m.Duplicates {
		m.Duplicates[i].First = positions[m.Duplicates[i].First]
	}
}
