package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roach88/recon/internal/identity"
	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/metrics"
	"github.com/roach88/recon/internal/remote"
	"github.com/roach88/recon/internal/telemetry"
)

// OperationResult is the outcome of one instance in a bulk call.
type OperationResult struct {
	Success bool     `json:"success"`
	ID      string   `json:"id,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// Executor submits instances to the remote store as bulk mutations.
type Executor struct {
	client remote.Client
}

// NewExecutor creates an Executor backed by client.
func NewExecutor(client remote.Client) *Executor {
	return &Executor{client: client}
}

// Execute submits instances as a single bulk call of kind op.
//
// The returned results are positionally aligned with instances. An empty
// instance list returns an empty result list without calling the store.
// Instances that cannot be shaped into a remote record (wrong type, missing
// identifier, uncoercible value) fail locally and are left out of the call.
//
// On insert, each succeeding instance is assigned its new identifier in
// place. A transport failure, or a result list not aligned with the
// submitted records, is returned as a *DeployError and no results are
// produced.
func (x *Executor) Execute(ctx context.Context, typeName string, op remote.Operation, instances []*ir.Instance) ([]OperationResult, error) {
	results := make([]OperationResult, len(instances))
	if len(instances) == 0 {
		return results, nil
	}
	if !op.Valid() {
		return nil, fmt.Errorf("unknown bulk operation %q", op)
	}

	records := make([]remote.Record, 0, len(instances))
	sent := make([]int, 0, len(instances))
	for i, inst := range instances {
		rec, err := toRecord(typeName, op, inst)
		if err != nil {
			results[i] = OperationResult{Errors: []string{err.Error()}}
			continue
		}
		records = append(records, rec)
		sent = append(sent, i)
	}
	if len(records) == 0 {
		return results, nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "recon.bulk")
	span.SetAttributes(
		attribute.String("recon.type", typeName),
		attribute.String("recon.operation", string(op)),
		attribute.Int("recon.records", len(records)),
	)
	defer span.End()

	start := time.Now()
	remoteResults, err := x.client.BulkOperation(ctx, typeName, op, records)
	if err == nil {
		if alignErr := remote.CheckAligned(records, remoteResults); alignErr != nil {
			err = NewResultMismatchError(typeName, string(op), len(records), len(remoteResults), alignErr)
		}
	}
	if err != nil {
		metrics.RecordBulkCall(typeName, string(op), 0, 0, err, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk call failed")
		var de *DeployError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, NewTransportError(typeName, string(op), err)
	}

	succeeded, failed := 0, 0
	for j, res := range remoteResults {
		i := sent[j]
		out := OperationResult{Success: res.Success, ID: res.ID, Errors: res.Errors}
		if op == remote.OpInsert && res.Success {
			if res.ID == "" {
				out = OperationResult{Errors: []string{"remote store returned no identifier"}}
			} else {
				instances[i].ID = res.ID
			}
		}
		if out.Success {
			succeeded++
		} else {
			failed++
		}
		results[i] = out
	}

	metrics.RecordBulkCall(typeName, string(op), succeeded, failed, nil, time.Since(start))
	span.SetAttributes(attribute.Int("recon.failed", failed))
	slog.Debug("bulk call completed",
		"type", typeName,
		"operation", op,
		"records", len(records),
		"succeeded", succeeded,
		"failed", failed,
	)
	return results, nil
}

// toRecord converts an instance to the remote bulk-record shape.
//
//   - insert: writable fields flagged Createable; no identifier
//   - update: Id plus fields flagged Updateable
//   - delete: Id only
//
// Fields absent from the instance are not sent; an explicit null is sent
// as nil. Compound fields are flattened into one column per sub-field.
func toRecord(typeName string, op remote.Operation, inst *ir.Instance) (remote.Record, error) {
	if inst.TypeName() != typeName {
		return remote.Record{}, fmt.Errorf("instance of type %q submitted as %q", inst.TypeName(), typeName)
	}
	if op != remote.OpInsert && inst.ID == "" {
		return remote.Record{}, fmt.Errorf("%s has no remote identifier", op)
	}

	rec := remote.Record{ID: inst.ID, Columns: make(map[string]any)}
	if op == remote.OpInsert {
		rec.ID = ""
	} else {
		rec.Columns[ir.IDField] = inst.ID
	}
	if op == remote.OpDelete {
		return rec, nil
	}

	writable := func(f *ir.PrimitiveField) bool {
		if op == remote.OpInsert {
			return f.Createable
		}
		return f.Updateable
	}

	for _, f := range inst.Type.Fields {
		raw, present := inst.Values.Get(f.FieldName())
		if !present {
			continue
		}
		switch field := f.(type) {
		case *ir.PrimitiveField:
			if field.Column() == ir.IDField || !writable(field) {
				continue
			}
			v, err := ir.Coerce(field.Kind, raw)
			if err != nil {
				return remote.Record{}, fmt.Errorf("field %s: %w", field.Name, err)
			}
			rec.Columns[field.Column()] = ir.ToRaw(v)
		case *ir.CompoundField:
			var nested *ir.IRObject
			if !ir.IsNull(raw) {
				obj, ok := raw.(*ir.IRObject)
				if !ok {
					return remote.Record{}, fmt.Errorf("field %s: compound value must be a mapping, got %T", field.Name, raw)
				}
				nested = obj
			}
			for i := range field.SubFields {
				sf := &field.SubFields[i]
				if !writable(sf) {
					continue
				}
				sv, ok := nested.Get(sf.Name)
				if !ok && nested != nil {
					continue
				}
				v, err := ir.Coerce(sf.Kind, sv)
				if err != nil {
					return remote.Record{}, fmt.Errorf("field %s.%s: %w", field.Name, sf.Name, err)
				}
				rec.Columns[identity.ColumnName(sf.Name)] = ir.ToRaw(v)
			}
		}
	}
	return rec, nil
}
