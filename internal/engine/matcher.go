package engine

import (
	"log/slog"

	"github.com/roach88/recon/internal/identity"
	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/remote"
)

// Classified is one local instance placed in a MatchResult partition.
type Classified struct {
	// Index is the position of Instance in the matched input.
	Index    int
	Instance *ir.Instance
	Hash     string

	// Record is the matching remote row (Existing only).
	Record *remote.Record

	// First is the index of the earlier instance with the same hash
	// (Duplicates only).
	First int

	// Err explains why no hash could be computed (Invalid only).
	Err error
}

// MatchResult partitions the instances handed to Match. Partitions are
// disjoint, and together they hold every input instance exactly once.
// Each partition keeps input order.
type MatchResult struct {
	Existing   []Classified // Hash found among the remote rows
	New        []Classified // No remote row with the same hash
	Duplicates []Classified // Same hash as an earlier instance in the batch
	Invalid    []Classified // Identity values could not be read
}

// Match classifies local instances against remote rows by identity hash.
//
// Both sides are reduced to the ordered identity-value object of r, so a
// row only matches when every identity value agrees in the resolver's
// field order. When two rows share a hash the later one wins; rows whose
// values cannot be read are skipped. Match performs no I/O and does not
// modify its inputs.
func Match(r *identity.Resolver, instances []*ir.Instance, records []remote.Record) MatchResult {
	index := make(map[string]int, len(records))
	for i := range records {
		rec := &records[i]
		h, err := r.RemoteHash(rec.Columns)
		if err != nil {
			slog.Warn("skipping unreadable remote record",
				"type", r.Type.Name,
				"id", rec.ID,
				"error", err,
			)
			continue
		}
		if prev, ok := index[h]; ok {
			slog.Warn("remote records share an identity hash, keeping the later one",
				"type", r.Type.Name,
				"hash", h,
				"dropped_id", records[prev].ID,
				"kept_id", rec.ID,
			)
		}
		index[h] = i
	}

	var res MatchResult
	seen := make(map[string]int, len(instances))
	for i, inst := range instances {
		h, err := r.LocalHash(inst)
		if err != nil {
			res.Invalid = append(res.Invalid, Classified{Index: i, Instance: inst, Err: err})
			continue
		}
		if first, ok := seen[h]; ok {
			res.Duplicates = append(res.Duplicates, Classified{Index: i, Instance: inst, Hash: h, First: first})
			continue
		}
		seen[h] = i

		if ri, ok := index[h]; ok {
			res.Existing = append(res.Existing, Classified{Index: i, Instance: inst, Hash: h, Record: &records[ri]})
			continue
		}
		res.New = append(res.New, Classified{Index: i, Instance: inst, Hash: h})
	}

	slog.Debug("instances matched",
		"type", r.Type.Name,
		"remote_rows", len(records),
		"existing", len(res.Existing),
		"new", len(res.New),
		"duplicates", len(res.Duplicates),
		"invalid", len(res.Invalid),
	)
	return res
}

func instancesOf(entries []Classified) []*ir.Instance {
	out := make([]*ir.Instance, len(entries))
	for i, e := range entries {
		out[i] = e.Instance
	}
	return out
}
