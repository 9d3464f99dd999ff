package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/recon/internal/ir"
)

// CompileDataManagement parses the dataManagement block:
//
//	dataManagement: {
//		identityFields: ["Name", "address"]
//		include: ["Account", "Custom__.*"]
//		exclude: ["Contact"]
//		overrides: RecordType: ["DeveloperName"]
//	}
//
// The returned configuration is already compiled; invalid include or exclude
// patterns are reported as compile errors.
func CompileDataManagement(v cue.Value) (*ir.DataManagement, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	dm := &ir.DataManagement{}
	var err error

	idVal := v.LookupPath(cue.ParsePath("identityFields"))
	if !idVal.Exists() {
		return nil, &CompileError{
			Field:   "dataManagement.identityFields",
			Message: "identityFields is required",
			Pos:     v.Pos(),
		}
	}
	if dm.IdentityFields, err = stringList(idVal); err != nil {
		return nil, err
	}

	if inc := v.LookupPath(cue.ParsePath("include")); inc.Exists() {
		if dm.Include, err = stringList(inc); err != nil {
			return nil, err
		}
	}
	if exc := v.LookupPath(cue.ParsePath("exclude")); exc.Exists() {
		if dm.Exclude, err = stringList(exc); err != nil {
			return nil, err
		}
	}

	if ov := v.LookupPath(cue.ParsePath("overrides")); ov.Exists() {
		iter, err := ov.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		dm.Overrides = make(map[string][]string)
		for iter.Next() {
			fields, err := stringList(iter.Value())
			if err != nil {
				return nil, err
			}
			dm.Overrides[iter.Label()] = fields
		}
	}

	if err := dm.Compile(); err != nil {
		return nil, &CompileError{
			Field:   "dataManagement",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return dm, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
