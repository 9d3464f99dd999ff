package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/recon/internal/compiler"
	"github.com/roach88/recon/internal/ir"
)

// LoadMode controls how errors are handled during schema loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Schema is the compiled content of a schema directory.
type Schema struct {
	RecordTypes    []*ir.RecordType
	DataManagement *ir.DataManagement // nil when the directory declares none
	FileCount      int
}

// RecordType returns the record type with the given name.
func (s *Schema) RecordType(name string) (*ir.RecordType, bool) {
	for _, rt := range s.RecordTypes {
		if rt.Name == name {
			return rt, true
		}
	}
	return nil, false
}

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema loads and compiles the CUE files of a schema directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
//
// Record types are returned sorted by name.
func LoadSchema(dir string, mode LoadMode) (*Schema, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	schema := &Schema{FileCount: len(cueFiles)}

	typesVal := value.LookupPath(cue.ParsePath("recordType"))
	if typesVal.Exists() {
		iter, iterErr := typesVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating record types: %v", iterErr)})
			if mode == LoadModeFailFast {
				return schema, errs
			}
		} else {
			for iter.Next() {
				rt, compileErr := compiler.CompileRecordType(iter.Value())
				if compileErr != nil {
					errs = append(errs, convertCompileError(compileErr, "recordType."+iter.Label()))
					if mode == LoadModeFailFast {
						return schema, errs
					}
					continue
				}
				schema.RecordTypes = append(schema.RecordTypes, rt)
			}
		}
	}
	sort.Slice(schema.RecordTypes, func(i, j int) bool {
		return schema.RecordTypes[i].Name < schema.RecordTypes[j].Name
	})

	dmVal := value.LookupPath(cue.ParsePath("dataManagement"))
	if dmVal.Exists() {
		dm, compileErr := compiler.CompileDataManagement(dmVal)
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "dataManagement"))
			if mode == LoadModeFailFast {
				return schema, errs
			}
		} else {
			schema.DataManagement = dm
		}
	}

	if len(schema.RecordTypes) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no record types found in schema"})
	}

	return schema, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompile,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// loadSchemaOrExit loads a schema for commands that need a valid one.
func loadSchemaOrExit(dir string) (*Schema, error) {
	schema, errs := LoadSchema(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", errs[0])
	}
	if schema.DataManagement == nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: schema declares no dataManagement block", ErrCodeGeneric))
	}
	return schema, nil
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeCompile     = "E007" // Record type or dataManagement did not compile
	ErrCodeChanges     = "E008" // Changes file unreadable or invalid
	ErrCodeStore       = "E009" // Remote store unavailable
	ErrCodeTestFailed  = "E010" // One or more scenarios failed
)
