package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recon/internal/compiler"
	"github.com/roach88/recon/internal/identity"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                       `json:"valid"`
	RecordTypes []RecordTypeSummary        `json:"record_types,omitempty"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
}

// RecordTypeSummary describes how one record type will be reconciled.
type RecordTypeSummary struct {
	Name     string   `json:"name"`
	Managed  bool     `json:"managed"`
	Identity []string `json:"identity,omitempty"` // Remote columns, id first
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Compile and check a schema directory",
		Long: `Compile the CUE record types and dataManagement block of a schema
directory and check them for consistency: every record type declares an Id,
no two fields share a column, and every managed type has a resolvable
identity.

Example:
  recon validate ./schema
  recon validate ./schema --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	schema, loadErrs := LoadSchema(dir, LoadModeCollectAll)
	if schema == nil {
		var loadErr *LoadError
		if errors.As(loadErrs[0], &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
		}
		return WrapExitError(ExitCommandError, "failed to load schema", loadErrs[0])
	}

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "schema",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			})
		}
	}
	validationErrors = append(validationErrors, compiler.Validate(schema.RecordTypes, schema.DataManagement)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, summarize(schema))
}

func lineOf(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// summarize lists record types with their resolved identity columns.
func summarize(schema *Schema) []RecordTypeSummary {
	out := make([]RecordTypeSummary, 0, len(schema.RecordTypes))
	for _, rt := range schema.RecordTypes {
		s := RecordTypeSummary{Name: rt.Name}
		dm := schema.DataManagement
		if dm != nil && dm.IsManaged(rt.Name) {
			s.Managed = true
			if cols, err := identity.Expand(rt, dm.IdentityFor(rt.Name)); err == nil {
				for _, c := range cols {
					s.Identity = append(s.Identity, c.Remote)
				}
			}
		}
		out = append(out, s)
	}
	return out
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, types []RecordTypeSummary) error {
	if formatter.Format == "json" {
		return formatter.JSON("ok", ValidationResult{Valid: true, RecordTypes: types}, nil, "")
	}

	fmt.Fprintln(formatter.Writer, "✓ Schema valid")
	for _, t := range types {
		if !t.Managed {
			fmt.Fprintf(formatter.Writer, "  %s (unmanaged)\n", t.Name)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %s identity=[%s]\n", t.Name, strings.Join(t.Identity, ", "))
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		if err := formatter.JSON("error", ValidationResult{Valid: false, Errors: errs},
			&CLIError{Code: errs[0].Code, Message: errs[0].Message}, ""); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failure
}
