package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/recon/internal/identity"
	"github.com/roach88/recon/internal/ir"
)

// HashOptions holds flags for the hash command.
type HashOptions struct {
	*RootOptions
	SchemaDir string
	TypeName  string
}

// HashResult is the identity of one instance.
type HashResult struct {
	TypeName string `json:"type"`
	Identity string `json:"identity"` // Canonical JSON of the identity values
	Hash     string `json:"hash"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HashOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hash key=value...",
		Short: "Print the identity hash of an instance",
		Long: `Print the identity hash of an instance given as key=value pairs.

Compound sub-fields are addressed as field.sub. Values are parsed as YAML
scalars, so 42 is a number, true a boolean and an empty value null.

Example:
  recon hash --schema ./schema --type Account Name=Acme address.street="1 Main"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SchemaDir, "schema", "", "schema directory with CUE record types (required)")
	cmd.Flags().StringVar(&opts.TypeName, "type", "", "record type name (required)")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runHash(opts *HashOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	schema, err := loadSchemaOrExit(opts.SchemaDir)
	if err != nil {
		return err
	}
	rt, ok := schema.RecordType(opts.TypeName)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown record type %q", opts.TypeName))
	}

	values, err := parseAssignments(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid value", err)
	}

	r, err := identity.NewResolver(rt, schema.DataManagement.IdentityFor(rt.Name))
	if err != nil {
		return WrapExitError(ExitFailure, "identity does not resolve", err)
	}
	idValues, err := r.LocalValues(ir.NewInstance(rt, "", values))
	if err != nil {
		return WrapExitError(ExitFailure, "identity values", err)
	}
	canonical, err := ir.MarshalCanonical(idValues)
	if err != nil {
		return WrapExitError(ExitFailure, "identity values", err)
	}
	hash, err := ir.IdentityHash(idValues)
	if err != nil {
		return WrapExitError(ExitFailure, "identity hash", err)
	}

	result := HashResult{TypeName: rt.Name, Identity: string(canonical), Hash: hash}
	if formatter.Format == "json" {
		return formatter.JSON("ok", result, nil, "")
	}
	fmt.Fprintf(formatter.Writer, "%s %s\n%s\n", result.TypeName, result.Identity, result.Hash)
	return nil
}

// parseAssignments turns key=value arguments into an ordered object.
// "a.b=v" sets sub-field b of compound a.
func parseAssignments(args []string) (*ir.IRObject, error) {
	obj := &ir.IRObject{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%q is not key=value", arg)
		}

		var decoded any
		if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		v, err := ir.FromRaw(decoded)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}

		field, sub, nested := strings.Cut(key, ".")
		if !nested {
			obj.Set(field, v)
			continue
		}
		parent, _ := obj.Get(field)
		compound, isObj := parent.(*ir.IRObject)
		if !isObj {
			compound = &ir.IRObject{}
			obj.Set(field, compound)
		}
		compound.Set(sub, v)
	}
	return obj, nil
}
