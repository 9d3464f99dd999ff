package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/recon/internal/changes"
	"github.com/roach88/recon/internal/engine"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	StoreOptions
	ChangesFile string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what deploy would do without changing anything",
		Long: `Run the identity lookups of a changes file and print, per record type
and action, the generated queries and whether each change would insert,
update or delete a remote record. No record is written.

Example:
  recon plan --schema ./schema --changes changes.yaml --db ./remote.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), opts, cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreOptions)
	cmd.Flags().StringVar(&opts.ChangesFile, "changes", "", "path to the changes YAML file (required)")
	_ = cmd.MarkFlagRequired("changes")

	return cmd
}

func runPlan(ctx context.Context, opts *PlanOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	s, err := openSession(ctx, &opts.StoreOptions)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(context.Background()); closeErr != nil {
			slog.Error("error closing session", "error", closeErr)
		}
	}()

	list, err := changes.Load(opts.ChangesFile, s.schema)
	if err != nil {
		_ = formatter.Error(ErrCodeChanges, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeChanges, err)
	}

	ctx, cancel := s.deadline(ctx)
	defer cancel()

	plans := []*engine.Plan{}
	for _, g := range changes.Partition(list) {
		p, err := s.engine.Plan(ctx, g.Changes)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("plan %s %s", g.TypeName, g.Action), err)
		}
		plans = append(plans, p)
	}

	return outputPlans(formatter, plans)
}

func outputPlans(formatter *OutputFormatter, plans []*engine.Plan) error {
	if formatter.Format == "json" {
		return formatter.JSON("ok", plans, nil, "")
	}

	w := formatter.Writer
	for _, p := range plans {
		fmt.Fprintf(w, "%s %s\n", p.TypeName, p.Action)
		for _, q := range p.Queries {
			fmt.Fprintf(w, "  query   %s\n", q)
		}
		for _, s := range p.Inserts {
			fmt.Fprintf(w, "  insert  %s\n", s.Name)
		}
		for _, s := range p.Updates {
			fmt.Fprintf(w, "  update  %s (%s)\n", s.Name, s.ID)
		}
		for _, s := range p.Deletes {
			fmt.Fprintf(w, "  delete  %s (%s)\n", s.Name, s.ID)
		}
		for _, e := range p.Errors {
			fmt.Fprintf(w, "  error   %s\n", e)
		}
	}
	return nil
}
