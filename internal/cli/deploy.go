package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/recon/internal/changes"
	"github.com/roach88/recon/internal/engine"
	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/telemetry"
)

// DeployOptions holds flags for the deploy command.
type DeployOptions struct {
	StoreOptions
	ChangesFile string
}

// GroupReport is the outcome of one (record type, action) group.
type GroupReport struct {
	TypeName string                `json:"type"`
	Action   ir.Action             `json:"action"`
	Outcome  *engine.DeployOutcome `json:"outcome"`
}

// DeployReport is the outcome of a deploy run.
type DeployReport struct {
	Groups  []GroupReport `json:"groups"`
	Applied int           `json:"applied"`
	Failed  int           `json:"failed"`
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Apply a changes file to the remote store",
		Long: `Apply a changes file to the remote store.

Changes are grouped by record type and action and each group is deployed
in one call. Additions of managed record types are matched to existing
remote records by identity and become updates when a match exists.

Exits 1 when any change failed.

Example:
  recon deploy --schema ./schema --changes changes.yaml --db ./remote.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), opts, cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreOptions)
	cmd.Flags().StringVar(&opts.ChangesFile, "changes", "", "path to the changes YAML file (required)")
	_ = cmd.MarkFlagRequired("changes")

	return cmd
}

func addStoreFlags(cmd *cobra.Command, opts *StoreOptions) {
	cmd.Flags().StringVar(&opts.SchemaDir, "schema", "", "schema directory with CUE record types (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite remote store (default: database.path)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
	_ = cmd.MarkFlagRequired("schema")
}

func runDeploy(ctx context.Context, opts *DeployOptions, cmd *cobra.Command) error {
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

	ctx, span := telemetry.Tracer().Start(ctx, "recon.cli.deploy")
	defer span.End()
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	report := &DeployReport{Groups: []GroupReport{}}
	for _, g := range changes.Partition(list) {
		formatter.VerboseLog("Deploying %d %s change(s) of %s", len(g.Changes), g.Action, g.TypeName)
		outcome, err := s.engine.Deploy(ctx, g.Changes)
		if err != nil {
			slog.Error("deploy group failed", "type", g.TypeName, "action", g.Action, "error", err)
		}
		report.Groups = append(report.Groups, GroupReport{TypeName: g.TypeName, Action: g.Action, Outcome: outcome})
		report.Applied += len(outcome.Applied)
		report.Failed += len(outcome.Errors)
	}

	if err := outputDeploy(formatter, report, traceID(ctx)); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("deploy finished with %d error(s)", report.Failed))
	}
	return nil
}

func outputDeploy(formatter *OutputFormatter, report *DeployReport, trace string) error {
	if formatter.Format == "json" {
		status := "ok"
		var cliErr *CLIError
		if report.Failed > 0 {
			status = "error"
			cliErr = &CLIError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%d change(s) failed", report.Failed)}
		}
		return formatter.JSON(status, report, cliErr, trace)
	}

	w := formatter.Writer
	for _, g := range report.Groups {
		fmt.Fprintf(w, "%s %s: %d applied, %d failed\n", g.TypeName, g.Action, len(g.Outcome.Applied), len(g.Outcome.Errors))
		for _, c := range g.Outcome.Applied {
			inst := c.Data()
			fmt.Fprintf(w, "  %-7s %s (%s)\n", c.Action, inst.DisplayName(), inst.ID)
		}
		for _, e := range g.Outcome.Errors {
			fmt.Fprintf(w, "  %-7s %s\n", "error", e)
		}
	}
	mark := "✓"
	if report.Failed > 0 {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %d change(s) applied, %d failed\n", mark, report.Applied, report.Failed)
	if trace != "" {
		fmt.Fprintf(w, "trace %s\n", trace)
	}
	return nil
}
