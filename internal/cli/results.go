package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/enactor/internal/store"
)

// ResultsOptions holds flags for the results command.
type ResultsOptions struct {
	*RootOptions
	Database string
}

// NewResultsCommand creates the results command.
func NewResultsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResultsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "results [run-id]",
		Short: "Inspect recorded runs",
		Long: `Inspect scenario results recorded by enactor run --db.

Without arguments lists all runs. With a run id (or for the latest run when
the id is "latest") lists that run's scenario results.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runResults(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite results database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runResults(opts *ResultsOptions, runID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if runID == "" {
		return listRuns(ctx, st, formatter)
	}
	if runID == "latest" {
		latest, err := st.LatestRun(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, "no runs recorded")
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		runID = latest.ID
	}
	return listResults(ctx, st, formatter, runID)
}

func listRuns(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "no runs recorded")
		return nil
	}
	w := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tTOTAL\tVERIFIED\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", r.ID, r.StartedAt, r.Total, r.Verified, r.Failed)
	}
	return w.Flush()
}

func listResults(ctx context.Context, st *store.Store, formatter *OutputFormatter, runID string) error {
	results, err := st.ResultsForRun(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read results", err)
	}
	if len(results) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no results for run %s", runID))
	}

	if formatter.Format == "json" {
		return formatter.Success(results)
	}

	w := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tKIND\tSPLIT\tSTATE\tOBSERVED\tPREDICTED\tVOTES\tERROR")
	for _, r := range results {
		errCol := ""
		if r.ErrorCode != "" {
			errCol = r.ErrorCode
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Name, r.Kind, r.Split, r.State, r.Observed, r.Predicted, r.VotesCast, errCol)
	}
	return w.Flush()
}
