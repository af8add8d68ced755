package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/enactor/internal/chain"
	"github.com/roach88/enactor/internal/config"
	"github.com/roach88/enactor/internal/gov"
	"github.com/roach88/enactor/internal/oracle"
	"github.com/roach88/enactor/internal/pool"
	"github.com/roach88/enactor/internal/scenario"
	"github.com/roach88/enactor/internal/store"
)

var (
	green     = color.New(color.FgGreen).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	bold      = color.New(color.Bold).SprintFunc()
	checkMark = green("✓")
	crossMark = red("✗")
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Local    bool
	Parallel int

	// Tokens overrides the scenario token generator (for testing).
	Tokens scenario.TokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <plans-dir>",
		Short: "Execute scenario plans",
		Long: `Execute every scenario plan in a directory.

Each plan submits competing governance actions, casts votes per the plan's
split, waits for settlement, and compares the observed enactment against the
local ratification prediction.

Plans carrying a node section run against that node's HTTP endpoints. With
--local (or when a plan has no node section) the plan runs against an
in-memory ledger that ratifies with the same rules the prediction uses.

Example:
  enactor run ./plans
  enactor run --db ./enactor.db ./plans --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlans(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite results database (optional)")
	cmd.Flags().BoolVar(&opts.Local, "local", false, "ignore plan node sections and run against the in-memory ledger")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of plans to run concurrently")

	return cmd
}

func runPlans(opts *RunOptions, plansDir string, cmd *cobra.Command) error {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	plans, err := config.LoadDir(plansDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load plans", err)
	}
	logger.Info("plans loaded", "dir", plansDir, "count", len(plans))

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runID := uuid.Must(uuid.NewV7()).String()
	if st != nil {
		if err := st.BeginRun(ctx, runID, time.Now()); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
	}

	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}
	results := make([]*scenario.Result, len(plans))
	errs := make([]error, len(plans))
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	for i, plan := range plans {
		wg.Add(1)
		go func(i int, plan *config.Plan) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = runPlan(ctx, opts, plan, logger)
		}(i, plan)
	}
	wg.Wait()

	// Record and report even after a cancellation, so interrupted runs
	// still leave evidence behind.
	dbCtx := context.WithoutCancel(ctx)
	out := cmd.OutOrStdout()
	failed := 0
	for i := range plans {
		if errs[i] != nil {
			return errs[i]
		}
		res := results[i]

		if res.Verified() {
			fmt.Fprintf(out, "%s %s (enacted=%s, epochs=%d..%d, votes=%d)\n",
				checkMark, res.Name, res.Label(res.Observed.Enacted),
				res.StartEpoch, res.EndEpoch, res.VotesCast)
		} else {
			failed++
			fmt.Fprintf(out, "%s %s [%s] %s\n", crossMark, res.Name, res.Err.Code, res.Err.Message)
		}

		if st != nil {
			if err := st.WriteResult(dbCtx, runID, res); err != nil {
				return WrapExitError(ExitCommandError, "failed to record result", err)
			}
		}
	}

	if st != nil {
		if err := st.FinishRun(dbCtx, runID, time.Now()); err != nil {
			return WrapExitError(ExitCommandError, "failed to finish run", err)
		}
	}

	if failed > 0 {
		fmt.Fprintf(out, "\n%s %s (%d/%d scenarios failed)\n", bold("FAILED"), crossMark, failed, len(plans))
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", failed, len(plans)))
	}
	fmt.Fprintf(out, "\n%s %s (%d scenarios)\n", bold("PASSED"), checkMark, len(plans))
	return nil
}

func runPlan(ctx context.Context, opts *RunOptions, plan *config.Plan, logger *slog.Logger) (*scenario.Result, error) {
	agents, err := pool.New(plan.PoolConfig())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("plan %s: bad agent pool", plan.Name), err)
	}

	var client chain.Client
	if plan.Node.SubmitURL != "" && !opts.Local {
		httpClient, err := chain.NewHTTPClient(plan.HTTPConfig())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("plan %s: bad node config", plan.Name), err)
		}
		client = httpClient
	} else {
		client = localLedger(agents)
	}

	cfg := plan.RunnerConfig()
	cfg.Tokens = opts.Tokens
	runner := scenario.New(client, agents, cfg, logger)
	return runner.Run(ctx, plan.Spec()), nil
}

// localLedger builds an in-memory node that ratifies votes with the default
// rule set, so local runs exercise the full observe-and-compare path.
func localLedger(agents *pool.Pool) *chain.Fake {
	fake := chain.NewFake(1)
	fake.AdvanceEveryPolls(1)

	o := oracle.New(gov.DefaultRules())
	fake.SetRatifier(func(proposals []*gov.Proposal, votes []gov.Vote) gov.ProposalID {
		res, err := o.Predict(proposals, votes, agents)
		if err != nil {
			return ""
		}
		return res.Enacted
	})
	return fake
}
