package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/enactor/internal/config"
	"github.com/roach88/enactor/internal/scenario"
)

// PlanReport is the validation outcome for one plan file.
type PlanReport struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results for a plan directory.
type ValidationResult struct {
	Valid bool         `json:"valid"`
	Plans []PlanReport `json:"plans"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plans-dir>",
		Short: "Validate scenario plans without running them",
		Long: `Validate every plan file in a directory against the plan schema.

Checks YAML syntax, the CUE schema (action kinds, vote splits, agent counts,
node endpoints), and cross-field rules, without touching any node.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, plansDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := planFiles(plansDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read plan directory", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no plan files in %s", plansDir))
	}
	formatter.VerboseLog("Found %d plan file(s) in %s", len(files), plansDir)

	result := ValidationResult{Valid: true}
	for _, file := range files {
		report := PlanReport{File: filepath.Base(file), Valid: true}
		plan, err := config.Load(file)
		if err != nil {
			report.Valid = false
			report.Error = err.Error()
			result.Valid = false
		} else {
			report.Name = plan.Name
		}
		result.Plans = append(result.Plans, report)
	}

	if opts.Format == "json" {
		if !result.Valid {
			if err := formatter.Error(string(scenario.ErrCodeConfigInvalid), "plan validation failed", result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "plan validation failed")
		}
		return formatter.Success(result)
	}

	for _, report := range result.Plans {
		if report.Valid {
			fmt.Fprintf(formatter.Writer, "%s %s (%s)\n", checkMark, report.File, report.Name)
		} else {
			fmt.Fprintf(formatter.Writer, "%s %s\n    %s\n", crossMark, report.File, report.Error)
		}
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "plan validation failed")
	}
	fmt.Fprintf(formatter.Writer, "%d plan(s) valid\n", len(result.Plans))
	return nil
}

func planFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
