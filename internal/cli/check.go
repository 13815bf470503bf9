package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tierc/internal/determinism"
	"github.com/roach88/tierc/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Inputs
	Runs   int
	Ledger string
	Label  string
}

// CheckModuleResult is the outcome for one module.
type CheckModuleResult struct {
	Module        string `json:"module"`
	Path          string `json:"path"`
	Fingerprint   string `json:"fingerprint,omitempty"`
	Runs          int    `json:"runs"`
	LedgerRun     string `json:"ledger_run,omitempty"`
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

// CheckResult is the JSON payload of check.
type CheckResult struct {
	Modules          []CheckModuleResult `json:"modules"`
	AllDeterministic bool                `json:"all_deterministic"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <module.json>...",
		Short: "Verify that compilation is deterministic",
		Long: `Compile each module several times, alternating serial and parallel
lowering, and require byte-identical canonical IR. With --ledger, the
fingerprint is also compared against the first run recorded for the same
input, configuration and compiler version.

Exit codes:
  0 - All modules are deterministic
  1 - Divergent IR detected
  2 - Command error (missing module, compile error, etc.)

Examples:
  tierc check ./collect.json
  tierc check ./a.json ./b.json --runs 8
  tierc check ./collect.json --ledger ./tierc.db --label ci`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Runs, "runs", 4, "compilations per module")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "SQLite fingerprint ledger")
	cmd.Flags().StringVar(&opts.Label, "label", "", "label recorded with ledger runs")
	opts.Inputs.bind(cmd)

	return cmd
}

func runCheck(opts *CheckOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	copts, err := opts.Inputs.Options(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	var ledger *store.Store
	if opts.Ledger != "" {
		ledger, err = store.Open(opts.Ledger)
		if err != nil {
			return formatter.Fail(ExitCommandError, &LoadError{Code: ErrCodeLedger, Message: "failed to open ledger", Err: err})
		}
		defer func() {
			if err := ledger.Close(); err != nil {
				opts.Logger().Error("error closing ledger", "error", err)
			}
		}()
	}

	result := CheckResult{Modules: make([]CheckModuleResult, 0, len(paths)), AllDeterministic: true}
	for _, path := range paths {
		mod, err := LoadModule(path)
		if err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		mr := CheckModuleResult{Module: mod.Name, Path: path}

		res, err := determinism.GoldenCompare(ctx, mod, copts, opts.Runs)
		if err == nil && ledger != nil {
			var key store.Key
			if key, err = determinism.LedgerKey(mod, copts.Config, copts.Signals); err == nil {
				var run store.Run
				run, err = determinism.CheckLedger(ctx, ledger, key, res, opts.Label)
				mr.LedgerRun = run.ID
			}
		}

		var nondet *determinism.NondeterminismError
		switch {
		case errors.As(err, &nondet):
			mr.Error = nondet.Error()
			result.AllDeterministic = false
		case err != nil:
			return formatter.Fail(ExitCommandError, err)
		default:
			mr.Deterministic = true
		}
		if res != nil {
			mr.Fingerprint = res.Fingerprint
			mr.Runs = res.Runs
		}
		opts.Logger().Debug("checked module", "module", mr.Module, "deterministic", mr.Deterministic)
		result.Modules = append(result.Modules, mr)
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		for _, m := range result.Modules {
			if m.Deterministic {
				fmt.Fprintf(formatter.Writer, "✓ %s: %d runs, %s\n", m.Module, m.Runs, m.Fingerprint[:12])
			} else {
				fmt.Fprintf(formatter.Writer, "✗ %s: %s\n", m.Module, m.Error)
			}
		}
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "non-deterministic compilation detected")
	}
	return nil
}
