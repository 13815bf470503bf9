package cli

import (
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/tierc/internal/compiler"
	"github.com/roach88/tierc/internal/feedback"
	"github.com/roach88/tierc/internal/vm"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Inputs
	Entry       string
	Args        []string
	MaxSteps    int
	FeedbackOut string
}

// RunResult is the JSON payload of run.
type RunResult struct {
	Output    []string        `json:"output"`
	Result    string          `json:"result"`
	Exception string          `json:"exception,omitempty"`
	Deopts    []vm.DeoptEvent `json:"deopts,omitempty"`
	Steps     int             `json:"steps"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <module.json>",
		Short: "Execute a module in the reference VM",
		Long: `Compile a module and execute it in the reference VM. The module body runs
first; --entry then calls a function with the --arg values.

An uncaught exception is reported and exits 1.

Examples:
  tierc run ./collect.json --entry collect --arg 5
  tierc run ./collect.json --entry collect --arg 5 --feedback-out profile.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModule(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entry, "entry", "", "function to call after the module body")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "entry argument (integer, true, false, none or string)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "step budget (0 for the default)")
	cmd.Flags().StringVar(&opts.FeedbackOut, "feedback-out", "", "profile the run and write a feedback artifact")
	opts.Inputs.bind(cmd)

	return cmd
}

func runModule(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if len(opts.Args) > 0 && opts.Entry == "" {
		return formatter.Fail(ExitCommandError, &LoadError{Code: ErrCodeGeneric, Message: "--arg given without --entry"})
	}
	mod, err := LoadModule(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	copts, err := opts.Inputs.Options(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	var rec *feedback.Recorder
	if opts.FeedbackOut != "" {
		copts.Config.Profile = true
		rec = feedback.NewRecorder()
	}
	u, err := compiler.Compile(cmd.Context(), mod, copts)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	vopts := vm.Options{Entry: opts.Entry, Args: parseArgs(opts.Args), MaxSteps: opts.MaxSteps}
	if rec != nil {
		vopts.Observer = rec
	}
	if !formatter.JSON() {
		vopts.Stdout = formatter.Writer
	}
	out, err := vm.Run(cmd.Context(), u, vopts)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	if rec != nil {
		data, err := rec.Artifact().Marshal()
		if err == nil {
			err = os.WriteFile(opts.FeedbackOut, data, 0o644)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
		}
		opts.Logger().Info("wrote feedback", "path", opts.FeedbackOut)
	}

	result := RunResult{
		Output: out.Output,
		Result: vm.Repr(out.Result),
		Deopts: out.Deopts,
		Steps:  out.Steps,
	}
	if out.Exception != nil {
		result.Exception = out.Exception.Error()
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if opts.Entry != "" {
			fmt.Fprintf(w, "%s(...) = %s\n", opts.Entry, result.Result)
		}
		for _, d := range result.Deopts {
			fmt.Fprintf(w, "deopt %s: %s\n", d.Label, d.Reason)
		}
		if result.Exception != "" {
			fmt.Fprintf(w, "Traceback: %s\n", result.Exception)
		}
	}
	if result.Exception != "" {
		return NewExitError(ExitFailure, "uncaught exception: "+result.Exception)
	}
	return nil
}

// parseArgs reads integers of any size, true, false and none; everything
// else is a string.
func parseArgs(args []string) []vm.Value {
	out := make([]vm.Value, len(args))
	for i, a := range args {
		switch a {
		case "true", "True":
			out[i] = vm.Bool(true)
			continue
		case "false", "False":
			out[i] = vm.Bool(false)
			continue
		case "none", "None":
			out[i] = vm.None
			continue
		}
		if n, ok := new(big.Int).SetString(a, 10); ok {
			out[i] = n
			continue
		}
		if s, err := strconv.Unquote(a); err == nil {
			out[i] = vm.Str(s)
			continue
		}
		out[i] = vm.Str(a)
	}
	return out
}
