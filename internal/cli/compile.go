package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tierc/internal/compiler"
	"github.com/roach88/tierc/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Inputs
	Output  string // canonical IR output path
	Listing bool   // print the IR listing
}

// CompilationResult is the JSON payload of compile.
type CompilationResult struct {
	Module      string                      `json:"module"`
	Fingerprint string                      `json:"fingerprint"`
	Functions   []compiler.Summary          `json:"functions"`
	Warnings    []compiler.RecursionWarning `json:"warnings,omitempty"`
	Output      string                      `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <module.json>",
		Short: "Lower a module to canonical IR",
		Long: `Lower an annotated module to canonical IR and report how many
constructs landed in each tier.

Examples:
  tierc compile ./collect.json
  tierc compile ./collect.json -o collect.ir.json
  tierc compile ./collect.json --feedback profile.json --listing`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write canonical IR to file")
	cmd.Flags().BoolVar(&opts.Listing, "listing", false, "print the IR listing")
	opts.Inputs.bind(cmd)

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	mod, err := LoadModule(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	copts, err := opts.Inputs.Options(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	u, err := compiler.Compile(cmd.Context(), mod, copts)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	canonical, err := u.Canonical()
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	result := CompilationResult{
		Module:      u.Module,
		Fingerprint: ir.FingerprintBytes(ir.DomainUnit, canonical),
		Functions:   compiler.Summarize(u),
		Warnings:    compiler.AnalyzeRecursion(u),
		Output:      opts.Output,
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, canonical, 0o644); err != nil {
			return formatter.Fail(ExitCommandError, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s (%s)\n\n", result.Module, result.Fingerprint[:12])
	for _, s := range result.Functions {
		fmt.Fprintf(w, "  %-16s static %d, guarded %d, dynamic %d, generic %d\n",
			s.Function, s.Static, s.Guarded, s.Dynamic, s.Generic)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "\nwarning: %s\n", warn.Message)
	}
	if opts.Listing {
		fmt.Fprintf(w, "\n%s", ir.Format(u))
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "\nWrote canonical IR to %s\n", opts.Output)
	}
	return nil
}
