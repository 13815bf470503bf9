package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/tierc/internal/compiler"
	"github.com/roach88/tierc/internal/determinism"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Inputs
	Runs int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <module.json>",
		Short: "Recompile and re-check a module when it changes",
		Long: `Watch a module, and its config and feedback files if given. On every
change the module is recompiled and checked for determinism. Press Ctrl-C
to stop.

Example:
  tierc watch ./collect.json --feedback profile.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Runs, "runs", 2, "compilations per check")
	opts.Inputs.bind(cmd)

	return cmd
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	defer w.Close()

	// Editors often replace files by rename, so watch the directories and
	// filter by name.
	targets := map[string]bool{}
	for _, p := range []string{path, opts.Config, opts.Feedback} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		targets[abs] = true
		if err := w.Add(filepath.Dir(abs)); err != nil {
			return formatter.Fail(ExitCommandError, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Err: err})
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rebuild := func() { opts.rebuild(ctx, path, formatter) }
	rebuild()
	fmt.Fprintln(formatter.ErrWriter, "Watching for changes. Press Ctrl-C to stop.")
	watchLoop(ctx, w.Events, w.Errors, targets, rebuild, func(err error) {
		logger.Error("watch error", "error", err)
	})
	logger.Info("watch stopped")
	return nil
}

// watchLoop calls rebuild for every write, create or rename of a target
// until ctx is done or the event channel closes.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, targets map[string]bool, rebuild func(), onErr func(error)) {
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !targets[abs] || ev.Op&relevant == 0 {
				continue
			}
			rebuild()
		case err, ok := <-errs:
			if !ok {
				return
			}
			onErr(err)
		}
	}
}

// rebuild reports failures instead of returning them; the watch goes on.
func (opts *WatchOptions) rebuild(ctx context.Context, path string, formatter *OutputFormatter) {
	report := func(err error) {
		code, message := errorCode(err)
		_ = formatter.Error(code, message, nil)
	}
	mod, err := LoadModule(path)
	if err != nil {
		report(err)
		return
	}
	copts, err := opts.Inputs.Options(opts.RootOptions)
	if err != nil {
		report(err)
		return
	}
	res, err := determinism.GoldenCompare(ctx, mod, copts, opts.Runs)
	if err != nil {
		report(err)
		return
	}
	summaries := compiler.Summarize(res.Unit)
	if formatter.JSON() {
		_ = formatter.Success(CompilationResult{
			Module:      res.Module,
			Fingerprint: res.Fingerprint,
			Functions:   summaries,
			Warnings:    compiler.AnalyzeRecursion(res.Unit),
		})
		return
	}
	var static, guarded, dynamic int
	for _, s := range summaries {
		static += s.Static
		guarded += s.Guarded
		dynamic += s.Dynamic
	}
	fmt.Fprintf(formatter.Writer, "✓ %s %s: static %d, guarded %d, dynamic %d\n",
		res.Module, res.Fingerprint[:12], static, guarded, dynamic)
}
