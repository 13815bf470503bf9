package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/compiler"
	"github.com/roach88/tierc/internal/config"
	"github.com/roach88/tierc/internal/feedback"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/tier"
	"github.com/roach88/tierc/internal/world"
)

// Error codes reported by the CLI itself. Errors from other packages keep
// their own codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E002" // Path not found
	ErrCodeDecode      = "E003" // Module JSON rejected
	ErrCodeWriteFailed = "E004" // File write error
	ErrCodeLedger      = "E005" // Ledger could not be opened or written
	ErrCodeScenarios   = "E006" // Scenarios could not be loaded
)

// LoadError represents an error that occurred while loading an input.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadModule decodes the module JSON at path.
func LoadModule(path string) (*ast.Node, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("module not found: %s", path), Err: err}
	}
	mod, err := ast.DecodeFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("%s: %v", path, err), Err: err}
	}
	return mod, nil
}

// Inputs are the flags shared by every command that compiles.
type Inputs struct {
	Config   string
	Feedback string

	// Flag overrides; zero values leave the configuration alone.
	Width      int
	HintPolicy string
	Limit      string
}

func (in *Inputs) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.Config, "config", "", "tier configuration (.cue file or directory)")
	cmd.Flags().StringVar(&in.Feedback, "feedback", "", "runtime feedback artifact")
	cmd.Flags().IntVar(&in.Width, "width", 0, "integer width (32|64)")
	cmd.Flags().StringVar(&in.HintPolicy, "hint-policy", "", "hint policy (check|ignore|trust)")
	cmd.Flags().StringVar(&in.Limit, "limit", "", "tier limit (static|guarded|dynamic)")
}

// Options resolves the configuration file, environment and feedback
// artifact into compiler options.
func (in Inputs) Options(opts *RootOptions) (compiler.Options, error) {
	cfg, err := config.Load(in.Config)
	if err != nil {
		return compiler.Options{}, err
	}
	if in.Width != 0 {
		cfg.Tier.Width = in.Width
	}
	if in.HintPolicy != "" {
		if cfg.Tier.HintPolicy, err = tier.ParseHintPolicy(in.HintPolicy); err != nil {
			return compiler.Options{}, &LoadError{Code: config.ErrCodeInvalid, Message: err.Error(), Err: err}
		}
	}
	if in.Limit != "" {
		if cfg.Tier.Limit, err = ir.ParseTier(in.Limit); err != nil {
			return compiler.Options{}, &LoadError{Code: config.ErrCodeInvalid, Message: err.Error(), Err: err}
		}
	}
	if err := cfg.Tier.Validate(); err != nil {
		return compiler.Options{}, &LoadError{Code: config.ErrCodeInvalid, Message: err.Error(), Err: err}
	}
	var signals map[string]world.Signal
	if in.Feedback != "" {
		a, err := feedback.Load(in.Feedback)
		if err != nil {
			return compiler.Options{}, err
		}
		signals = a.Signals(cfg.Thresholds)
	}
	return compiler.Options{
		Config:  cfg.Tier,
		Signals: signals,
		Workers: cfg.Workers,
		Logger:  opts.Logger(),
	}, nil
}

// errorCode extracts the code and message of any error this module
// produces.
func errorCode(err error) (string, string) {
	var (
		loadErr *LoadError
		cfgErr  *config.Error
		fbErr   *feedback.ValidationError
		coded   interface{ Code() string }
	)
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Code, loadErr.Message
	case errors.As(err, &cfgErr):
		return cfgErr.Code, cfgErr.Error()
	case errors.As(err, &fbErr):
		return fbErr.Code, fbErr.Error()
	case errors.As(err, &coded):
		return coded.Code(), err.Error()
	}
	return ErrCodeGeneric, err.Error()
}
