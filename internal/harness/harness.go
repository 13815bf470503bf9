package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"slices"

	"github.com/roach88/tierc/internal/compiler"
	"github.com/roach88/tierc/internal/feedback"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/tier"
	"github.com/roach88/tierc/internal/vm"
	"github.com/roach88/tierc/internal/world"
)

// Limits are the tier limits every scenario runs under, most specialized
// first.
var Limits = []ir.Tier{ir.TierStatic, ir.TierGuarded, ir.TierDynamic}

// Harness runs scenarios. The zero value is not usable; call New.
type Harness struct {
	logger     *slog.Logger
	thresholds feedback.Thresholds
}

// New returns a harness. A nil logger discards compiler logs.
func New(logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{logger: logger, thresholds: feedback.DefaultThresholds()}
}

// Run executes a scenario with a default harness.
func Run(scenario *Scenario) (*Result, error) {
	return New(nil).Run(context.Background(), scenario)
}

// Run executes scenario under every limit. The error is for scenarios
// that cannot run at all; failed comparisons and assertions are in the
// result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	if scenario.Node == nil {
		return nil, fmt.Errorf("scenario %s: no module", scenario.Name)
	}
	cfg, err := scenario.Config.apply(tier.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	var signals map[string]world.Signal
	if scenario.Feedback != "" {
		a, err := feedback.Load(scenario.Feedback)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		signals = a.Signals(h.thresholds)
	}
	args, err := convertArgs(scenario.Args)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult(scenario.Name)
	for _, limit := range Limits {
		c := cfg
		c.Limit = limit
		o, err := h.runLimit(ctx, scenario, c, signals, args)
		if err != nil {
			return nil, err
		}
		result.Outcomes = append(result.Outcomes, o)
	}

	compare(result)
	for i := range scenario.Assertions {
		if err := check(result, &scenario.Assertions[i]); err != nil {
			result.AddError(err.Error())
		}
	}

	h.logger.Debug("scenario complete", "name", scenario.Name, "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

func (h *Harness) runLimit(ctx context.Context, s *Scenario, cfg tier.Config, signals map[string]world.Signal, args []vm.Value) (*Outcome, error) {
	o := &Outcome{Limit: cfg.Limit.String(), Output: []string{}}

	u, err := compiler.Compile(ctx, s.Node, compiler.Options{Config: cfg, Signals: signals, Logger: h.logger})
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		o.CompileError = coded.Code()
		return o, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: compile under %s: %w", s.Name, o.Limit, err)
	}
	o.Unit = u
	if o.Fingerprint, err = ir.UnitFingerprint(u); err != nil {
		return nil, err
	}

	// The VM may mutate argument containers, so each limit gets fresh ones.
	out, err := vm.Run(ctx, u, vm.Options{Entry: s.Entry, Args: cloneArgs(args), MaxSteps: s.MaxSteps})
	switch {
	case vm.IsStepsExceeded(err):
		o.StepsExceeded = true
	case vm.IsTrap(err):
		o.Trap = err.Error()
	case err != nil:
		return nil, fmt.Errorf("scenario %s: run under %s: %w", s.Name, o.Limit, err)
	}
	if out != nil {
		o.Output = append(o.Output, out.Output...)
		o.Result = vm.Repr(out.Result)
		o.Deopts = out.Deopts
		o.Steps = out.Steps
		if out.Exception != nil {
			o.exc = out.Exception
			o.Exception = out.Exception.Error()
		}
	}
	return o, nil
}

// compare checks every outcome against the dynamic reference.
func compare(r *Result) {
	ref, _ := r.Outcome(ir.TierDynamic.String())
	for _, o := range r.Outcomes {
		if o.Trap != "" {
			r.AddError(fmt.Sprintf("limit %s: trap: %s", o.Limit, o.Trap))
		}
	}
	if ref.StepsExceeded {
		return
	}
	for _, o := range r.Outcomes {
		if o == ref || o.StepsExceeded || o.Trap != "" {
			continue
		}
		if o.CompileError != ref.CompileError {
			r.AddError(fmt.Sprintf("limit %s: compile error %q, dynamic %q", o.Limit, o.CompileError, ref.CompileError))
			continue
		}
		if !slices.Equal(o.Output, ref.Output) {
			r.AddError(fmt.Sprintf("limit %s: output %q, dynamic %q", o.Limit, o.Output, ref.Output))
		}
		if o.Result != ref.Result {
			r.AddError(fmt.Sprintf("limit %s: result %s, dynamic %s", o.Limit, o.Result, ref.Result))
		}
		if o.Exception != ref.Exception {
			r.AddError(fmt.Sprintf("limit %s: exception %q, dynamic %q", o.Limit, o.Exception, ref.Exception))
		}
	}
}

func (ov Overrides) apply(cfg tier.Config) (tier.Config, error) {
	if ov.Width != 0 {
		cfg.Width = ov.Width
	}
	if ov.HintPolicy != "" {
		p, err := tier.ParseHintPolicy(ov.HintPolicy)
		if err != nil {
			return cfg, err
		}
		cfg.HintPolicy = p
	}
	if ov.Analytic != nil {
		cfg.Analytic = *ov.Analytic
	}
	cfg.Profile = ov.Profile
	return cfg, cfg.Validate()
}

func convertArgs(args []any) ([]vm.Value, error) {
	out := make([]vm.Value, len(args))
	for i, a := range args {
		v, err := convertArg(a)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func convertArg(a any) (vm.Value, error) {
	switch a := a.(type) {
	case nil:
		return vm.None, nil
	case bool:
		return vm.Bool(a), nil
	case int:
		return big.NewInt(int64(a)), nil
	case int64:
		return big.NewInt(a), nil
	case uint64:
		return new(big.Int).SetUint64(a), nil
	case string:
		return vm.Str(a), nil
	case []any:
		items, err := convertArgs(a)
		if err != nil {
			return nil, err
		}
		return &vm.List{Items: items}, nil
	}
	return nil, fmt.Errorf("unsupported argument %v (%T)", a, a)
}

func cloneArgs(args []vm.Value) []vm.Value {
	out := make([]vm.Value, len(args))
	for i, a := range args {
		if l, ok := a.(*vm.List); ok {
			out[i] = &vm.List{Items: cloneArgs(l.Items)}
			continue
		}
		out[i] = a
	}
	return out
}
