package ir

import "fmt"

// Validation error codes (E100-E199).
const (
	ErrUnknownPrimitive  = "E101" // op outside the closed primitive set
	ErrDynamicDispatch   = "E102" // call_dyn in a static or guarded body
	ErrStaticGuards      = "E103" // static construct carries guards
	ErrGuardedNoGuards   = "E104" // guarded construct without guards
	ErrGuardedNoDeopt    = "E105" // guarded construct without deopt block
	ErrGuardTarget       = "E106" // guard target is not the deopt label
	ErrDynamicGuards     = "E107" // dynamic construct carries guards
	ErrLoopControl       = "E108" // break/continue outside a loop
	ErrUncountedLoop     = "E109" // loop without trip count in specialized code
	ErrMalformedInstr    = "E110" // wrong arity or missing destination
	ErrStrayInstr        = "E111" // instruction outside any construct
	ErrGuardOrder        = "E112" // guards not in fail-fast order
	ErrDuplicateLabel    = "E113" // construct label reused
	ErrDeoptOutsideGuard = "E114" // deopt block on a non-guarded construct
)

// ValidationError describes one violated IR invariant.
type ValidationError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// Validate checks the structural invariants of a unit.
// Returns all errors found (does not fail-fast).
func Validate(u *Unit) []ValidationError {
	v := &validator{labels: make(map[string]bool)}
	for _, fn := range u.Functions {
		path := "func " + fn.Name
		for i := range fn.Body {
			in := &fn.Body[i]
			if in.Op != OpRegion {
				v.fail(fmt.Sprintf("%s/body[%d]", path, i), ErrStrayInstr,
					fmt.Sprintf("%s outside a construct", in.Op))
				continue
			}
			v.instr(path, in, TierDynamic, true, 0)
		}
	}
	return v.errs
}

type validator struct {
	errs   []ValidationError
	labels map[string]bool
}

func (v *validator) fail(path, code, msg string) {
	v.errs = append(v.errs, ValidationError{Path: path, Code: code, Message: msg})
}

func (v *validator) region(path string, r *LoweringResult, loops int) {
	if r == nil {
		v.fail(path, ErrMalformedInstr, "region without construct")
		return
	}
	path = path + "/" + r.Label
	if v.labels[r.Label] {
		v.fail(path, ErrDuplicateLabel, fmt.Sprintf("label %q reused", r.Label))
	}
	v.labels[r.Label] = true

	switch r.Tier {
	case TierStatic:
		if len(r.Guards) > 0 {
			v.fail(path, ErrStaticGuards, "static construct carries guards")
		}
	case TierGuarded:
		if len(r.Guards) == 0 {
			v.fail(path, ErrGuardedNoGuards, "guarded construct has no guards")
		}
		if r.Deopt == nil {
			v.fail(path, ErrGuardedNoDeopt, "guarded construct has no deopt block")
		}
		last := -1
		for i, g := range r.Guards {
			if r.Deopt != nil && g.Target != r.Deopt.Label {
				v.fail(fmt.Sprintf("%s/guards[%d]", path, i), ErrGuardTarget,
					fmt.Sprintf("target %q, want %q", g.Target, r.Deopt.Label))
			}
			rank := GuardRank(g.Kind)
			if rank < last {
				v.fail(fmt.Sprintf("%s/guards[%d]", path, i), ErrGuardOrder,
					fmt.Sprintf("%s after a later-ranked guard", g.Kind))
			}
			last = rank
		}
	case TierDynamic:
		if len(r.Guards) > 0 {
			v.fail(path, ErrDynamicGuards, "dynamic construct carries guards")
		}
	}
	if r.Deopt != nil && r.Tier != TierGuarded {
		v.fail(path, ErrDeoptOutsideGuard, "deopt block on a "+r.Tier.String()+" construct")
	}

	v.body(path+"/body", r.Body, r.Tier, false, loops)
	if r.Deopt != nil {
		if v.labels[r.Deopt.Label] {
			v.fail(path, ErrDuplicateLabel, fmt.Sprintf("label %q reused", r.Deopt.Label))
		}
		v.labels[r.Deopt.Label] = true
		v.body(path+"/deopt", r.Deopt.Body, TierDynamic, true, loops)
	}
}

func (v *validator) body(path string, body []Instr, tier Tier, deopt bool, loops int) {
	for i := range body {
		v.instr(fmt.Sprintf("%s[%d]", path, i), &body[i], tier, deopt, loops)
	}
}

func (v *validator) instr(path string, in *Instr, tier Tier, deopt bool, loops int) {
	arity, ok := opArity[in.Op]
	if !ok {
		v.fail(path, ErrUnknownPrimitive, fmt.Sprintf("unknown primitive %q", in.Op))
		return
	}
	if len(in.Args) < arity[0] || (arity[1] >= 0 && len(in.Args) > arity[1]) {
		v.fail(path, ErrMalformedInstr, fmt.Sprintf("%s takes %d..%d args, has %d",
			in.Op, arity[0], arity[1], len(in.Args)))
	}
	if producesValue(in.Op) && in.Dst == "" {
		v.fail(path, ErrMalformedInstr, fmt.Sprintf("%s without destination", in.Op))
	}

	switch in.Op {
	case OpRegion:
		v.region(path, in.Region, loops)
		return
	case OpCallDyn:
		if tier != TierDynamic && !deopt {
			v.fail(path, ErrDynamicDispatch, "call_dyn in "+tier.String()+" code")
		}
	case OpBreak, OpContinue:
		if loops == 0 {
			v.fail(path, ErrLoopControl, string(in.Op)+" outside a loop")
		}
	case OpLoop:
		if len(in.Args) == 0 && tier != TierDynamic && !deopt {
			v.fail(path, ErrUncountedLoop, "loop without trip count in "+tier.String()+" code")
		}
		if in.Dst == "" && len(in.Args) == 1 {
			v.fail(path, ErrMalformedInstr, "counted loop without index binding")
		}
		v.body(path+"/body", in.Body, tier, deopt, loops+1)
		return
	}
	v.body(path+"/then", in.Body, tier, deopt, loops)
	v.body(path+"/else", in.Else, tier, deopt, loops)
}
