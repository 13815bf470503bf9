package ir

// Canonical conversion of IR nodes to IRValue trees. Empty fields are
// omitted so that adding an optional field never changes existing bytes.

func (o Operand) toValue() IRValue {
	obj := IRObject{"k": IRString(o.Kind)}
	if o.Kind != OperandNone {
		obj["v"] = IRString(o.Text)
	}
	return obj
}

func operandsValue(ops []Operand) IRArray {
	arr := make(IRArray, len(ops))
	for i, o := range ops {
		arr[i] = o.toValue()
	}
	return arr
}

func instrsValue(body []Instr) IRArray {
	arr := make(IRArray, len(body))
	for i := range body {
		arr[i] = body[i].toValue()
	}
	return arr
}

func (in *Instr) toValue() IRValue {
	obj := IRObject{"op": IRString(in.Op)}
	if in.Dst != "" {
		obj["dst"] = IRString(in.Dst)
	}
	if len(in.Args) > 0 {
		obj["args"] = operandsValue(in.Args)
	}
	if in.Target != "" {
		obj["target"] = IRString(in.Target)
	}
	if in.Elem != ElemNone {
		obj["elem"] = IRString(in.Elem)
	}
	if len(in.Body) > 0 {
		obj["body"] = instrsValue(in.Body)
	}
	if len(in.Else) > 0 {
		obj["else"] = instrsValue(in.Else)
	}
	if in.Region != nil {
		obj["region"] = in.Region.toValue()
	}
	return obj
}

func (e *Expr) toValue() IRValue {
	obj := IRObject{"op": IRString(e.Op)}
	switch e.Op {
	case ExprVar:
		obj["var"] = IRString(e.Var)
	case ExprConst:
		obj["const"] = IRString(e.Const)
	}
	if e.L != nil {
		obj["l"] = e.L.toValue()
	}
	if e.R != nil {
		obj["r"] = e.R.toValue()
	}
	return obj
}

func (g *Guard) toValue() IRValue {
	obj := IRObject{
		"kind":   IRString(g.Kind),
		"args":   operandsValue(g.Args),
		"target": IRString(g.Target),
		"reason": IRString(g.Reason),
	}
	if g.Var != "" {
		obj["var"] = IRString(g.Var)
	}
	if g.Expr != nil {
		obj["expr"] = g.Expr.toValue()
	}
	if g.Site != "" {
		obj["site"] = IRString(g.Site)
	}
	return obj
}

func (r *LoweringResult) toValue() IRValue {
	obj := IRObject{
		"label":   IRString(r.Label),
		"pattern": IRString(r.Pattern),
		"tier":    IRString(r.Tier.String()),
		"body":    instrsValue(r.Body),
	}
	if r.Pos != "" {
		obj["pos"] = IRString(r.Pos)
	}
	if r.Reason != "" {
		obj["reason"] = IRString(r.Reason)
	}
	if r.Result != "" {
		obj["result"] = IRString(r.Result)
	}
	if len(r.Guards) > 0 {
		guards := make(IRArray, len(r.Guards))
		for i := range r.Guards {
			guards[i] = r.Guards[i].toValue()
		}
		obj["guards"] = guards
	}
	if len(r.Probes) > 0 {
		probes := make(IRArray, len(r.Probes))
		for i, p := range r.Probes {
			probes[i] = IRObject{"site": IRString(p.Site), "arg": p.Arg.toValue()}
		}
		obj["probes"] = probes
	}
	if r.Deopt != nil {
		obj["deopt"] = IRObject{
			"label": IRString(r.Deopt.Label),
			"live":  Strings(r.Deopt.Live),
			"body":  instrsValue(r.Deopt.Body),
		}
	}
	return obj
}

// Value returns the canonical value tree of the unit.
func (u *Unit) Value() IRObject {
	funcs := make(IRArray, len(u.Functions))
	for i, fn := range u.Functions {
		funcs[i] = IRObject{
			"name":   IRString(fn.Name),
			"params": Strings(fn.Params),
			"body":   instrsValue(fn.Body),
		}
	}
	return IRObject{
		"module":     IRString(u.Module),
		"ir_version": IRString(u.IRVersion),
		"width":      IRInt(u.Width),
		"functions":  funcs,
	}
}

// Canonical returns the canonical bytes of the unit.
func (u *Unit) Canonical() ([]byte, error) {
	return MarshalCanonical(u.Value())
}

// CanonicalResult returns the canonical bytes of a single construct.
func CanonicalResult(r *LoweringResult) ([]byte, error) {
	return MarshalCanonical(r.toValue())
}
