package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
)

// DecodeError reports malformed input with its location.
type DecodeError struct {
	Pos     Pos
	Message string
}

func (e *DecodeError) Error() string {
	if e.Pos.File != "" || e.Pos.Line > 0 {
		return fmt.Sprintf("%s: %s", e.Pos, e.Message)
	}
	return e.Message
}

// Decode reads one module. Unknown fields and unknown kinds are rejected.
func Decode(r io.Reader) (*Node, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var mod Node
	if err := dec.Decode(&mod); err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	if mod.Kind != KindModule {
		return nil, &DecodeError{Pos: mod.Pos, Message: fmt.Sprintf("top-level node is %q, want module", mod.Kind)}
	}
	if mod.Name == "" {
		return nil, &DecodeError{Pos: mod.Pos, Message: "module has no name"}
	}
	if err := Check(&mod); err != nil {
		return nil, err
	}
	return &mod, nil
}

// DecodeBytes decodes a module from memory.
func DecodeBytes(data []byte) (*Node, error) {
	return Decode(bytes.NewReader(data))
}

// DecodeFile decodes a module from a file.
func DecodeFile(path string) (*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Check verifies that every node has a known kind and the fields its kind
// requires. It does not judge whether constructs are supported.
func Check(n *Node) error {
	var err error
	Walk(n, func(c *Node) bool {
		if err == nil {
			err = checkNode(c)
		}
		return err == nil
	})
	return err
}

var binOps = map[string]bool{"+": true, "-": true, "*": true, "//": true, "%": true}

var cmpOps = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
	"in": true, "not in": true,
}

func checkNode(n *Node) error {
	bad := func(format string, args ...any) error {
		return &DecodeError{Pos: n.Pos, Message: fmt.Sprintf("%s: %s", n.Kind, fmt.Sprintf(format, args...))}
	}
	need := func(field string, v *Node) error {
		if v == nil {
			return bad("missing %s", field)
		}
		return nil
	}

	switch n.Kind {
	case KindModule, KindBreak, KindContinue, KindPass, KindReturn, KindRaise:
	case KindFunc:
		if n.Name == "" {
			return bad("missing name")
		}
	case KindFor:
		if err := need("target", n.Target); err != nil {
			return err
		}
		return need("iter", n.Iter)
	case KindWhile, KindIf:
		return need("test", n.Test)
	case KindAssign:
		if err := need("target", n.Target); err != nil {
			return err
		}
		return need("value", n.Value)
	case KindAugAssign:
		if !binOps[n.Op] {
			return bad("unknown operator %q", n.Op)
		}
		if err := need("target", n.Target); err != nil {
			return err
		}
		return need("value", n.Value)
	case KindExpr:
		return need("value", n.Value)
	case KindConst:
		if n.Lit == nil {
			return bad("missing lit")
		}
		switch n.Lit.Type {
		case "int":
			if _, ok := new(big.Int).SetString(n.Lit.Text, 10); !ok {
				return bad("invalid int literal %q", n.Lit.Text)
			}
		case "bool":
			if n.Lit.Text != "true" && n.Lit.Text != "false" {
				return bad("invalid bool literal %q", n.Lit.Text)
			}
		case "none", "str":
		default:
			return bad("unknown literal type %q", n.Lit.Type)
		}
	case KindName:
		if n.Name == "" {
			return bad("missing name")
		}
	case KindBinOp:
		if !binOps[n.Op] {
			return bad("unknown operator %q", n.Op)
		}
		if err := need("left", n.Left); err != nil {
			return err
		}
		return need("right", n.Right)
	case KindUnary:
		if n.Op != "-" && n.Op != "not" {
			return bad("unknown operator %q", n.Op)
		}
		return need("operand", n.Operand)
	case KindBoolOp:
		if n.Op != "and" && n.Op != "or" {
			return bad("unknown operator %q", n.Op)
		}
		if len(n.Values) < 2 {
			return bad("needs at least two values")
		}
	case KindCompare:
		if err := need("left", n.Left); err != nil {
			return err
		}
		if len(n.Ops) == 0 || len(n.Ops) != len(n.Comparators) {
			return bad("ops and comparators disagree")
		}
		for _, op := range n.Ops {
			if !cmpOps[op] {
				return bad("unknown comparison %q", op)
			}
		}
	case KindCall:
		return need("func", n.Func)
	case KindAttr:
		if n.Name == "" {
			return bad("missing name")
		}
		return need("obj", n.Obj)
	case KindSubscript:
		if err := need("obj", n.Obj); err != nil {
			return err
		}
		return need("index", n.Index)
	case KindTuple, KindList:
	case KindDict:
		if len(n.Keys) != len(n.Values) {
			return bad("keys and values disagree")
		}
	case KindListComp, KindGenExp:
		if err := need("elt", n.Elt); err != nil {
			return err
		}
		if len(n.Generators) == 0 {
			return bad("no generators")
		}
	case KindDictComp:
		if err := need("key", n.Key); err != nil {
			return err
		}
		if err := need("value", n.Value); err != nil {
			return err
		}
		if len(n.Generators) == 0 {
			return bad("no generators")
		}
	case KindComprehension:
		if err := need("target", n.Target); err != nil {
			return err
		}
		return need("iter", n.Iter)
	default:
		return bad("unknown kind")
	}
	if n.Facts != nil {
		switch n.Facts.Trust {
		case "", TrustAdvisory, TrustGuarded, TrustTrusted:
		default:
			return bad("unknown trust level %q", n.Facts.Trust)
		}
		if n.Facts.Const != "" {
			if _, ok := new(big.Int).SetString(n.Facts.Const, 10); !ok {
				return bad("invalid const fact %q", n.Facts.Const)
			}
		}
	}
	return nil
}
