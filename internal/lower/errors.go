package lower

import (
	"fmt"

	"github.com/roach88/tierc/internal/ast"
)

// Compile-time error codes (E200-E299).
const (
	CodeTrap        = "E201" // construct that must fail at compile time
	CodeUnsupported = "E202" // construct outside the lowerable subset
)

// TrapError is a CompileTimeTrap: the construct is statically known to be
// invalid, such as a range whose step folds to zero.
type TrapError struct {
	Pos     ast.Pos
	Reason  string
	Message string
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", CodeTrap, e.Pos, e.Message)
}

// Code returns the error code.
func (e *TrapError) Code() string { return CodeTrap }

// UnsupportedError reports a node the lowerer cannot express.
type UnsupportedError struct {
	Pos       ast.Pos
	Construct string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("[%s] %s: unsupported %s", CodeUnsupported, e.Pos, e.Construct)
}

// Code returns the error code.
func (e *UnsupportedError) Code() string { return CodeUnsupported }
