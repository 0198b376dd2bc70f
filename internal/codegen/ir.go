// Package codegen holds the elementwise program representation handed to a
// runtime compiler, and the in-place aliasing declarations attached to it.
package codegen

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/born-ml/fusion/internal/tensor"
)

// Operator is an elementwise operation.
type Operator int

// Supported operators.
const (
	OpAssign Operator = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMax
	OpMin
	OpPow
	OpNeg
	OpExp
	OpLog
	OpSqrt
	OpAbs
	OpTanh
	OpRelu
)

var operatorNames = [...]string{
	OpAssign: "assign",
	OpAdd:    "add",
	OpSub:    "sub",
	OpMul:    "mul",
	OpDiv:    "div",
	OpMax:    "max",
	OpMin:    "min",
	OpPow:    "pow",
	OpNeg:    "neg",
	OpExp:    "exp",
	OpLog:    "log",
	OpSqrt:   "sqrt",
	OpAbs:    "abs",
	OpTanh:   "tanh",
	OpRelu:   "relu",
}

// String returns the operator name.
func (op Operator) String() string {
	if int(op) < len(operatorNames) {
		return operatorNames[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// IsBinary reports whether the operator reads two operands.
func (op Operator) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMax, OpMin, OpPow:
		return true
	default:
		return false
	}
}

// Scope tells where a variable lives.
type Scope int

// Variable scopes.
const (
	ScopeInput Scope = iota
	ScopeOutput
	ScopeLocal
	ScopeScalar
)

// Variable references an input, output, local register or scalar constant.
type Variable struct {
	Scope Scope
	Index int
}

// String implements fmt.Stringer.
func (v Variable) String() string {
	switch v.Scope {
	case ScopeInput:
		return fmt.Sprintf("input_%d", v.Index)
	case ScopeOutput:
		return fmt.Sprintf("output_%d", v.Index)
	case ScopeLocal:
		return fmt.Sprintf("local_%d", v.Index)
	default:
		return fmt.Sprintf("scalar_%d", v.Index)
	}
}

// Operation computes Out = Op(Lhs, Rhs). Unary operators ignore Rhs.
type Operation struct {
	Op  Operator
	Lhs Variable
	Rhs Variable
	Out Variable
}

// Program is a fused chain of elementwise operations over a common index space.
type Program struct {
	Name    string
	Inputs  []tensor.DataType
	Outputs []tensor.DataType
	Locals  int
	Scalars []float64
	Ops     []Operation
}

// Fingerprint returns a stable hash of the program body, used in kernel IDs.
func (p *Program) Fingerprint() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(p.String()))
	return h.Sum64()
}

// String renders the program as one operation per line.
func (p *Program) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(inputs=%v outputs=%v scalars=%v)\n", p.Name, p.Inputs, p.Outputs, p.Scalars)
	for _, op := range p.Ops {
		if op.Op.IsBinary() {
			fmt.Fprintf(&sb, "  %s = %s(%s, %s)\n", op.Out, op.Op, op.Lhs, op.Rhs)
		} else {
			fmt.Fprintf(&sb, "  %s = %s(%s)\n", op.Out, op.Op, op.Lhs)
		}
	}
	return sb.String()
}
