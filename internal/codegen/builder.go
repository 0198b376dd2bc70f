package codegen

import (
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// Builder records a fused elementwise chain.
//
// Example:
//
//	b := codegen.NewBuilder("scale_add")
//	x := b.Input(tensor.Float32)
//	y := b.Input(tensor.Float32)
//	b.Output(b.Add(b.Mul(x, b.Scalar(2)), y), tensor.Float32)
//	program, err := b.Build()
type Builder struct {
	program Program
	written map[Variable]bool
	err     error
}

// NewBuilder starts an empty program.
func NewBuilder(name string) *Builder {
	return &Builder{
		program: Program{Name: name},
		written: make(map[Variable]bool),
	}
}

// Input declares a new input binding.
func (b *Builder) Input(dtype tensor.DataType) Variable {
	b.program.Inputs = append(b.program.Inputs, dtype)
	return Variable{Scope: ScopeInput, Index: len(b.program.Inputs) - 1}
}

// Scalar declares a constant operand.
func (b *Builder) Scalar(value float64) Variable {
	b.program.Scalars = append(b.program.Scalars, value)
	return Variable{Scope: ScopeScalar, Index: len(b.program.Scalars) - 1}
}

// Unary appends out = op(x) and returns out.
func (b *Builder) Unary(op Operator, x Variable) Variable {
	if op.IsBinary() {
		b.fail(errors.Errorf("codegen: %s is not a unary operator", op))
	}
	return b.push(op, x, Variable{})
}

// Binary appends out = op(lhs, rhs) and returns out.
func (b *Builder) Binary(op Operator, lhs, rhs Variable) Variable {
	if !op.IsBinary() {
		b.fail(errors.Errorf("codegen: %s is not a binary operator", op))
	}
	return b.push(op, lhs, rhs)
}

// Add appends lhs + rhs.
func (b *Builder) Add(lhs, rhs Variable) Variable { return b.Binary(OpAdd, lhs, rhs) }

// Sub appends lhs - rhs.
func (b *Builder) Sub(lhs, rhs Variable) Variable { return b.Binary(OpSub, lhs, rhs) }

// Mul appends lhs * rhs.
func (b *Builder) Mul(lhs, rhs Variable) Variable { return b.Binary(OpMul, lhs, rhs) }

// Div appends lhs / rhs.
func (b *Builder) Div(lhs, rhs Variable) Variable { return b.Binary(OpDiv, lhs, rhs) }

// Relu appends max(x, 0).
func (b *Builder) Relu(x Variable) Variable { return b.Unary(OpRelu, x) }

// Neg appends -x.
func (b *Builder) Neg(x Variable) Variable { return b.Unary(OpNeg, x) }

// Exp appends e^x.
func (b *Builder) Exp(x Variable) Variable { return b.Unary(OpExp, x) }

// Output declares a new output written from v and returns its position.
func (b *Builder) Output(v Variable, dtype tensor.DataType) int {
	b.program.Outputs = append(b.program.Outputs, dtype)
	out := Variable{Scope: ScopeOutput, Index: len(b.program.Outputs) - 1}
	b.check(v)
	b.program.Ops = append(b.program.Ops, Operation{Op: OpAssign, Lhs: v, Out: out})
	b.written[out] = true
	return out.Index
}

// Build validates and returns the program.
func (b *Builder) Build() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.program.Outputs) == 0 {
		return nil, errors.Errorf("codegen: program %q has no output", b.program.Name)
	}
	program := b.program
	program.Inputs = append([]tensor.DataType(nil), b.program.Inputs...)
	program.Outputs = append([]tensor.DataType(nil), b.program.Outputs...)
	program.Scalars = append([]float64(nil), b.program.Scalars...)
	program.Ops = append([]Operation(nil), b.program.Ops...)
	return &program, nil
}

func (b *Builder) push(op Operator, lhs, rhs Variable) Variable {
	b.check(lhs)
	if op.IsBinary() {
		b.check(rhs)
	}
	out := Variable{Scope: ScopeLocal, Index: b.program.Locals}
	b.program.Locals++
	b.program.Ops = append(b.program.Ops, Operation{Op: op, Lhs: lhs, Rhs: rhs, Out: out})
	b.written[out] = true
	return out
}

func (b *Builder) check(v Variable) {
	switch v.Scope {
	case ScopeInput:
		if v.Index < 0 || v.Index >= len(b.program.Inputs) {
			b.fail(errors.Errorf("codegen: unknown %s", v))
		}
	case ScopeScalar:
		if v.Index < 0 || v.Index >= len(b.program.Scalars) {
			b.fail(errors.Errorf("codegen: unknown %s", v))
		}
	case ScopeLocal:
		if !b.written[v] {
			b.fail(errors.Errorf("codegen: %s read before written", v))
		}
	case ScopeOutput:
		b.fail(errors.Errorf("codegen: %s cannot be read", v))
	}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
