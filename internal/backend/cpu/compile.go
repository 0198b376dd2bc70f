package cpu

import (
	"math"

	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// Compile-time interface check.
var _ codegen.Compiler = (*Runtime)(nil)

// elemwiseKernel is an elementwise program prepared for interpretation.
type elemwiseKernel struct {
	*codegen.ElemwiseSource
	instructions []instruction
}

type instruction struct {
	op       codegen.Operator
	lhs, rhs codegen.Variable
	out      codegen.Variable
	eval     func(a, b float64) float64
}

// Compile implements codegen.Compiler.
func (r *Runtime) Compile(program *codegen.Program, settings codegen.Settings) (compute.KernelSource, error) {
	size := uint32(r.cfg.WorkgroupSize)
	source, err := codegen.NewElemwiseSource(program, settings, compute.WorkgroupSize{X: size, Y: size, Z: 1})
	if err != nil {
		return nil, err
	}

	instructions := make([]instruction, len(program.Ops))
	for i, op := range program.Ops {
		eval, err := operatorFunc(op.Op)
		if err != nil {
			return nil, errors.WithMessagef(err, "compile %s", program.Name)
		}
		instructions[i] = instruction{op: op.Op, lhs: op.Lhs, rhs: op.Rhs, out: op.Out, eval: eval}
	}

	r.logger.Debug("cpu: kernel compiled", "kernel", source.ID(), "ops", len(instructions))
	return &elemwiseKernel{ElemwiseSource: source, instructions: instructions}, nil
}

// ElemSize implements codegen.Compiler.
func (r *Runtime) ElemSize(dtype tensor.DataType) int {
	return dtype.Size()
}

func operatorFunc(op codegen.Operator) (func(a, b float64) float64, error) {
	switch op {
	case codegen.OpAssign:
		return func(a, _ float64) float64 { return a }, nil
	case codegen.OpAdd:
		return func(a, b float64) float64 { return a + b }, nil
	case codegen.OpSub:
		return func(a, b float64) float64 { return a - b }, nil
	case codegen.OpMul:
		return func(a, b float64) float64 { return a * b }, nil
	case codegen.OpDiv:
		return func(a, b float64) float64 { return a / b }, nil
	case codegen.OpMax:
		return math.Max, nil
	case codegen.OpMin:
		return math.Min, nil
	case codegen.OpPow:
		return math.Pow, nil
	case codegen.OpNeg:
		return func(a, _ float64) float64 { return -a }, nil
	case codegen.OpExp:
		return func(a, _ float64) float64 { return math.Exp(a) }, nil
	case codegen.OpLog:
		return func(a, _ float64) float64 { return math.Log(a) }, nil
	case codegen.OpSqrt:
		return func(a, _ float64) float64 { return math.Sqrt(a) }, nil
	case codegen.OpAbs:
		return func(a, _ float64) float64 { return math.Abs(a) }, nil
	case codegen.OpTanh:
		return func(a, _ float64) float64 { return math.Tanh(a) }, nil
	case codegen.OpRelu:
		return func(a, _ float64) float64 { return math.Max(a, 0) }, nil
	default:
		return nil, errors.Errorf("cpu: unsupported operator %s", op)
	}
}
