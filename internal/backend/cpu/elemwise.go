package cpu

import (
	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/parallel"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// operand is a binding resolved to host memory.
type operand struct {
	binding compute.Binding
	access  accessor
}

// runElemwise interprets an elementwise kernel. Each invocation handles
// Factor consecutive elements of the reference index space; aliased outputs
// are written through the layout of the input they overwrite.
func (r *Runtime) runElemwise(k *elemwiseKernel, kernel compute.Kernel, bindings []compute.Binding) error {
	program := k.Program
	factor := k.Settings.Factor

	inputs := make([]operand, len(program.Inputs))
	for i := range inputs {
		if i >= len(bindings) {
			return errors.Wrapf(tensor.ErrDevice, "%s: missing binding for input %d", k.ID(), i)
		}
		op, err := resolve(bindings[i])
		if err != nil {
			return err
		}
		inputs[i] = op
	}

	next := len(inputs)
	outputs := make([]operand, len(program.Outputs))
	for pos := range outputs {
		if in, ok := k.InputFor(pos); ok {
			outputs[pos] = inputs[in]
			continue
		}
		if next >= len(bindings) {
			return errors.Wrapf(tensor.ErrDevice, "%s: missing binding for output %d", k.ID(), pos)
		}
		op, err := resolve(bindings[next])
		if err != nil {
			return err
		}
		outputs[pos] = op
		next++
	}
	if next != len(bindings) {
		return errors.Wrapf(tensor.ErrDevice, "%s: expected %d bindings, got %d", k.ID(), next, len(bindings))
	}

	var reference tensor.Shape
	if ref := k.ReferenceInput(); ref >= 0 {
		reference = inputs[ref].binding.Shape
	} else {
		reference = outputs[0].binding.Shape
	}
	numElems := reference.NumElements()

	if err := checkGrid(k.ID(), kernel, k.WorkgroupSize, (numElems+factor-1)/factor); err != nil {
		return err
	}
	for _, op := range append(inputs, outputs...) {
		if !op.fits() {
			return errors.Wrapf(tensor.ErrDevice, "%s: layout %v/%v exceeds buffer of %d elements",
				k.ID(), op.binding.Shape, op.binding.Strides, op.access.len)
		}
	}

	invocations := (numElems + factor - 1) / factor
	parallel.ForChunks(invocations, func(start, end int) {
		locals := make([]float64, program.Locals)
		loaded := make([]float64, len(inputs)*factor)
		results := make([]float64, len(outputs)*factor)

		for id := start; id < end; id++ {
			first := id * factor
			lanes := min(factor, numElems-first)

			// Every lane is loaded before any lane is stored.
			for lane := 0; lane < lanes; lane++ {
				index := first + lane
				for i, in := range inputs {
					b := in.binding
					loaded[i*factor+lane] = in.access.get(broadcastOffset(index, reference, b.Shape, b.Strides))
				}
			}

			for lane := 0; lane < lanes; lane++ {
				for _, ins := range k.instructions {
					a := fetch(ins.lhs, loaded, locals, k.Program.Scalars, factor, lane)
					var b float64
					if ins.op.IsBinary() {
						b = fetch(ins.rhs, loaded, locals, k.Program.Scalars, factor, lane)
					}
					v := ins.eval(a, b)
					if ins.out.Scope == codegen.ScopeOutput {
						results[ins.out.Index*factor+lane] = v
					} else {
						locals[ins.out.Index] = v
					}
				}
			}

			for lane := 0; lane < lanes; lane++ {
				index := first + lane
				for pos, out := range outputs {
					b := out.binding
					out.access.set(broadcastOffset(index, reference, b.Shape, b.Strides), results[pos*factor+lane])
				}
			}
		}
	}, r.cfg.Parallel)

	return nil
}

func fetch(v codegen.Variable, loaded, locals, scalars []float64, factor, lane int) float64 {
	switch v.Scope {
	case codegen.ScopeInput:
		return loaded[v.Index*factor+lane]
	case codegen.ScopeLocal:
		return locals[v.Index]
	case codegen.ScopeScalar:
		return scalars[v.Index]
	default:
		return 0
	}
}

func resolve(b compute.Binding) (operand, error) {
	bytes, err := hostBytes(b.Handle)
	if err != nil {
		return operand{}, err
	}
	access, err := newAccessor(bytes, b.DType)
	if err != nil {
		return operand{}, err
	}
	if len(b.Shape) != len(b.Strides) {
		return operand{}, errors.Wrapf(tensor.ErrDevice, "binding shape %v and strides %v differ in rank", b.Shape, b.Strides)
	}
	return operand{binding: b, access: access}, nil
}

func (o operand) fits() bool {
	return maxOffset(o.binding.Shape, o.binding.Strides) < o.access.len
}

// checkGrid verifies that the dispatched grid covers every invocation.
func checkGrid(id string, kernel compute.Kernel, size compute.WorkgroupSize, needed int) error {
	perGroup := int(size.X) * int(size.Y) * int(max(size.Z, 1))
	if got := kernel.WorkGroup().NumWorkgroups() * perGroup; got < needed {
		return errors.Wrapf(tensor.ErrDevice, "%s: grid of %d invocations cannot cover %d", id, got, needed)
	}
	return nil
}
