package fusion

import (
	"fmt"

	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// ElementWiseSource holds both compiled specialisations of one vector width.
type ElementWiseSource struct {
	normal   compute.KernelSource
	inplace  compute.KernelSource
	compiler codegen.Compiler
	mappings []codegen.InplaceMapping
	// output2input[pos] is the input written by output pos in the in-place
	// kernel, or -1 when that output is always freshly allocated.
	output2input []int
	factor       int
}

// NewElementWiseSource binds a normal and an in-place source of the same program.
//
// mappings must already be validated against the program (see
// codegen.ValidateMappings, which Build calls). A mapping outside
// [0, numOutputs) or with a negative input position panics.
func NewElementWiseSource(
	compiler codegen.Compiler,
	normal, inplace compute.KernelSource,
	mappings []codegen.InplaceMapping,
	numOutputs, factor int,
) *ElementWiseSource {
	output2input := make([]int, numOutputs)
	for i := range output2input {
		output2input[i] = -1
	}
	for _, m := range mappings {
		if m.PosInput < 0 || m.PosOutput < 0 || m.PosOutput >= numOutputs {
			panic(fmt.Sprintf("fusion: inplace mapping %+v out of range for %d outputs", m, numOutputs))
		}
		output2input[m.PosOutput] = m.PosInput
	}

	return &ElementWiseSource{
		normal:       normal,
		inplace:      inplace,
		compiler:     compiler,
		mappings:     mappings,
		output2input: output2input,
		factor:       factor,
	}
}

// Factor returns the vector width.
func (s *ElementWiseSource) Factor() int {
	return s.factor
}

// OutputToInput returns the reverse index of the in-place mappings.
func (s *ElementWiseSource) OutputToInput() []int {
	return s.output2input
}

func (s *ElementWiseSource) kernel(handles []Handle, inputs, outputs []tensor.Description) (SelectedKernel, error) {
	meta := s.normal.Metadata()
	if meta.WorkgroupSize.X != meta.WorkgroupSize.Y {
		return SelectedKernel{}, errors.Wrapf(tensor.ErrConfiguration,
			"%s: the grid must be a square, got workgroup %dx%d", meta.Name, meta.WorkgroupSize.X, meta.WorkgroupSize.Y)
	}
	if len(meta.Outputs) != len(outputs) {
		return SelectedKernel{}, errors.Wrapf(tensor.ErrConfiguration,
			"%s: kernel declares %d outputs, call has %d", meta.Name, len(meta.Outputs), len(outputs))
	}
	workgroupSize := int(meta.WorkgroupSize.X)

	if inplaceAvailable(s.mappings, handles, inputs, outputs) {
		reference := inputs[s.mappings[0].PosInput]
		workgroup := compute.ElemwiseWorkGroup(reference.NumElements()/s.factor, workgroupSize)
		infos := make([]OutputInfo, len(outputs))
		for pos, input := range s.output2input {
			if input >= 0 {
				infos[pos] = InplaceOutput(input)
				continue
			}
			// The in-place source does not bind aliased outputs, so element
			// types are read from the normal source.
			infos[pos] = ArrayOutput(outputs[pos].NumElements() * s.compiler.ElemSize(meta.Outputs[pos]))
		}
		return SelectedKernel{Kernel: compute.NewDynamicKernel(s.inplace, workgroup), Outputs: infos}, nil
	}

	if len(outputs) == 0 {
		return SelectedKernel{}, errors.Wrapf(tensor.ErrConfiguration, "%s: no output to launch over", meta.Name)
	}
	reference := outputs[0]
	workgroup := compute.ElemwiseWorkGroup(reference.NumElements()/s.factor, workgroupSize)
	infos := make([]OutputInfo, len(outputs))
	for pos, out := range outputs {
		infos[pos] = ArrayOutput(out.NumElements() * s.compiler.ElemSize(meta.Outputs[pos]))
	}
	return SelectedKernel{Kernel: compute.NewDynamicKernel(s.normal, workgroup), Outputs: infos}, nil
}

// ScalarElementWise is the factor-1 family. It can always run and is the
// fallback of every selection.
type ScalarElementWise struct {
	source *ElementWiseSource
}

// NewScalarElementWise registers the scalar family.
func NewScalarElementWise(
	compiler codegen.Compiler,
	normal, inplace compute.KernelSource,
	mappings []codegen.InplaceMapping,
	numOutputs int,
) *ScalarElementWise {
	return &ScalarElementWise{
		source: NewElementWiseSource(compiler, normal, inplace, mappings, numOutputs, 1),
	}
}

// Kernel implements FusionKernel.
func (k *ScalarElementWise) Kernel(handles []Handle, inputs, outputs []tensor.Description) (SelectedKernel, error) {
	return k.source.kernel(handles, inputs, outputs)
}

// Priority implements FusionKernel.
func (k *ScalarElementWise) Priority(_ []Handle, _, _ []tensor.Description) Priority {
	return Available(0)
}

// VecElementWise is a family processing factor contiguous elements per invocation.
type VecElementWise struct {
	source *ElementWiseSource
}

// NewVecElementWise registers a vectorized family of width factor.
func NewVecElementWise(
	compiler codegen.Compiler,
	normal, inplace compute.KernelSource,
	mappings []codegen.InplaceMapping,
	numOutputs, factor int,
) *VecElementWise {
	return &VecElementWise{
		source: NewElementWiseSource(compiler, normal, inplace, mappings, numOutputs, factor),
	}
}

// Kernel implements FusionKernel.
func (k *VecElementWise) Kernel(handles []Handle, inputs, outputs []tensor.Description) (SelectedKernel, error) {
	return k.source.kernel(handles, inputs, outputs)
}

// Priority implements FusionKernel.
//
// Every input must have a unit last stride, so factor elements form one
// vector load, and a last extent divisible by factor. Outputs are only
// checked when there is no input.
func (k *VecElementWise) Priority(handles []Handle, inputs, outputs []tensor.Description) Priority {
	factor := k.source.factor
	if len(handles) != len(inputs) {
		return Unavailable()
	}

	for i, handle := range handles {
		if len(handle.Strides) == 0 || handle.Strides.Last() != 1 {
			return Unavailable()
		}
		if inputs[i].Shape.Last()%factor != 0 {
			return Unavailable()
		}
	}

	if len(handles) == 0 {
		for _, out := range outputs {
			if len(out.Shape) == 0 || out.Shape.Last()%factor != 0 {
				return Unavailable()
			}
		}
	}

	return Available(factor)
}

// inplaceAvailable reports whether every mapped input may be overwritten.
//
// The buffer must have no other reference, the input must cover the same
// index space as the output it receives, and its layout must pass
// compactStrides.
func inplaceAvailable(mappings []codegen.InplaceMapping, handles []Handle, inputs, outputs []tensor.Description) bool {
	if len(mappings) == 0 {
		return false
	}

	for _, m := range mappings {
		if m.PosInput >= len(handles) || m.PosInput >= len(inputs) || m.PosOutput >= len(outputs) {
			return false
		}
		handle := handles[m.PosInput]
		if !handle.Handle.CanMut() {
			return false
		}

		shape := inputs[m.PosInput].Shape
		if !shape.Equal(outputs[m.PosOutput].Shape) {
			return false
		}
		if !compactStrides(shape, handle.Strides) {
			return false
		}
	}

	return true
}

// compactStrides reports whether strides never decrease from the last axis
// backward and no two logical indices share memory.
//
// Every axis is checked for ordering, unit axes included, so a reversed
// layout is rejected whatever its extents. Axes with extent above 1 must
// also step past the span covered by the axes after them, which rejects
// broadcast (zero) and overlapping strides.
func compactStrides(shape tensor.Shape, strides tensor.Strides) bool {
	if len(shape) != len(strides) {
		return false
	}

	current, span := 0, 1
	for i := len(strides) - 1; i >= 0; i-- {
		if strides[i] < current {
			return false
		}
		current = strides[i]

		if shape[i] == 1 {
			continue
		}
		if strides[i] < span {
			return false
		}
		span = strides[i] * shape[i]
	}
	return true
}
