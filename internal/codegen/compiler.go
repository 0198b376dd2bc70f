package codegen

import (
	"fmt"

	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// Settings selects the specialisation to compile.
type Settings struct {
	// Factor is the vector width: elements handled per invocation.
	Factor int
	// Mappings makes the kernel write the mapped outputs into their input buffers.
	Mappings []InplaceMapping
}

// Inplace reports whether the settings describe an in-place kernel.
func (s Settings) Inplace() bool {
	return len(s.Mappings) > 0
}

// Compiler turns programs into kernel sources for one runtime.
type Compiler interface {
	// Compile specialises program for settings.
	Compile(program *Program, settings Settings) (compute.KernelSource, error)

	// ElemSize returns the storage size in bytes of one element of dtype.
	ElemSize(dtype tensor.DataType) int
}

// ElemwiseSource is the runtime-independent part of a compiled elementwise
// kernel. Runtimes embed it in their own source types.
type ElemwiseSource struct {
	Program       *Program
	Settings      Settings
	WorkgroupSize compute.WorkgroupSize
}

// NewElemwiseSource validates settings against program.
func NewElemwiseSource(program *Program, settings Settings, workgroupSize compute.WorkgroupSize) (*ElemwiseSource, error) {
	if settings.Factor < 1 {
		return nil, errors.Wrapf(tensor.ErrConfiguration, "compile %s: invalid vector factor %d", program.Name, settings.Factor)
	}
	if err := ValidateMappings(program, settings.Mappings); err != nil {
		return nil, errors.WithMessagef(err, "compile %s", program.Name)
	}
	return &ElemwiseSource{
		Program:       program,
		Settings:      settings,
		WorkgroupSize: workgroupSize,
	}, nil
}

// ID implements compute.KernelSource.
func (s *ElemwiseSource) ID() string {
	kind := "normal"
	if s.Settings.Inplace() {
		kind = "inplace"
	}
	return fmt.Sprintf("%s_%016x_vec%d_%s", s.Program.Name, s.Program.Fingerprint(), s.Settings.Factor, kind)
}

// Metadata implements compute.KernelSource. In-place kernels only declare the
// outputs that still get their own binding.
func (s *ElemwiseSource) Metadata() compute.Metadata {
	outputs := make([]tensor.DataType, 0, len(s.Program.Outputs))
	for pos, dtype := range s.Program.Outputs {
		if _, aliased := s.InputFor(pos); aliased {
			continue
		}
		outputs = append(outputs, dtype)
	}
	return compute.Metadata{
		Name:          s.Program.Name,
		WorkgroupSize: s.WorkgroupSize,
		Inputs:        s.Program.Inputs,
		Outputs:       outputs,
	}
}

// InputFor returns the input an output is written into, if any.
func (s *ElemwiseSource) InputFor(output int) (int, bool) {
	for _, m := range s.Settings.Mappings {
		if m.PosOutput == output {
			return m.PosInput, true
		}
	}
	return 0, false
}

// ReferenceInput returns the input whose layout defines the index space of an
// in-place launch, or -1 for a normal kernel.
func (s *ElemwiseSource) ReferenceInput() int {
	if !s.Settings.Inplace() {
		return -1
	}
	return s.Settings.Mappings[0].PosInput
}
