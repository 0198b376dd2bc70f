package codegen

import (
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// InplaceMapping declares that output PosOutput may be written into the
// buffer bound to input PosInput.
type InplaceMapping struct {
	PosInput  int
	PosOutput int
}

// InferInplaceMappings pairs every output with the first not yet aliased
// input of the same element type. Outputs left unpaired are always freshly
// allocated.
func InferInplaceMappings(program *Program) []InplaceMapping {
	used := make([]bool, len(program.Inputs))
	var mappings []InplaceMapping

	for out, outType := range program.Outputs {
		for in, inType := range program.Inputs {
			if used[in] || inType != outType {
				continue
			}
			used[in] = true
			mappings = append(mappings, InplaceMapping{PosInput: in, PosOutput: out})
			break
		}
	}
	return mappings
}

// ValidateMappings checks positions, element types and that no input or
// output appears twice.
func ValidateMappings(program *Program, mappings []InplaceMapping) error {
	inputs := make(map[int]bool, len(mappings))
	outputs := make(map[int]bool, len(mappings))

	for _, m := range mappings {
		if m.PosInput < 0 || m.PosInput >= len(program.Inputs) {
			return errors.Wrapf(tensor.ErrConfiguration, "inplace mapping: input %d out of range", m.PosInput)
		}
		if m.PosOutput < 0 || m.PosOutput >= len(program.Outputs) {
			return errors.Wrapf(tensor.ErrConfiguration, "inplace mapping: output %d out of range", m.PosOutput)
		}
		if program.Inputs[m.PosInput] != program.Outputs[m.PosOutput] {
			return errors.Wrapf(tensor.ErrConfiguration, "inplace mapping: input %d is %s but output %d is %s",
				m.PosInput, program.Inputs[m.PosInput], m.PosOutput, program.Outputs[m.PosOutput])
		}
		if inputs[m.PosInput] || outputs[m.PosOutput] {
			return errors.Wrapf(tensor.ErrConfiguration, "inplace mapping: %+v aliases a position twice", m)
		}
		inputs[m.PosInput] = true
		outputs[m.PosOutput] = true
	}
	return nil
}
