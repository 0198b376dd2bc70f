package fusion

import (
	"slices"

	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/internal/compute"
	"github.com/pkg/errors"
)

// Build compiles program into a scalar family plus one vectorized family per
// configured width and registers them in a new Selector.
// mappings declares the in-place aliasing; it is ignored when cfg.Inplace is false.
func Build(compiler codegen.Compiler, program *codegen.Program, mappings []codegen.InplaceMapping, cfg Config) (*Selector, error) {
	if !cfg.Inplace {
		mappings = nil
	}
	if err := codegen.ValidateMappings(program, mappings); err != nil {
		return nil, err
	}

	widths := slices.Clone(cfg.VectorWidths)
	slices.Sort(widths)
	widths = slices.Compact(widths)

	selector := NewSelector(program.Name, cfg.logger())

	normal, inplace, err := compilePair(compiler, program, mappings, 1)
	if err != nil {
		return nil, err
	}
	selector.Register(NewScalarElementWise(compiler, normal, inplace, mappings, len(program.Outputs)))

	for _, width := range widths {
		if width <= 1 {
			continue
		}
		normal, inplace, err := compilePair(compiler, program, mappings, width)
		if err != nil {
			return nil, err
		}
		selector.Register(NewVecElementWise(compiler, normal, inplace, mappings, len(program.Outputs), width))
	}

	cfg.logger().Debug("fusion: program registered",
		"program", program.Name,
		"families", selector.Len(),
		"inplace_mappings", len(mappings),
	)
	return selector, nil
}

func compilePair(compiler codegen.Compiler, program *codegen.Program, mappings []codegen.InplaceMapping, factor int) (normal, inplace compute.KernelSource, err error) {
	normal, err = compiler.Compile(program, codegen.Settings{Factor: factor})
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "compile %s (vec%d)", program.Name, factor)
	}

	// Without mappings the in-place variant would never be selected; reuse
	// the normal source in its slot.
	if len(mappings) == 0 {
		return normal, normal, nil
	}

	inplace, err = compiler.Compile(program, codegen.Settings{Factor: factor, Mappings: mappings})
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "compile %s (vec%d, inplace)", program.Name, factor)
	}
	return normal, inplace, nil
}
