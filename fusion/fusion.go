// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package fusion compiles fused elementwise programs and selects, per call,
// the kernel variant that runs them.
//
// Every program is compiled into a scalar family and one vectorized family
// per configured width, each in a standard and an in-place specialisation.
// At launch the widest family whose layout requirements hold is chosen, and
// outputs reuse input buffers when those inputs are exclusively owned and
// laid out without overlap.
//
// Example:
//
//	b := fusion.NewBuilder("half")
//	x := b.Input(tensor.Float32)
//	b.Output(b.Mul(x, b.Scalar(0.5)), tensor.Float32)
//	program, err := b.Build()
//
//	runtime := cpu.New()
//	selector, err := fusion.Build(runtime, program, fusion.InferInplaceMappings(program), fusion.DefaultConfig())
//	exec := fusion.NewExecutor(runtime, selector, fusion.DefaultConfig())
//	outs, err := exec.Execute([]*tensor.Tensor{x}, []tensor.Description{x.Description()})
package fusion

import (
	"context"

	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/internal/fusion"
	"github.com/born-ml/fusion/tensor"
)

// Program is a fused elementwise computation.
type Program = codegen.Program

// Builder assembles a Program.
type Builder = codegen.Builder

// Variable is a value inside a Program.
type Variable = codegen.Variable

// InplaceMapping declares that an output may be written into an input buffer.
type InplaceMapping = codegen.InplaceMapping

// Compiler turns programs into kernels for one runtime.
type Compiler = codegen.Compiler

// Config controls which kernel families are compiled.
type Config = fusion.Config

// Priority ranks a kernel family for one call.
type Priority = fusion.Priority

// OutputInfo tells how the buffer of one output is obtained.
type OutputInfo = fusion.OutputInfo

// SelectedKernel is a runnable kernel and the allocation plan of its outputs.
type SelectedKernel = fusion.SelectedKernel

// Handle is the buffer and layout of one actual input.
type Handle = fusion.Handle

// Selector picks the best registered family per call.
type Selector = fusion.Selector

// Executor selects, allocates and launches.
type Executor = fusion.Executor

// NewBuilder starts a program.
func NewBuilder(name string) *Builder {
	return codegen.NewBuilder(name)
}

// InferInplaceMappings pairs every output with the first free input of the same element type.
func InferInplaceMappings(program *Program) []InplaceMapping {
	return codegen.InferInplaceMappings(program)
}

// DefaultConfig returns vector widths 2 and 4 with in-place kernels enabled.
func DefaultConfig() Config {
	return fusion.DefaultConfig()
}

// Build compiles program and registers its kernel families.
func Build(compiler Compiler, program *Program, mappings []InplaceMapping, cfg Config) (*Selector, error) {
	return fusion.Build(compiler, program, mappings, cfg)
}

// NewExecutor binds selector to client.
func NewExecutor(client tensor.Client, selector *Selector, cfg Config) *Executor {
	return fusion.NewExecutor(client, selector, cfg)
}

// ReadAll reads several tensors back to the host concurrently.
func ReadAll(ctx context.Context, tensors []*tensor.Tensor) ([]*tensor.Data, error) {
	return fusion.ReadAll(ctx, tensors)
}

// Available returns a priority with the given score.
func Available(score int) Priority {
	return fusion.Available(score)
}

// Unavailable returns the priority of a family that cannot run a call.
func Unavailable() Priority {
	return fusion.Unavailable()
}
