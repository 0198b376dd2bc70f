// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/fusion/internal/backend/cpu"
	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/tensor"
)

// Runtime is the CPU compute client and elementwise compiler.
type Runtime = internalcpu.Runtime

// Config controls the CPU runtime.
type Config = internalcpu.Config

// Features tracks host SIMD extensions.
type Features = internalcpu.Features

// Compile-time checks that Runtime can drive tensors and compile programs.
var (
	_ tensor.Client    = (*Runtime)(nil)
	_ codegen.Compiler = (*Runtime)(nil)
)

// DefaultConfig returns a config using every core.
func DefaultConfig() Config {
	return internalcpu.DefaultConfig()
}

// New creates a CPU runtime with the default config.
//
// Example:
//
//	runtime := cpu.New()
//	x, err := tensor.FromData(runtime, data)
func New() *Runtime {
	return internalcpu.New()
}

// NewWithConfig creates a CPU runtime.
func NewWithConfig(cfg Config) *Runtime {
	return internalcpu.NewWithConfig(cfg)
}

// DetectFeatures queries the host CPU.
func DetectFeatures() Features {
	return internalcpu.DetectFeatures()
}

// PreferredVectorWidths returns the vector widths worth compiling on this host.
func PreferredVectorWidths() []int {
	return internalcpu.PreferredVectorWidths()
}
