//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU runtime for the fusion engine.
//
// Example:
//
//	import (
//	    "github.com/born-ml/fusion/backend/webgpu"
//	    "github.com/born-ml/fusion/tensor"
//	)
//
//	func main() {
//	    gpu, err := webgpu.New(webgpu.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer gpu.Release()
//
//	    x, err := tensor.FromData(gpu, data)
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/fusion/internal/backend/webgpu"
	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/tensor"
)

// Runtime is the WebGPU compute client and WGSL compiler.
type Runtime = internalwebgpu.Runtime

// Config controls the WebGPU runtime.
type Config = internalwebgpu.Config

// Compile-time checks that Runtime can drive tensors and compile programs.
var (
	_ tensor.Client    = (*Runtime)(nil)
	_ codegen.Compiler = (*Runtime)(nil)
)

// DefaultConfig returns 16x16 workgroups.
func DefaultConfig() Config {
	return internalwebgpu.DefaultConfig()
}

// New creates a WebGPU runtime. Call Release() when done to free GPU resources.
func New(cfg Config) (*Runtime, error) {
	return internalwebgpu.New(cfg)
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
