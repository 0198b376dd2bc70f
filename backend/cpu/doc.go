// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go host runtime for the fusion engine.
//
// # Overview
//
// The runtime implements both the compute client (buffers in Go memory,
// kernel launches) and the compiler (elementwise programs are interpreted):
//   - Pure Go implementation (no CGO)
//   - Strided and broadcast operands
//   - Vectorized kernel families matching the host SIMD width
//   - Matrix multiplication through gonum BLAS
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/fusion/backend/cpu"
//	    "github.com/born-ml/fusion/fusion"
//	    "github.com/born-ml/fusion/tensor"
//	)
//
//	func main() {
//	    runtime := cpu.New()
//	    cfg := fusion.DefaultConfig()
//	    cfg.VectorWidths = cpu.PreferredVectorWidths()
//	    selector, err := fusion.Build(runtime, program, fusion.InferInplaceMappings(program), cfg)
//	}
package cpu
