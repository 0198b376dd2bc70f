package cpu

import (
	"golang.org/x/sys/cpu"
)

// Features tracks the SIMD extensions relevant to vectorized kernels.
type Features struct {
	HasSSE4    bool
	HasAVX2    bool
	HasAVX512F bool
	HasNEON    bool
}

// DetectFeatures queries the host CPU.
func DetectFeatures() Features {
	return Features{
		HasSSE4:    cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX2:    cpu.X86.HasAVX2,
		HasAVX512F: cpu.X86.HasAVX512F,
		HasNEON:    cpu.ARM64.HasASIMD,
	}
}

// VectorWidths returns the float32 lane counts worth compiling a vectorized
// family for, in ascending order.
func (f Features) VectorWidths() []int {
	widths := []int{2, 4}
	if f.HasAVX2 {
		widths = append(widths, 8)
	}
	if f.HasAVX512F {
		widths = append(widths, 16)
	}
	return widths
}

// PreferredVectorWidths returns the vector widths for the host CPU.
func PreferredVectorWidths() []int {
	return DetectFeatures().VectorWidths()
}
