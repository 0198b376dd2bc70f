// Package main provides born-fusion, a CLI reporting which fused kernel
// variant runs a given call and how its outputs are allocated.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/born-ml/fusion/backend/cpu"
	"github.com/born-ml/fusion/fusion"
	"github.com/born-ml/fusion/tensor"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("born-fusion %s\n", version)
		return
	}

	var (
		shapeFlag  = flag.String("shape", "2,3,8", "comma separated shape of every input")
		inputs     = flag.Int("inputs", 2, "number of inputs summed by the program")
		widthsFlag = flag.String("widths", "", "comma separated vector widths (default: host SIMD widths)")
		shared     = flag.Bool("shared", false, "keep an extra reference to every input")
		transpose  = flag.Bool("transpose", false, "pass input 0 as a transposed view")
		noInplace  = flag.Bool("no-inplace", false, "disable in-place kernels")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *shapeFlag, *widthsFlag, *inputs, *shared, *transpose, !*noInplace); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

func run(logger *slog.Logger, shapeFlag, widthsFlag string, numInputs int, shared, transpose, inplace bool) error {
	dims, err := parseInts(shapeFlag)
	if err != nil {
		return err
	}
	shape := tensor.Shape(dims)
	if err := shape.Validate(); err != nil {
		return err
	}
	if numInputs < 1 {
		return fmt.Errorf("need at least one input, got %d", numInputs)
	}

	widths, err := parseInts(widthsFlag)
	if err != nil {
		return err
	}
	if widths == nil {
		widths = cpu.PreferredVectorWidths()
	}

	runtime := cpu.NewWithConfig(cpu.Config{Parallel: cpu.DefaultConfig().Parallel, Logger: logger})
	cfg := fusion.Config{VectorWidths: widths, Inplace: inplace, Logger: logger}

	program, err := sumRelu(numInputs)
	if err != nil {
		return err
	}
	selector, err := fusion.Build(runtime, program, fusion.InferInplaceMappings(program), cfg)
	if err != nil {
		return err
	}

	xs := make([]*tensor.Tensor, numInputs)
	for i := range xs {
		x, err := newInput(runtime, shape, i == 0 && transpose)
		if err != nil {
			return err
		}
		xs[i] = x
	}
	var extra []*tensor.Tensor
	if shared {
		for _, x := range xs {
			extra = append(extra, x.Clone())
		}
	}
	defer func() {
		for _, x := range extra {
			x.Release()
		}
	}()

	handles := make([]fusion.Handle, len(xs))
	descs := make([]tensor.Description, len(xs))
	for i, x := range xs {
		handles[i] = fusion.Handle{Handle: x.Handle(), Strides: x.Strides()}
		descs[i] = x.Description()
		fmt.Printf("input %d: shape=%v strides=%v exclusive=%t\n", i, []int(x.Shape()), []int(x.Strides()), x.CanMut())
	}
	outputs := []tensor.Description{{Shape: shape, DType: tensor.Float32}}

	for i, p := range selector.Priorities(handles, descs, outputs) {
		fmt.Printf("family %-8s %s\n", familyName(i, widths), p)
	}

	selected, err := selector.Select(handles, descs, outputs)
	if err != nil {
		return err
	}
	wg := selected.Kernel.WorkGroup()
	fmt.Printf("selected: %s grid=%dx%dx%d\n", selected.Kernel.Source().ID(), wg.X, wg.Y, wg.Z)
	for pos, info := range selected.Outputs {
		fmt.Printf("output %d: %s\n", pos, info)
	}

	exec := fusion.NewExecutor(runtime, selector, cfg)
	outs, err := exec.Execute(xs, outputs)
	if err != nil {
		return err
	}
	defer outs[0].Release()

	data, err := tensor.IntoDataSync(outs[0])
	if err != nil {
		return err
	}
	values := data.AsFloat32()
	fmt.Printf("result: %v\n", values[:min(len(values), 8)])
	return nil
}

// sumRelu builds relu(x0 + x1 + ... + xn-1).
func sumRelu(n int) (*fusion.Program, error) {
	b := fusion.NewBuilder(fmt.Sprintf("sum%d_relu", n))
	acc := b.Input(tensor.Float32)
	for i := 1; i < n; i++ {
		acc = b.Add(acc, b.Input(tensor.Float32))
	}
	b.Output(b.Relu(acc), tensor.Float32)
	return b.Build()
}

// newInput uploads 0, 1, 2, ... laid out row-major under shape, or as the
// transpose of the last two axes when transposed is set.
func newInput(runtime *cpu.Runtime, shape tensor.Shape, transposed bool) (*tensor.Tensor, error) {
	values := make([]float32, shape.NumElements())
	for i := range values {
		values[i] = float32(i)
	}

	rank := len(shape)
	if !transposed || rank < 2 {
		data, err := tensor.FromSlice(values, shape)
		if err != nil {
			return nil, err
		}
		return tensor.FromData(runtime, data)
	}

	stored := shape.Clone()
	stored[rank-1], stored[rank-2] = stored[rank-2], stored[rank-1]
	data, err := tensor.FromSlice(values, stored)
	if err != nil {
		return nil, err
	}
	x, err := tensor.FromData(runtime, data)
	if err != nil {
		return nil, err
	}
	defer x.Release()
	return tensor.SwapDims(x, rank-2, rank-1)
}

func familyName(i int, widths []int) string {
	if i == 0 {
		return "scalar"
	}
	sorted := slices.Clone(widths)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	sorted = slices.DeleteFunc(sorted, func(w int) bool { return w <= 1 })
	return fmt.Sprintf("vec%d", sorted[i-1])
}
