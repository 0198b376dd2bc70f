package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// elemwiseKernel is an elementwise program compiled to WGSL.
type elemwiseKernel struct {
	*codegen.ElemwiseSource
	shader string
}

// compileElemwise specialises program for settings and generates its shader.
func compileElemwise(program *codegen.Program, settings codegen.Settings, workgroupSize compute.WorkgroupSize) (*elemwiseKernel, error) {
	source, err := codegen.NewElemwiseSource(program, settings, workgroupSize)
	if err != nil {
		return nil, err
	}
	shader, err := elemwiseShader(source)
	if err != nil {
		return nil, errors.WithMessagef(err, "compile %s", program.Name)
	}
	return &elemwiseKernel{ElemwiseSource: source, shader: shader}, nil
}

// wgslType returns the storage type of dtype. WGSL has no 64-bit or 8-bit
// scalars; booleans are stored as u32.
func wgslType(dtype tensor.DataType) (string, error) {
	switch dtype {
	case tensor.Float32:
		return "f32", nil
	case tensor.Int32:
		return "i32", nil
	case tensor.Uint32, tensor.Bool:
		return "u32", nil
	default:
		return "", errors.Wrapf(tensor.ErrDevice, "webgpu: unsupported dtype %s", dtype)
	}
}

// stridedOffsetFn maps a row-major index of the launch shape to the element
// offset of one binding. The info buffer holds
// [rank, numElems, shape[rank], strides of binding 0[rank], binding 1[rank], ...].
const stridedOffsetFn = `fn strided_offset(index: u32, binding: u32) -> u32 {
    let rank = info[0];
    var remaining = index;
    var result = 0u;
    for (var i = 0u; i < rank; i++) {
        let axis = rank - 1u - i;
        let extent = info[2u + axis];
        result += (remaining % extent) * info[2u + rank * (binding + 1u) + axis];
        remaining = remaining / extent;
    }
    return result;
}
`

// elemwiseShader generates the WGSL of an elementwise kernel. Inputs are
// bound first, then the outputs that are not written in place, then the
// layout info buffer. Each invocation loads Factor lanes, evaluates them and
// only then stores, so in-place outputs never clobber unread lanes.
func elemwiseShader(source *codegen.ElemwiseSource) (string, error) {
	program := source.Program
	factor := source.Settings.Factor
	wg := source.WorkgroupSize

	aliased := make([]bool, len(program.Inputs))
	for _, m := range source.Settings.Mappings {
		aliased[m.PosInput] = true
	}

	var sb strings.Builder
	binding := 0
	inputTypes := make([]string, len(program.Inputs))
	for i, dtype := range program.Inputs {
		t, err := wgslType(dtype)
		if err != nil {
			return "", err
		}
		inputTypes[i] = t
		access := "read"
		if aliased[i] {
			access = "read_write"
		}
		fmt.Fprintf(&sb, "@group(0) @binding(%d) var<storage, %s> input_%d: array<%s>;\n", binding, access, i, t)
		binding++
	}

	type target struct {
		buffer string
		slot   int
		dtype  string
	}
	targets := make([]target, len(program.Outputs))
	for pos, dtype := range program.Outputs {
		t, err := wgslType(dtype)
		if err != nil {
			return "", err
		}
		if in, ok := source.InputFor(pos); ok {
			targets[pos] = target{buffer: fmt.Sprintf("input_%d", in), slot: in, dtype: t}
			continue
		}
		fmt.Fprintf(&sb, "@group(0) @binding(%d) var<storage, read_write> output_%d: array<%s>;\n", binding, pos, t)
		targets[pos] = target{buffer: fmt.Sprintf("output_%d", pos), slot: binding, dtype: t}
		binding++
	}
	fmt.Fprintf(&sb, "@group(0) @binding(%d) var<storage, read> info: array<u32>;\n\n", binding)
	sb.WriteString(stridedOffsetFn)

	fmt.Fprintf(&sb, "\n@compute @workgroup_size(%d, %d, 1)\n", wg.X, wg.Y)
	sb.WriteString("fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {\n")
	fmt.Fprintf(&sb, "    let first = (gid.y * groups.x * %du + gid.x) * %du;\n", wg.X, factor)
	sb.WriteString("    let total = info[1];\n")
	sb.WriteString("    if (first >= total) {\n        return;\n    }\n")

	for i := range program.Inputs {
		fmt.Fprintf(&sb, "    var in_%d: array<f32, %d>;\n", i, factor)
	}
	for pos := range program.Outputs {
		fmt.Fprintf(&sb, "    var out_%d: array<f32, %d>;\n", pos, factor)
	}

	openLanes(&sb, factor)
	for i := range program.Inputs {
		fmt.Fprintf(&sb, "            in_%d[lane] = f32(input_%d[strided_offset(index, %du)]);\n", i, i, i)
	}
	closeLanes(&sb)

	openLanes(&sb, factor)
	for l := 0; l < program.Locals; l++ {
		fmt.Fprintf(&sb, "            var local_%d: f32;\n", l)
	}
	for _, op := range program.Ops {
		expr, err := wgslExpr(op, program.Scalars)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "            %s = %s;\n", wgslVar(op.Out, program.Scalars), expr)
	}
	closeLanes(&sb)

	openLanes(&sb, factor)
	for pos, t := range targets {
		fmt.Fprintf(&sb, "            %s[strided_offset(index, %du)] = %s(out_%d[lane]);\n", t.buffer, t.slot, t.dtype, pos)
	}
	closeLanes(&sb)

	sb.WriteString("}\n")
	return sb.String(), nil
}

func openLanes(sb *strings.Builder, factor int) {
	fmt.Fprintf(sb, "    for (var lane = 0u; lane < %du; lane++) {\n", factor)
	sb.WriteString("        let index = first + lane;\n")
	sb.WriteString("        if (index < total) {\n")
}

func closeLanes(sb *strings.Builder) {
	sb.WriteString("        }\n    }\n")
}

func wgslVar(v codegen.Variable, scalars []float64) string {
	switch v.Scope {
	case codegen.ScopeInput:
		return fmt.Sprintf("in_%d[lane]", v.Index)
	case codegen.ScopeOutput:
		return fmt.Sprintf("out_%d[lane]", v.Index)
	case codegen.ScopeLocal:
		return fmt.Sprintf("local_%d", v.Index)
	default:
		return fmt.Sprintf("f32(%g)", scalars[v.Index])
	}
}

func wgslExpr(op codegen.Operation, scalars []float64) (string, error) {
	if op.Lhs.Scope == codegen.ScopeScalar && !finite(scalars[op.Lhs.Index]) ||
		op.Op.IsBinary() && op.Rhs.Scope == codegen.ScopeScalar && !finite(scalars[op.Rhs.Index]) {
		return "", errors.Wrap(tensor.ErrDevice, "webgpu: non-finite scalar constant")
	}

	a := wgslVar(op.Lhs, scalars)
	var b string
	if op.Op.IsBinary() {
		b = wgslVar(op.Rhs, scalars)
	}

	switch op.Op {
	case codegen.OpAssign:
		return a, nil
	case codegen.OpAdd:
		return fmt.Sprintf("(%s + %s)", a, b), nil
	case codegen.OpSub:
		return fmt.Sprintf("(%s - %s)", a, b), nil
	case codegen.OpMul:
		return fmt.Sprintf("(%s * %s)", a, b), nil
	case codegen.OpDiv:
		return fmt.Sprintf("(%s / %s)", a, b), nil
	case codegen.OpMax:
		return fmt.Sprintf("max(%s, %s)", a, b), nil
	case codegen.OpMin:
		return fmt.Sprintf("min(%s, %s)", a, b), nil
	case codegen.OpPow:
		return fmt.Sprintf("pow(%s, %s)", a, b), nil
	case codegen.OpNeg:
		return fmt.Sprintf("(-%s)", a), nil
	case codegen.OpExp:
		return fmt.Sprintf("exp(%s)", a), nil
	case codegen.OpLog:
		return fmt.Sprintf("log(%s)", a), nil
	case codegen.OpSqrt:
		return fmt.Sprintf("sqrt(%s)", a), nil
	case codegen.OpAbs:
		return fmt.Sprintf("abs(%s)", a), nil
	case codegen.OpTanh:
		return fmt.Sprintf("tanh(%s)", a), nil
	case codegen.OpRelu:
		return fmt.Sprintf("max(%s, 0.0)", a), nil
	default:
		return "", errors.Wrapf(tensor.ErrDevice, "webgpu: unsupported operator %s", op.Op)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// intoContiguousShader copies binding 0 (strided) into binding 1 (row-major).
func intoContiguousShader(dtype tensor.DataType, wg compute.WorkgroupSize) (string, error) {
	t, err := wgslType(dtype)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "@group(0) @binding(0) var<storage, read> input: array<%s>;\n", t)
	fmt.Fprintf(&sb, "@group(0) @binding(1) var<storage, read_write> output: array<%s>;\n", t)
	sb.WriteString("@group(0) @binding(2) var<storage, read> info: array<u32>;\n\n")
	sb.WriteString(stridedOffsetFn)
	fmt.Fprintf(&sb, "\n@compute @workgroup_size(%d, %d, 1)\n", wg.X, wg.Y)
	sb.WriteString("fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {\n")
	fmt.Fprintf(&sb, "    let index = gid.y * groups.x * %du + gid.x;\n", wg.X)
	sb.WriteString("    if (index >= info[1]) {\n        return;\n    }\n")
	sb.WriteString("    output[index] = input[strided_offset(index, 0u)];\n")
	sb.WriteString("}\n")
	return sb.String(), nil
}

// matmulShader computes one output element per invocation:
// x tiles rows, y tiles columns and z walks the batch. info holds [M, K, N].
func matmulShader(dtype tensor.DataType, wg compute.WorkgroupSize) (string, error) {
	t, err := wgslType(dtype)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "@group(0) @binding(0) var<storage, read> lhs: array<%s>;\n", t)
	fmt.Fprintf(&sb, "@group(0) @binding(1) var<storage, read> rhs: array<%s>;\n", t)
	fmt.Fprintf(&sb, "@group(0) @binding(2) var<storage, read_write> out: array<%s>;\n", t)
	sb.WriteString("@group(0) @binding(3) var<storage, read> info: array<u32>;\n\n")
	fmt.Fprintf(&sb, "@compute @workgroup_size(%d, %d, 1)\n", wg.X, wg.Y)
	sb.WriteString("fn main(@builtin(global_invocation_id) gid: vec3<u32>) {\n")
	sb.WriteString("    let m = info[0];\n    let k = info[1];\n    let n = info[2];\n")
	sb.WriteString("    let row = gid.x;\n    let col = gid.y;\n    let batch = gid.z;\n")
	sb.WriteString("    if (row >= m || col >= n) {\n        return;\n    }\n")
	fmt.Fprintf(&sb, "    var sum = %s(0);\n", t)
	sb.WriteString("    for (var i = 0u; i < k; i++) {\n")
	sb.WriteString("        sum += lhs[batch * m * k + row * k + i] * rhs[batch * k * n + i * n + col];\n")
	sb.WriteString("    }\n")
	sb.WriteString("    out[batch * m * n + row * n + col] = sum;\n")
	sb.WriteString("}\n")
	return sb.String(), nil
}

// layoutInfo packs the launch shape and the strides of every binding,
// broadcast against that shape, in the layout read by strided_offset.
func layoutInfo(reference tensor.Shape, bindings []compute.Binding) ([]byte, error) {
	rank := len(reference)
	words := make([]uint32, 0, 2+rank*(1+len(bindings)))
	words = append(words, uint32(rank), uint32(reference.NumElements()))
	for _, extent := range reference {
		words = append(words, uint32(extent))
	}

	for _, b := range bindings {
		if len(b.Shape) > rank || len(b.Strides) != len(b.Shape) {
			return nil, errors.Wrapf(tensor.ErrDevice, "webgpu: binding %v/%v does not fit launch shape %v",
				b.Shape, b.Strides, reference)
		}
		diff := rank - len(b.Shape)
		for i := range reference {
			j := i - diff
			switch {
			case j < 0, b.Shape[j] == 1:
				words = append(words, 0)
			case b.Shape[j] == reference[i]:
				words = append(words, uint32(b.Strides[j]))
			default:
				return nil, errors.Wrapf(tensor.ErrDevice, "webgpu: binding shape %v does not broadcast to %v",
					b.Shape, reference)
			}
		}
	}

	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out, nil
}

// matmulInfo packs [M, K, N] for the matmul shader.
func matmulInfo(m, k, n int) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:4], uint32(m))
	binary.LittleEndian.PutUint32(out[4:8], uint32(k))
	binary.LittleEndian.PutUint32(out[8:12], uint32(n))
	return out
}
