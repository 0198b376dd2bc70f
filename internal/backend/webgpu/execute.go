//go:build windows

package webgpu

import (
	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
)

// Compile-time interface check.
var _ codegen.Compiler = (*Runtime)(nil)

// Compile implements codegen.Compiler.
func (r *Runtime) Compile(program *codegen.Program, settings codegen.Settings) (compute.KernelSource, error) {
	size := uint32(r.cfg.WorkgroupSize)
	kernel, err := compileElemwise(program, settings, compute.WorkgroupSize{X: size, Y: size, Z: 1})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("webgpu: kernel compiled", "kernel", kernel.ID())
	return kernel, nil
}

// ElemSize implements codegen.Compiler. Booleans occupy a u32.
func (r *Runtime) ElemSize(dtype tensor.DataType) int {
	return dtype.Size()
}

// Execute implements compute.Client. The launch is submitted when Execute
// returns; Read waits for it.
func (r *Runtime) Execute(kernel compute.Kernel, bindings []compute.Binding) error {
	var (
		shader string
		info   []byte
		err    error
	)

	switch source := kernel.Source().(type) {
	case *elemwiseKernel:
		shader = source.shader
		info, err = r.elemwiseInfo(source, bindings)
	case compute.IntoContiguousSource:
		if len(bindings) != 2 {
			return errors.Wrapf(tensor.ErrDevice, "%s: expected 2 bindings, got %d", source.ID(), len(bindings))
		}
		shader, err = intoContiguousShader(source.DType, source.Metadata().WorkgroupSize)
		if err == nil {
			info, err = layoutInfo(bindings[0].Shape, bindings)
		}
	case compute.MatmulSource:
		if len(bindings) != 3 {
			return errors.Wrapf(tensor.ErrDevice, "%s: expected 3 bindings, got %d", source.ID(), len(bindings))
		}
		lhs, rhs := bindings[0].Shape, bindings[1].Shape
		rank := len(lhs)
		if rank < 2 || len(rhs) != rank {
			return errors.Wrapf(tensor.ErrDevice, "%s: bad ranks %v x %v", source.ID(), lhs, rhs)
		}
		shader, err = matmulShader(source.DType, source.Metadata().WorkgroupSize)
		info = matmulInfo(lhs[rank-2], lhs[rank-1], rhs[rank-1])
	default:
		return errors.Wrapf(tensor.ErrDevice, "webgpu: kernel source %T was not compiled by this runtime", source)
	}
	if err != nil {
		return err
	}

	return r.dispatch(kernel, shader, info, bindings)
}

// elemwiseInfo packs the layouts of the bound buffers against the launch shape.
func (r *Runtime) elemwiseInfo(k *elemwiseKernel, bindings []compute.Binding) ([]byte, error) {
	if want := len(k.Program.Inputs) + len(k.Metadata().Outputs); len(bindings) != want {
		return nil, errors.Wrapf(tensor.ErrDevice, "%s: expected %d bindings, got %d", k.ID(), want, len(bindings))
	}

	var reference tensor.Shape
	if ref := k.ReferenceInput(); ref >= 0 {
		reference = bindings[ref].Shape
	} else {
		reference = bindings[len(k.Program.Inputs)].Shape
	}
	return layoutInfo(reference, bindings)
}

func (r *Runtime) pipeline(id, code string) *wgpu.ComputePipeline {
	r.mu.RLock()
	pipeline, ok := r.pipelines[id]
	r.mu.RUnlock()
	if ok {
		return pipeline
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if pipeline, ok := r.pipelines[id]; ok {
		return pipeline
	}
	shader := r.device.CreateShaderModuleWGSL(code)
	pipeline = r.device.CreateComputePipelineSimple(nil, shader, "main")
	r.shaders[id] = shader
	r.pipelines[id] = pipeline
	return pipeline
}

func (r *Runtime) dispatch(kernel compute.Kernel, shader string, info []byte, bindings []compute.Binding) error {
	id := kernel.Source().ID()
	pipeline := r.pipeline(id, shader)

	entries := make([]wgpu.BindGroupEntry, 0, len(bindings)+1)
	for i, b := range bindings {
		mem, err := gpuBuffer(b.Handle)
		if err != nil {
			return err
		}
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), mem.buffer, 0, mem.capacity))
	}

	infoSize := align4(len(info))
	infoBuffer := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageStorage,
		Size:             infoSize,
		MappedAtCreation: wgpu.True,
	})
	defer infoBuffer.Release()
	copy(unsafeBytes(infoBuffer.GetMappedRange(0, infoSize), infoSize), info)
	infoBuffer.Unmap()
	entries = append(entries, wgpu.BufferBindingEntry(uint32(len(bindings)), infoBuffer, 0, infoSize))

	bindGroup := r.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	wg := kernel.WorkGroup()

	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	encoder := r.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(wg.X, wg.Y, max(wg.Z, 1))
	pass.End()
	r.queue.Submit(encoder.Finish(nil))

	r.memoryStats.launches.Add(1)
	return nil
}
