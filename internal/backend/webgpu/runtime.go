//go:build windows

package webgpu

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
)

// Config controls the WebGPU runtime.
type Config struct {
	WorkgroupSize int // Square workgroup edge of generated shaders.
	Logger        *slog.Logger
}

// DefaultConfig returns 16x16 workgroups.
func DefaultConfig() Config {
	return Config{
		WorkgroupSize: compute.DefaultWorkgroupSize,
		Logger:        slog.Default(),
	}
}

// Runtime is the WebGPU compute client and compiler.
type Runtime struct {
	cfg    Config
	logger *slog.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     *wgpu.AdapterInfo

	// Shader and pipeline cache, keyed by kernel ID.
	mu        sync.RWMutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline

	// queueMu serialises submissions and read-backs.
	queueMu sync.Mutex
	pool    *bufferPool

	// Memory tracking
	memoryStats struct {
		totalAllocatedBytes atomic.Uint64
		activeBuffers       atomic.Int64
		launches            atomic.Uint64
	}
}

// Compile-time interface checks.
var _ compute.Client = (*Runtime)(nil)

// New creates a WebGPU runtime on the default high-performance adapter.
// Returns an error if WebGPU is not available or initialization fails.
func New(cfg Config) (runtime *Runtime, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			runtime = nil
			err = errors.Wrapf(tensor.ErrDevice, "webgpu: native library not available: %v", r)
		}
	}()

	if cfg.WorkgroupSize <= 0 {
		cfg.WorkgroupSize = compute.DefaultWorkgroupSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errors.Wrapf(tensor.ErrDevice, "webgpu: request adapter: %v", err)
	}
	info := adapter.GetInfo()

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrapf(tensor.ErrDevice, "webgpu: request device: %v", err)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(tensor.ErrDevice, "webgpu: device has no queue")
	}

	r := &Runtime{
		cfg:       cfg,
		logger:    logger,
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		info:      &info,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
		pool:      newBufferPool(device),
	}
	logger.Debug("webgpu: runtime created", "adapter", r.Name())
	return r, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Release frees every GPU object. Tensors of this runtime must not be used afterwards.
func (r *Runtime) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pool.clear()
	for _, p := range r.pipelines {
		p.Release()
	}
	r.pipelines = nil
	for _, s := range r.shaders {
		s.Release()
	}
	r.shaders = nil

	r.queue.Release()
	r.device.Release()
	r.adapter.Release()
	r.instance.Release()
}

// Name returns the runtime name.
func (r *Runtime) Name() string {
	if r.info != nil {
		return fmt.Sprintf("WebGPU (%s %s)", r.info.Name, r.info.VendorName)
	}
	return "WebGPU"
}

// Device implements compute.Client.
func (r *Runtime) Device() tensor.Device {
	return tensor.WebGPU
}

// gpuMemory is a storage buffer. size is the logical byte size; capacity
// is the (4-byte aligned, possibly pooled) allocation.
type gpuMemory struct {
	buffer   *wgpu.Buffer
	size     int
	capacity uint64
}

// Size implements compute.Memory.
func (m *gpuMemory) Size() int {
	return m.size
}

func align4(size int) uint64 {
	return uint64(max(size, 4)+3) &^ 3
}

func (r *Runtime) newHandle(mem *gpuMemory) *compute.Handle {
	r.memoryStats.totalAllocatedBytes.Add(mem.capacity)
	r.memoryStats.activeBuffers.Add(1)
	return compute.NewHandle(mem, func(compute.Memory) {
		r.memoryStats.activeBuffers.Add(-1)
		r.pool.release(mem.buffer, mem.capacity)
	})
}

// Create implements compute.Client.
func (r *Runtime) Create(data []byte) (*compute.Handle, error) {
	size := align4(len(data))
	buffer := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            storageUsage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	copy(unsafeBytes(buffer.GetMappedRange(0, size), size), data)
	buffer.Unmap()

	return r.newHandle(&gpuMemory{buffer: buffer, size: len(data), capacity: size}), nil
}

// Empty implements compute.Client. Contents are undefined.
func (r *Runtime) Empty(size int) (*compute.Handle, error) {
	if size < 0 {
		return nil, errors.Wrapf(tensor.ErrDevice, "webgpu: negative allocation size %d", size)
	}
	buffer, capacity := r.pool.acquire(align4(size))
	return r.newHandle(&gpuMemory{buffer: buffer, size: size, capacity: capacity}), nil
}

// Read implements compute.Client. It waits for every submitted launch.
func (r *Runtime) Read(handle *compute.Handle) ([]byte, error) {
	mem, err := gpuBuffer(handle)
	if err != nil {
		return nil, err
	}
	size := align4(mem.size)

	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	staging := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := r.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(mem.buffer, 0, staging, 0, size)
	r.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(r.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, errors.Wrapf(tensor.ErrDevice, "webgpu: map staging buffer: %v", err)
	}
	out := make([]byte, mem.size)
	copy(out, unsafeBytes(staging.GetMappedRange(0, size), size))
	staging.Unmap()

	return out, nil
}

// ReadAsync implements compute.Client.
func (r *Runtime) ReadAsync(ctx context.Context, handle *compute.Handle) ([]byte, error) {
	return compute.ReadAsync(ctx, func() ([]byte, error) {
		return r.Read(handle)
	})
}

// MemoryStats reports allocation counters.
func (r *Runtime) MemoryStats() (totalAllocatedBytes uint64, activeBuffers int64, launches uint64) {
	return r.memoryStats.totalAllocatedBytes.Load(),
		r.memoryStats.activeBuffers.Load(),
		r.memoryStats.launches.Load()
}

// PoolStats reports buffer pool counters.
func (r *Runtime) PoolStats() (allocated, released, hits, misses uint64, idle int) {
	return r.pool.stats()
}

func unsafeBytes(ptr unsafe.Pointer, size uint64) []byte {
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	return unsafe.Slice((*byte)(ptr), size)
}

func gpuBuffer(handle *compute.Handle) (*gpuMemory, error) {
	if handle == nil {
		return nil, errors.Wrap(tensor.ErrDevice, "webgpu: nil buffer handle")
	}
	mem, ok := handle.Memory().(*gpuMemory)
	if !ok {
		return nil, errors.Wrapf(tensor.ErrDevice, "webgpu: buffer of type %T belongs to another runtime", handle.Memory())
	}
	return mem, nil
}
