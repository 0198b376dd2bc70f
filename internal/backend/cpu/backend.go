// Package cpu implements a host-memory runtime for the fusion engine: a
// compute client whose buffers live in Go memory and a compiler that
// interprets elementwise programs.
package cpu

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/parallel"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// Config controls the CPU runtime.
type Config struct {
	Parallel      parallel.Config // Chunking of kernel invocations across goroutines.
	WorkgroupSize int             // Square workgroup edge declared by compiled kernels.
	Logger        *slog.Logger
}

// DefaultConfig returns a config using every core.
func DefaultConfig() Config {
	return Config{
		Parallel:      parallel.DefaultConfig(),
		WorkgroupSize: compute.DefaultWorkgroupSize,
		Logger:        slog.Default(),
	}
}

// Runtime is the CPU compute client and compiler.
// Launches complete before Execute returns, so reads never wait.
type Runtime struct {
	cfg    Config
	logger *slog.Logger

	// Memory tracking
	memoryStats struct {
		totalAllocatedBytes atomic.Uint64
		activeBuffers       atomic.Int64
		launches            atomic.Uint64
	}
}

// Compile-time interface checks.
var _ compute.Client = (*Runtime)(nil)

// New creates a CPU runtime with the default config.
func New() *Runtime {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a CPU runtime.
func NewWithConfig(cfg Config) *Runtime {
	if cfg.WorkgroupSize <= 0 {
		cfg.WorkgroupSize = compute.DefaultWorkgroupSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{cfg: cfg, logger: logger}
}

// Name returns the runtime name.
func (r *Runtime) Name() string {
	return "CPU"
}

// Device implements compute.Client.
func (r *Runtime) Device() tensor.Device {
	return tensor.CPU
}

// hostMemory is a buffer in Go memory.
type hostMemory struct {
	bytes []byte
}

// Size implements compute.Memory.
func (m *hostMemory) Size() int {
	return len(m.bytes)
}

func (r *Runtime) newHandle(bytes []byte) *compute.Handle {
	r.memoryStats.totalAllocatedBytes.Add(uint64(len(bytes)))
	r.memoryStats.activeBuffers.Add(1)
	return compute.NewHandle(&hostMemory{bytes: bytes}, func(compute.Memory) {
		r.memoryStats.activeBuffers.Add(-1)
	})
}

// Create implements compute.Client.
func (r *Runtime) Create(data []byte) (*compute.Handle, error) {
	bytes := make([]byte, len(data))
	copy(bytes, data)
	return r.newHandle(bytes), nil
}

// Empty implements compute.Client. Host buffers are zeroed.
func (r *Runtime) Empty(size int) (*compute.Handle, error) {
	if size < 0 {
		return nil, errors.Wrapf(tensor.ErrDevice, "cpu: negative allocation size %d", size)
	}
	return r.newHandle(make([]byte, size)), nil
}

// Read implements compute.Client.
func (r *Runtime) Read(handle *compute.Handle) ([]byte, error) {
	mem, err := hostBytes(handle)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(mem))
	copy(out, mem)
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

func hostBytes(handle *compute.Handle) ([]byte, error) {
	if handle == nil {
		return nil, errors.Wrap(tensor.ErrDevice, "cpu: nil buffer handle")
	}
	mem, ok := handle.Memory().(*hostMemory)
	if !ok {
		return nil, errors.Wrapf(tensor.ErrDevice, "cpu: buffer of type %T belongs to another runtime", handle.Memory())
	}
	return mem.bytes, nil
}
