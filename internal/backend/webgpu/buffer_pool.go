//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// sizeClass buckets pooled buffers.
type sizeClass int

const (
	smallClass  sizeClass = iota // < 4KB
	mediumClass                  // 4KB - 1MB
	largeClass                   // >= 1MB
	numClasses
)

const (
	smallThreshold  = 4 * 1024
	mediumThreshold = 1024 * 1024
	maxPoolSize     = 100 // Max idle buffers per class
)

// storageUsage is the usage of every tensor buffer.
const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

// bufferPool recycles storage buffers released by tensor handles.
type bufferPool struct {
	device *wgpu.Device

	mu      sync.Mutex
	classes [numClasses][]pooledBuffer

	// Statistics
	allocated uint64
	released  uint64
	hits      uint64
	misses    uint64
}

func newBufferPool(device *wgpu.Device) *bufferPool {
	return &bufferPool{device: device}
}

func classify(size uint64) sizeClass {
	switch {
	case size < smallThreshold:
		return smallClass
	case size < mediumThreshold:
		return mediumClass
	default:
		return largeClass
	}
}

// acquire returns an idle buffer of at least size bytes or creates one.
// Returned buffers are not cleared.
func (p *bufferPool) acquire(size uint64) (*wgpu.Buffer, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(size)
	for i, pb := range p.classes[class] {
		if pb.size >= size {
			p.classes[class] = append(p.classes[class][:i], p.classes[class][i+1:]...)
			p.hits++
			return pb.buffer, pb.size
		}
	}

	p.misses++
	p.allocated++
	buffer := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: storageUsage,
		Size:  size,
	})
	return buffer, size
}

// release returns a buffer to its class, or frees it when the class is full.
func (p *bufferPool) release(buffer *wgpu.Buffer, size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.released++
	class := classify(size)
	if len(p.classes[class]) >= maxPoolSize {
		buffer.Release()
		return
	}
	p.classes[class] = append(p.classes[class], pooledBuffer{buffer: buffer, size: size})
}

// clear frees every idle buffer.
func (p *bufferPool) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for class := range p.classes {
		for _, pb := range p.classes[class] {
			pb.buffer.Release()
		}
		p.classes[class] = nil
	}
}

// stats returns pool counters and the number of idle buffers.
func (p *bufferPool) stats() (allocated, released, hits, misses uint64, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.classes {
		idle += len(c)
	}
	return p.allocated, p.released, p.hits, p.misses, idle
}
