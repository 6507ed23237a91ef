//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

const (
	// Size thresholds for the pool's three classes.
	smallThreshold    = 4 * 1024    // 4KB
	mediumThreshold   = 1024 * 1024 // 1MB
	maxPooledPerClass = 32
)

// pooledBuffer remembers the size and usage a buffer was released with so a
// later Acquire can match it.
type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
	usage  wgpu.BufferUsage
}

// BufferPool recycles GPU buffers between dispatches. Buffers are grouped
// into three size classes and matched on usage flags, so the output and
// staging buffers of repeated launches stop hitting the allocator.
type BufferPool struct {
	device *wgpu.Device

	mu     sync.Mutex
	small  []*pooledBuffer
	medium []*pooledBuffer
	large  []*pooledBuffer

	allocated uint64
	reused    uint64
}

// NewBufferPool returns an empty pool allocating from device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{device: device}
}

// Acquire returns a buffer of at least size bytes carrying every requested
// usage flag, reusing a pooled buffer when one fits.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := p.class(size)
	for i, pb := range *class {
		if pb.size >= size && pb.usage&usage == usage {
			*class = append((*class)[:i], (*class)[i+1:]...)
			p.reused++
			return pb.buffer
		}
	}

	p.allocated++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
}

// Release returns a buffer to the pool for reuse. When the class is full the
// buffer is released immediately instead.
func (p *BufferPool) Release(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := p.class(size)
	if len(*class) >= maxPooledPerClass {
		buffer.Release()
		return
	}
	*class = append(*class, &pooledBuffer{buffer: buffer, size: size, usage: usage})
}

// Clear releases every pooled buffer.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pool := range [][]*pooledBuffer{p.small, p.medium, p.large} {
		for _, pb := range pool {
			pb.buffer.Release()
		}
	}
	p.small, p.medium, p.large = nil, nil, nil
}

// Stats reports how many buffers the pool allocated, how many Acquire calls
// a pooled buffer served, and how many buffers sit pooled right now.
func (p *BufferPool) Stats() (allocated, reused uint64, pooled int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated, p.reused, len(p.small) + len(p.medium) + len(p.large)
}

func (p *BufferPool) class(size uint64) *[]*pooledBuffer {
	switch {
	case size < smallThreshold:
		return &p.small
	case size < mediumThreshold:
		return &p.medium
	default:
		return &p.large
	}
}
