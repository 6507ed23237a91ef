//go:build windows

// Package webgpu executes fused elementwise tapes through WebGPU compute
// shaders. It is the portable sibling of the Metal dispatcher: a tape is
// lowered to WGSL once per signature, cached as a shader module and
// pipeline, and replayed over dense arrays.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/fuse/internal/codegen"
	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/tensor"
)

// Runner owns a WebGPU device together with the shader and pipeline caches
// shared by every tape it executes.
type Runner struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	pool *BufferPool
}

// New initializes a WebGPU device and returns a runner bound to it.
// Returns an error if WebGPU is not available or initialization fails.
func New() (runner *Runner, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			runner = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Runner{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
		pool:      NewBufferPool(device),
	}, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
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

// Release frees the device and every cached shader, pipeline, and pooled
// buffer. The runner must not be used afterwards.
func (r *Runner) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pool != nil {
		r.pool.Clear()
		r.pool = nil
	}
	for _, p := range r.pipelines {
		p.Release()
	}
	r.pipelines = nil
	for _, s := range r.shaders {
		s.Release()
	}
	r.shaders = nil

	if r.queue != nil {
		r.queue.Release()
		r.queue = nil
	}
	if r.device != nil {
		r.device.Release()
		r.device = nil
	}
	if r.adapter != nil {
		r.adapter.Release()
		r.adapter = nil
	}
	if r.instance != nil {
		r.instance.Release()
		r.instance = nil
	}
}

// Run executes the tape over concrete arrays and returns one dense host
// array per tape output. Inputs line up with the tape's template inputs one
// to one, including captured constants. Every addressed input must be row
// contiguous with a single shared shape; broadcasting and strided views
// belong to the Metal dispatcher.
func (r *Runner) Run(t *graph.Tape, inputs []tensor.Array) ([]*tensor.HostArray, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("webgpu: %w", err)
	}
	if len(inputs) != len(t.Inputs) {
		return nil, fmt.Errorf("webgpu: got %d inputs, the tape has %d", len(inputs), len(t.Inputs))
	}

	var outShape tensor.Shape
	for i, in := range inputs {
		if in.DType() != t.Inputs[i].DType() {
			return nil, fmt.Errorf("webgpu: input %d is %s, the tape expects %s", i, in.DType(), t.Inputs[i].DType())
		}
		if t.ConstantAt(i) || tensor.IsScalar(in) {
			continue
		}
		if !in.RowContiguous() {
			return nil, fmt.Errorf("webgpu: input %d is not row contiguous", i)
		}
		if outShape == nil {
			outShape = in.Shape()
		} else if !in.Shape().Equal(outShape) {
			return nil, fmt.Errorf("webgpu: input %d shape %v differs from %v", i, in.Shape(), outShape)
		}
	}
	if outShape == nil {
		return nil, fmt.Errorf("webgpu: tape has no array input to take the output shape from")
	}

	name := graph.LibraryName(t)
	shader, err := r.shaderFor(t, name)
	if err != nil {
		return nil, err
	}
	pipeline := r.getOrCreatePipeline(name, shader)

	numElements := outShape.NumElements()

	// Upload the non-constant inputs in binding order. Constants are baked
	// into the shader source and bind nothing.
	var entries []wgpu.BindGroupEntry
	var uploads []*wgpu.Buffer
	defer func() {
		for _, buf := range uploads {
			buf.Release()
		}
	}()
	binding := uint32(0)
	for i, in := range inputs {
		if t.ConstantAt(i) {
			continue
		}
		if in.Data() == nil {
			return nil, fmt.Errorf("webgpu: input %d has no data", i)
		}
		buf := r.createBuffer(in.Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
		uploads = append(uploads, buf)
		entries = append(entries, wgpu.BufferBindingEntry(binding, buf, 0, uint64(len(in.Data()))))
		binding++
	}

	// Output storage cycles through the pool across launches.
	outUsage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	outBufs := make([]*wgpu.Buffer, len(t.Outputs))
	outSizes := make([]uint64, len(t.Outputs))
	defer func() {
		for j, buf := range outBufs {
			if buf != nil {
				r.pool.Release(buf, outSizes[j], outUsage)
			}
		}
	}()
	for j, out := range t.Outputs {
		size := uint64(numElements * t.DTypeOf(out).Size())
		outBufs[j] = r.pool.Acquire(size, outUsage)
		outSizes[j] = size
		entries = append(entries, wgpu.BufferBindingEntry(binding, outBufs[j], 0, size))
		binding++
	}

	// Params uniform carries the element count, 16-byte aligned.
	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], uint32(numElements))
	bufferParams := r.createUniformBuffer(params)
	defer bufferParams.Release()
	entries = append(entries, wgpu.BufferBindingEntry(binding, bufferParams, 0, 16))

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := r.device.CreateBindGroupSimple(bindGroupLayout, entries)
	defer bindGroup.Release()

	encoder := r.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	workgroups := uint32((numElements + codegen.WorkgroupSize - 1) / codegen.WorkgroupSize)
	computePass.DispatchWorkgroups(workgroups, 1, 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	r.queue.Submit(cmdBuffer)

	outs := make([]*tensor.HostArray, len(t.Outputs))
	for j, out := range t.Outputs {
		data, err := r.readBuffer(outBufs[j], outSizes[j])
		if err != nil {
			return nil, err
		}
		h := tensor.NewHostNoData(t.DTypeOf(out), outShape)
		h.SetData(data)
		outs[j] = h
	}
	return outs, nil
}

// shaderFor returns the cached shader module for the tape's signature,
// generating and compiling the WGSL source on first use.
func (r *Runner) shaderFor(t *graph.Tape, name string) (*wgpu.ShaderModule, error) {
	r.mu.RLock()
	if shader, exists := r.shaders[name]; exists {
		r.mu.RUnlock()
		return shader, nil
	}
	r.mu.RUnlock()

	source, err := codegen.BuildWGSLContiguous(t, name)
	if err != nil {
		return nil, err
	}
	shader := r.device.CreateShaderModuleWGSL(source)

	r.mu.Lock()
	r.shaders[name] = shader
	r.mu.Unlock()

	return shader, nil
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one
// with an auto layout.
func (r *Runner) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	r.mu.RLock()
	if pipeline, exists := r.pipelines[name]; exists {
		r.mu.RUnlock()
		return pipeline
	}
	r.mu.RUnlock()

	pipeline := r.device.CreateComputePipelineSimple(nil, shader, "main")

	r.mu.Lock()
	r.pipelines[name] = pipeline
	r.mu.Unlock()

	return pipeline
}

// createBuffer creates a GPU buffer and uploads data through the mapped
// creation window.
func (r *Runner) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// createUniformBuffer creates a uniform buffer padded to the 16-byte
// alignment uniform blocks require.
func (r *Runner) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15

	buffer := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// readBuffer copies a storage buffer back to CPU memory through a pooled
// staging buffer, since storage buffers cannot be mapped directly.
func (r *Runner) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	usage := wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
	staging := r.pool.Acquire(size, usage)
	defer r.pool.Release(staging, size, usage)

	encoder := r.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	cmdBuffer := encoder.Finish(nil)
	r.queue.Submit(cmdBuffer)

	if err := staging.MapAsync(r.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}

	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)
	staging.Unmap()

	return result, nil
}
