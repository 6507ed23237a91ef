// Package metaltest provides an in-memory metal.Device and a dispatch
// interpreter so kernel selection, argument binding, and launch geometry can
// be exercised and executed without a GPU.
package metaltest

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/born-ml/fuse/internal/metal"
	"github.com/born-ml/fuse/internal/tensor"
)

// Device is a fake metal.Device. Libraries hold their generated source text
// instead of compiled code, and kernel lookup checks the host_name
// annotation really exists in that source.
type Device struct {
	// MaxThreads is the threadgroup capacity every kernel reports.
	MaxThreads int

	cache *metal.LibraryCache

	mu       sync.Mutex
	builds   map[string]int
	encoders []*Encoder
}

// NewDevice returns a fake device whose kernels report the strided
// threadgroup capacity.
func NewDevice() *Device {
	d := &Device{
		MaxThreads: metal.StridedThreadgroupSize,
		builds:     make(map[string]int),
	}
	d.cache = metal.NewLibraryCache(func(name, source string) (metal.Library, error) {
		return &Library{label: name, Source: source}, nil
	})
	return d
}

// GetLibrary builds and caches source under name.
func (d *Device) GetLibrary(name string, build func() (string, error)) (metal.Library, error) {
	return d.cache.Get(name, func() (string, error) {
		d.mu.Lock()
		d.builds[name]++
		d.mu.Unlock()
		return build()
	})
}

// Builds returns how many times the build closure ran for name.
func (d *Device) Builds(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.builds[name]
}

// GetKernel resolves a kernel by its host_name annotation.
func (d *Device) GetKernel(lib metal.Library, name string) (metal.Kernel, error) {
	l, ok := lib.(*Library)
	if !ok {
		return nil, fmt.Errorf("metaltest: library %T not built by this device", lib)
	}
	if !strings.Contains(l.Source, fmt.Sprintf("[[host_name(%q)]]", name)) {
		return nil, fmt.Errorf("metaltest: library %s has no kernel %q", l.label, name)
	}
	return &Kernel{name: name, maxThreads: d.MaxThreads}, nil
}

// NewEncoder returns a fresh recording encoder.
func (d *Device) NewEncoder(stream int) metal.CommandEncoder {
	e := &Encoder{Stream: stream, Args: make(map[int]Arg)}
	d.mu.Lock()
	d.encoders = append(d.encoders, e)
	d.mu.Unlock()
	return e
}

// LastEncoder returns the most recently created encoder, or nil.
func (d *Device) LastEncoder() *Encoder {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.encoders) == 0 {
		return nil
	}
	return d.encoders[len(d.encoders)-1]
}

// Library is a fake compiled library carrying its source text.
type Library struct {
	label  string
	Source string
}

// Label returns the library's cache name.
func (l *Library) Label() string { return l.label }

// Kernel is a fake compiled kernel.
type Kernel struct {
	name       string
	maxThreads int
}

// Name returns the kernel's host_name.
func (k *Kernel) Name() string { return k.name }

// MaxTotalThreadsPerThreadgroup returns the device's configured capacity.
func (k *Kernel) MaxTotalThreadsPerThreadgroup() int { return k.maxThreads }

// Arg is one recorded argument binding: an array or inline bytes.
type Arg struct {
	Array tensor.Array
	Bytes []byte
}

// Encoder records every binding and the dispatched geometry.
type Encoder struct {
	Stream     int
	Kernel     metal.Kernel
	Args       map[int]Arg
	Grid       metal.Size
	Group      metal.Size
	Dispatched bool
}

// SetKernel records the kernel selection.
func (e *Encoder) SetKernel(k metal.Kernel) { e.Kernel = k }

// SetArray records an array binding.
func (e *Encoder) SetArray(a tensor.Array, slot int) {
	e.Args[slot] = Arg{Array: a}
}

// SetBytes records an inline data binding.
func (e *Encoder) SetBytes(data []byte, slot int) {
	e.Args[slot] = Arg{Bytes: slices.Clone(data)}
}

// DispatchThreads records the launch geometry.
func (e *Encoder) DispatchThreads(grid, group metal.Size) {
	e.Grid = grid
	e.Group = group
	e.Dispatched = true
}

// Allocator attaches host storage to outputs. With Donate set it aliases an
// output onto the first donatable input of matching byte size instead of
// allocating; with NoAlloc set it leaves outputs untouched.
type Allocator struct {
	NoAlloc bool
	Donate  bool
	Calls   int
}

// AllocateOutputs implements metal.OutputAllocator over HostArrays.
func (a *Allocator) AllocateOutputs(inputs, outputs []tensor.Array, donatable []bool, contiguous bool) error {
	a.Calls++
	if a.NoAlloc {
		return nil
	}
	used := make(map[int]bool)
	for _, out := range outputs {
		h, ok := out.(*tensor.HostArray)
		if !ok {
			return fmt.Errorf("metaltest: output %T is not a HostArray", out)
		}
		if h.Data() != nil {
			continue
		}
		if a.Donate && contiguous {
			if i := a.donor(inputs, donatable, used, h); i >= 0 {
				used[i] = true
				h.SetData(inputs[i].Data())
				continue
			}
		}
		h.Alloc()
	}
	return nil
}

func (a *Allocator) donor(inputs []tensor.Array, donatable []bool, used map[int]bool, out *tensor.HostArray) int {
	want := out.Size() * out.DType().Size()
	for i, in := range inputs {
		if donatable[i] && !used[i] && in.Data() != nil && len(in.Data()) == want {
			return i
		}
	}
	return -1
}

// NewStream bundles a fresh fake device and allocator into a metal.Stream.
func NewStream() (metal.Stream, *Device, *Allocator) {
	d := NewDevice()
	a := &Allocator{}
	return metal.Stream{Device: d, Allocator: a, Index: 0}, d, a
}
