// Package metal abstracts the slice of the Metal compute API the fused
// kernel dispatcher needs: library compilation, kernel lookup, argument
// binding, and grid dispatch. Implementations wrap a real device; tests use
// the in-memory fake from the metaltest subpackage.
package metal

import "github.com/born-ml/fuse/internal/tensor"

const (
	// MaxKernelArgs is the number of argument buffer slots a kernel may
	// bind. Generated kernels that need more must be rejected before
	// compilation.
	MaxKernelArgs = 31

	// StridedThreadgroupSize is the exact threadgroup capacity the strided
	// launch decomposition is built around. A pipeline reporting anything
	// else cannot be dispatched on the strided path.
	StridedThreadgroupSize = 1024

	// MaxStaticRank is the highest rank with a statically unrolled
	// addressing variant. Higher ranks fall back to the dynamic variant.
	MaxStaticRank = 7

	// MaxCollapseSize caps the element count of a merged axis so 32-bit
	// per-axis index arithmetic cannot overflow.
	MaxCollapseSize = 1<<31 - 1
)

// Size is a three-dimensional extent for grids and threadgroups.
type Size struct {
	X, Y, Z uint64
}

// Device compiles kernel libraries and creates command encoders.
type Device interface {
	// GetLibrary returns the library cached under name, calling build to
	// produce source text only when the name is seen for the first time.
	GetLibrary(name string, build func() (string, error)) (Library, error)
	// GetKernel resolves a named kernel function inside a library.
	GetKernel(lib Library, name string) (Kernel, error)
	// NewEncoder returns a command encoder for the given stream index.
	NewEncoder(stream int) CommandEncoder
}

// Library is a compiled collection of kernel functions.
type Library interface {
	Label() string
}

// Kernel is one compiled compute function.
type Kernel interface {
	Name() string
	// MaxTotalThreadsPerThreadgroup returns the pipeline's threadgroup
	// capacity.
	MaxTotalThreadsPerThreadgroup() int
}

// CommandEncoder records kernel launches on a stream.
type CommandEncoder interface {
	SetKernel(k Kernel)
	// SetArray binds an array's storage to an argument slot.
	SetArray(a tensor.Array, slot int)
	// SetBytes binds small inline data, such as stride tables, to a slot.
	SetBytes(data []byte, slot int)
	// DispatchThreads launches an exact grid of threads.
	DispatchThreads(grid, group Size)
}

// OutputAllocator provides storage for kernel outputs. Implementations may
// alias an output onto a donatable input's storage; the dispatcher only
// consumes the result and never decides aliasing itself.
type OutputAllocator interface {
	// AllocateOutputs attaches storage to every output. donatable marks
	// inputs whose buffers the callee may reuse, and contiguous tells the
	// allocator the kernel will address outputs densely.
	AllocateOutputs(inputs, outputs []tensor.Array, donatable []bool, contiguous bool) error
}

// Stream bundles the device, allocator, and queue index a dispatch targets.
type Stream struct {
	Device    Device
	Allocator OutputAllocator
	Index     int
}
