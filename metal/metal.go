// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package metal provides the public API for the compute device abstraction
// fused kernels dispatch against.
//
// The package defines the device surface and launch geometry helpers:
//   - Device, Library, Kernel, CommandEncoder: the compute API slice the
//     dispatcher drives
//   - OutputAllocator, Stream: storage and queue plumbing for a dispatch
//   - BlockDims, Grid2D: threadgroup and grid decomposition
//
// Example:
//
//	stream := metal.Stream{Device: dev, Allocator: alloc}
//	group := metal.BlockDims(8, 6, 4)
package metal

import (
	"github.com/born-ml/fuse/internal/metal"
	"github.com/born-ml/fuse/internal/tensor"
)

const (
	// MaxKernelArgs is the number of argument buffer slots a kernel may
	// bind.
	MaxKernelArgs = metal.MaxKernelArgs

	// StridedThreadgroupSize is the exact threadgroup capacity the strided
	// launch decomposition requires.
	StridedThreadgroupSize = metal.StridedThreadgroupSize

	// MaxStaticRank is the highest rank with a statically unrolled
	// addressing variant.
	MaxStaticRank = metal.MaxStaticRank

	// MaxCollapseSize caps the element count of a merged axis.
	MaxCollapseSize = metal.MaxCollapseSize
)

// Type aliases for public API

// Size is a three-dimensional extent for grids and threadgroups.
type Size = metal.Size

// Device compiles kernel libraries and creates command encoders.
type Device = metal.Device

// Library is a compiled collection of kernel functions.
type Library = metal.Library

// Kernel is one compiled compute function.
type Kernel = metal.Kernel

// CommandEncoder records kernel launches on a stream.
type CommandEncoder = metal.CommandEncoder

// OutputAllocator provides storage for kernel outputs.
type OutputAllocator = metal.OutputAllocator

// Stream bundles the device, allocator, and queue index a dispatch targets.
type Stream = metal.Stream

// LibraryCache deduplicates library builds by name.
type LibraryCache = metal.LibraryCache

// NewLibraryCache returns a cache that turns built source text into
// libraries with compile.
func NewLibraryCache(compile func(name, source string) (Library, error)) *LibraryCache {
	return metal.NewLibraryCache(compile)
}

// BlockDims picks a threadgroup shape for a strided launch over the three
// innermost grid extents.
func BlockDims(dim0, dim1, dim2 int) Size {
	return metal.BlockDims(dim0, dim1, dim2)
}

// Grid2D folds a large contiguous launch into a two-dimensional grid whose
// per-axis extents stay within 32-bit limits.
func Grid2D(shape tensor.Shape, strides []int64) (Size, error) {
	return metal.Grid2D(shape, strides)
}
