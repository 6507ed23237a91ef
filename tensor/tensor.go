// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the array model fused kernels
// are generated against.
//
// The package defines the core types the kernel pipeline consumes:
//   - Array: strided view over typed storage with a stable identity
//   - HostArray: Array backed by process memory
//   - Shape, DType: dimension and element type definitions
//
// Example:
//
//	x := tensor.FromFloat32(tensor.Shape{2, 3}, vals)
//	y := tensor.NewHost(tensor.Float32, tensor.Shape{2, 3})
//	out := tensor.NewHostNoData(tensor.Float32, tensor.Shape{2, 3})
package tensor

import (
	"github.com/born-ml/fuse/internal/tensor"
)

// Type aliases for public API

// Array is a strided view over typed storage. Every array carries a
// process-unique identity so constant capture and buffer donation can track
// specific arrays across calls.
type Array = tensor.Array

// HostArray is an Array backed by process memory.
type HostArray = tensor.HostArray

// Shape represents the dimensions of an array.
// Example: Shape{2, 3, 4} represents a 3D array with dimensions 2×3×4.
type Shape = tensor.Shape

// DType represents the element type of an array.
type DType = tensor.DType

// Element type constants.
const (
	Bool     DType = tensor.Bool
	Uint8    DType = tensor.Uint8
	Uint16   DType = tensor.Uint16
	Uint32   DType = tensor.Uint32
	Uint64   DType = tensor.Uint64
	Int8     DType = tensor.Int8
	Int16    DType = tensor.Int16
	Int32    DType = tensor.Int32
	Int64    DType = tensor.Int64
	Float16  DType = tensor.Float16
	BFloat16 DType = tensor.BFloat16
	Float32  DType = tensor.Float32
)

// NewHost allocates a dense row-major array of the given type and shape.
func NewHost(dt DType, shape Shape) *HostArray {
	return tensor.NewHost(dt, shape)
}

// NewHostNoData builds an array descriptor without backing storage. The
// dispatcher's allocator attaches storage before launch.
func NewHostNoData(dt DType, shape Shape) *HostArray {
	return tensor.NewHostNoData(dt, shape)
}

// NewHostView wraps existing storage with explicit strides. The data slice
// is shared, not copied.
func NewHostView(dt DType, shape Shape, strides []int64, data []byte) *HostArray {
	return tensor.NewHostView(dt, shape, strides, data)
}

// FromFloat32 builds a dense float32 array from vals.
func FromFloat32(shape Shape, vals []float32) *HostArray {
	return tensor.FromFloat32(shape, vals)
}

// Scalar builds a zero-rank array holding v converted to dt.
func Scalar(dt DType, v float64) *HostArray {
	return tensor.Scalar(dt, v)
}

// IsScalar reports whether x holds exactly one element.
func IsScalar(x Array) bool {
	return tensor.IsScalar(x)
}
