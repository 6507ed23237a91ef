// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package codegen provides the public API for turning tapes into kernel
// source.
//
// The package emits two syntaxes:
//   - BuildLibrary / BuildKernel: Metal Shading Language, one library with
//     a specialized kernel per addressing variant
//   - BuildWGSLContiguous: a single contiguous WGSL compute shader for the
//     portable WebGPU runner
//
// Example:
//
//	name := graph.LibraryName(tape)
//	src, err := codegen.BuildLibrary(tape, name)
package codegen

import (
	"strings"

	"github.com/born-ml/fuse/internal/codegen"
	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/tensor"
)

// WorkgroupSize is the threads-per-workgroup the WGSL shader is emitted
// with. Launches cover n elements with ceil(n/WorkgroupSize) workgroups.
const WorkgroupSize = codegen.WorkgroupSize

// BuildLibrary emits the full kernel library for a tape: the contiguous
// variants, one strided variant per static rank, and the dynamic-rank
// variant, each named libName plus a variant suffix.
func BuildLibrary(t *graph.Tape, libName string) (string, error) {
	return codegen.BuildLibrary(t, libName)
}

// BuildKernel appends a single kernel variant to b and returns how many
// argument buffers the kernel binds. Contiguous kernels index by thread
// position alone; strided kernels walk ndim axes, or a runtime ndim when
// dynamicDims is set. useBigIndex selects 64-bit indexing for arrays past
// the 32-bit element limit.
func BuildKernel(b *strings.Builder, name string, t *graph.Tape, contiguous bool, ndim int, dynamicDims, useBigIndex bool) (int, error) {
	return codegen.BuildKernel(b, name, t, contiguous, ndim, dynamicDims, useBigIndex)
}

// BuildWGSLContiguous emits the tape as one WGSL compute shader over dense
// row-major arrays.
func BuildWGSLContiguous(t *graph.Tape, name string) (string, error) {
	return codegen.BuildWGSLContiguous(t, name)
}

// FormatConstant renders a captured scalar as a source literal in the
// array's element type.
func FormatConstant(in tensor.Array) (string, error) {
	return codegen.FormatConstant(in)
}
