//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the portable WebGPU runner for fused kernels.
//
// WebGPU is a cross-platform graphics and compute API that works on:
//   - Windows (via Dawn/D3D12)
//   - macOS (via Dawn/Metal)
//   - Linux (via Dawn/Vulkan)
//   - Web browsers (via wasm)
//
// The runner executes tapes as contiguous WGSL compute shaders. It covers
// dense row-major arrays only; strided and broadcast addressing stay on the
// Metal dispatcher.
//
// Example:
//
//	import (
//	    "github.com/born-ml/fuse/backend/webgpu"
//	    "github.com/born-ml/fuse/tensor"
//	)
//
//	func main() {
//	    gpu, err := webgpu.New()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer gpu.Release()
//
//	    outs, err := gpu.Run(tape, []tensor.Array{x, y})
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/fuse/internal/backend/webgpu"
)

// Runner executes tapes on a WebGPU device.
type Runner = internalwebgpu.Runner

// New creates a WebGPU runner.
//
// This function initializes the WebGPU device and returns a runner ready to
// execute tapes. Call Release() when done to free GPU resources.
//
// Returns an error if WebGPU initialization fails (e.g., no compatible GPU).
func New() (*Runner, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system.
//
// This function attempts to initialize a WebGPU adapter to verify that a
// compatible GPU and drivers are present. It's useful for gating GPU use
// when no adapter is available.
//
// Example:
//
//	if webgpu.IsAvailable() {
//	    gpu, _ := webgpu.New()
//	    defer gpu.Release()
//	}
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
