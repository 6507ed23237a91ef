// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dispatch provides the public API for running fused kernels.
//
// Compiled is the reusable handle for one tape: it generates the kernel
// library on first use, picks an addressing variant per call, binds
// arguments, and launches.
//
// Example:
//
//	c, err := dispatch.New(tape)
//	if err != nil {
//	    return err
//	}
//	if err := c.Eval(stream, []tensor.Array{x, y}, []tensor.Array{out}); err != nil {
//	    return err
//	}
package dispatch

import (
	"github.com/born-ml/fuse/internal/dispatch"
	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/tensor"
)

// Type aliases for public API

// Compiled is a tape bound to its generated kernel library, ready to
// dispatch over concrete arrays.
type Compiled = dispatch.Compiled

// Plan is the per-call addressing decision: output shape, stride rows, and
// the variant flags that select a kernel.
type Plan = dispatch.Plan

// New validates the tape and returns its dispatch handle. Kernel source is
// not generated until the first Eval.
func New(t *graph.Tape) (*Compiled, error) {
	return dispatch.New(t)
}

// Analyze inspects one call's arrays and picks the addressing variant the
// launch will use.
func Analyze(t *graph.Tape, inputs, outputs []tensor.Array) Plan {
	return dispatch.Analyze(t, inputs, outputs)
}
