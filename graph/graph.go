// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the public API for describing fused elementwise
// computations as tapes.
//
// A Tape lists template inputs, a dependency-ordered node list, and the node
// results exposed as outputs. Tapes are the unit of kernel generation: the
// same tape replays over any call whose arrays match the templates' element
// types and scalar-ness.
//
// Example:
//
//	x := tensor.NewHost(tensor.Float32, tensor.Shape{1024})
//	y := tensor.NewHost(tensor.Float32, tensor.Shape{1024})
//	tape := &graph.Tape{
//	    Inputs: []tensor.Array{x, y},
//	    Nodes: []graph.Node{
//	        {Op: graph.Add{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(0), graph.InputRef(1)}},
//	    },
//	    Outputs:   []graph.Ref{graph.NodeRef(0)},
//	    Constants: graph.ConstantSet(),
//	}
package graph

import (
	"github.com/emirpasic/gods/v2/sets/hashset"

	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/tensor"
)

// Type aliases for public API

// Tape is a fused elementwise computation over template inputs.
type Tape = graph.Tape

// Node is one step of a tape.
type Node = graph.Node

// Ref names one value of a tape: an input or an earlier node's result.
type Ref = graph.Ref

// Primitive is one elementwise operation.
type Primitive = graph.Primitive

// InputRef returns a Ref to input i.
func InputRef(i int) Ref { return graph.InputRef(i) }

// NodeRef returns a Ref to the result of node i.
func NodeRef(i int) Ref { return graph.NodeRef(i) }

// ConstantSet collects the identities of arrays whose scalar values are
// inlined into generated source.
func ConstantSet(arrays ...tensor.Array) *hashset.Set[uint64] {
	return graph.ConstantSet(arrays...)
}

// LibraryName derives the tape's signature string, the cache key its kernel
// library is stored under.
func LibraryName(t *Tape) string { return graph.LibraryName(t) }

// Elementwise operations.
type (
	Add          = graph.Add
	Subtract     = graph.Subtract
	Multiply     = graph.Multiply
	Divide       = graph.Divide
	Maximum      = graph.Maximum
	Minimum      = graph.Minimum
	Power        = graph.Power
	Less         = graph.Less
	LessEqual    = graph.LessEqual
	Greater      = graph.Greater
	GreaterEqual = graph.GreaterEqual
	Equal        = graph.Equal
	NotEqual     = graph.NotEqual
	LogicalAnd   = graph.LogicalAnd
	LogicalOr    = graph.LogicalOr
	Negative     = graph.Negative
	Abs          = graph.Abs
	Square       = graph.Square
	Sqrt         = graph.Sqrt
	Rsqrt        = graph.Rsqrt
	Exp          = graph.Exp
	Log          = graph.Log
	Sin          = graph.Sin
	Cos          = graph.Cos
	Tanh         = graph.Tanh
	Sigmoid      = graph.Sigmoid
	LogicalNot   = graph.LogicalNot
	Select       = graph.Select
	Cast         = graph.Cast
)
