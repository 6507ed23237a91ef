package graph

import (
	"fmt"

	"github.com/emirpasic/gods/v2/sets/hashset"

	"github.com/born-ml/fuse/internal/tensor"
)

// RefKind says which value space a Ref indexes.
type RefKind uint8

const (
	// RefInput indexes the tape's input list.
	RefInput RefKind = iota
	// RefNode indexes the tape's node list.
	RefNode
)

// Ref names one value of a tape: either an input or the result of an
// earlier node.
type Ref struct {
	Kind  RefKind
	Index int
}

// InputRef returns a Ref to input i.
func InputRef(i int) Ref { return Ref{Kind: RefInput, Index: i} }

// NodeRef returns a Ref to the result of node i.
func NodeRef(i int) Ref { return Ref{Kind: RefNode, Index: i} }

// Node is one step of a tape: an operation over earlier values producing one
// value of the given element type.
type Node struct {
	Op    Primitive
	DType tensor.DType
	Args  []Ref
}

// Tape is a fused elementwise computation: named inputs, a node list in
// dependency order, and the node results exposed as outputs. Inputs listed
// in Constants hold scalars that are inlined into generated source instead
// of being bound as buffers.
//
// The arrays in Inputs are templates. They fix each position's element type,
// scalar-ness, and constant value; calls may supply different shapes and
// data per position as long as those stay compatible.
type Tape struct {
	Inputs    []tensor.Array
	Nodes     []Node
	Outputs   []Ref
	Constants *hashset.Set[uint64]
}

// ConstantSet collects the identities of arrays whose scalar values are
// inlined into generated source.
func ConstantSet(arrays ...tensor.Array) *hashset.Set[uint64] {
	s := hashset.New[uint64]()
	for _, a := range arrays {
		s.Add(a.ID())
	}
	return s
}

// ConstantAt reports whether input i is an inlined constant.
func (t *Tape) ConstantAt(i int) bool {
	return t.Constants != nil && t.Constants.Contains(t.Inputs[i].ID())
}

// DTypeOf returns the element type of the value r refers to.
func (t *Tape) DTypeOf(r Ref) tensor.DType {
	if r.Kind == RefInput {
		return t.Inputs[r.Index].DType()
	}
	return t.Nodes[r.Index].DType
}

// Validate checks the structural invariants emission relies on: every node
// argument refers to an input or a strictly earlier node, arities match,
// outputs refer to nodes, and constants are scalar inputs.
func (t *Tape) Validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("graph: tape has no nodes")
	}
	if len(t.Outputs) == 0 {
		return fmt.Errorf("graph: tape has no outputs")
	}

	for i, n := range t.Nodes {
		if n.Op == nil {
			return fmt.Errorf("graph: node %d has no operation", i)
		}
		if len(n.Args) != n.Op.Arity() {
			return fmt.Errorf("graph: node %d: %s takes %d arguments, got %d",
				i, n.Op.Name(), n.Op.Arity(), len(n.Args))
		}
		for j, arg := range n.Args {
			switch arg.Kind {
			case RefInput:
				if arg.Index < 0 || arg.Index >= len(t.Inputs) {
					return fmt.Errorf("graph: node %d argument %d: input %d out of range", i, j, arg.Index)
				}
			case RefNode:
				if arg.Index < 0 || arg.Index >= i {
					return fmt.Errorf("graph: node %d argument %d: node %d is not an earlier node", i, j, arg.Index)
				}
			default:
				return fmt.Errorf("graph: node %d argument %d: unknown ref kind %d", i, j, arg.Kind)
			}
		}
	}

	for j, out := range t.Outputs {
		if out.Kind != RefNode {
			return fmt.Errorf("graph: output %d must refer to a node", j)
		}
		if out.Index < 0 || out.Index >= len(t.Nodes) {
			return fmt.Errorf("graph: output %d: node %d out of range", j, out.Index)
		}
	}

	if t.Constants != nil {
		known := make(map[uint64]bool, len(t.Inputs))
		for i, in := range t.Inputs {
			known[in.ID()] = true
			if t.ConstantAt(i) && !tensor.IsScalar(in) {
				return fmt.Errorf("graph: constant input %d has %d elements, constants must be scalar", i, in.Size())
			}
		}
		for _, id := range t.Constants.Values() {
			if !known[id] {
				return fmt.Errorf("graph: constant id %d matches no input", id)
			}
		}
	}
	return nil
}
