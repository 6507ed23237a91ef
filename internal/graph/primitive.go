// Package graph defines the tape intermediate representation for fused
// elementwise computations: a typed node list over named inputs, with every
// operand resolved to an earlier value so source emission can bind each
// local exactly once before use.
package graph

// Primitive is one elementwise operation kind. Name doubles as the functor
// identifier in generated Metal source, so it must be a valid MSL type name.
type Primitive interface {
	Name() string
	Arity() int
	// WGSL renders the operation as a WGSL expression over the given
	// argument expressions.
	WGSL(args ...string) string
	// Eval computes the operation in float64, with booleans carried as 0
	// and 1. Reference interpreters use it to cross-check kernels.
	Eval(args ...float64) float64
}

// Cast converts a value to the node's element type. It renders as a plain
// type conversion rather than a functor call, so the emitters special-case
// it; Eval is the identity and the node's dtype does the narrowing.
type Cast struct{}

func (Cast) Name() string { return "Cast" }

func (Cast) Arity() int { return 1 }

func (Cast) WGSL(args ...string) string { return args[0] }

func (Cast) Eval(args ...float64) float64 { return args[0] }
