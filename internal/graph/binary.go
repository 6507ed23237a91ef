package graph

import "math"

// Add is elementwise addition.
type Add struct{}

func (Add) Name() string              { return "Add" }
func (Add) Arity() int                { return 2 }
func (Add) WGSL(a ...string) string   { return "(" + a[0] + " + " + a[1] + ")" }
func (Add) Eval(a ...float64) float64 { return a[0] + a[1] }

// Subtract is elementwise subtraction.
type Subtract struct{}

func (Subtract) Name() string              { return "Subtract" }
func (Subtract) Arity() int                { return 2 }
func (Subtract) WGSL(a ...string) string   { return "(" + a[0] + " - " + a[1] + ")" }
func (Subtract) Eval(a ...float64) float64 { return a[0] - a[1] }

// Multiply is elementwise multiplication.
type Multiply struct{}

func (Multiply) Name() string              { return "Multiply" }
func (Multiply) Arity() int                { return 2 }
func (Multiply) WGSL(a ...string) string   { return "(" + a[0] + " * " + a[1] + ")" }
func (Multiply) Eval(a ...float64) float64 { return a[0] * a[1] }

// Divide is elementwise division. Integer results truncate toward zero when
// the node's dtype narrows them.
type Divide struct{}

func (Divide) Name() string              { return "Divide" }
func (Divide) Arity() int                { return 2 }
func (Divide) WGSL(a ...string) string   { return "(" + a[0] + " / " + a[1] + ")" }
func (Divide) Eval(a ...float64) float64 { return a[0] / a[1] }

// Maximum is the elementwise larger value. NaN in the first argument
// propagates.
type Maximum struct{}

func (Maximum) Name() string            { return "Maximum" }
func (Maximum) Arity() int              { return 2 }
func (Maximum) WGSL(a ...string) string { return "max(" + a[0] + ", " + a[1] + ")" }
func (Maximum) Eval(a ...float64) float64 {
	if math.IsNaN(a[0]) {
		return a[0]
	}
	if a[0] > a[1] {
		return a[0]
	}
	return a[1]
}

// Minimum is the elementwise smaller value. NaN in the first argument
// propagates.
type Minimum struct{}

func (Minimum) Name() string            { return "Minimum" }
func (Minimum) Arity() int              { return 2 }
func (Minimum) WGSL(a ...string) string { return "min(" + a[0] + ", " + a[1] + ")" }
func (Minimum) Eval(a ...float64) float64 {
	if math.IsNaN(a[0]) {
		return a[0]
	}
	if a[0] < a[1] {
		return a[0]
	}
	return a[1]
}

// Power raises the first argument to the second. Integer exponents use
// exponentiation by squaring in the generated functor.
type Power struct{}

func (Power) Name() string              { return "Power" }
func (Power) Arity() int                { return 2 }
func (Power) WGSL(a ...string) string   { return "pow(" + a[0] + ", " + a[1] + ")" }
func (Power) Eval(a ...float64) float64 { return math.Pow(a[0], a[1]) }

// Less is the elementwise < comparison.
type Less struct{}

func (Less) Name() string              { return "Less" }
func (Less) Arity() int                { return 2 }
func (Less) WGSL(a ...string) string   { return "(" + a[0] + " < " + a[1] + ")" }
func (Less) Eval(a ...float64) float64 { return b2f(a[0] < a[1]) }

// LessEqual is the elementwise <= comparison.
type LessEqual struct{}

func (LessEqual) Name() string              { return "LessEqual" }
func (LessEqual) Arity() int                { return 2 }
func (LessEqual) WGSL(a ...string) string   { return "(" + a[0] + " <= " + a[1] + ")" }
func (LessEqual) Eval(a ...float64) float64 { return b2f(a[0] <= a[1]) }

// Greater is the elementwise > comparison.
type Greater struct{}

func (Greater) Name() string              { return "Greater" }
func (Greater) Arity() int                { return 2 }
func (Greater) WGSL(a ...string) string   { return "(" + a[0] + " > " + a[1] + ")" }
func (Greater) Eval(a ...float64) float64 { return b2f(a[0] > a[1]) }

// GreaterEqual is the elementwise >= comparison.
type GreaterEqual struct{}

func (GreaterEqual) Name() string              { return "GreaterEqual" }
func (GreaterEqual) Arity() int                { return 2 }
func (GreaterEqual) WGSL(a ...string) string   { return "(" + a[0] + " >= " + a[1] + ")" }
func (GreaterEqual) Eval(a ...float64) float64 { return b2f(a[0] >= a[1]) }

// Equal is the elementwise == comparison. NaN compares unequal to
// everything, including itself.
type Equal struct{}

func (Equal) Name() string              { return "Equal" }
func (Equal) Arity() int                { return 2 }
func (Equal) WGSL(a ...string) string   { return "(" + a[0] + " == " + a[1] + ")" }
func (Equal) Eval(a ...float64) float64 { return b2f(a[0] == a[1]) }

// NotEqual is the elementwise != comparison.
type NotEqual struct{}

func (NotEqual) Name() string              { return "NotEqual" }
func (NotEqual) Arity() int                { return 2 }
func (NotEqual) WGSL(a ...string) string   { return "(" + a[0] + " != " + a[1] + ")" }
func (NotEqual) Eval(a ...float64) float64 { return b2f(a[0] != a[1]) }

// LogicalAnd is the elementwise boolean conjunction.
type LogicalAnd struct{}

func (LogicalAnd) Name() string              { return "LogicalAnd" }
func (LogicalAnd) Arity() int                { return 2 }
func (LogicalAnd) WGSL(a ...string) string   { return "(" + a[0] + " && " + a[1] + ")" }
func (LogicalAnd) Eval(a ...float64) float64 { return b2f(a[0] != 0 && a[1] != 0) }

// LogicalOr is the elementwise boolean disjunction.
type LogicalOr struct{}

func (LogicalOr) Name() string              { return "LogicalOr" }
func (LogicalOr) Arity() int                { return 2 }
func (LogicalOr) WGSL(a ...string) string   { return "(" + a[0] + " || " + a[1] + ")" }
func (LogicalOr) Eval(a ...float64) float64 { return b2f(a[0] != 0 || a[1] != 0) }

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
