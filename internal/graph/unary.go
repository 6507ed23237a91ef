package graph

import "math"

// Negative is elementwise negation.
type Negative struct{}

func (Negative) Name() string              { return "Negative" }
func (Negative) Arity() int                { return 1 }
func (Negative) WGSL(a ...string) string   { return "(-" + a[0] + ")" }
func (Negative) Eval(a ...float64) float64 { return -a[0] }

// Abs is the elementwise absolute value.
type Abs struct{}

func (Abs) Name() string              { return "Abs" }
func (Abs) Arity() int                { return 1 }
func (Abs) WGSL(a ...string) string   { return "abs(" + a[0] + ")" }
func (Abs) Eval(a ...float64) float64 { return math.Abs(a[0]) }

// Square is elementwise self-multiplication.
type Square struct{}

func (Square) Name() string              { return "Square" }
func (Square) Arity() int                { return 1 }
func (Square) WGSL(a ...string) string   { return "(" + a[0] + " * " + a[0] + ")" }
func (Square) Eval(a ...float64) float64 { return a[0] * a[0] }

// Sqrt is the elementwise square root.
type Sqrt struct{}

func (Sqrt) Name() string              { return "Sqrt" }
func (Sqrt) Arity() int                { return 1 }
func (Sqrt) WGSL(a ...string) string   { return "sqrt(" + a[0] + ")" }
func (Sqrt) Eval(a ...float64) float64 { return math.Sqrt(a[0]) }

// Rsqrt is the elementwise reciprocal square root.
type Rsqrt struct{}

func (Rsqrt) Name() string              { return "Rsqrt" }
func (Rsqrt) Arity() int                { return 1 }
func (Rsqrt) WGSL(a ...string) string   { return "inverseSqrt(" + a[0] + ")" }
func (Rsqrt) Eval(a ...float64) float64 { return 1 / math.Sqrt(a[0]) }

// Exp is the elementwise natural exponential.
type Exp struct{}

func (Exp) Name() string              { return "Exp" }
func (Exp) Arity() int                { return 1 }
func (Exp) WGSL(a ...string) string   { return "exp(" + a[0] + ")" }
func (Exp) Eval(a ...float64) float64 { return math.Exp(a[0]) }

// Log is the elementwise natural logarithm.
type Log struct{}

func (Log) Name() string              { return "Log" }
func (Log) Arity() int                { return 1 }
func (Log) WGSL(a ...string) string   { return "log(" + a[0] + ")" }
func (Log) Eval(a ...float64) float64 { return math.Log(a[0]) }

// Sin is the elementwise sine.
type Sin struct{}

func (Sin) Name() string              { return "Sin" }
func (Sin) Arity() int                { return 1 }
func (Sin) WGSL(a ...string) string   { return "sin(" + a[0] + ")" }
func (Sin) Eval(a ...float64) float64 { return math.Sin(a[0]) }

// Cos is the elementwise cosine.
type Cos struct{}

func (Cos) Name() string              { return "Cos" }
func (Cos) Arity() int                { return 1 }
func (Cos) WGSL(a ...string) string   { return "cos(" + a[0] + ")" }
func (Cos) Eval(a ...float64) float64 { return math.Cos(a[0]) }

// Tanh is the elementwise hyperbolic tangent.
type Tanh struct{}

func (Tanh) Name() string              { return "Tanh" }
func (Tanh) Arity() int                { return 1 }
func (Tanh) WGSL(a ...string) string   { return "tanh(" + a[0] + ")" }
func (Tanh) Eval(a ...float64) float64 { return math.Tanh(a[0]) }

// Sigmoid is the elementwise logistic function 1 / (1 + exp(-x)).
type Sigmoid struct{}

func (Sigmoid) Name() string              { return "Sigmoid" }
func (Sigmoid) Arity() int                { return 1 }
func (Sigmoid) WGSL(a ...string) string   { return "(1.0 / (1.0 + exp(-(" + a[0] + "))))" }
func (Sigmoid) Eval(a ...float64) float64 { return 1 / (1 + math.Exp(-a[0])) }

// LogicalNot is the elementwise boolean negation.
type LogicalNot struct{}

func (LogicalNot) Name() string              { return "LogicalNot" }
func (LogicalNot) Arity() int                { return 1 }
func (LogicalNot) WGSL(a ...string) string   { return "(!(" + a[0] + "))" }
func (LogicalNot) Eval(a ...float64) float64 { return b2f(a[0] == 0) }
