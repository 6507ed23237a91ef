package graph

// Select picks the second argument where the condition is true and the third
// where it is false.
type Select struct{}

func (Select) Name() string { return "Select" }

func (Select) Arity() int { return 3 }

func (Select) WGSL(a ...string) string {
	// WGSL's select takes (false_value, true_value, condition).
	return "select(" + a[2] + ", " + a[1] + ", " + a[0] + ")"
}

func (Select) Eval(a ...float64) float64 {
	if a[0] != 0 {
		return a[1]
	}
	return a[2]
}
