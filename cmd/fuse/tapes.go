package main

import (
	"fmt"
	"strings"

	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/tensor"
)

func demoTapeNames() []string {
	return []string{"axpy", "cmp", "gelu", "lerp"}
}

// demoTape builds one of the named example tapes the dump command renders.
func demoTape(name string) (*graph.Tape, error) {
	switch name {
	case "axpy":
		// alpha*x + y, alpha baked in as a constant.
		x := tensor.NewHost(tensor.Float32, tensor.Shape{1024})
		y := tensor.NewHost(tensor.Float32, tensor.Shape{1024})
		alpha := tensor.Scalar(tensor.Float32, 2)
		return &graph.Tape{
			Inputs: []tensor.Array{x, y, alpha},
			Nodes: []graph.Node{
				{Op: graph.Multiply{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(2), graph.InputRef(0)}},
				{Op: graph.Add{}, DType: tensor.Float32, Args: []graph.Ref{graph.NodeRef(0), graph.InputRef(1)}},
			},
			Outputs:   []graph.Ref{graph.NodeRef(1)},
			Constants: graph.ConstantSet(alpha),
		}, nil

	case "lerp":
		// a + t*(b - a), t supplied at call time as a scalar array.
		a := tensor.NewHost(tensor.Float32, tensor.Shape{1024})
		b := tensor.NewHost(tensor.Float32, tensor.Shape{1024})
		t := tensor.Scalar(tensor.Float32, 0)
		return &graph.Tape{
			Inputs: []tensor.Array{a, b, t},
			Nodes: []graph.Node{
				{Op: graph.Subtract{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(1), graph.InputRef(0)}},
				{Op: graph.Multiply{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(2), graph.NodeRef(0)}},
				{Op: graph.Add{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(0), graph.NodeRef(1)}},
			},
			Outputs:   []graph.Ref{graph.NodeRef(2)},
			Constants: graph.ConstantSet(),
		}, nil

	case "gelu":
		// 0.5*x*(1 + tanh(sqrt(2/pi)*(x + 0.044715*x^3))), the tanh
		// approximation with every coefficient inlined.
		x := tensor.NewHost(tensor.Float32, tensor.Shape{1024})
		half := tensor.Scalar(tensor.Float32, 0.5)
		one := tensor.Scalar(tensor.Float32, 1)
		coef := tensor.Scalar(tensor.Float32, 0.044715)
		root := tensor.Scalar(tensor.Float32, 0.7978845608028654)
		three := tensor.Scalar(tensor.Float32, 3)
		return &graph.Tape{
			Inputs: []tensor.Array{x, half, one, coef, root, three},
			Nodes: []graph.Node{
				{Op: graph.Power{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(0), graph.InputRef(5)}},
				{Op: graph.Multiply{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(3), graph.NodeRef(0)}},
				{Op: graph.Add{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(0), graph.NodeRef(1)}},
				{Op: graph.Multiply{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(4), graph.NodeRef(2)}},
				{Op: graph.Tanh{}, DType: tensor.Float32, Args: []graph.Ref{graph.NodeRef(3)}},
				{Op: graph.Add{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(2), graph.NodeRef(4)}},
				{Op: graph.Multiply{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(0), graph.NodeRef(5)}},
				{Op: graph.Multiply{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(1), graph.NodeRef(6)}},
			},
			Outputs:   []graph.Ref{graph.NodeRef(7)},
			Constants: graph.ConstantSet(half, one, coef, root, three),
		}, nil

	case "cmp":
		// The smaller of x and y, narrowed to half precision.
		x := tensor.NewHost(tensor.Float32, tensor.Shape{1024})
		y := tensor.NewHost(tensor.Float32, tensor.Shape{1024})
		return &graph.Tape{
			Inputs: []tensor.Array{x, y},
			Nodes: []graph.Node{
				{Op: graph.Less{}, DType: tensor.Bool, Args: []graph.Ref{graph.InputRef(0), graph.InputRef(1)}},
				{Op: graph.Select{}, DType: tensor.Float32, Args: []graph.Ref{graph.NodeRef(0), graph.InputRef(0), graph.InputRef(1)}},
				{Op: graph.Cast{}, DType: tensor.Float16, Args: []graph.Ref{graph.NodeRef(1)}},
			},
			Outputs:   []graph.Ref{graph.NodeRef(2)},
			Constants: graph.ConstantSet(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown tape %q, expected one of %s", name, strings.Join(demoTapeNames(), ", "))
	}
}
