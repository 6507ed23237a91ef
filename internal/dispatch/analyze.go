package dispatch

import (
	"math"
	"strconv"

	"github.com/born-ml/fuse/internal/envconfig"
	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/metal"
	"github.com/born-ml/fuse/internal/tensor"
)

// Plan is the analyzer's verdict for one call: which addressing scheme the
// kernel needs and, on the strided path, the collapsed output shape with one
// stride row per addressed array. Strides[0] is the output's row; the rows
// after it belong to the non-constant, non-scalar inputs in argument order.
type Plan struct {
	Contiguous bool
	Big        bool
	Dynamic    bool
	Shape      []int
	Strides    [][]int64
}

// Variant returns the kernel name suffix the plan selects.
func (p Plan) Variant() string {
	switch {
	case p.Contiguous && p.Big:
		return "contiguous_big"
	case p.Contiguous:
		return "contiguous"
	case p.Dynamic:
		return "strided_dynamic"
	default:
		return "strided_" + strconv.Itoa(len(p.Shape))
	}
}

// Analyze inspects the concrete shapes and strides of one call.
//
// The call is contiguous when every non-constant, non-scalar input is
// row contiguous with exactly the output shape; scalars and inlined
// constants place no constraint. A contiguous call over any input larger
// than 32-bit addressing upgrades to the wide-index variant.
//
// Otherwise each addressed input's strides are broadcast against the
// output shape and the whole set is collapsed to its minimal rank. Ranks
// past the static specialization table fall to the dynamic kernel.
func Analyze(t *graph.Tape, inputs, outputs []tensor.Array) Plan {
	outShape := outputs[0].Shape()

	contiguous := true
	for i, in := range inputs {
		if t.ConstantAt(i) || tensor.IsScalar(in) {
			continue
		}
		if !in.RowContiguous() || !in.Shape().Equal(outShape) {
			contiguous = false
			break
		}
	}

	if contiguous {
		big := false
		for _, in := range inputs {
			if uint64(in.DataSize()) > math.MaxUint32 {
				big = true
				break
			}
		}
		return Plan{Contiguous: true, Big: big}
	}

	rows := [][]int64{outputs[0].Strides()}
	for i, in := range inputs {
		if t.ConstantAt(i) || tensor.IsScalar(in) {
			continue
		}
		rows = append(rows, tensor.BroadcastStrides(outShape, outputs[0].Strides(), in.Shape(), in.Strides()))
	}
	shape, strides := tensor.CollapseDims(outShape, rows, metal.MaxCollapseSize)

	return Plan{
		Dynamic: len(shape) > metal.MaxStaticRank || envconfig.ForceDynamic(),
		Shape:   shape,
		Strides: strides,
	}
}
