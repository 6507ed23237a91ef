package metaltest

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/tensor"
)

type variant struct {
	contiguous bool
	big        bool
	dynamic    bool
	ndim       int
}

func parseVariant(name string) (variant, error) {
	switch {
	case strings.HasSuffix(name, "_contiguous_big"):
		return variant{contiguous: true, big: true}, nil
	case strings.HasSuffix(name, "_contiguous"):
		return variant{contiguous: true}, nil
	case strings.HasSuffix(name, "_strided_dynamic"):
		return variant{dynamic: true}, nil
	}
	if i := strings.LastIndex(name, "_strided_"); i >= 0 {
		if n, err := strconv.Atoi(name[i+len("_strided_"):]); err == nil && n >= 1 {
			return variant{ndim: n}, nil
		}
	}
	return variant{}, fmt.Errorf("metaltest: kernel %q has no recognizable variant suffix", name)
}

// Run re-executes a recorded dispatch by interpreting the kernel variant's
// addressing rules over the bound arguments, evaluating the tape in float64
// with per-node narrowing to the node's dtype. Results land in the bound
// output arrays, so a test can compare them against a reference.
//
// Scalar-ness and constant-ness of each input come from the tape's template
// inputs, mirroring what the kernel source was specialized on.
func Run(t *graph.Tape, enc *Encoder) error {
	if enc == nil || !enc.Dispatched {
		return fmt.Errorf("metaltest: encoder has no dispatch to run")
	}
	v, err := parseVariant(enc.Kernel.Name())
	if err != nil {
		return err
	}
	strided := !v.contiguous

	// Walk the slot layout the dispatcher bound.
	slot := 0
	arrays := make([]tensor.Array, len(t.Inputs))
	constVal := make([]float64, len(t.Inputs))
	rows := 0
	for i, in := range t.Inputs {
		if t.ConstantAt(i) {
			constVal[i] = tensor.ReadValue(in.DType(), in.Data(), 0)
			continue
		}
		arg := enc.Args[slot]
		if arg.Array == nil {
			return fmt.Errorf("metaltest: slot %d: expected input array", slot)
		}
		arrays[i] = arg.Array
		slot++
		if strided && !tensor.IsScalar(in) {
			rows++
		}
	}

	var inStrides []int64
	if strided && rows > 0 {
		arg := enc.Args[slot]
		if arg.Bytes == nil {
			return fmt.Errorf("metaltest: slot %d: expected input stride table", slot)
		}
		inStrides = int64sFrom(arg.Bytes)
		slot++
	}

	outs := make([]tensor.Array, len(t.Outputs))
	for j := range t.Outputs {
		arg := enc.Args[slot]
		if arg.Array == nil {
			return fmt.Errorf("metaltest: slot %d: expected output array", slot)
		}
		if arg.Array.Data() == nil {
			return fmt.Errorf("metaltest: output %d has no storage", j)
		}
		outs[j] = arg.Array
		slot++
	}

	var outStrides []int64
	var outShape []int32
	if strided {
		arg := enc.Args[slot]
		if arg.Bytes == nil {
			return fmt.Errorf("metaltest: slot %d: expected output strides", slot)
		}
		outStrides = int64sFrom(arg.Bytes)
		slot++
		arg = enc.Args[slot]
		if arg.Bytes == nil {
			return fmt.Errorf("metaltest: slot %d: expected output shape", slot)
		}
		outShape = int32sFrom(arg.Bytes)
		slot++
	}

	ndim := v.ndim
	if v.dynamic {
		nd := int32sFrom(enc.Args[slot].Bytes)
		if len(nd) != 1 {
			return fmt.Errorf("metaltest: slot %d: expected scalar rank", slot)
		}
		ndim = int(nd[0])
		slot++
	}
	if len(enc.Args) != slot {
		return fmt.Errorf("metaltest: %d argument slots bound, layout expects %d", len(enc.Args), slot)
	}
	if strided && len(inStrides) != rows*ndim {
		return fmt.Errorf("metaltest: stride table has %d entries, want %d rows of %d", len(inStrides), rows, ndim)
	}

	maxArity := 0
	for _, n := range t.Nodes {
		maxArity = max(maxArity, len(n.Args))
	}
	vals := make([]float64, len(t.Nodes))
	inVals := make([]float64, len(t.Inputs))
	args := make([]float64, maxArity)

	for z := uint64(0); z < enc.Grid.Z; z++ {
		for y := uint64(0); y < enc.Grid.Y; y++ {
			for x := uint64(0); x < enc.Grid.X; x++ {
				var index uint64
				if v.big {
					index = x + enc.Grid.X*y
				} else {
					index = uint64(uint32(x) + uint32(enc.Grid.X)*(uint32(y)+uint32(enc.Grid.Y)*uint32(z)))
				}

				row := 0
				for i, in := range t.Inputs {
					switch {
					case t.ConstantAt(i):
						inVals[i] = constVal[i]
					case tensor.IsScalar(in):
						a := arrays[i]
						inVals[i] = tensor.ReadValue(a.DType(), a.Data(), 0)
					case v.contiguous:
						a := arrays[i]
						inVals[i] = tensor.ReadValue(a.DType(), a.Data(), int64(index))
					default:
						a := arrays[i]
						loc := stridedLoc(v, x, y, z, uint32(index), outShape, outStrides, inStrides[row*ndim:(row+1)*ndim])
						inVals[i] = tensor.ReadValue(a.DType(), a.Data(), loc)
						row++
					}
				}

				for n, node := range t.Nodes {
					opArgs := args[:len(node.Args)]
					for k, ref := range node.Args {
						if ref.Kind == graph.RefInput {
							opArgs[k] = inVals[ref.Index]
						} else {
							opArgs[k] = vals[ref.Index]
						}
					}
					vals[n] = narrow(node.DType, node.Op.Eval(opArgs...))
				}

				for j, out := range t.Outputs {
					o := outs[j]
					tensor.WriteValue(o.DType(), o.Data(), int64(index), vals[out.Index])
				}
			}
		}
	}
	return nil
}

// stridedLoc computes a strided input's storage offset the way the matching
// kernel variant does: static ranks 1 to 3 read thread position components
// directly, higher static ranks divide the linear index by output strides,
// and the dynamic variant unravels it axis by axis.
func stridedLoc(v variant, x, y, z uint64, index uint32, outShape []int32, outStrides []int64, strides []int64) int64 {
	if v.dynamic {
		return elemToLoc(index, outShape, strides)
	}
	var loc int64
	switch len(strides) {
	case 1:
		loc = int64(uint32(x)) * strides[0]
	case 2:
		loc = int64(uint32(y))*strides[0] + int64(uint32(x))*strides[1]
	case 3:
		loc = int64(uint32(z))*strides[0] + int64(uint32(y))*strides[1] + int64(uint32(x))*strides[2]
	default:
		ndim := len(strides)
		for i := 0; i < ndim-2; i++ {
			idx := (index / uint32(outStrides[i])) % uint32(outShape[i])
			loc += int64(idx) * strides[i]
		}
		loc += int64(uint32(y)) * strides[ndim-2]
		loc += int64(uint32(x)) * strides[ndim-1]
	}
	return loc
}

// elemToLoc mirrors the elem_to_loc runtime helper in generated source.
func elemToLoc(elem uint32, shape []int32, strides []int64) int64 {
	var loc int64
	for i := len(shape) - 1; i >= 0 && elem > 0; i-- {
		loc += int64(elem%uint32(shape[i])) * strides[i]
		elem /= uint32(shape[i])
	}
	return loc
}

// narrow round-trips v through dt's storage encoding, reproducing the
// precision a kernel local of that type would keep.
func narrow(dt tensor.DType, v float64) float64 {
	var scratch [8]byte
	tensor.WriteValue(dt, scratch[:], 0, v)
	return tensor.ReadValue(dt, scratch[:], 0)
}

func int64sFrom(b []byte) []int64 {
	out := make([]int64, len(b)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}

func int32sFrom(b []byte) []int32 {
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
