// Package codegen emits GPU kernel source for fused elementwise tapes. The
// Metal path produces one library per tape with a specialization variant per
// addressing scheme; the WGSL path covers the contiguous case for the
// portability runner.
package codegen

import (
	"fmt"
	"strings"

	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/metal"
	"github.com/born-ml/fuse/internal/tensor"
)

// BuildKernel writes one specialized kernel function for the tape and
// returns the number of argument buffer slots it binds. A contiguous kernel
// addresses every non-scalar input by the linear thread index; a strided one
// takes stride tables and rebuilds per-axis indices, either unrolled for a
// static ndim or at runtime when dynamicDims is set. useBigIndex widens the
// linear index to 64 bits and only combines with the contiguous scheme.
//
// Kernels needing more than metal.MaxKernelArgs slots are rejected here,
// before any compiler sees the source.
func BuildKernel(b *strings.Builder, name string, t *graph.Tape, contiguous bool, ndim int, dynamicDims, useBigIndex bool) (int, error) {
	namer := graph.NewNamer()
	addIndices := false
	cnt := 0

	fmt.Fprintf(b, "[[host_name(\"%s\")]]\n[[kernel]] void %s(\n", name, name)

	// Buffer parameters: non-constant inputs, their strides when any input
	// needs strided addressing, then outputs, output layout, and rank.
	for i, in := range t.Inputs {
		xname := namer.Name(graph.InputRef(i))
		if t.ConstantAt(i) {
			continue
		}
		if !tensor.IsScalar(in) && !contiguous {
			addIndices = true
		}
		fmt.Fprintf(b, "    device const %s* %s [[buffer(%d)]],\n", in.DType().MSL(), xname, cnt)
		cnt++
	}
	if addIndices {
		fmt.Fprintf(b, "    constant const size_t* in_strides [[buffer(%d)]],\n", cnt)
		cnt++
	}
	for _, out := range t.Outputs {
		fmt.Fprintf(b, "    device %s* %s [[buffer(%d)]],\n", t.DTypeOf(out).MSL(), namer.Name(out), cnt)
		cnt++
	}
	if !contiguous {
		fmt.Fprintf(b, "    constant const size_t* output_strides [[buffer(%d)]],\n", cnt)
		cnt++
		fmt.Fprintf(b, "    constant const int* output_shape [[buffer(%d)]],\n", cnt)
		cnt++
	}
	if dynamicDims {
		fmt.Fprintf(b, "    constant const int& ndim [[buffer(%d)]],\n", cnt)
		cnt++
	}
	b.WriteString("    uint3 pos [[thread_position_in_grid]],\n")
	b.WriteString("    uint3 grid [[threads_per_grid]]) {\n")

	if useBigIndex {
		// Big-index launches use a 2-D grid, so there is no pos.z term.
		b.WriteString("  size_t index = pos.x + grid.x * size_t(pos.y);\n")
	} else {
		b.WriteString("  uint index = pos.x + grid.x * (pos.y + grid.y * pos.z);\n")
	}

	if addIndices && !dynamicDims {
		switch ndim {
		case 1:
			b.WriteString("  uint index_0 = pos.x;\n")
		case 2:
			b.WriteString("  uint index_0 = pos.y;\n")
			b.WriteString("  uint index_1 = pos.x;\n")
		case 3:
			b.WriteString("  uint index_0 = pos.z;\n")
			b.WriteString("  uint index_1 = pos.y;\n")
			b.WriteString("  uint index_2 = pos.x;\n")
		default:
			for i := 0; i < ndim-2; i++ {
				fmt.Fprintf(b, "  uint index_%d = (index / uint(output_strides[%d])) %% output_shape[%d];\n", i, i, i)
			}
			fmt.Fprintf(b, "  uint index_%d = pos.y;\n", ndim-2)
			fmt.Fprintf(b, "  uint index_%d = pos.x;\n", ndim-1)
		}
	}

	// Loads. Constants inline their value, scalars read element 0, and
	// strided inputs combine the per-axis indices with their stride row.
	stridedRow := 0
	for i, in := range t.Inputs {
		xname := namer.Name(graph.InputRef(i))
		mslType := in.DType().MSL()
		switch {
		case t.ConstantAt(i):
			lit, err := FormatConstant(in)
			if err != nil {
				return cnt, fmt.Errorf("codegen: kernel %q: %w", name, err)
			}
			fmt.Fprintf(b, "  auto tmp_%s = static_cast<%s>(%s);\n", xname, mslType, lit)
		case tensor.IsScalar(in):
			fmt.Fprintf(b, "  %s tmp_%s = %s[0];\n", mslType, xname, xname)
		case contiguous:
			fmt.Fprintf(b, "  %s tmp_%s = %s[index];\n", mslType, xname, xname)
		case dynamicDims:
			// ndim is a runtime argument here, so the stride row offset
			// has to be computed inside the kernel.
			fmt.Fprintf(b, "  %s tmp_%s = %s[elem_to_loc(index, output_shape, in_strides + %d * ndim, ndim)];\n",
				mslType, xname, xname, stridedRow)
			stridedRow++
		default:
			offset := stridedRow * ndim
			fmt.Fprintf(b, "  %s tmp_%s = %s[index_0 * in_strides[%d]", mslType, xname, xname, offset)
			for d := 1; d < ndim; d++ {
				fmt.Fprintf(b, " + index_%d * in_strides[%d]", d, offset+d)
			}
			b.WriteString("];\n")
			stridedRow++
		}
	}

	// One local per tape node, in dependency order.
	for i, n := range t.Nodes {
		fmt.Fprintf(b, "  %s tmp_%s = ", n.DType.MSL(), namer.Name(graph.NodeRef(i)))
		if _, ok := n.Op.(graph.Cast); ok {
			fmt.Fprintf(b, "static_cast<%s>(tmp_%s);\n", n.DType.MSL(), namer.Name(n.Args[0]))
			continue
		}
		fmt.Fprintf(b, "%s()(", n.Op.Name())
		for j, arg := range n.Args {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "tmp_%s", namer.Name(arg))
		}
		b.WriteString(");\n")
	}

	for _, out := range t.Outputs {
		oname := namer.Name(out)
		fmt.Fprintf(b, "  %s[index] = tmp_%s;\n", oname, oname)
	}
	b.WriteString("}\n")

	if cnt > metal.MaxKernelArgs {
		return cnt, fmt.Errorf("codegen: kernel %q binds %d argument buffers, the limit is %d",
			name, cnt, metal.MaxKernelArgs)
	}
	return cnt, nil
}

// BuildLibrary emits the shared preamble and every specialization variant of
// the tape as one library source text: contiguous, contiguous_big, strided_1
// through strided_7, and strided_dynamic.
func BuildLibrary(t *graph.Tape, libName string) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("codegen: library %q: %w", libName, err)
	}

	var b strings.Builder
	b.WriteString(metalHeader)

	emit := func(suffix string, contiguous bool, ndim int, dynamicDims, useBigIndex bool) error {
		b.WriteString("\n")
		_, err := BuildKernel(&b, libName+"_"+suffix, t, contiguous, ndim, dynamicDims, useBigIndex)
		return err
	}

	if err := emit("contiguous", true, 0, false, false); err != nil {
		return "", err
	}
	if err := emit("contiguous_big", true, 0, false, true); err != nil {
		return "", err
	}
	for ndim := 1; ndim <= metal.MaxStaticRank; ndim++ {
		if err := emit(fmt.Sprintf("strided_%d", ndim), false, ndim, false, false); err != nil {
			return "", err
		}
	}
	if err := emit("strided_dynamic", false, 0, true, false); err != nil {
		return "", err
	}
	return b.String(), nil
}
