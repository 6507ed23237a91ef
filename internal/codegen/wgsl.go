package codegen

import (
	"fmt"
	"strings"

	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/tensor"
)

// WorkgroupSize is the thread count per workgroup in generated WGSL kernels.
const WorkgroupSize = 256

// BuildWGSLContiguous renders the tape's contiguous specialization as a WGSL
// compute shader with entry point "main". Inputs and outputs must use WGSL
// storage scalars (f32, i32, u32); intermediate nodes may additionally be
// bool. Bindings follow the Metal slot order with a trailing uniform holding
// the element count, and every invocation past the count returns early.
func BuildWGSLContiguous(t *graph.Tape, name string) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("codegen: shader %q: %w", name, err)
	}

	namer := graph.NewNamer()
	var b strings.Builder
	fmt.Fprintf(&b, "// %s\n", name)

	binding := 0
	for i, in := range t.Inputs {
		xname := namer.Name(graph.InputRef(i))
		if t.ConstantAt(i) {
			continue
		}
		storage, ok := in.DType().WGSL()
		if !ok {
			return "", fmt.Errorf("codegen: shader %q: input %s: no WGSL storage type for %s", name, xname, in.DType())
		}
		fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, read> %s: array<%s>;\n", binding, xname, storage)
		binding++
	}
	for _, out := range t.Outputs {
		oname := namer.Name(out)
		storage, ok := t.DTypeOf(out).WGSL()
		if !ok {
			return "", fmt.Errorf("codegen: shader %q: output %s: no WGSL storage type for %s", name, oname, t.DTypeOf(out))
		}
		fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, read_write> %s: array<%s>;\n", binding, oname, storage)
		binding++
	}

	b.WriteString("\nstruct Params {\n    size: u32,\n}\n")
	fmt.Fprintf(&b, "@group(0) @binding(%d) var<uniform> params: Params;\n\n", binding)

	fmt.Fprintf(&b, "@compute @workgroup_size(%d)\n", WorkgroupSize)
	b.WriteString("fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {\n")
	b.WriteString("    let index = global_id.x;\n")
	b.WriteString("    if (index >= params.size) {\n        return;\n    }\n")

	for i, in := range t.Inputs {
		xname := namer.Name(graph.InputRef(i))
		local, ok := wgslLocalType(in.DType())
		if !ok {
			return "", fmt.Errorf("codegen: shader %q: input %s: no WGSL type for %s", name, xname, in.DType())
		}
		switch {
		case t.ConstantAt(i):
			lit, err := formatWGSLConstant(in)
			if err != nil {
				return "", fmt.Errorf("codegen: shader %q: %w", name, err)
			}
			fmt.Fprintf(&b, "    let tmp_%s: %s = %s;\n", xname, local, lit)
		case tensor.IsScalar(in):
			fmt.Fprintf(&b, "    let tmp_%s: %s = %s[0];\n", xname, local, xname)
		default:
			fmt.Fprintf(&b, "    let tmp_%s: %s = %s[index];\n", xname, local, xname)
		}
	}

	for i, n := range t.Nodes {
		nname := namer.Name(graph.NodeRef(i))
		local, ok := wgslLocalType(n.DType)
		if !ok {
			return "", fmt.Errorf("codegen: shader %q: node %s: no WGSL type for %s", name, nname, n.DType)
		}
		if _, isCast := n.Op.(graph.Cast); isCast {
			fmt.Fprintf(&b, "    let tmp_%s: %s = %s(tmp_%s);\n", nname, local, local, namer.Name(n.Args[0]))
			continue
		}
		args := make([]string, len(n.Args))
		for j, arg := range n.Args {
			args[j] = "tmp_" + namer.Name(arg)
		}
		fmt.Fprintf(&b, "    let tmp_%s: %s = %s;\n", nname, local, n.Op.WGSL(args...))
	}

	for _, out := range t.Outputs {
		oname := namer.Name(out)
		fmt.Fprintf(&b, "    %s[index] = tmp_%s;\n", oname, oname)
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// wgslLocalType maps a dtype to the WGSL type a kernel local may carry.
// Locals additionally allow bool, which has no storage representation.
func wgslLocalType(dt tensor.DType) (string, bool) {
	if dt == tensor.Bool {
		return "bool", true
	}
	return dt.WGSL()
}

func formatWGSLConstant(in tensor.Array) (string, error) {
	lit, err := FormatConstant(in)
	if err != nil {
		return "", err
	}
	switch in.DType() {
	case tensor.Float16, tensor.BFloat16, tensor.Float32:
		if strings.ContainsAny(lit, "IN") {
			// INFINITY and NAN have no WGSL literal spelling.
			return "", fmt.Errorf("constant %s is not representable in WGSL", lit)
		}
		if !strings.ContainsAny(lit, ".e") {
			lit += ".0"
		}
	}
	return lit, nil
}
