package graph

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/born-ml/fuse/internal/tensor"
)

// LibraryName derives the cache key for a tape. Two tapes share a name
// exactly when they can share compiled kernels: same node structure,
// operations, and element types; same input classes (constant, scalar, or
// vector, with dtype); same constant values; and same output choice. The
// result is a valid source identifier prefix, so kernel names are formed by
// appending a variant suffix.
func LibraryName(t *Tape) string {
	var b strings.Builder

	namer := NewNamer()
	for i := range t.Inputs {
		namer.Name(InputRef(i))
	}
	for i, n := range t.Nodes {
		b.WriteString(namer.Name(NodeRef(i)))
		b.WriteByte(n.DType.Kind())
		b.WriteString(strconv.Itoa(n.DType.Size()))
		b.WriteString(n.Op.Name())
		for _, arg := range n.Args {
			b.WriteString(namer.Name(arg))
		}
	}

	b.WriteByte('_')
	hasher := fnv.New64a()
	for i, in := range t.Inputs {
		if t.ConstantAt(i) {
			b.WriteByte('C')
			hasher.Write(in.Data())
			continue
		}
		if tensor.IsScalar(in) {
			b.WriteByte('S')
		} else {
			b.WriteByte('V')
		}
		b.WriteByte(in.DType().Kind())
		b.WriteString(strconv.Itoa(in.DType().Size()))
	}

	b.WriteByte('_')
	for i, in := range t.Inputs {
		if t.ConstantAt(i) {
			b.WriteByte(in.DType().Kind())
			b.WriteString(strconv.Itoa(in.DType().Size()))
		}
	}

	b.WriteString("_o")
	for _, out := range t.Outputs {
		b.WriteString(namer.Name(out))
	}

	fmt.Fprintf(&b, "K%x", hasher.Sum64())
	return b.String()
}
