package codegen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/tensor"
)

// scaleAddTape is (x + y) * 2 with the 2 captured as a constant.
func scaleAddTape(tb testing.TB) *graph.Tape {
	tb.Helper()
	x := tensor.NewHost(tensor.Float32, tensor.Shape{1000})
	y := tensor.NewHost(tensor.Float32, tensor.Shape{1000})
	two := tensor.Scalar(tensor.Float32, 2)
	return &graph.Tape{
		Inputs: []tensor.Array{x, y, two},
		Nodes: []graph.Node{
			{Op: graph.Add{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(0), graph.InputRef(1)}},
			{Op: graph.Multiply{}, DType: tensor.Float32, Args: []graph.Ref{graph.NodeRef(0), graph.InputRef(2)}},
		},
		Outputs:   []graph.Ref{graph.NodeRef(1)},
		Constants: graph.ConstantSet(two),
	}
}

// vaddTape is x + y over two dense inputs.
func vaddTape(tb testing.TB) *graph.Tape {
	tb.Helper()
	x := tensor.NewHost(tensor.Float32, tensor.Shape{4, 6, 8})
	y := tensor.NewHost(tensor.Float32, tensor.Shape{4, 6, 8})
	return &graph.Tape{
		Inputs: []tensor.Array{x, y},
		Nodes: []graph.Node{
			{Op: graph.Add{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(0), graph.InputRef(1)}},
		},
		Outputs:   []graph.Ref{graph.NodeRef(0)},
		Constants: graph.ConstantSet(),
	}
}

// chainTape folds n dense inputs together with n-1 adds.
func chainTape(tb testing.TB, n int) *graph.Tape {
	tb.Helper()
	inputs := make([]tensor.Array, n)
	for i := range inputs {
		inputs[i] = tensor.NewHost(tensor.Float32, tensor.Shape{16})
	}
	nodes := []graph.Node{
		{Op: graph.Add{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(0), graph.InputRef(1)}},
	}
	for i := 2; i < n; i++ {
		nodes = append(nodes, graph.Node{
			Op:    graph.Add{},
			DType: tensor.Float32,
			Args:  []graph.Ref{graph.NodeRef(len(nodes) - 1), graph.InputRef(i)},
		})
	}
	return &graph.Tape{
		Inputs:    inputs,
		Nodes:     nodes,
		Outputs:   []graph.Ref{graph.NodeRef(len(nodes) - 1)},
		Constants: graph.ConstantSet(),
	}
}

func buildOne(tb testing.TB, t *graph.Tape, name string, contiguous bool, ndim int, dynamicDims, useBigIndex bool) (string, int) {
	tb.Helper()
	var b strings.Builder
	cnt, err := BuildKernel(&b, name, t, contiguous, ndim, dynamicDims, useBigIndex)
	if err != nil {
		tb.Fatalf("BuildKernel(%s): %v", name, err)
	}
	return b.String(), cnt
}

func TestBuildKernelContiguous(t *testing.T) {
	got, cnt := buildOne(t, scaleAddTape(t), "scale_add_contiguous", true, 0, false, false)
	want := `[[host_name("scale_add_contiguous")]]
[[kernel]] void scale_add_contiguous(
    device const float* A [[buffer(0)]],
    device const float* B [[buffer(1)]],
    device float* D [[buffer(2)]],
    uint3 pos [[thread_position_in_grid]],
    uint3 grid [[threads_per_grid]]) {
  uint index = pos.x + grid.x * (pos.y + grid.y * pos.z);
  float tmp_A = A[index];
  float tmp_B = B[index];
  auto tmp_C = static_cast<float>(2);
  float tmp_E = Add()(tmp_A, tmp_B);
  float tmp_D = Multiply()(tmp_E, tmp_C);
  D[index] = tmp_D;
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("kernel source mismatch (-want +got):\n%s", diff)
	}
	if cnt != 3 {
		t.Errorf("bound %d argument slots, want 3", cnt)
	}
}

func TestBuildKernelContiguousBig(t *testing.T) {
	got, cnt := buildOne(t, scaleAddTape(t), "scale_add_contiguous_big", true, 0, false, true)
	if !strings.Contains(got, "  size_t index = pos.x + grid.x * size_t(pos.y);\n") {
		t.Errorf("missing 64-bit index computation:\n%s", got)
	}
	if strings.Contains(got, "uint index =") {
		t.Errorf("big variant still computes a 32-bit index:\n%s", got)
	}
	if cnt != 3 {
		t.Errorf("bound %d argument slots, want 3", cnt)
	}
}

func TestBuildKernelStrided3(t *testing.T) {
	got, cnt := buildOne(t, vaddTape(t), "vadd_strided_3", false, 3, false, false)
	want := `[[host_name("vadd_strided_3")]]
[[kernel]] void vadd_strided_3(
    device const float* A [[buffer(0)]],
    device const float* B [[buffer(1)]],
    constant const size_t* in_strides [[buffer(2)]],
    device float* C [[buffer(3)]],
    constant const size_t* output_strides [[buffer(4)]],
    constant const int* output_shape [[buffer(5)]],
    uint3 pos [[thread_position_in_grid]],
    uint3 grid [[threads_per_grid]]) {
  uint index = pos.x + grid.x * (pos.y + grid.y * pos.z);
  uint index_0 = pos.z;
  uint index_1 = pos.y;
  uint index_2 = pos.x;
  float tmp_A = A[index_0 * in_strides[0] + index_1 * in_strides[1] + index_2 * in_strides[2]];
  float tmp_B = B[index_0 * in_strides[3] + index_1 * in_strides[4] + index_2 * in_strides[5]];
  float tmp_C = Add()(tmp_A, tmp_B);
  C[index] = tmp_C;
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("kernel source mismatch (-want +got):\n%s", diff)
	}
	if cnt != 6 {
		t.Errorf("bound %d argument slots, want 6", cnt)
	}
}

func TestBuildKernelStrided5(t *testing.T) {
	got, _ := buildOne(t, vaddTape(t), "vadd_strided_5", false, 5, false, false)
	for _, line := range []string{
		"  uint index_0 = (index / uint(output_strides[0])) % output_shape[0];\n",
		"  uint index_1 = (index / uint(output_strides[1])) % output_shape[1];\n",
		"  uint index_2 = (index / uint(output_strides[2])) % output_shape[2];\n",
		"  uint index_3 = pos.y;\n",
		"  uint index_4 = pos.x;\n",
	} {
		if !strings.Contains(got, line) {
			t.Errorf("missing index line %q in:\n%s", line, got)
		}
	}
}

func TestBuildKernelStridedDynamic(t *testing.T) {
	got, cnt := buildOne(t, vaddTape(t), "vadd_strided_dynamic", false, 0, true, false)
	for _, line := range []string{
		"    constant const int& ndim [[buffer(6)]],\n",
		"  float tmp_A = A[elem_to_loc(index, output_shape, in_strides + 0 * ndim, ndim)];\n",
		"  float tmp_B = B[elem_to_loc(index, output_shape, in_strides + 1 * ndim, ndim)];\n",
	} {
		if !strings.Contains(got, line) {
			t.Errorf("missing line %q in:\n%s", line, got)
		}
	}
	if cnt != 7 {
		t.Errorf("bound %d argument slots, want 7", cnt)
	}
}

func TestBuildKernelScalarInput(t *testing.T) {
	a := tensor.NewHost(tensor.Float32, tensor.Shape{4, 8})
	b := tensor.NewHost(tensor.Float32, tensor.Shape{4, 8})
	w := tensor.NewHost(tensor.Float32, tensor.Shape{1})
	lerp := &graph.Tape{
		Inputs: []tensor.Array{a, b, w},
		Nodes: []graph.Node{
			{Op: graph.Subtract{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(1), graph.InputRef(0)}},
			{Op: graph.Multiply{}, DType: tensor.Float32, Args: []graph.Ref{graph.NodeRef(0), graph.InputRef(2)}},
			{Op: graph.Add{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(0), graph.NodeRef(1)}},
		},
		Outputs:   []graph.Ref{graph.NodeRef(2)},
		Constants: graph.ConstantSet(),
	}

	got, _ := buildOne(t, lerp, "lerp_strided_2", false, 2, false, false)
	if !strings.Contains(got, "    device const float* C [[buffer(2)]],\n") {
		t.Errorf("scalar input not bound as a buffer:\n%s", got)
	}
	if !strings.Contains(got, "  float tmp_C = C[0];\n") {
		t.Errorf("scalar input not loaded from element 0:\n%s", got)
	}
	// Only the two dense inputs contribute stride rows.
	if !strings.Contains(got, "  float tmp_B = B[index_0 * in_strides[2] + index_1 * in_strides[3]];\n") {
		t.Errorf("second dense input does not use stride row 1:\n%s", got)
	}
	if strings.Contains(got, "in_strides[4]") {
		t.Errorf("scalar input consumed a stride row:\n%s", got)
	}
}

func TestBuildLibraryVariants(t *testing.T) {
	src, err := BuildLibrary(scaleAddTape(t), "scale_add")
	if err != nil {
		t.Fatalf("BuildLibrary: %v", err)
	}

	for _, name := range []string{
		"scale_add_contiguous", "scale_add_contiguous_big",
		"scale_add_strided_1", "scale_add_strided_2", "scale_add_strided_3",
		"scale_add_strided_4", "scale_add_strided_5", "scale_add_strided_6",
		"scale_add_strided_7", "scale_add_strided_dynamic",
	} {
		if !strings.Contains(src, `[[host_name("`+name+`")]]`) {
			t.Errorf("library source has no kernel %q", name)
		}
	}
	if n := strings.Count(src, "[[kernel]] void "); n != 10 {
		t.Errorf("library has %d kernels, want 10", n)
	}
	if n := strings.Count(src, "#include <metal_stdlib>"); n != 1 {
		t.Errorf("preamble included %d times, want 1", n)
	}
}

func TestBuildLibraryArgumentLimit(t *testing.T) {
	// 31 dense inputs plus the output need 32 slots in the contiguous
	// kernel, one past the limit. The source build itself reports it.
	_, err := BuildLibrary(chainTape(t, 31), "big")
	if err == nil {
		t.Fatal("BuildLibrary accepted a kernel over the argument limit")
	}
	if !strings.Contains(err.Error(), `kernel "big_contiguous"`) {
		t.Errorf("error does not name the kernel: %v", err)
	}
	if !strings.Contains(err.Error(), "binds 32 argument buffers, the limit is 31") {
		t.Errorf("error does not state the slot counts: %v", err)
	}

	// Strided variants carry stride and shape buffers on top, so a tape
	// whose contiguous kernel fits can still overflow there.
	_, err = BuildLibrary(chainTape(t, 28), "wide")
	if err == nil {
		t.Fatal("BuildLibrary accepted a strided kernel over the argument limit")
	}
	if !strings.Contains(err.Error(), `kernel "wide_strided_1"`) {
		t.Errorf("error does not name the strided kernel: %v", err)
	}

	// The dynamic variant binds one more buffer for the rank.
	_, err = BuildLibrary(chainTape(t, 27), "deep")
	if err == nil {
		t.Fatal("BuildLibrary accepted a dynamic kernel over the argument limit")
	}
	if !strings.Contains(err.Error(), `kernel "deep_strided_dynamic"`) {
		t.Errorf("error does not name the dynamic kernel: %v", err)
	}

	if _, err := BuildLibrary(chainTape(t, 26), "fits"); err != nil {
		t.Errorf("BuildLibrary rejected a tape within the argument limit: %v", err)
	}
}

func TestPreambleHelpers(t *testing.T) {
	for _, want := range []string{
		"#include <metal_stdlib>",
		"typedef bfloat bfloat16_t;",
		"METAL_FUNC size_t elem_to_loc(",
	} {
		if !strings.Contains(metalHeader, want) {
			t.Errorf("preamble is missing %q", want)
		}
	}
	ops := []string{
		"Add", "Subtract", "Multiply", "Divide", "Maximum", "Minimum", "Power",
		"Less", "LessEqual", "Greater", "GreaterEqual", "Equal", "NotEqual",
		"LogicalAnd", "LogicalOr",
		"Negative", "Abs", "Square", "Sqrt", "Rsqrt", "Exp", "Log",
		"Sin", "Cos", "Tanh", "Sigmoid", "LogicalNot",
		"Select",
	}
	for _, op := range ops {
		if !strings.Contains(metalHeader, "struct "+op+" {") {
			t.Errorf("preamble has no functor for %s", op)
		}
	}
}

func BenchmarkBuildLibrary(b *testing.B) {
	tape := scaleAddTape(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := BuildLibrary(tape, "scale_add"); err != nil {
			b.Fatal(err)
		}
	}
}
