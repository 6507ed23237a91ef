package tensor

import (
	"math"
	"testing"
)

func int64sEqual(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func intsEqual(t *testing.T, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCollapseDimsContiguous(t *testing.T) {
	shape := []int{2, 3, 4}
	strides := [][]int64{{12, 4, 1}}
	gotShape, gotStrides := CollapseDims(shape, strides, math.MaxInt32)
	intsEqual(t, gotShape, []int{24})
	int64sEqual(t, gotStrides[0], []int64{1})
}

func TestCollapseDimsDropsSizeOneAxes(t *testing.T) {
	shape := []int{2, 1, 3}
	strides := [][]int64{{3, 3, 1}}
	gotShape, gotStrides := CollapseDims(shape, strides, math.MaxInt32)
	intsEqual(t, gotShape, []int{6})
	int64sEqual(t, gotStrides[0], []int64{1})
}

func TestCollapseDimsTransposeBlocksMerge(t *testing.T) {
	// Column-major strides never satisfy the adjacency test.
	shape := []int{2, 3}
	strides := [][]int64{{1, 2}}
	gotShape, gotStrides := CollapseDims(shape, strides, math.MaxInt32)
	intsEqual(t, gotShape, []int{2, 3})
	int64sEqual(t, gotStrides[0], []int64{1, 2})
}

func TestCollapseDimsBroadcastRowBlocksMerge(t *testing.T) {
	// One broadcast row is enough to keep all three axes apart.
	shape := []int{4, 6, 8}
	strides := [][]int64{
		{48, 8, 1},
		{8, 0, 1},
	}
	gotShape, gotStrides := CollapseDims(shape, strides, math.MaxInt32)
	intsEqual(t, gotShape, []int{4, 6, 8})
	int64sEqual(t, gotStrides[0], []int64{48, 8, 1})
	int64sEqual(t, gotStrides[1], []int64{8, 0, 1})
}

func TestCollapseDimsPartialMerge(t *testing.T) {
	// The inner two axes are contiguous in both rows, the outer is not in
	// the second row, so only the inner pair merges.
	shape := []int{2, 3, 4}
	strides := [][]int64{
		{12, 4, 1},
		{24, 4, 1},
	}
	gotShape, gotStrides := CollapseDims(shape, strides, math.MaxInt32)
	intsEqual(t, gotShape, []int{2, 12})
	int64sEqual(t, gotStrides[0], []int64{12, 1})
	int64sEqual(t, gotStrides[1], []int64{24, 1})
}

func TestCollapseDimsSizeCap(t *testing.T) {
	shape := []int{3, 4}
	strides := [][]int64{{4, 1}}

	gotShape, _ := CollapseDims(shape, strides, 12)
	intsEqual(t, gotShape, []int{12})

	gotShape, gotStrides := CollapseDims(shape, strides, 10)
	intsEqual(t, gotShape, []int{3, 4})
	int64sEqual(t, gotStrides[0], []int64{4, 1})
}

func TestCollapseDimsAllOnes(t *testing.T) {
	shape := []int{1, 1}
	strides := [][]int64{{1, 1}}
	gotShape, gotStrides := CollapseDims(shape, strides, math.MaxInt32)
	intsEqual(t, gotShape, []int{1})
	int64sEqual(t, gotStrides[0], []int64{0})
}

// offsets walks every index of shape and records the linear offset each
// stride row produces.
func offsets(shape []int, strides []int64) []int64 {
	n := 1
	for _, d := range shape {
		n *= d
	}
	out := make([]int64, 0, n)
	idx := make([]int, len(shape))
	for i := 0; i < n; i++ {
		var loc int64
		for d := range shape {
			loc += int64(idx[d]) * strides[d]
		}
		out = append(out, loc)
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

func TestCollapseDimsPreservesAddressing(t *testing.T) {
	shape := []int{2, 1, 3, 4}
	strides := [][]int64{
		{12, 12, 4, 1},
		{0, 48, 4, 1},
	}
	gotShape, gotStrides := CollapseDims(shape, strides, math.MaxInt32)
	for row := range strides {
		before := offsets(shape, strides[row])
		after := offsets(gotShape, gotStrides[row])
		int64sEqual(t, after, before)
	}
}

func TestBroadcastStrides(t *testing.T) {
	out := Shape{4, 6, 8}
	outStrides := out.ComputeStrides()

	got := BroadcastStrides(out, outStrides, Shape{4, 1, 8}, []int64{8, 8, 1})
	int64sEqual(t, got, []int64{8, 0, 1})

	got = BroadcastStrides(out, outStrides, Shape{1, 6, 8}, []int64{48, 8, 1})
	int64sEqual(t, got, []int64{0, 8, 1})

	// Missing leading axes broadcast with stride 0.
	got = BroadcastStrides(out, outStrides, Shape{6, 8}, []int64{8, 1})
	int64sEqual(t, got, []int64{0, 8, 1})

	// Full-rank match keeps the input strides untouched.
	got = BroadcastStrides(out, outStrides, Shape{4, 6, 8}, []int64{100, 10, 1})
	int64sEqual(t, got, []int64{100, 10, 1})
}

func TestBroadcastStridesSizeOneOutputAxis(t *testing.T) {
	// Where the output axis itself has size 1 the output's own stride is
	// reused instead of 0, both for missing leading axes and aligned ones.
	out := Shape{1, 2, 3}
	outStrides := []int64{6, 3, 1}

	got := BroadcastStrides(out, outStrides, Shape{2, 3}, []int64{3, 1})
	int64sEqual(t, got, []int64{6, 3, 1})

	out = Shape{1, 3}
	outStrides = []int64{3, 1}
	got = BroadcastStrides(out, outStrides, Shape{1, 3}, []int64{9, 1})
	int64sEqual(t, got, []int64{3, 1})
}
