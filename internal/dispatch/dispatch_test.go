package dispatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/metal"
	"github.com/born-ml/fuse/internal/metal/metaltest"
	"github.com/born-ml/fuse/internal/tensor"
)

// scaleAddTape is (x + y) * 2 over length-1000 vectors, the 2 captured as a
// constant.
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

// vaddTape is x + y over the given arrays.
func vaddTape(tb testing.TB, x, y tensor.Array) *graph.Tape {
	tb.Helper()
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

func TestEvalContiguous(t *testing.T) {
	tape := scaleAddTape(t)
	c, err := New(tape)
	require.NoError(t, err)

	xs := make([]float32, 1000)
	ys := make([]float32, 1000)
	for i := range xs {
		xs[i] = float32(i)
		ys[i] = float32(2 * i)
	}
	x := tensor.FromFloat32(tensor.Shape{1000}, xs)
	y := tensor.FromFloat32(tensor.Shape{1000}, ys)
	out := tensor.NewHostNoData(tensor.Float32, tensor.Shape{1000})

	stream, dev, _ := metaltest.NewStream()
	require.NoError(t, c.Eval(stream, []tensor.Array{x, y, tape.Inputs[2]}, []tensor.Array{out}))

	enc := dev.LastEncoder()
	require.NotNil(t, enc)
	assert.Equal(t, c.LibraryName()+"_contiguous", enc.Kernel.Name())
	assert.Equal(t, metal.Size{X: 1000, Y: 1, Z: 1}, enc.Grid)
	assert.Equal(t, metal.Size{X: 1000, Y: 1, Z: 1}, enc.Group)

	// Two inputs and one output, no stride tables, and the constant never
	// occupies a slot.
	require.Len(t, enc.Args, 3)
	assert.Equal(t, x.ID(), enc.Args[0].Array.ID())
	assert.Equal(t, y.ID(), enc.Args[1].Array.ID())
	assert.Equal(t, out.ID(), enc.Args[2].Array.ID())
	for slot, arg := range enc.Args {
		if arg.Array != nil && arg.Array.ID() == tape.Inputs[2].ID() {
			t.Errorf("constant bound at slot %d", slot)
		}
	}

	require.NoError(t, metaltest.Run(tape, enc))
	want := make([]float64, 1000)
	got := make([]float64, 1000)
	for i, v := range out.Float32s() {
		want[i] = (float64(xs[i]) + float64(ys[i])) * 2
		got[i] = float64(v)
	}
	assert.True(t, floats.EqualApprox(want, got, 1e-6))
}

func TestEvalStrided(t *testing.T) {
	xs := make([]float32, 4*8)
	for i := range xs {
		xs[i] = float32(i)
	}
	ys := make([]float32, 6*8)
	for i := range ys {
		ys[i] = float32(100 + i)
	}
	x := tensor.FromFloat32(tensor.Shape{4, 1, 8}, xs)
	y := tensor.FromFloat32(tensor.Shape{1, 6, 8}, ys)
	tape := vaddTape(t, x, y)
	c, err := New(tape)
	require.NoError(t, err)

	want := make([]float32, 4*6*8)
	for i0 := 0; i0 < 4; i0++ {
		for i1 := 0; i1 < 6; i1++ {
			for i2 := 0; i2 < 8; i2++ {
				want[i0*48+i1*8+i2] = xs[i0*8+i2] + ys[i1*8+i2]
			}
		}
	}

	stream, dev, _ := metaltest.NewStream()

	out := tensor.NewHostNoData(tensor.Float32, tensor.Shape{4, 6, 8})
	require.NoError(t, c.Eval(stream, []tensor.Array{x, y}, []tensor.Array{out}))

	enc := dev.LastEncoder()
	require.NotNil(t, enc)
	assert.Equal(t, c.LibraryName()+"_strided_3", enc.Kernel.Name())
	assert.Equal(t, metal.Size{X: 8, Y: 6, Z: 4}, enc.Grid)
	assert.Equal(t, metal.Size{X: 8, Y: 4, Z: 4}, enc.Group)

	// Slot order: inputs, their stride rows, output, output layout. The
	// broadcast axes carry zero strides.
	require.Len(t, enc.Args, 6)
	assert.Equal(t, x.ID(), enc.Args[0].Array.ID())
	assert.Equal(t, y.ID(), enc.Args[1].Array.ID())
	assert.Equal(t, sizetBytes([]int64{8, 0, 1, 0, 8, 1}), enc.Args[2].Bytes)
	assert.Equal(t, out.ID(), enc.Args[3].Array.ID())
	assert.Equal(t, sizetBytes([]int64{48, 8, 1}), enc.Args[4].Bytes)
	assert.Equal(t, int32Bytes([]int{4, 6, 8}), enc.Args[5].Bytes)

	require.NoError(t, metaltest.Run(tape, enc))
	assert.Equal(t, want, out.Float32s())

	// The dynamic-rank kernel over the same call computes the same thing
	// from the same library build.
	t.Run("ForceDynamic", func(t *testing.T) {
		t.Setenv("FUSE_FORCE_DYNAMIC", "1")

		out2 := tensor.NewHostNoData(tensor.Float32, tensor.Shape{4, 6, 8})
		require.NoError(t, c.Eval(stream, []tensor.Array{x, y}, []tensor.Array{out2}))

		enc2 := dev.LastEncoder()
		require.NotNil(t, enc2)
		assert.Equal(t, c.LibraryName()+"_strided_dynamic", enc2.Kernel.Name())
		require.Len(t, enc2.Args, 7)
		assert.Equal(t, int32Bytes([]int{3}), enc2.Args[6].Bytes)

		require.NoError(t, metaltest.Run(tape, enc2))
		assert.Equal(t, want, out2.Float32s())
		assert.Equal(t, 1, dev.Builds(c.LibraryName()))
	})
}

func TestEvalDynamicRank(t *testing.T) {
	shape8 := tensor.Shape{2, 2, 2, 2, 2, 2, 2, 2}
	xs := make([]float32, 256)
	for i := range xs {
		xs[i] = float32(i)
	}
	ys := make([]float32, 16)
	for i := range ys {
		ys[i] = float32(1000 + i)
	}
	x := tensor.FromFloat32(shape8, xs)
	y := tensor.FromFloat32(tensor.Shape{1, 2, 1, 2, 1, 2, 1, 2}, ys)
	tape := vaddTape(t, x, y)
	c, err := New(tape)
	require.NoError(t, err)

	stream, dev, _ := metaltest.NewStream()
	out := tensor.NewHostNoData(tensor.Float32, shape8)
	require.NoError(t, c.Eval(stream, []tensor.Array{x, y}, []tensor.Array{out}))

	enc := dev.LastEncoder()
	require.NotNil(t, enc)
	assert.Equal(t, c.LibraryName()+"_strided_dynamic", enc.Kernel.Name())
	assert.Equal(t, metal.Size{X: 2, Y: 2, Z: 64}, enc.Grid)
	assert.Equal(t, metal.Size{X: 2, Y: 2, Z: 64}, enc.Group)
	require.Len(t, enc.Args, 7)
	assert.Equal(t, int32Bytes([]int{8}), enc.Args[6].Bytes)

	require.NoError(t, metaltest.Run(tape, enc))
	got := out.Float32s()
	for idx := 0; idx < 256; idx++ {
		i1 := (idx >> 6) & 1
		i3 := (idx >> 4) & 1
		i5 := (idx >> 2) & 1
		i7 := idx & 1
		want := xs[idx] + ys[i1*8+i3*4+i5*2+i7]
		if got[idx] != want {
			t.Fatalf("out[%d] = %v, want %v", idx, got[idx], want)
		}
	}
}

func TestEvalContiguousBig(t *testing.T) {
	big := tensor.Shape{1 << 16, 1<<16 + 1}
	x := tensor.NewHostNoData(tensor.Float32, big)
	y := tensor.NewHostNoData(tensor.Float32, big)
	tape := vaddTape(t, x, y)
	c, err := New(tape)
	require.NoError(t, err)

	stream, dev, alloc := metaltest.NewStream()
	alloc.NoAlloc = true

	out := tensor.NewHostNoData(tensor.Float32, big)
	require.NoError(t, c.Eval(stream, []tensor.Array{x, y}, []tensor.Array{out}))

	enc := dev.LastEncoder()
	require.NotNil(t, enc)
	assert.Equal(t, c.LibraryName()+"_contiguous_big", enc.Kernel.Name())
	assert.Equal(t, metal.Size{X: 1<<16 + 1, Y: 1 << 16, Z: 1}, enc.Grid)
	assert.Equal(t, metal.Size{X: 1024, Y: 1, Z: 1}, enc.Group)
	assert.True(t, enc.Dispatched)
}

func TestEvalThreadgroupMismatch(t *testing.T) {
	x := tensor.NewHost(tensor.Float32, tensor.Shape{4, 1, 8})
	y := tensor.NewHost(tensor.Float32, tensor.Shape{1, 6, 8})
	tape := vaddTape(t, x, y)
	c, err := New(tape)
	require.NoError(t, err)

	stream, dev, _ := metaltest.NewStream()
	dev.MaxThreads = 512

	out := tensor.NewHostNoData(tensor.Float32, tensor.Shape{4, 6, 8})
	err = c.Eval(stream, []tensor.Array{x, y}, []tensor.Array{out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), c.LibraryName()+"_strided_3")
	assert.Contains(t, err.Error(), "threadgroup capacity is 512")
	assert.False(t, dev.LastEncoder().Dispatched)
}

func TestEvalArgumentOverflow(t *testing.T) {
	tape := chainTape(t, 31)
	c, err := New(tape)
	require.NoError(t, err)

	stream, dev, _ := metaltest.NewStream()
	out := tensor.NewHostNoData(tensor.Float32, tensor.Shape{16})
	err = c.Eval(stream, tape.Inputs, []tensor.Array{out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), c.LibraryName()+"_contiguous")
	assert.Contains(t, err.Error(), "binds 32 argument buffers, the limit is 31")

	// Generation ran and failed; nothing was compiled or dispatched.
	assert.Equal(t, 1, dev.Builds(c.LibraryName()))
	assert.Nil(t, dev.LastEncoder())
}

func TestEvalBuildsLibraryOnce(t *testing.T) {
	tape := scaleAddTape(t)
	c, err := New(tape)
	require.NoError(t, err)

	stream, dev, _ := metaltest.NewStream()
	x := tensor.NewHost(tensor.Float32, tensor.Shape{1000})
	y := tensor.NewHost(tensor.Float32, tensor.Shape{1000})
	for i := 0; i < 2; i++ {
		out := tensor.NewHostNoData(tensor.Float32, tensor.Shape{1000})
		require.NoError(t, c.Eval(stream, []tensor.Array{x, y, tape.Inputs[2]}, []tensor.Array{out}))
	}
	assert.Equal(t, 1, dev.Builds(c.LibraryName()))

	// A structurally identical tape over different arrays shares the
	// cached library.
	tape2 := scaleAddTape(t)
	c2, err := New(tape2)
	require.NoError(t, err)
	require.Equal(t, c.LibraryName(), c2.LibraryName())

	out := tensor.NewHostNoData(tensor.Float32, tensor.Shape{1000})
	require.NoError(t, c2.Eval(stream, []tensor.Array{tape2.Inputs[0], tape2.Inputs[1], tape2.Inputs[2]}, []tensor.Array{out}))
	assert.Equal(t, 1, dev.Builds(c.LibraryName()))
}

func TestEvalDonatesInputStorage(t *testing.T) {
	tape := scaleAddTape(t)
	c, err := New(tape)
	require.NoError(t, err)

	xs := make([]float32, 1000)
	ys := make([]float32, 1000)
	want := make([]float32, 1000)
	for i := range xs {
		xs[i] = float32(i)
		ys[i] = float32(i % 7)
		want[i] = (xs[i] + ys[i]) * 2
	}
	x := tensor.FromFloat32(tensor.Shape{1000}, xs)
	y := tensor.FromFloat32(tensor.Shape{1000}, ys)
	out := tensor.NewHostNoData(tensor.Float32, tensor.Shape{1000})

	stream, dev, alloc := metaltest.NewStream()
	alloc.Donate = true
	require.NoError(t, c.Eval(stream, []tensor.Array{x, y, tape.Inputs[2]}, []tensor.Array{out}))

	require.NotNil(t, out.Data())
	assert.True(t, &out.Data()[0] == &x.Data()[0], "output did not reuse the donated input buffer")

	require.NoError(t, metaltest.Run(tape, dev.LastEncoder()))
	assert.Equal(t, want, out.Float32s())
}

func TestEvalRejectsMismatchedArgs(t *testing.T) {
	tape := scaleAddTape(t)
	c, err := New(tape)
	require.NoError(t, err)

	x := tensor.NewHost(tensor.Float32, tensor.Shape{1000})
	y := tensor.NewHost(tensor.Float32, tensor.Shape{1000})
	two := tape.Inputs[2]
	out := func() tensor.Array { return tensor.NewHostNoData(tensor.Float32, tensor.Shape{1000}) }

	tests := []struct {
		name    string
		inputs  []tensor.Array
		outputs []tensor.Array
		want    string
	}{
		{
			"MissingInput",
			[]tensor.Array{x, y},
			[]tensor.Array{out()},
			"got 2 inputs, the tape has 3",
		},
		{
			"NoOutputs",
			[]tensor.Array{x, y, two},
			nil,
			"got 0 outputs, the tape has 1",
		},
		{
			"InputDType",
			[]tensor.Array{tensor.NewHost(tensor.Int32, tensor.Shape{1000}), y, two},
			[]tensor.Array{out()},
			"input 0 is int32, the kernel was generated for float32",
		},
		{
			"InputScalarness",
			[]tensor.Array{tensor.NewHost(tensor.Float32, tensor.Shape{1}), y, two},
			[]tensor.Array{out()},
			"scalar-ness",
		},
		{
			"SwappedConstant",
			[]tensor.Array{x, y, tensor.Scalar(tensor.Float32, 2)},
			[]tensor.Array{out()},
			"not the captured constant",
		},
		{
			"OutputDType",
			[]tensor.Array{x, y, two},
			[]tensor.Array{tensor.NewHostNoData(tensor.Float16, tensor.Shape{1000})},
			"output 0 is float16, the kernel was generated for float32",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, dev, _ := metaltest.NewStream()
			err := c.Eval(stream, tt.inputs, tt.outputs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Nil(t, dev.LastEncoder())
		})
	}
}

func TestEvalRejectsRaggedOutputs(t *testing.T) {
	x := tensor.NewHost(tensor.Float32, tensor.Shape{1000})
	y := tensor.NewHost(tensor.Float32, tensor.Shape{1000})
	tape := &graph.Tape{
		Inputs: []tensor.Array{x, y},
		Nodes: []graph.Node{
			{Op: graph.Add{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(0), graph.InputRef(1)}},
			{Op: graph.Subtract{}, DType: tensor.Float32, Args: []graph.Ref{graph.InputRef(0), graph.InputRef(1)}},
		},
		Outputs:   []graph.Ref{graph.NodeRef(0), graph.NodeRef(1)},
		Constants: graph.ConstantSet(),
	}
	c, err := New(tape)
	require.NoError(t, err)

	stream, _, _ := metaltest.NewStream()
	outs := []tensor.Array{
		tensor.NewHostNoData(tensor.Float32, tensor.Shape{1000}),
		tensor.NewHostNoData(tensor.Float32, tensor.Shape{999}),
	}
	err = c.Eval(stream, []tensor.Array{x, y}, outs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output 1 shape [999] differs from [1000]")
}

func TestNewRejectsInvalidTape(t *testing.T) {
	_, err := New(&graph.Tape{Constants: graph.ConstantSet()})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "dispatch: "))
}
