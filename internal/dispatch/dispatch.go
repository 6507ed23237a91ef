// Package dispatch turns validated tapes into kernel launches: it resolves
// the cached library for a tape's signature, analyzes the call's concrete
// layouts to pick a specialization variant, binds arguments in slot order,
// and submits the launch geometry.
package dispatch

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/born-ml/fuse/internal/codegen"
	"github.com/born-ml/fuse/internal/envconfig"
	"github.com/born-ml/fuse/internal/graph"
	"github.com/born-ml/fuse/internal/metal"
	"github.com/born-ml/fuse/internal/tensor"
)

// Compiled is a tape bound to its signature-derived library name. One
// Compiled serves any number of Eval calls, across shapes, reusing the
// library the first call built.
//
// Eval is safe to call from multiple goroutines only to the extent the
// device's library cache serializes first-time builds; Compiled itself
// holds no mutable state after construction.
type Compiled struct {
	tape    *graph.Tape
	libName string
}

// New validates the tape and derives its cache key.
func New(t *graph.Tape) (*Compiled, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	return &Compiled{tape: t, libName: graph.LibraryName(t)}, nil
}

// LibraryName returns the signature-derived cache key.
func (c *Compiled) LibraryName() string { return c.libName }

// Eval launches the tape over concrete arrays on the stream. Inputs line up
// with the tape's template inputs one to one, including captured constants;
// outputs receive storage from the stream's allocator before binding. The
// launch is enqueued asynchronously, so completion belongs to the stream.
func (c *Compiled) Eval(stream metal.Stream, inputs, outputs []tensor.Array) error {
	if err := c.checkArgs(inputs, outputs); err != nil {
		return err
	}

	lib, err := stream.Device.GetLibrary(c.libName, func() (string, error) {
		src, err := codegen.BuildLibrary(c.tape, c.libName)
		if err != nil {
			return "", err
		}
		slog.Debug("built kernel library", "name", c.libName, "bytes", len(src))
		if envconfig.DumpSource() {
			fmt.Println(src)
		}
		return src, nil
	})
	if err != nil {
		return fmt.Errorf("dispatch: library %s: %w", c.libName, err)
	}

	plan := Analyze(c.tape, inputs, outputs)
	kernelName := c.libName + "_" + plan.Variant()
	slog.Debug("selected kernel variant", "name", kernelName)
	kernel, err := stream.Device.GetKernel(lib, kernelName)
	if err != nil {
		return fmt.Errorf("dispatch: kernel %s: %w", kernelName, err)
	}

	enc := stream.Device.NewEncoder(stream.Index)
	enc.SetKernel(kernel)

	// Bind the non-constant inputs, gathering stride rows for the ones the
	// strided kernel addresses per axis.
	cnt := 0
	strideRow := 1
	var inStrides []int64
	for i, in := range inputs {
		if c.tape.ConstantAt(i) {
			continue
		}
		enc.SetArray(in, cnt)
		cnt++
		if !plan.Contiguous && !tensor.IsScalar(in) {
			inStrides = append(inStrides, plan.Strides[strideRow]...)
			strideRow++
		}
	}
	if len(inStrides) > 0 {
		enc.SetBytes(sizetBytes(inStrides), cnt)
		cnt++
	}

	donatable := make([]bool, len(inputs))
	for i := range inputs {
		donatable[i] = !c.tape.ConstantAt(i)
	}
	if err := stream.Allocator.AllocateOutputs(inputs, outputs, donatable, plan.Contiguous); err != nil {
		return fmt.Errorf("dispatch: kernel %s: allocate outputs: %w", kernelName, err)
	}

	for _, out := range outputs {
		enc.SetArray(out, cnt)
		cnt++
	}
	if !plan.Contiguous {
		enc.SetBytes(sizetBytes(plan.Strides[0]), cnt)
		cnt++
		enc.SetBytes(int32Bytes(plan.Shape), cnt)
		cnt++
		if plan.Dynamic {
			enc.SetBytes(int32Bytes([]int{len(plan.Shape)}), cnt)
			cnt++
		}
	}

	if plan.Contiguous {
		nthreads := uint64(outputs[0].DataSize())
		group := metal.Size{X: min(nthreads, uint64(kernel.MaxTotalThreadsPerThreadgroup())), Y: 1, Z: 1}
		grid := metal.Size{X: nthreads, Y: 1, Z: 1}
		if plan.Big {
			grid, err = metal.Grid2D(outputs[0].Shape(), outputs[0].Strides())
			if err != nil {
				return fmt.Errorf("dispatch: kernel %s: %w", kernelName, err)
			}
		}
		enc.DispatchThreads(grid, group)
		return nil
	}

	ndim := len(plan.Shape)
	dim0, dim1 := 1, 1
	if ndim > 0 {
		dim0 = plan.Shape[ndim-1]
	}
	if ndim > 1 {
		dim1 = plan.Shape[ndim-2]
	}
	rest := outputs[0].Size() / (dim0 * dim1)

	// The strided decomposition assumes exactly this threadgroup capacity.
	if got := kernel.MaxTotalThreadsPerThreadgroup(); got != metal.StridedThreadgroupSize {
		return fmt.Errorf("dispatch: kernel %s: threadgroup capacity is %d, the strided path requires %d",
			kernelName, got, metal.StridedThreadgroupSize)
	}
	enc.DispatchThreads(
		metal.Size{X: uint64(dim0), Y: uint64(dim1), Z: uint64(rest)},
		metal.BlockDims(dim0, dim1, rest),
	)
	return nil
}

// checkArgs verifies the runtime arrays fit the shape class the kernel
// source was generated for.
func (c *Compiled) checkArgs(inputs, outputs []tensor.Array) error {
	if len(inputs) != len(c.tape.Inputs) {
		return fmt.Errorf("dispatch: %s: got %d inputs, the tape has %d", c.libName, len(inputs), len(c.tape.Inputs))
	}
	if len(outputs) != len(c.tape.Outputs) {
		return fmt.Errorf("dispatch: %s: got %d outputs, the tape has %d", c.libName, len(outputs), len(c.tape.Outputs))
	}
	for i, in := range inputs {
		tmpl := c.tape.Inputs[i]
		if in.DType() != tmpl.DType() {
			return fmt.Errorf("dispatch: %s: input %d is %s, the kernel was generated for %s",
				c.libName, i, in.DType(), tmpl.DType())
		}
		if c.tape.ConstantAt(i) && in.ID() != tmpl.ID() {
			return fmt.Errorf("dispatch: %s: input %d is not the captured constant", c.libName, i)
		}
		if tensor.IsScalar(tmpl) != tensor.IsScalar(in) {
			return fmt.Errorf("dispatch: %s: input %d scalar-ness does not match the generated kernel", c.libName, i)
		}
	}
	outShape := outputs[0].Shape()
	for j, out := range outputs {
		if want := c.tape.DTypeOf(c.tape.Outputs[j]); out.DType() != want {
			return fmt.Errorf("dispatch: %s: output %d is %s, the kernel was generated for %s",
				c.libName, j, out.DType(), want)
		}
		if !out.Shape().Equal(outShape) {
			return fmt.Errorf("dispatch: %s: output %d shape %v differs from %v", c.libName, j, out.Shape(), outShape)
		}
	}
	return nil
}

func sizetBytes(v []int64) []byte {
	b := make([]byte, 8*len(v))
	for i, s := range v {
		binary.LittleEndian.PutUint64(b[i*8:], uint64(s))
	}
	return b
}

func int32Bytes(v []int) []byte {
	b := make([]byte, 4*len(v))
	for i, s := range v {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(s))
	}
	return b
}
