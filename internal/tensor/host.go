package tensor

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

var hostIDs atomic.Uint64

// HostArray is an Array backed by process memory. It is the concrete array
// type used for inlined constants, demo tapes, and device fakes.
type HostArray struct {
	id      uint64
	dtype   DType
	shape   Shape
	strides []int64
	data    []byte
}

// NewHost allocates a dense row-major array of the given type and shape.
func NewHost(dt DType, shape Shape) *HostArray {
	h := NewHostNoData(dt, shape)
	h.data = make([]byte, shape.NumElements()*dt.Size())
	return h
}

// NewHostNoData builds an array descriptor without backing storage. The
// dispatcher's allocator attaches storage before launch.
func NewHostNoData(dt DType, shape Shape) *HostArray {
	return &HostArray{
		id:      hostIDs.Add(1),
		dtype:   dt,
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
	}
}

// NewHostView wraps existing storage with explicit strides. The data slice
// is shared, not copied.
func NewHostView(dt DType, shape Shape, strides []int64, data []byte) *HostArray {
	if len(strides) != len(shape) {
		panic("tensor: stride count does not match shape rank")
	}
	return &HostArray{
		id:      hostIDs.Add(1),
		dtype:   dt,
		shape:   shape.Clone(),
		strides: append([]int64(nil), strides...),
		data:    data,
	}
}

// FromFloat32 builds a dense float32 array from vals.
func FromFloat32(shape Shape, vals []float32) *HostArray {
	if len(vals) != shape.NumElements() {
		panic("tensor: value count does not match shape")
	}
	h := NewHost(Float32, shape)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(h.data[i*4:], math.Float32bits(v))
	}
	return h
}

// Scalar builds a zero-rank array holding v converted to dt.
func Scalar(dt DType, v float64) *HostArray {
	h := NewHost(dt, Shape{})
	WriteValue(dt, h.data, 0, v)
	return h
}

// ID returns the array's process-unique identity.
func (h *HostArray) ID() uint64 { return h.id }

// DType returns the element type.
func (h *HostArray) DType() DType { return h.dtype }

// Shape returns the logical dimensions.
func (h *HostArray) Shape() Shape { return h.shape }

// Strides returns element strides, one per axis.
func (h *HostArray) Strides() []int64 { return h.strides }

// Size returns the logical element count.
func (h *HostArray) Size() int { return h.shape.NumElements() }

// DataSize reports the storage element count, falling back to the logical
// size while storage is unallocated.
func (h *HostArray) DataSize() int {
	if h.data == nil {
		return h.shape.NumElements()
	}
	return len(h.data) / h.dtype.Size()
}

// RowContiguous reports whether the strides walk storage in dense row-major
// order. Axes of size 1 never affect addressing and are ignored.
func (h *HostArray) RowContiguous() bool {
	expected := h.shape.ComputeStrides()
	for i, dim := range h.shape {
		if dim > 1 && h.strides[i] != expected[i] {
			return false
		}
	}
	return true
}

// Data returns the raw backing bytes, or nil before allocation.
func (h *HostArray) Data() []byte { return h.data }

// Alloc attaches dense storage sized for the logical element count. It is a
// no-op when storage is already present.
func (h *HostArray) Alloc() {
	if h.data == nil {
		h.data = make([]byte, h.shape.NumElements()*h.dtype.Size())
	}
}

// SetData replaces the backing storage with data, sharing the slice.
func (h *HostArray) SetData(data []byte) { h.data = data }

// Float32s decodes the backing storage as float32 values in storage order.
func (h *HostArray) Float32s() []float32 {
	if h.dtype != Float32 {
		panic("tensor: Float32s on " + h.dtype.String() + " array")
	}
	out := make([]float32, len(h.data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(h.data[i*4:]))
	}
	return out
}
