package tensor

// Array is a strided view over typed storage. Implementations carry a stable
// identity so constant folding and buffer donation can track specific arrays
// across calls.
type Array interface {
	// ID returns a process-unique identity for the array.
	ID() uint64
	// DType returns the element type.
	DType() DType
	// Shape returns the logical dimensions.
	Shape() Shape
	// Strides returns element strides, one per axis.
	Strides() []int64
	// Size returns the logical element count.
	Size() int
	// DataSize returns the element count of the backing storage. For
	// broadcast views this can be smaller than Size.
	DataSize() int
	// RowContiguous reports whether the view walks its storage in dense
	// row-major order.
	RowContiguous() bool
	// Data returns the raw backing bytes, or nil when storage has not been
	// allocated yet.
	Data() []byte
}

// IsScalar reports whether x holds exactly one element.
func IsScalar(x Array) bool {
	return x.Size() == 1
}
