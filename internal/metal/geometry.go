package metal

import (
	"fmt"
	"math"

	"github.com/born-ml/fuse/internal/tensor"
)

// threadgroupPow is log2(StridedThreadgroupSize).
const threadgroupPow = 10

// BlockDims picks a power-of-two threadgroup extent for a three-dimensional
// launch. It grows the three axes round-robin, never past the next power of
// two above the axis's thread count, until the group reaches
// StridedThreadgroupSize threads or no axis can grow further.
func BlockDims(dim0, dim1, dim2 int) Size {
	var pows [3]int
	dims := [3]int{dim0, dim1, dim2}
	sum := 0
	for {
		presum := sum
		for i := 0; i < 3; i++ {
			if dims[i] >= 1<<(pows[i]+1) {
				pows[i]++
				sum++
			}
			if sum == threadgroupPow {
				break
			}
		}
		if sum == presum || sum == threadgroupPow {
			break
		}
	}
	return Size{X: 1 << pows[0], Y: 1 << pows[1], Z: 1 << pows[2]}
}

// Grid2D factors an array's element count into a two-dimensional grid whose
// axes both fit in 32 bits, for kernels that rebuild a 64-bit linear index
// from pos.x and pos.y. Axes with stride 0 revisit storage and contribute no
// threads.
func Grid2D(shape tensor.Shape, strides []int64) (Size, error) {
	gridX, gridY := uint64(1), uint64(1)
	for i := range shape {
		if strides[i] == 0 {
			continue
		}
		dim := uint64(shape[i])
		if gridX*dim < math.MaxUint32 {
			gridX *= dim
		} else {
			gridY *= dim
		}
	}
	if gridY > math.MaxUint32 || gridX > math.MaxUint32 {
		return Size{}, fmt.Errorf("metal: unable to factor shape %v into a 2-D grid", shape)
	}
	if gridY > gridX {
		gridX, gridY = gridY, gridX
	}
	return Size{X: gridX, Y: gridY, Z: 1}, nil
}
