package tensor

// CollapseDims folds adjacent axes that every stride vector walks
// contiguously into single larger axes, and drops axes of size 1. An axis
// merges into its left neighbor only when stride[i]*shape[i] == stride[i-1]
// holds for all vectors and the merged run stays within sizeCap elements.
// The merged axis keeps the stride of its innermost member. A shape that
// collapses away entirely comes back as {1} with zero strides so callers
// always have at least one axis to address.
//
// Row order of strides is preserved: strides[j] in maps to row j out.
func CollapseDims(shape []int, strides [][]int64, sizeCap int64) ([]int, [][]int64) {
	var toCollapse []int
	if len(shape) > 0 {
		if shape[0] != 1 {
			toCollapse = append(toCollapse, 0)
		}
		size := int64(shape[0])
		for i := 1; i < len(shape); i++ {
			contiguous := true
			size *= int64(shape[i])
			for _, st := range strides {
				if st[i]*int64(shape[i]) != st[i-1] || size > sizeCap {
					contiguous = false
					size = int64(shape[i])
					break
				}
			}
			if !contiguous {
				toCollapse = append(toCollapse, -1)
			}
			if shape[i] != 1 {
				toCollapse = append(toCollapse, i)
			}
		}
		toCollapse = append(toCollapse, -1)
	}

	var outShape []int
	outStrides := make([][]int64, len(strides))
	for i := 0; i < len(toCollapse); {
		for i < len(toCollapse) && toCollapse[i] == -1 {
			i++
		}
		if i == len(toCollapse) {
			break
		}
		current := shape[toCollapse[i]]
		last := i
		for last+1 < len(toCollapse) && toCollapse[last+1] != -1 {
			last++
			current *= shape[toCollapse[last]]
		}
		outShape = append(outShape, current)
		for j, st := range strides {
			outStrides[j] = append(outStrides[j], st[toCollapse[last]])
		}
		i = last + 1
	}

	if len(outShape) == 0 {
		outShape = append(outShape, 1)
		for j := range outStrides {
			outStrides[j] = append(outStrides[j], 0)
		}
	}
	return outShape, outStrides
}

// BroadcastStrides expands an input's strides to the output's rank. Extra
// leading output axes and axes the input covers with size 1 get stride 0 so
// the same element is revisited, except where the output axis itself has
// size 1: there the output's own stride is reused, which keeps collapse
// decisions consistent across all stride rows.
//
// The input shape must be broadcast-compatible with the output shape.
func BroadcastStrides(outShape Shape, outStrides []int64, inShape Shape, inStrides []int64) []int64 {
	strides := make([]int64, 0, len(outShape))
	j := 0
	for ; j < len(outShape)-len(inShape); j++ {
		if outShape[j] == 1 {
			strides = append(strides, outStrides[j])
		} else {
			strides = append(strides, 0)
		}
	}
	for i := 0; i < len(inShape); i, j = i+1, j+1 {
		switch {
		case inShape[i] == 1 && outShape[j] == 1:
			strides = append(strides, outStrides[j])
		case inShape[i] == 1:
			strides = append(strides, 0)
		default:
			strides = append(strides, inStrides[i])
		}
	}
	return strides
}
