package codegen

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/x448/float16"

	"github.com/born-ml/fuse/internal/tensor"
)

// FormatConstant renders a constant input's scalar value as an MSL literal.
// Floats use the shortest decimal that round-trips, with INFINITY and NAN
// spelled as the metal_math macros.
func FormatConstant(in tensor.Array) (string, error) {
	dt := in.DType()
	data := in.Data()
	if len(data) < dt.Size() {
		return "", fmt.Errorf("constant input %d has no data", in.ID())
	}

	switch dt {
	case tensor.Bool:
		if data[0] != 0 {
			return "true", nil
		}
		return "false", nil
	case tensor.Uint8:
		return strconv.FormatUint(uint64(data[0]), 10), nil
	case tensor.Uint16:
		return strconv.FormatUint(uint64(binary.LittleEndian.Uint16(data)), 10), nil
	case tensor.Uint32:
		return strconv.FormatUint(uint64(binary.LittleEndian.Uint32(data)), 10), nil
	case tensor.Uint64:
		return strconv.FormatUint(binary.LittleEndian.Uint64(data), 10), nil
	case tensor.Int8:
		return strconv.FormatInt(int64(int8(data[0])), 10), nil
	case tensor.Int16:
		return strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(data))), 10), nil
	case tensor.Int32:
		return strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(data))), 10), nil
	case tensor.Int64:
		return strconv.FormatInt(int64(binary.LittleEndian.Uint64(data)), 10), nil
	case tensor.Float16:
		return formatFloat(float16.Frombits(binary.LittleEndian.Uint16(data)).Float32()), nil
	case tensor.BFloat16:
		return formatFloat(tensor.BFloat16FromBits(binary.LittleEndian.Uint16(data))), nil
	case tensor.Float32:
		return formatFloat(math.Float32frombits(binary.LittleEndian.Uint32(data))), nil
	default:
		return "", fmt.Errorf("constant dtype %s is not representable", dt)
	}
}

func formatFloat(f float32) string {
	switch {
	case math.IsInf(float64(f), 1):
		return "INFINITY"
	case math.IsInf(float64(f), -1):
		return "-INFINITY"
	case math.IsNaN(float64(f)):
		return "NAN"
	}
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
