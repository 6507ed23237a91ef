package tensor

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// ReadValue decodes element i of data as a float64. Integer types wider than
// 53 bits lose precision beyond the float64 mantissa.
func ReadValue(dt DType, data []byte, i int64) float64 {
	switch dt {
	case Bool:
		if data[i] != 0 {
			return 1
		}
		return 0
	case Uint8:
		return float64(data[i])
	case Uint16:
		return float64(binary.LittleEndian.Uint16(data[i*2:]))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(data[i*4:]))
	case Uint64:
		return float64(binary.LittleEndian.Uint64(data[i*8:]))
	case Int8:
		return float64(int8(data[i]))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(data[i*2:])))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(data[i*4:])))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(data[i*8:])))
	case Float16:
		return float64(float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32())
	case BFloat16:
		return float64(BFloat16FromBits(binary.LittleEndian.Uint16(data[i*2:])))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	default:
		panic("unknown data type")
	}
}

// WriteValue encodes v into element i of data, converting to dt. Floats
// narrow with round-to-nearest-even, integers truncate toward zero, and bool
// stores 1 for any non-zero value.
func WriteValue(dt DType, data []byte, i int64, v float64) {
	switch dt {
	case Bool:
		if v != 0 {
			data[i] = 1
		} else {
			data[i] = 0
		}
	case Uint8:
		data[i] = uint8(int64(v))
	case Uint16:
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int64(v)))
	case Uint32:
		binary.LittleEndian.PutUint32(data[i*4:], uint32(int64(v)))
	case Uint64:
		binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
	case Int8:
		data[i] = byte(int8(int64(v)))
	case Int16:
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(int64(v))))
	case Int32:
		binary.LittleEndian.PutUint32(data[i*4:], uint32(int32(int64(v))))
	case Int64:
		binary.LittleEndian.PutUint64(data[i*8:], uint64(int64(v)))
	case Float16:
		binary.LittleEndian.PutUint16(data[i*2:], float16.Fromfloat32(float32(v)).Bits())
	case BFloat16:
		binary.LittleEndian.PutUint16(data[i*2:], BFloat16Bits(float32(v)))
	case Float32:
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(float32(v)))
	default:
		panic("unknown data type")
	}
}

// BFloat16FromBits widens a bfloat16 bit pattern to float32.
func BFloat16FromBits(bits uint16) float32 {
	return math.Float32frombits(uint32(bits) << 16)
}

// BFloat16Bits narrows a float32 to a bfloat16 bit pattern with
// round-to-nearest-even.
func BFloat16Bits(f float32) uint16 {
	b := math.Float32bits(f)
	if f != f {
		return uint16(b>>16) | 0x0040
	}
	return uint16((b + 0x7fff + ((b >> 16) & 1)) >> 16)
}
