// Package tensor provides element types, shapes, and the strided array views
// consumed by the fused kernel pipeline.
package tensor

// DType identifies the element type of an array.
type DType int

// Supported element types.
const (
	Bool DType = iota
	Uint8
	Uint16
	Uint32
	Uint64
	Int8
	Int16
	Int32
	Int64
	Float16
	BFloat16
	Float32
)

// Size returns the byte size of one element.
func (dt DType) Size() int {
	switch dt {
	case Bool, Uint8, Int8:
		return 1
	case Uint16, Int16, Float16, BFloat16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the element type.
func (dt DType) String() string {
	switch dt {
	case Bool:
		return "bool"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	case Float32:
		return "float32"
	default:
		return "unknown"
	}
}

// Kind returns a one-letter category code used in kernel cache keys: 'b' for
// bool, 'u' for unsigned integers, 'i' for signed integers, 'f' for IEEE
// floats, and 'V' for bfloat16.
func (dt DType) Kind() byte {
	switch dt {
	case Bool:
		return 'b'
	case Uint8, Uint16, Uint32, Uint64:
		return 'u'
	case Int8, Int16, Int32, Int64:
		return 'i'
	case Float16, Float32:
		return 'f'
	case BFloat16:
		return 'V'
	default:
		panic("unknown data type")
	}
}

// MSL returns the Metal Shading Language scalar type for the element type.
func (dt DType) MSL() string {
	switch dt {
	case Bool:
		return "bool"
	case Uint8:
		return "uint8_t"
	case Uint16:
		return "uint16_t"
	case Uint32:
		return "uint32_t"
	case Uint64:
		return "uint64_t"
	case Int8:
		return "int8_t"
	case Int16:
		return "int16_t"
	case Int32:
		return "int32_t"
	case Int64:
		return "int64_t"
	case Float16:
		return "half"
	case BFloat16:
		return "bfloat16_t"
	case Float32:
		return "float"
	default:
		panic("unknown data type")
	}
}

// WGSL returns the WGSL storage scalar for the element type. WGSL has no
// 8, 16, or 64 bit storage scalars, so only a subset is representable; ok
// reports whether the type exists.
func (dt DType) WGSL() (wgsl string, ok bool) {
	switch dt {
	case Uint32:
		return "u32", true
	case Int32:
		return "i32", true
	case Float32:
		return "f32", true
	default:
		return "", false
	}
}
