package array

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes the array to raw bytes in the given byte order. Strings
// are written as fixed-width, null-padded fields of width bytes; width is
// ignored for numeric types.
func (a *Array) Encode(order binary.ByteOrder, width int) []byte {
	n := a.Len()
	if a.dtype == String {
		out := make([]byte, n*width)
		for i, s := range a.data.([]string) {
			copy(out[i*width:(i+1)*width], s)
		}
		return out
	}

	size := a.dtype.Size()
	out := make([]byte, n*size)
	switch s := a.data.(type) {
	case []int8:
		for i, v := range s {
			out[i] = byte(v)
		}
	case []uint8:
		copy(out, s)
	case []int16:
		for i, v := range s {
			order.PutUint16(out[i*2:], uint16(v))
		}
	case []uint16:
		for i, v := range s {
			order.PutUint16(out[i*2:], v)
		}
	case []int32:
		for i, v := range s {
			order.PutUint32(out[i*4:], uint32(v))
		}
	case []uint32:
		for i, v := range s {
			order.PutUint32(out[i*4:], v)
		}
	case []int64:
		for i, v := range s {
			order.PutUint64(out[i*8:], uint64(v))
		}
	case []uint64:
		for i, v := range s {
			order.PutUint64(out[i*8:], v)
		}
	case []float32:
		for i, v := range s {
			order.PutUint32(out[i*4:], math.Float32bits(v))
		}
	case []float64:
		for i, v := range s {
			order.PutUint64(out[i*8:], math.Float64bits(v))
		}
	}
	return out
}

// Decode builds an array of type dt and the given shape from raw bytes.
// For strings width is the fixed field width; trailing NUL bytes are
// trimmed.
func Decode(dt DType, shape []int, raw []byte, order binary.ByteOrder, width int) (*Array, error) {
	n := Size(shape)
	size := dt.Size()
	if dt == String {
		size = width
	}
	if size <= 0 {
		return nil, fmt.Errorf("array: cannot decode %v with element size %d", dt, size)
	}
	if len(raw) < n*size {
		return nil, fmt.Errorf("array: need %d bytes for %v%v, have %d", n*size, dt, shape, len(raw))
	}

	var data any
	switch dt {
	case Int8:
		s := make([]int8, n)
		for i := range s {
			s[i] = int8(raw[i])
		}
		data = s
	case Uint8:
		s := make([]uint8, n)
		copy(s, raw)
		data = s
	case Int16:
		s := make([]int16, n)
		for i := range s {
			s[i] = int16(order.Uint16(raw[i*2:]))
		}
		data = s
	case Uint16:
		s := make([]uint16, n)
		for i := range s {
			s[i] = order.Uint16(raw[i*2:])
		}
		data = s
	case Int32:
		s := make([]int32, n)
		for i := range s {
			s[i] = int32(order.Uint32(raw[i*4:]))
		}
		data = s
	case Uint32:
		s := make([]uint32, n)
		for i := range s {
			s[i] = order.Uint32(raw[i*4:])
		}
		data = s
	case Int64:
		s := make([]int64, n)
		for i := range s {
			s[i] = int64(order.Uint64(raw[i*8:]))
		}
		data = s
	case Uint64:
		s := make([]uint64, n)
		for i := range s {
			s[i] = order.Uint64(raw[i*8:])
		}
		data = s
	case Float32:
		s := make([]float32, n)
		for i := range s {
			s[i] = math.Float32frombits(order.Uint32(raw[i*4:]))
		}
		data = s
	case Float64:
		s := make([]float64, n)
		for i := range s {
			s[i] = math.Float64frombits(order.Uint64(raw[i*8:]))
		}
		data = s
	case String:
		s := make([]string, n)
		for i := range s {
			s[i] = string(bytes.TrimRight(raw[i*width:(i+1)*width], "\x00"))
		}
		data = s
	default:
		return nil, fmt.Errorf("array: unsupported dtype %v", dt)
	}
	return &Array{dtype: dt, shape: append([]int{}, shape...), data: data}, nil
}
