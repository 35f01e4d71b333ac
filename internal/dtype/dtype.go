// Package dtype maps array element types to file datatypes and converts
// array values to and from their stored bytes.
package dtype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

// ErrUnsupported is returned for datatypes with no array equivalent.
var ErrUnsupported = errors.New("dtype: unsupported datatype")

// For returns the datatype used to store elements of dt. width is the
// fixed string width and is ignored for numeric types.
func For(dt array.DType, width int) (*message.Datatype, error) {
	switch {
	case dt == array.String:
		if width < 1 {
			width = 1
		}
		return message.NewString(width), nil
	case dt.IsFloat():
		return message.NewFloat(dt.Size()), nil
	case dt.IsInteger():
		return message.NewInteger(dt.Size(), dt.Signed()), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupported, dt)
}

var (
	signedTypes   = map[uint32]array.DType{1: array.Int8, 2: array.Int16, 4: array.Int32, 8: array.Int64}
	unsignedTypes = map[uint32]array.DType{1: array.Uint8, 2: array.Uint16, 4: array.Uint32, 8: array.Uint64}
)

// ArrayType returns the array element type of a stored datatype.
func ArrayType(d *message.Datatype) (array.DType, error) {
	switch d.Class {
	case message.ClassString, message.ClassVarLen:
		return array.String, nil
	case message.ClassFloatPoint:
		switch d.Size {
		case 4:
			return array.Float32, nil
		case 8:
			return array.Float64, nil
		}
	case message.ClassFixedPoint:
		m := unsignedTypes
		if d.Signed {
			m = signedTypes
		}
		if dt, ok := m[d.Size]; ok {
			return dt, nil
		}
	}
	return array.Invalid, fmt.Errorf("%w: %v", ErrUnsupported, d)
}

// ByteOrder returns the byte order of d.
func ByteOrder(d *message.Datatype) binary.ByteOrder {
	if d.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Encode returns the datatype and little-endian bytes for a.
func Encode(a *array.Array) (*message.Datatype, []byte, error) {
	width := a.StringWidth()
	d, err := For(a.DType(), width)
	if err != nil {
		return nil, nil, err
	}
	return d, a.Encode(binary.LittleEndian, width), nil
}

// HeapReader returns the global heap object a heap ID points to.
type HeapReader interface {
	Object(id []byte) ([]byte, error)
}

// Decode rebuilds an array of the given shape from stored bytes. heaps
// resolves variable-length strings and may be nil for other types.
func Decode(d *message.Datatype, shape []int, raw []byte, heaps HeapReader) (*array.Array, error) {
	if d.Class == message.ClassVarLen {
		return decodeVarLen(d, shape, raw, heaps)
	}
	dt, err := ArrayType(d)
	if err != nil {
		return nil, err
	}
	return array.Decode(dt, shape, raw, ByteOrder(d), int(d.Size))
}

// decodeVarLen resolves variable-length strings. Each element is a 4-byte
// length followed by the heap ID of the string bytes; a zero length is the
// empty string.
func decodeVarLen(d *message.Datatype, shape []int, raw []byte, heaps HeapReader) (*array.Array, error) {
	n := array.Size(shape)
	size := int(d.Size)
	if size <= 4 || len(raw) < n*size {
		return nil, fmt.Errorf("dtype: %d bytes cannot hold %d variable-length elements of %d bytes", len(raw), n, size)
	}
	if heaps == nil {
		return nil, fmt.Errorf("%w: variable-length strings without a global heap", ErrUnsupported)
	}
	out := make([]string, n)
	for i := range out {
		elem := raw[i*size : (i+1)*size]
		length := int(binary.LittleEndian.Uint32(elem))
		if length == 0 {
			continue
		}
		data, err := heaps.Object(elem[4:])
		if err != nil {
			return nil, fmt.Errorf("variable-length string %d: %w", i, err)
		}
		data = data[:min(length, len(data))]
		out[i] = strings.TrimRight(string(data), "\x00")
	}
	if len(shape) == 0 {
		return array.Scalar(out[0]), nil
	}
	return array.New(out, shape...)
}
