// Package array provides the typed N-dimensional array shared by the file
// model and the storage engines.
//
// An Array is a flat Go slice in C (row-major) order plus a shape. A rank 0
// array (empty shape) holds exactly one element.
package array

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrShape is returned when a shape does not match the number of elements.
var ErrShape = errors.New("array: shape does not match data length")

// Element is the set of Go element types an Array can hold.
type Element interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64 | string
}

// Array is a typed N-dimensional array.
type Array struct {
	dtype DType
	shape []int
	data  any
}

// New wraps a flat slice of a supported element type. With no shape the
// array is one-dimensional.
func New(data any, shape ...int) (*Array, error) {
	dt, n, err := inspect(data)
	if err != nil {
		return nil, err
	}
	if len(shape) == 0 {
		shape = []int{n}
	}
	if Size(shape) != n {
		return nil, fmt.Errorf("%w: %d elements, shape %v", ErrShape, n, shape)
	}
	return &Array{dtype: dt, shape: append([]int(nil), shape...), data: data}, nil
}

// MustNew is New that panics on error. It is meant for literals.
func MustNew(data any, shape ...int) *Array {
	a, err := New(data, shape...)
	if err != nil {
		panic(err)
	}
	return a
}

// FromSlice returns a one-dimensional array over s.
func FromSlice[T Element](s []T) *Array {
	return &Array{dtype: dtypeOf[T](), shape: []int{len(s)}, data: s}
}

// Scalar returns a rank 0 array holding v.
func Scalar[T Element](v T) *Array {
	return &Array{dtype: dtypeOf[T](), shape: []int{}, data: []T{v}}
}

// Zeros returns a zero-filled array of the given type and shape.
func Zeros(dt DType, shape ...int) (*Array, error) {
	t, ok := goTypes[dt]
	if !ok {
		return nil, fmt.Errorf("array: unsupported dtype %v", dt)
	}
	n := Size(shape)
	data := reflect.MakeSlice(reflect.SliceOf(t), n, n).Interface()
	return &Array{dtype: dt, shape: append([]int{}, shape...), data: data}, nil
}

// Values returns the typed backing slice of a, or false if T does not match.
func Values[T Element](a *Array) ([]T, bool) {
	if a == nil {
		return nil, false
	}
	s, ok := a.data.([]T)
	return s, ok
}

// Size returns the number of elements described by shape.
func Size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// DType returns the element type.
func (a *Array) DType() DType { return a.dtype }

// Shape returns a copy of the array shape.
func (a *Array) Shape() []int { return append([]int{}, a.shape...) }

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.shape) }

// Len returns the number of elements.
func (a *Array) Len() int { return Size(a.shape) }

// Data returns the flat backing slice.
func (a *Array) Data() any { return a.data }

// Values returns a itself, so an *Array can be used wherever a dataset
// payload is expected.
func (a *Array) Values() *Array { return a }

// Reshape returns an array sharing a's data with a new shape.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	if Size(shape) != a.Len() {
		return nil, fmt.Errorf("%w: %d elements, shape %v", ErrShape, a.Len(), shape)
	}
	return &Array{dtype: a.dtype, shape: append([]int{}, shape...), data: a.data}, nil
}

// Head returns the first n entries along the first axis. The result shares
// data with a.
func (a *Array) Head(n int) *Array {
	if a.Rank() == 0 || n >= a.shape[0] {
		return a
	}
	if n < 0 {
		n = 0
	}
	row := 1
	for _, d := range a.shape[1:] {
		row *= d
	}
	shape := a.Shape()
	shape[0] = n
	v := reflect.ValueOf(a.data).Slice(0, n*row)
	return &Array{dtype: a.dtype, shape: shape, data: v.Interface()}
}

// Float64s converts numeric data to float64. It returns false for strings.
func (a *Array) Float64s() ([]float64, bool) {
	if a.dtype == String {
		return nil, false
	}
	if s, ok := a.data.([]float64); ok {
		return s, true
	}
	v := reflect.ValueOf(a.data)
	out := make([]float64, v.Len())
	for i := range out {
		e := v.Index(i)
		switch {
		case a.dtype.IsFloat():
			out[i] = e.Float()
		case a.dtype.Signed():
			out[i] = float64(e.Int())
		default:
			out[i] = float64(e.Uint())
		}
	}
	return out, true
}

// StringWidth returns the longest string length in bytes, at least 1.
// It is 0 for numeric arrays.
func (a *Array) StringWidth() int {
	s, ok := a.data.([]string)
	if !ok {
		return 0
	}
	w := 1
	for _, v := range s {
		if len(v) > w {
			w = len(v)
		}
	}
	return w
}

// Equal reports whether a and b have the same type, shape and values.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.dtype != b.dtype || !reflect.DeepEqual(a.shape, b.shape) {
		return false
	}
	return reflect.DeepEqual(a.data, b.data)
}

func (a *Array) String() string {
	dims := make([]string, len(a.shape))
	for i, d := range a.shape {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("%s[%s]", a.dtype, strings.Join(dims, " "))
}

func inspect(data any) (DType, int, error) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return Invalid, 0, fmt.Errorf("array: expected a slice, got %T", data)
	}
	dt, ok := kinds[v.Type().Elem().Kind()]
	if !ok || v.Type().Elem() != goTypes[dt] {
		return Invalid, 0, fmt.Errorf("array: unsupported element type %s", v.Type().Elem())
	}
	return dt, v.Len(), nil
}

func dtypeOf[T Element]() DType {
	var zero T
	return kinds[reflect.TypeOf(zero).Kind()]
}
