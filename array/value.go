package array

import (
	"fmt"
	"reflect"
	"time"
)

// Valuer is implemented by anything that can supply an Array.
type Valuer interface {
	Values() *Array
}

// FromValue converts a Go scalar or slice to an Array. Scalars give rank 0
// arrays. int and uint map to int64 and uint64, bool to uint8 and
// time.Time to an RFC 3339 string.
func FromValue(v any) (*Array, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("array: nil value")
	case Valuer:
		if a := x.Values(); a != nil {
			return a, nil
		}
		return nil, fmt.Errorf("array: nil array")
	case string:
		return Scalar(x), nil
	case float64:
		return Scalar(x), nil
	case float32:
		return Scalar(x), nil
	case int:
		return Scalar(int64(x)), nil
	case int8:
		return Scalar(x), nil
	case int16:
		return Scalar(x), nil
	case int32:
		return Scalar(x), nil
	case int64:
		return Scalar(x), nil
	case uint:
		return Scalar(uint64(x)), nil
	case uint8:
		return Scalar(x), nil
	case uint16:
		return Scalar(x), nil
	case uint32:
		return Scalar(x), nil
	case uint64:
		return Scalar(x), nil
	case bool:
		if x {
			return Scalar(uint8(1)), nil
		}
		return Scalar(uint8(0)), nil
	case time.Time:
		return Scalar(x.Format(time.RFC3339)), nil
	case []int:
		out := make([]int64, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return FromSlice(out), nil
	case []any:
		return fromAnySlice(x)
	}
	return New(v)
}

// fromAnySlice handles decoded YAML and JSON lists, which arrive as []any.
// All elements must be strings or all numeric.
func fromAnySlice(s []any) (*Array, error) {
	if len(s) == 0 {
		return FromSlice([]string{}), nil
	}
	if _, ok := s[0].(string); ok {
		out := make([]string, len(s))
		for i, v := range s {
			str, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("array: mixed list element %T", v)
			}
			out[i] = str
		}
		return FromSlice(out), nil
	}

	ints := make([]int64, len(s))
	floats := make([]float64, len(s))
	allInt := true
	for i, v := range s {
		switch n := v.(type) {
		case int:
			ints[i], floats[i] = int64(n), float64(n)
		case int64:
			ints[i], floats[i] = n, float64(n)
		case float64:
			floats[i] = n
			allInt = false
		default:
			return nil, fmt.Errorf("array: unsupported list element %T", v)
		}
	}
	if allInt {
		return FromSlice(ints), nil
	}
	return FromSlice(floats), nil
}

// Value returns the single element of a rank 0 array, or the flat backing
// slice otherwise.
func (a *Array) Value() any {
	if a.Rank() == 0 {
		switch s := a.data.(type) {
		case []string:
			return s[0]
		case []float64:
			return s[0]
		case []float32:
			return s[0]
		case []int64:
			return s[0]
		case []int32:
			return s[0]
		case []int16:
			return s[0]
		case []int8:
			return s[0]
		case []uint64:
			return s[0]
		case []uint32:
			return s[0]
		case []uint16:
			return s[0]
		case []uint8:
			return s[0]
		}
	}
	return a.data
}

// FromFloat64s converts vals to a one-dimensional array of type dt.
// Values are truncated toward zero for integer types.
func FromFloat64s(dt DType, vals []float64) (*Array, error) {
	if dt == String {
		return nil, fmt.Errorf("array: cannot convert numbers to %v", dt)
	}
	a, err := Zeros(dt, len(vals))
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(a.data)
	for i, f := range vals {
		switch {
		case dt.IsFloat():
			v.Index(i).SetFloat(f)
		case dt.Signed():
			v.Index(i).SetInt(int64(f))
		default:
			v.Index(i).SetUint(uint64(f))
		}
	}
	return a, nil
}
