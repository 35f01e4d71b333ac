package zarr

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/robert-malhotra/go-nwbconv/array"
)

const (
	groupKey = ".zgroup"
	arrayKey = ".zarray"
	attrsKey = ".zattrs"
)

// encoder writes metadata documents; decoder keeps numbers as json.Number
// so integers and floats can be told apart.
var (
	encoder = jsoniter.Config{
		EscapeHTML:             false,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
	}.Froze()
	decoder = jsoniter.Config{
		EscapeHTML:             false,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		UseNumber:              true,
	}.Froze()
)

// Compressor is the numcodecs compressor entry of .zarray.
type Compressor struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// ArrayMeta is the Zarr v2 .zarray document.
type ArrayMeta struct {
	ZarrFormat         int         `json:"zarr_format"`
	Shape              []int       `json:"shape"`
	Chunks             []int       `json:"chunks"`
	DType              string      `json:"dtype"`
	Compressor         *Compressor `json:"compressor"`
	FillValue          any         `json:"fill_value"`
	Order              string      `json:"order"`
	Filters            []any       `json:"filters"`
	DimensionSeparator string      `json:"dimension_separator,omitempty"`
}

type groupMeta struct {
	ZarrFormat int `json:"zarr_format"`
}

func (m *ArrayMeta) validate() error {
	if m.ZarrFormat != 2 {
		return fmt.Errorf("unsupported zarr_format: %d, expected 2", m.ZarrFormat)
	}
	if len(m.Shape) != len(m.Chunks) {
		return fmt.Errorf("shape %v and chunks %v differ in rank", m.Shape, m.Chunks)
	}
	for i, c := range m.Chunks {
		if c <= 0 {
			return fmt.Errorf("chunk dimension %d is %d", i, c)
		}
	}
	if m.Order != "" && m.Order != "C" {
		return fmt.Errorf("unsupported order %q", m.Order)
	}
	if len(m.Filters) > 0 {
		return fmt.Errorf("array filters are not supported")
	}
	return nil
}

func (m *ArrayMeta) separator() string {
	if m.DimensionSeparator != "" {
		return m.DimensionSeparator
	}
	return "."
}

var dtypeCodes = map[array.DType]string{
	array.Int8:    "|i1",
	array.Int16:   "<i2",
	array.Int32:   "<i4",
	array.Int64:   "<i8",
	array.Uint8:   "|u1",
	array.Uint16:  "<u2",
	array.Uint32:  "<u4",
	array.Uint64:  "<u8",
	array.Float32: "<f4",
	array.Float64: "<f8",
}

// DTypeCode returns the numpy type string for dt. Strings are stored as
// fixed-width bytes, "|S<width>".
func DTypeCode(dt array.DType, width int) (string, error) {
	if dt == array.String {
		return "|S" + strconv.Itoa(max(width, 1)), nil
	}
	if code, ok := dtypeCodes[dt]; ok {
		return code, nil
	}
	return "", fmt.Errorf("zarr: unsupported dtype %v", dt)
}

// ParseDType parses a numpy type string such as "<f4" or "|S12" and
// returns the element type and its size in bytes.
func ParseDType(s string) (array.DType, int, error) {
	if len(s) < 3 {
		return array.Invalid, 0, fmt.Errorf("invalid dtype: %s", s)
	}
	if s[0] == '>' {
		return array.Invalid, 0, fmt.Errorf("big-endian types are unsupported: %s", s)
	}
	size, err := strconv.Atoi(s[2:])
	if err != nil || size <= 0 {
		return array.Invalid, 0, fmt.Errorf("invalid size in dtype: %s", s)
	}
	if s[1] == 'S' {
		return array.String, size, nil
	}
	code := "<" + s[1:]
	if size == 1 {
		code = "|" + s[1:]
	}
	for dt, c := range dtypeCodes {
		if c == code {
			return dt, size, nil
		}
	}
	return array.Invalid, 0, fmt.Errorf("unsupported dtype: %s", s)
}

// fillArray expands the fill value of m into n elements.
func (m *ArrayMeta) fillArray(dt array.DType, n int) (*array.Array, error) {
	if m.FillValue == nil || dt == array.String {
		return array.Zeros(dt, n)
	}
	f, err := fillNumber(m.FillValue)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = f
	}
	return array.FromFloat64s(dt, vals)
}

func fillNumber(v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		switch x {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
	}
	return 0, fmt.Errorf("unsupported fill_value %v", v)
}

// jsonFloat marshals with a decimal point so that it reads back as a
// float rather than an integer.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return []byte(s), nil
}

// encodeAttr prepares an attribute value for JSON.
func encodeAttr(v any) any {
	switch x := v.(type) {
	case *array.Array:
		return encodeAttr(x.Value())
	case float64:
		return jsonFloat(x)
	case float32:
		return jsonFloat(x)
	case []float64:
		out := make([]jsonFloat, len(x))
		for i, f := range x {
			out[i] = jsonFloat(f)
		}
		return out
	case []float32:
		out := make([]jsonFloat, len(x))
		for i, f := range x {
			out[i] = jsonFloat(f)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeAttr(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = encodeAttr(e)
		}
		return out
	}
	return v
}

// decodeAttr turns json.Number into int64 or float64.
func decodeAttr(v any) any {
	switch x := v.(type) {
	case json.Number:
		if !strings.ContainsAny(string(x), ".eE") {
			if n, err := x.Int64(); err == nil {
				return n
			}
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i, e := range x {
			x[i] = decodeAttr(e)
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = decodeAttr(e)
		}
		return x
	}
	return v
}
