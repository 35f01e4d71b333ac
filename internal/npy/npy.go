// Package npy reads and writes NumPy .npy files holding numeric arrays in
// C order.
package npy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-nwbconv/array"
)

var magic = []byte("\x93NUMPY")

// ErrFormat is returned for files that are not valid .npy files.
var ErrFormat = errors.New("npy: invalid format")

var descrs = map[string]array.DType{
	"|i1": array.Int8,
	"<i2": array.Int16,
	"<i4": array.Int32,
	"<i8": array.Int64,
	"|u1": array.Uint8,
	"|b1": array.Uint8,
	"<u2": array.Uint16,
	"<u4": array.Uint32,
	"<u8": array.Uint64,
	"<f4": array.Float32,
	"<f8": array.Float64,
}

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadFile reads the array stored at path.
func ReadFile(path string) (*array.Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	a, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Read decodes one array from r.
func Read(r io.Reader) (*array.Array, error) {
	pre := make([]byte, 8)
	if _, err := io.ReadFull(r, pre); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if !bytes.Equal(pre[:6], magic) {
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	var headerLen int
	switch pre[6] {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("%w: version %d.%d", ErrFormat, pre[6], pre[7])
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	dt, shape, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if need := array.Size(shape) * dt.Size(); len(raw) < need {
		return nil, fmt.Errorf("%w: %d data bytes for shape %v, need %d", ErrFormat, len(raw), shape, need)
	}
	return array.Decode(dt, shape, raw, binary.LittleEndian, 0)
}

func parseHeader(h string) (array.DType, []int, error) {
	m := descrRe.FindStringSubmatch(h)
	if m == nil {
		return array.Invalid, nil, fmt.Errorf("%w: no descr in header", ErrFormat)
	}
	dt, ok := descrs[m[1]]
	if !ok {
		return array.Invalid, nil, fmt.Errorf("npy: unsupported dtype %s", m[1])
	}
	if m := fortranRe.FindStringSubmatch(h); m != nil && m[1] == "True" {
		return array.Invalid, nil, errors.New("npy: fortran order is not supported")
	}
	m = shapeRe.FindStringSubmatch(h)
	if m == nil {
		return array.Invalid, nil, fmt.Errorf("%w: no shape in header", ErrFormat)
	}
	shape := []int{}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return array.Invalid, nil, fmt.Errorf("%w: shape (%s)", ErrFormat, m[1])
		}
		shape = append(shape, n)
	}
	return dt, shape, nil
}

// WriteFile stores a at path in format version 1.0.
func WriteFile(path string, a *array.Array) error {
	var buf bytes.Buffer
	if err := Write(&buf, a); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Write encodes a to w in format version 1.0.
func Write(w io.Writer, a *array.Array) error {
	descr := ""
	for d, dt := range descrs {
		if dt == a.DType() && d != "|b1" {
			descr = d
		}
	}
	if descr == "" {
		return fmt.Errorf("npy: unsupported dtype %v", a.DType())
	}
	dims := make([]string, a.Rank())
	for i, n := range a.Shape() {
		dims[i] = strconv.Itoa(n)
	}
	shape := strings.Join(dims, ", ")
	if a.Rank() == 1 {
		shape += ","
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, shape)
	// magic, version and length take 10 bytes; the header ends in a newline
	// and the total is padded to a multiple of 64.
	pad := 64 - (10+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	var pre [10]byte
	copy(pre[:], magic)
	pre[6], pre[7] = 1, 0
	binary.LittleEndian.PutUint16(pre[8:], uint16(len(header)))
	if _, err := w.Write(pre[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err := w.Write(a.Encode(binary.LittleEndian, 0))
	return err
}
