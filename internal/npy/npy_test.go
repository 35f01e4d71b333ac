package npy

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/robert-malhotra/go-nwbconv/array"
)

func TestRoundTrip(t *testing.T) {
	tests := []*array.Array{
		array.FromSlice([]uint64{3, 1, 4, 1, 5}),
		array.MustNew([]float32{1, 2, 3, 4, 5, 6}, 2, 3),
		array.MustNew([]int32{7, 8, 9, 10, 11, 12, 13, 14}, 2, 2, 2),
		array.Scalar(2.5),
	}
	dir := t.TempDir()
	for i, want := range tests {
		path := filepath.Join(dir, "a.npy")
		if err := WriteFile(path, want); err != nil {
			t.Fatalf("case %d: WriteFile: %v", i, err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("case %d: ReadFile: %v", i, err)
		}
		if !want.Equal(got) {
			t.Errorf("case %d: got %v, want %v", i, got, want)
		}
	}
}

func TestHeaderAlignment(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, array.FromSlice([]int16{1, 2})); err != nil {
		t.Fatal(err)
	}
	headerEnd := buf.Len() - 4
	if headerEnd%64 != 0 {
		t.Errorf("data starts at %d, want a multiple of 64", headerEnd)
	}
	if buf.Bytes()[headerEnd-1] != '\n' {
		t.Error("header must end with a newline")
	}
}

func TestReadNumpyHeader(t *testing.T) {
	// Header as written by numpy for np.arange(3, dtype='<i8').
	header := "{'descr': '<i8', 'fortran_order': False, 'shape': (3,), }"
	header += string(bytes.Repeat([]byte(" "), 128-10-len(header)-1)) + "\n"
	var buf bytes.Buffer
	buf.Write(magic)
	buf.Write([]byte{1, 0, byte(len(header)), 0})
	buf.WriteString(header)
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0})

	a, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want := array.FromSlice([]int64{0, 1, 2})
	if !a.Equal(want) {
		t.Errorf("got %v, want %v", a, want)
	}
}

func TestReadErrors(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("not numpy at all"))); !errors.Is(err, ErrFormat) {
		t.Errorf("bad magic: got %v, want ErrFormat", err)
	}

	header := "{'descr': '<f8', 'fortran_order': True, 'shape': (2, 2), }\n"
	var buf bytes.Buffer
	buf.Write(magic)
	buf.Write([]byte{1, 0, byte(len(header)), 0})
	buf.WriteString(header)
	buf.Write(make([]byte, 32))
	if _, err := Read(&buf); err == nil {
		t.Error("expected error for fortran order")
	}

	header = "{'descr': '<f8', 'fortran_order': False, 'shape': (4,), }\n"
	buf.Reset()
	buf.Write(magic)
	buf.Write([]byte{1, 0, byte(len(header)), 0})
	buf.WriteString(header)
	buf.Write(make([]byte, 8))
	if _, err := Read(&buf); !errors.Is(err, ErrFormat) {
		t.Errorf("short data: got %v, want ErrFormat", err)
	}
}
