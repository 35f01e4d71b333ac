// Package heap reads the two heaps of older HDF5 files: the local heap
// ("HEAP") that holds the member names of a version 1 group, and global
// heap collections ("GCOL") that hold variable-length data.
package heap

import (
	"bytes"
	"errors"
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

var (
	localSignature  = []byte("HEAP")
	globalSignature = []byte("GCOL")
)

var (
	ErrBadSignature       = errors.New("heap signature not found")
	ErrUnsupportedVersion = errors.New("unsupported heap version")
	ErrNotFound           = errors.New("heap object not found")
)

// Local is a local heap. Names are NUL-terminated strings addressed by
// their offset in the data segment.
type Local struct {
	data []byte
}

// ReadLocal reads the local heap at addr:
//
//	0  4  signature "HEAP"
//	4  1  version (0)
//	5  3  reserved
//	8  L  data segment size
//	.  L  offset of the free list head
//	.  O  data segment address
func ReadLocal(r *binpkg.Reader, addr uint64) (*Local, error) {
	hr := r.At(int64(addr))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading local heap at 0x%x: %w", addr, err)
	}
	if !bytes.Equal(head[:4], localSignature) {
		return nil, fmt.Errorf("%w: local heap at 0x%x", ErrBadSignature, addr)
	}
	if head[4] != 0 {
		return nil, fmt.Errorf("%w: local heap version %d", ErrUnsupportedVersion, head[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	}
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}
	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("reading local heap data at 0x%x: %w", dataAddr, err)
	}
	return &Local{data: data}, nil
}

// String returns the NUL-terminated string at offset.
func (h *Local) String(offset uint64) (string, error) {
	if offset >= uint64(len(h.data)) {
		return "", fmt.Errorf("%w: offset %d beyond local heap of %d bytes", ErrNotFound, offset, len(h.data))
	}
	s := h.data[offset:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), nil
}
