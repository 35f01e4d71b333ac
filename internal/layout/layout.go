// Package layout writes and reads dataset storage: contiguous blocks and
// chunked data indexed by a fixed array. Compact data and chunks indexed
// by a version 1 B-tree, single chunk or implicit index are also read.
//
// Chunks are always stored at full chunk size. Edge chunks are padded with
// zeros on write and trimmed to the dataset extent on read.
package layout

import (
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/internal/alloc"
	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/filter"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

var (
	ErrBadSignature = errors.New("layout: bad index signature")
	ErrChecksum     = errors.New("layout: index checksum mismatch")
	ErrUnsupported  = errors.New("layout: unsupported storage")
)

// WriteContiguous stores data in one block. Empty data gets an undefined
// address.
func WriteContiguous(w io.WriterAt, al *alloc.Allocator, cfg binpkg.Config, data []byte) (*message.Layout, error) {
	if len(data) == 0 {
		return message.NewContiguousLayout(cfg.UndefinedAddress(), 0), nil
	}
	addr := al.Alloc(uint64(len(data)), alloc.KindRaw)
	if _, err := w.WriteAt(data, int64(addr)); err != nil {
		return nil, fmt.Errorf("writing contiguous data: %w", err)
	}
	return message.NewContiguousLayout(addr, uint64(len(data))), nil
}

// Read returns the raw, C-ordered bytes of a dataset with the given shape
// and element size.
func Read(r *binpkg.Reader, lay *message.Layout, fp *message.FilterPipeline, shape []int, elemSize int) ([]byte, error) {
	total := array.Size(shape) * elemSize
	switch lay.Class {
	case message.LayoutCompact:
		out := make([]byte, total)
		copy(out, lay.Compact)
		return out, nil
	case message.LayoutContiguous:
		if r.IsUndefined(lay.Address) || lay.Size == 0 {
			return make([]byte, total), nil
		}
		data, err := r.At(int64(lay.Address)).ReadBytes(int(lay.Size))
		if err != nil {
			return nil, fmt.Errorf("reading contiguous data at 0x%x: %w", lay.Address, err)
		}
		if len(data) < total {
			return nil, fmt.Errorf("contiguous data at 0x%x: have %d bytes, need %d", lay.Address, len(data), total)
		}
		return data[:total], nil
	case message.LayoutChunked:
		p, err := filter.NewPipeline(fp, elemSize)
		if err != nil {
			return nil, err
		}
		return readChunked(r, lay, p, shape, elemSize)
	}
	return nil, fmt.Errorf("%w: layout class %d", ErrUnsupported, lay.Class)
}
