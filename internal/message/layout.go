package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

// LayoutClass is the storage layout of a dataset.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
)

// ChunkIndex is the chunk indexing type of a chunked layout. Version 3
// layouts always use a version 1 B-tree.
type ChunkIndex uint8

const (
	IndexBTreeV1         ChunkIndex = 0
	IndexSingleChunk     ChunkIndex = 1
	IndexImplicit        ChunkIndex = 2
	IndexFixedArray      ChunkIndex = 3
	IndexExtensibleArray ChunkIndex = 4
	IndexBTreeV2         ChunkIndex = 5
)

// Layout is a data layout message.
type Layout struct {
	Class LayoutClass

	// Contiguous: data address and size. Chunked: index address.
	Address uint64
	Size    uint64

	// Compact data stored in the header.
	Compact []byte

	// Chunked: chunk dimensions (without the element dimension).
	ChunkDims   []uint32
	ElementSize uint32
	Index       ChunkIndex
	PageBits    uint8

	// Single chunk index with filters.
	SingleFilteredSize uint64
	SingleFilterMask   uint32
}

// NewContiguousLayout describes size bytes stored at addr.
func NewContiguousLayout(addr, size uint64) *Layout {
	return &Layout{Class: LayoutContiguous, Address: addr, Size: size}
}

// NewFixedArrayLayout describes chunks indexed by a fixed array at addr.
func NewFixedArrayLayout(chunks []uint32, elemSize uint32, pageBits uint8, addr uint64) *Layout {
	return &Layout{
		Class:       LayoutChunked,
		Address:     addr,
		ChunkDims:   chunks,
		ElementSize: elemSize,
		Index:       IndexFixedArray,
		PageBits:    pageBits,
	}
}

func (m *Layout) Type() Type { return TypeDataLayout }

// ChunkBytes returns the uncompressed size of one chunk.
func (m *Layout) ChunkBytes() uint64 {
	n := uint64(m.ElementSize)
	for _, c := range m.ChunkDims {
		n *= uint64(c)
	}
	return n
}

// Encode writes version 3 for compact and contiguous layouts and version 4
// for chunked layouts.
func (m *Layout) Encode(w *binpkg.Writer) error {
	e := &encoder{w: w}
	switch m.Class {
	case LayoutCompact:
		e.u8(3)
		e.u8(uint8(LayoutCompact))
		e.u16(uint16(len(m.Compact)))
		e.bytes(m.Compact)
	case LayoutContiguous:
		e.u8(3)
		e.u8(uint8(LayoutContiguous))
		e.offset(m.Address)
		e.length(m.Size)
	case LayoutChunked:
		if m.Index != IndexFixedArray {
			return fmt.Errorf("writing chunk index type %d is not supported", m.Index)
		}
		dims := append(append([]uint32{}, m.ChunkDims...), m.ElementSize)
		width := dimWidth(dims)
		e.u8(4)
		e.u8(uint8(LayoutChunked))
		e.u8(0)
		e.u8(uint8(len(dims)))
		e.u8(uint8(width))
		for _, d := range dims {
			e.uintN(uint64(d), width)
		}
		e.u8(uint8(m.Index))
		e.u8(m.PageBits)
		e.offset(m.Address)
	default:
		return fmt.Errorf("unknown layout class %d", m.Class)
	}
	return e.err
}

// dimWidth is the smallest byte width that holds every dimension.
func dimWidth(dims []uint32) int {
	width := 1
	for _, d := range dims {
		for d>>(8*uint(width)) != 0 {
			width++
		}
	}
	return width
}

func decodeLayout(r *binpkg.Reader) (*Layout, error) {
	d := &decoder{r: r}
	version := d.u8()
	m := &Layout{Class: LayoutClass(d.u8())}
	if d.err != nil {
		return nil, d.err
	}
	if version < 3 || version > 4 {
		return nil, fmt.Errorf("unsupported layout version %d", version)
	}

	switch m.Class {
	case LayoutCompact:
		m.Compact = d.bytes(int(d.u16()))
	case LayoutContiguous:
		m.Address = d.offset()
		m.Size = d.length()
	case LayoutChunked:
		if version == 3 {
			ndims := int(d.u8())
			m.Address = d.offset()
			dims := make([]uint32, ndims)
			for i := range dims {
				dims[i] = d.u32()
			}
			if ndims > 0 {
				m.ChunkDims = dims[:ndims-1]
				m.ElementSize = dims[ndims-1]
			}
			m.Index = IndexBTreeV1
			return m, d.err
		}
		flags := d.u8()
		ndims := int(d.u8())
		width := int(d.u8())
		dims := make([]uint32, ndims)
		for i := range dims {
			dims[i] = uint32(d.uintN(width))
		}
		if ndims > 0 {
			m.ChunkDims = dims[:ndims-1]
			m.ElementSize = dims[ndims-1]
		}
		m.Index = ChunkIndex(d.u8())
		switch m.Index {
		case IndexSingleChunk:
			if flags&0x02 != 0 {
				m.SingleFilteredSize = d.length()
				m.SingleFilterMask = d.u32()
			}
		case IndexImplicit:
		case IndexFixedArray:
			m.PageBits = d.u8()
		default:
			return nil, fmt.Errorf("%w: chunk index type %d", ErrUnsupported, m.Index)
		}
		m.Address = d.offset()
	default:
		return nil, fmt.Errorf("unknown layout class %d", m.Class)
	}
	return m, d.err
}
