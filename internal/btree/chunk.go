package btree

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

// Chunk is one entry of a chunk B-tree.
type Chunk struct {
	// Offset is the element coordinate of the chunk's first element.
	Offset  []uint64
	Size    uint32
	Mask    uint32
	Address uint64
}

// Chunks returns every chunk indexed by the tree at addr for a dataset of
// rank ndims. Keys are the chunk size(4), filter mask(4) and ndims+1
// 8-byte offsets, the last being the element offset which is always 0.
func Chunks(r *binpkg.Reader, addr uint64, ndims int) ([]Chunk, error) {
	n, err := readNode(r, addr, typeChunk)
	if err != nil {
		return nil, err
	}
	return n.chunks(r, ndims)
}

func (n *node) chunks(r *binpkg.Reader, ndims int) ([]Chunk, error) {
	var out []Chunk
	for i := 0; i < n.entries; i++ {
		size, err := n.r.ReadUint32()
		if err != nil {
			return nil, err
		}
		mask, err := n.r.ReadUint32()
		if err != nil {
			return nil, err
		}
		offset := make([]uint64, ndims+1)
		for j := range offset {
			if offset[j], err = n.r.ReadUint64(); err != nil {
				return nil, err
			}
		}
		child, err := n.r.ReadOffset()
		if err != nil {
			return nil, err
		}

		if n.level == 0 {
			out = append(out, Chunk{Offset: offset[:ndims], Size: size, Mask: mask, Address: child})
			continue
		}
		sub, err := readNode(r, child, typeChunk)
		if err != nil {
			return nil, err
		}
		if err := checkChild(n, sub, child); err != nil {
			return nil, err
		}
		cs, err := sub.chunks(r, ndims)
		if err != nil {
			return nil, fmt.Errorf("chunk b-tree at 0x%x: %w", child, err)
		}
		out = append(out, cs...)
	}
	return out, nil
}
