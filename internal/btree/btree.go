// Package btree reads version 1 B-trees ("TREE"), the index structure of
// older HDF5 files. Type 0 trees hold the members of a group in symbol
// table nodes ("SNOD"); type 1 trees index the chunks of a dataset.
//
// Node layout (O = size of offsets):
//
//	0   4  signature "TREE"
//	4   1  node type
//	5   1  level, 0 for leaves
//	6   2  entries used
//	8   O  left sibling
//	.   O  right sibling
//	.      key 0, child 0, key 1, ... child n-1, key n
package btree

import (
	"bytes"
	"errors"
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

var (
	treeSignature   = []byte("TREE")
	symbolSignature = []byte("SNOD")
)

var (
	ErrBadSignature = errors.New("b-tree signature not found")
	ErrCorrupt      = errors.New("b-tree is corrupt")
)

const (
	typeGroup = 0
	typeChunk = 1
)

// node is a decoded B-tree node header with the reader positioned at key 0.
type node struct {
	level   uint8
	entries int
	r       *binpkg.Reader
}

func readNode(r *binpkg.Reader, addr uint64, typ uint8) (*node, error) {
	nr := r.At(int64(addr))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading b-tree node at 0x%x: %w", addr, err)
	}
	if !bytes.Equal(head[:4], treeSignature) {
		return nil, fmt.Errorf("%w at 0x%x", ErrBadSignature, addr)
	}
	if head[4] != typ {
		return nil, fmt.Errorf("%w: node at 0x%x has type %d, want %d", ErrCorrupt, addr, head[4], typ)
	}
	nr.Skip(2 * int64(r.Config().OffsetSize))
	return &node{
		level:   head[5],
		entries: int(r.Config().ByteOrder.Uint16(head[6:])),
		r:       nr,
	}, nil
}

// checkChild rejects children that do not sit one level below their
// parent, which also bounds the recursion on corrupt files.
func checkChild(parent, child *node, addr uint64) error {
	if child.level+1 != parent.level {
		return fmt.Errorf("%w: node at 0x%x has level %d below a level %d node", ErrCorrupt, addr, child.level, parent.level)
	}
	return nil
}
