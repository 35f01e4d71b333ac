package btree

import (
	"bytes"
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/heap"
)

// cacheSoftLink is the symbol table entry cache type of a soft link; its
// scratch pad holds the heap offset of the target path.
const cacheSoftLink = 2

// Member is one entry of a group symbol table.
type Member struct {
	Name    string
	Address uint64

	// Soft links carry their target path instead of an address.
	IsSoft bool
	Target string
}

// Members returns the members of the group whose B-tree is at addr, in
// name order. Names are resolved through the group's local heap.
func Members(r *binpkg.Reader, addr uint64, names *heap.Local) ([]Member, error) {
	n, err := readNode(r, addr, typeGroup)
	if err != nil {
		return nil, err
	}
	return n.members(r, names)
}

func (n *node) members(r *binpkg.Reader, names *heap.Local) ([]Member, error) {
	var out []Member
	for i := 0; i < n.entries; i++ {
		n.r.Skip(int64(r.Config().LengthSize)) // key: heap offset of a name
		child, err := n.r.ReadOffset()
		if err != nil {
			return nil, err
		}
		var ms []Member
		if n.level == 0 {
			ms, err = readSymbolNode(r, child, names)
		} else {
			var sub *node
			if sub, err = readNode(r, child, typeGroup); err == nil {
				if err = checkChild(n, sub, child); err == nil {
					ms, err = sub.members(r, names)
				}
			}
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ms...)
	}
	return out, nil
}

// readSymbolNode reads a symbol table node:
//
//	0  4  signature "SNOD"
//	4  1  version (1)
//	5  1  reserved
//	6  2  number of symbols
//	8     entries: name offset(O) header address(O) cache type(4)
//	      reserved(4) scratch pad(16)
func readSymbolNode(r *binpkg.Reader, addr uint64, names *heap.Local) ([]Member, error) {
	sr := r.At(int64(addr))
	head, err := sr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading symbol table node at 0x%x: %w", addr, err)
	}
	if !bytes.Equal(head[:4], symbolSignature) {
		return nil, fmt.Errorf("%w: symbol table node at 0x%x", ErrBadSignature, addr)
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("%w: symbol table node version %d", ErrCorrupt, head[4])
	}
	count := int(r.Config().ByteOrder.Uint16(head[6:]))

	out := make([]Member, 0, count)
	for i := 0; i < count; i++ {
		nameOffset, err := sr.ReadOffset()
		if err != nil {
			return nil, err
		}
		objAddr, err := sr.ReadOffset()
		if err != nil {
			return nil, err
		}
		cache, err := sr.ReadUint32()
		if err != nil {
			return nil, err
		}
		sr.Skip(4)
		scratch, err := sr.ReadBytes(16)
		if err != nil {
			return nil, err
		}

		name, err := names.String(nameOffset)
		if err != nil {
			return nil, fmt.Errorf("symbol %d at 0x%x: %w", i, addr, err)
		}
		m := Member{Name: name, Address: objAddr}
		if cache == cacheSoftLink {
			m.IsSoft = true
			if m.Target, err = names.String(uint64(r.Config().ByteOrder.Uint32(scratch))); err != nil {
				return nil, fmt.Errorf("soft link %q: %w", name, err)
			}
		}
		out = append(out, m)
	}
	return out, nil
}
