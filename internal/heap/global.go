package heap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

// Collection is a global heap collection. Objects are addressed by their
// index within the collection.
type Collection struct {
	objects map[uint16][]byte
}

// ReadCollection reads the global heap collection at addr:
//
//	0  4  signature "GCOL"
//	4  1  version (1)
//	5  3  reserved
//	8  L  collection size, header included
//	.     objects: index(2) refcount(2) reserved(4) size(L) data
//
// Object data is padded to 8 bytes. Index 0 is the free space object and
// ends the list.
func ReadCollection(r *binpkg.Reader, addr uint64) (*Collection, error) {
	hr := r.At(int64(addr))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading global heap at 0x%x: %w", addr, err)
	}
	if !bytes.Equal(head[:4], globalSignature) {
		return nil, fmt.Errorf("%w: global heap at 0x%x", ErrBadSignature, addr)
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("%w: global heap version %d", ErrUnsupportedVersion, head[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	body, err := r.At(hr.Pos()).ReadBytes(int(size) - int(hr.Pos()-int64(addr)))
	if err != nil {
		return nil, fmt.Errorf("reading global heap at 0x%x: %w", addr, err)
	}

	cfg := r.Config()
	objHead := 8 + cfg.LengthSize
	c := &Collection{objects: make(map[uint16][]byte)}
	for p := 0; p+objHead <= len(body); {
		index := binary.LittleEndian.Uint16(body[p:])
		if index == 0 {
			break
		}
		n := binpkg.DecodeUint(cfg.ByteOrder, body[p+8:p+objHead])
		p += objHead
		if uint64(p)+n > uint64(len(body)) {
			return nil, fmt.Errorf("global heap at 0x%x: object %d overruns the collection", addr, index)
		}
		c.objects[index] = body[p : p+int(n)]
		p += (int(n) + 7) &^ 7
	}
	return c, nil
}

// Object returns the data of the object at index.
func (c *Collection) Object(index uint16) ([]byte, error) {
	data, ok := c.objects[index]
	if !ok {
		return nil, fmt.Errorf("%w: global heap object %d", ErrNotFound, index)
	}
	return data, nil
}

// Globals reads global heap collections of one file on demand and keeps
// them for later lookups.
type Globals struct {
	r           *binpkg.Reader
	collections map[uint64]*Collection
}

// NewGlobals returns an empty cache reading from r.
func NewGlobals(r *binpkg.Reader) *Globals {
	return &Globals{r: r, collections: make(map[uint64]*Collection)}
}

// Object returns the data a global heap ID points to. An ID is the
// collection address followed by a 4-byte object index.
func (g *Globals) Object(id []byte) ([]byte, error) {
	cfg := g.r.Config()
	if len(id) < cfg.OffsetSize+4 {
		return nil, fmt.Errorf("global heap ID of %d bytes is too short", len(id))
	}
	addr := binpkg.DecodeUint(cfg.ByteOrder, id[:cfg.OffsetSize])
	index := cfg.ByteOrder.Uint32(id[cfg.OffsetSize:])
	c, ok := g.collections[addr]
	if !ok {
		var err error
		if c, err = ReadCollection(g.r, addr); err != nil {
			return nil, err
		}
		g.collections[addr] = c
	}
	if index > 0xFFFF {
		return nil, fmt.Errorf("%w: global heap object %d", ErrNotFound, index)
	}
	return c.Object(uint16(index))
}
