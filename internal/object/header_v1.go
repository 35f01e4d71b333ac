package object

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

// Version 1 headers have no signature or checksum:
//
//	0   1  version (1)
//	1   1  reserved
//	2   2  number of messages
//	4   4  reference count
//	8   4  size of the first message block
//	12  4  padding
//	16  .  messages: type(2) size(2) flags(1) reserved(3) body
//
// Message bodies are padded to 8 bytes. Continuation blocks hold more
// messages in the same form.
const v1PrefixSize = 16

// flagShared marks a message whose body points at a shared copy.
const flagShared = 0x02

func readV1(r *binpkg.Reader, addr uint64) (*Header, error) {
	prefix, err := r.At(int64(addr)).ReadBytes(v1PrefixSize)
	if err != nil {
		return nil, fmt.Errorf("reading object header at 0x%x: %w", addr, err)
	}
	size := binary.LittleEndian.Uint32(prefix[8:])
	block, err := r.At(int64(addr) + v1PrefixSize).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("reading object header at 0x%x: %w", addr, err)
	}

	h := &Header{Address: addr}
	pending, err := h.decodeV1(block, r.Config())
	if err != nil {
		return nil, fmt.Errorf("object header at 0x%x: %w", addr, err)
	}
	for n := 0; len(pending) > 0; n++ {
		if n >= maxContinuations {
			return nil, fmt.Errorf("object header at 0x%x: too many continuation blocks", addr)
		}
		c := pending[0]
		pending = pending[1:]
		blk, err := r.At(int64(c.Offset)).ReadBytes(int(c.Length))
		if err != nil {
			return nil, fmt.Errorf("reading continuation at 0x%x: %w", c.Offset, err)
		}
		more, err := h.decodeV1(blk, r.Config())
		if err != nil {
			return nil, fmt.Errorf("continuation at 0x%x: %w", c.Offset, err)
		}
		pending = append(pending, more...)
	}
	return h, nil
}

func (h *Header) decodeV1(data []byte, cfg binpkg.Config) ([]*message.Continuation, error) {
	var conts []*message.Continuation
	for p := 0; p+8 <= len(data); {
		typ := binary.LittleEndian.Uint16(data[p:])
		size := int(binary.LittleEndian.Uint16(data[p+2:]))
		flags := data[p+4]
		p += 8
		if p+size > len(data) {
			return nil, fmt.Errorf("message 0x%02x overruns header", typ)
		}
		body := data[p : p+size]
		p += (size + 7) &^ 7

		switch {
		case typ == uint16(message.TypeNIL), typ > 0xFF:
			continue
		case flags&flagShared != 0:
			h.Messages = append(h.Messages, &message.Raw{MsgType: message.Type(typ), Data: append([]byte(nil), body...)})
			continue
		}
		c, err := h.add(message.Type(typ), body, cfg)
		if err != nil {
			return nil, err
		}
		if c != nil {
			conts = append(conts, c)
		}
	}
	return conts, nil
}
