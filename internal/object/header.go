// Package object encodes and decodes object headers, the container of the
// messages that describe every group and dataset. Version 2 headers
// ("OHDR") are written; version 1 headers are also read.
//
// Layout of a header as written here:
//
//	0  4  signature "OHDR"
//	4  1  version (2)
//	5  1  flags; bits 0-1 give the width of the chunk size field
//	6  n  size of chunk 0 (message bytes only)
//	   .  messages: type(1) size(2) flags(1) body
//	   4  lookup3 checksum over everything before it
//
// Continuation blocks ("OCHK") are followed when reading.
package object

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

var (
	signature             = []byte("OHDR")
	continuationSignature = []byte("OCHK")
)

var (
	ErrBadSignature       = errors.New("object header signature not found")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksum           = errors.New("object header checksum mismatch")
)

// maxContinuations bounds the continuation chain of one header.
const maxContinuations = 1024

// Header is a decoded object header.
type Header struct {
	Address  uint64
	Messages []message.Message
}

// Find returns the first message of type t, or nil.
func (h *Header) Find(t message.Type) message.Message {
	for _, m := range h.Messages {
		if m.Type() == t {
			return m
		}
	}
	return nil
}

// FindAll returns every message of type t in header order.
func (h *Header) FindAll(t message.Type) []message.Message {
	var out []message.Message
	for _, m := range h.Messages {
		if m.Type() == t {
			out = append(out, m)
		}
	}
	return out
}

// Encode builds a complete header holding msgs.
func Encode(msgs []message.Message, cfg binpkg.Config) ([]byte, error) {
	var body bytes.Buffer
	for _, m := range msgs {
		data, err := message.Bytes(m, cfg)
		if err != nil {
			return nil, err
		}
		if len(data) > 0xFFFF {
			return nil, fmt.Errorf("%w: message 0x%02x of %d bytes", message.ErrUnsupported, uint8(m.Type()), len(data))
		}
		body.WriteByte(uint8(m.Type()))
		var size [2]byte
		binary.LittleEndian.PutUint16(size[:], uint16(len(data)))
		body.Write(size[:])
		body.WriteByte(0)
		body.Write(data)
	}

	width, bits := sizeFieldWidth(uint64(body.Len()))
	head, err := binpkg.Encode(cfg, func(w *binpkg.Writer) error {
		if err := w.WriteBytes(signature); err != nil {
			return err
		}
		if err := w.WriteUint8(2); err != nil {
			return err
		}
		if err := w.WriteUint8(bits); err != nil {
			return err
		}
		if err := w.WriteUintN(uint64(body.Len()), width); err != nil {
			return err
		}
		return w.WriteBytes(body.Bytes())
	})
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.AppendUint32(head, binpkg.Lookup3Checksum(head)), nil
}

// sizeFieldWidth returns the width of the chunk size field and its flag
// bits.
func sizeFieldWidth(n uint64) (int, uint8) {
	switch {
	case n <= 0xFF:
		return 1, 0
	case n <= 0xFFFF:
		return 2, 1
	case n <= 0xFFFFFFFF:
		return 4, 2
	}
	return 8, 3
}

// Read decodes the header at addr.
func Read(r *binpkg.Reader, addr uint64) (*Header, error) {
	hr := r.At(int64(addr))
	prefix, err := hr.ReadBytes(6)
	if err != nil {
		return nil, fmt.Errorf("reading object header at 0x%x: %w", addr, err)
	}
	if prefix[0] == 1 {
		return readV1(r, addr)
	}
	if !bytes.Equal(prefix[:4], signature) {
		return nil, fmt.Errorf("%w at 0x%x", ErrBadSignature, addr)
	}
	if prefix[4] != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, prefix[4])
	}
	flags := prefix[5]
	skip := 0
	if flags&0x20 != 0 {
		skip += 16 // access, modification, change and birth times
	}
	if flags&0x10 != 0 {
		skip += 4 // attribute phase change values
	}
	width := 1 << (flags & 0x03)
	hr.Skip(int64(skip))
	size, err := hr.ReadUintN(width)
	if err != nil {
		return nil, err
	}

	start := int64(addr)
	headLen := 6 + skip + width
	block, err := r.At(start).ReadBytes(headLen + int(size) + 4)
	if err != nil {
		return nil, fmt.Errorf("reading object header at 0x%x: %w", addr, err)
	}
	if err := verify(block); err != nil {
		return nil, fmt.Errorf("object header at 0x%x: %w", addr, err)
	}

	h := &Header{Address: addr}
	pending, err := h.decode(block[headLen:headLen+int(size)], flags, r.Config())
	if err != nil {
		return nil, err
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
		if len(blk) < 8 || !bytes.Equal(blk[:4], continuationSignature) {
			return nil, fmt.Errorf("%w: continuation at 0x%x", ErrBadSignature, c.Offset)
		}
		if err := verify(blk); err != nil {
			return nil, fmt.Errorf("continuation at 0x%x: %w", c.Offset, err)
		}
		more, err := h.decode(blk[4:len(blk)-4], flags, r.Config())
		if err != nil {
			return nil, err
		}
		pending = append(pending, more...)
	}
	return h, nil
}

func verify(block []byte) error {
	n := len(block) - 4
	if binary.LittleEndian.Uint32(block[n:]) != binpkg.Lookup3Checksum(block[:n]) {
		return ErrChecksum
	}
	return nil
}

// decode appends the messages in data to h and returns any continuations.
func (h *Header) decode(data []byte, flags uint8, cfg binpkg.Config) ([]*message.Continuation, error) {
	var conts []*message.Continuation
	hdr := 4
	if flags&0x04 != 0 {
		hdr += 2 // creation order
	}
	for p := 0; p+hdr <= len(data); {
		typ := message.Type(data[p])
		size := int(binary.LittleEndian.Uint16(data[p+1:]))
		p += hdr
		if p+size > len(data) {
			return nil, fmt.Errorf("message 0x%02x overruns header", uint8(typ))
		}
		body := data[p : p+size]
		p += size
		if typ == message.TypeNIL {
			continue
		}
		c, err := h.add(typ, body, cfg)
		if err != nil {
			return nil, err
		}
		if c != nil {
			conts = append(conts, c)
		}
	}
	return conts, nil
}

// add decodes one message into h. Continuations are returned instead.
func (h *Header) add(typ message.Type, body []byte, cfg binpkg.Config) (*message.Continuation, error) {
	m, err := message.Decode(typ, body, cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := m.(*message.Continuation); ok {
		return c, nil
	}
	h.Messages = append(h.Messages, m)
	return nil, nil
}
