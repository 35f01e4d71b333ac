// Package message encodes and decodes the HDF5 object header messages used
// by this module: dataspace, datatype, fill value, link, link info, group
// info, data layout, filter pipeline, attribute, continuation and the
// symbol table of version 1 groups.
//
// Every message type implements [Message]. [Decode] turns the raw body of a
// header message into its typed form; types it does not know are kept as
// [Raw] so that a header can be carried through unchanged.
package message

import (
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

var (
	// ErrTruncated is returned when a message body ends early.
	ErrTruncated = errors.New("message truncated")
	// ErrUnsupported marks valid HDF5 structures this package does not handle.
	ErrUnsupported = errors.New("unsupported HDF5 feature")
)

// Type is an object header message type.
type Type uint8

const (
	TypeNIL            Type = 0x00
	TypeDataspace      Type = 0x01
	TypeLinkInfo       Type = 0x02
	TypeDatatype       Type = 0x03
	TypeFillValue      Type = 0x05
	TypeLink           Type = 0x06
	TypeDataLayout     Type = 0x08
	TypeGroupInfo      Type = 0x0A
	TypeFilterPipeline Type = 0x0B
	TypeAttribute      Type = 0x0C
	TypeContinuation   Type = 0x10
	TypeSymbolTable    Type = 0x11
)

// Message is a typed header message.
type Message interface {
	Type() Type
	Encode(w *binpkg.Writer) error
}

// Raw is a message body this package does not interpret.
type Raw struct {
	MsgType Type
	Data    []byte
}

func (m *Raw) Type() Type                    { return m.MsgType }
func (m *Raw) Encode(w *binpkg.Writer) error { return w.WriteBytes(m.Data) }

// Continuation points to a further block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeContinuation }

func (m *Continuation) Encode(w *binpkg.Writer) error {
	if err := w.WriteOffset(m.Offset); err != nil {
		return err
	}
	return w.WriteLength(m.Length)
}

// SymbolTable locates the B-tree and local heap holding the members of a
// version 1 group.
type SymbolTable struct {
	BTreeAddress uint64
	HeapAddress  uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func (m *SymbolTable) Encode(w *binpkg.Writer) error {
	if err := w.WriteOffset(m.BTreeAddress); err != nil {
		return err
	}
	return w.WriteOffset(m.HeapAddress)
}

// Bytes encodes m into a standalone byte slice.
func Bytes(m Message, cfg binpkg.Config) ([]byte, error) {
	return binpkg.Encode(cfg, m.Encode)
}

// Decode parses the body of a message of type t.
func Decode(t Type, data []byte, cfg binpkg.Config) (Message, error) {
	r := binpkg.ReaderOf(data, cfg)
	var (
		m   Message
		err error
	)
	switch t {
	case TypeDataspace:
		m, err = decodeDataspace(r)
	case TypeDatatype:
		m, err = decodeDatatype(r)
	case TypeFillValue:
		m, err = decodeFillValue(r)
	case TypeLink:
		m, err = decodeLink(r)
	case TypeLinkInfo:
		m, err = decodeLinkInfo(r)
	case TypeGroupInfo:
		m, err = decodeGroupInfo(r)
	case TypeDataLayout:
		m, err = decodeLayout(r)
	case TypeFilterPipeline:
		m, err = decodeFilterPipeline(r)
	case TypeAttribute:
		m, err = decodeAttribute(r, data)
	case TypeSymbolTable:
		st := &SymbolTable{}
		if st.BTreeAddress, err = r.ReadOffset(); err == nil {
			st.HeapAddress, err = r.ReadOffset()
		}
		m = st
	case TypeContinuation:
		c := &Continuation{}
		if c.Offset, err = r.ReadOffset(); err == nil {
			c.Length, err = r.ReadLength()
		}
		m = c
	default:
		return &Raw{MsgType: t, Data: append([]byte(nil), data...)}, nil
	}
	if err != nil {
		if t == TypeAttribute && errors.Is(err, ErrUnsupported) {
			// keep attributes of types we cannot represent
			return &Raw{MsgType: t, Data: append([]byte(nil), data...)}, nil
		}
		return nil, fmt.Errorf("decoding message 0x%02x: %w", uint8(t), truncated(err))
	}
	return m, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return err
}

// reader helpers that stop at the first error

type decoder struct {
	r   *binpkg.Reader
	err error
}

func (d *decoder) u8() uint8 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadUint8()
	d.err = err
	return v
}

func (d *decoder) u16() uint16 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadUint16()
	d.err = err
	return v
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadUint32()
	d.err = err
	return v
}

func (d *decoder) uintN(n int) uint64 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadUintN(n)
	d.err = err
	return v
}

func (d *decoder) offset() uint64 { return d.uintN(d.r.Config().OffsetSize) }
func (d *decoder) length() uint64 { return d.uintN(d.r.Config().LengthSize) }

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	b, err := d.r.ReadBytes(n)
	d.err = err
	return b
}

// encoder helpers that stop at the first error

type encoder struct {
	w   *binpkg.Writer
	err error
}

func (e *encoder) u8(v uint8) {
	if e.err == nil {
		e.err = e.w.WriteUint8(v)
	}
}

func (e *encoder) u16(v uint16) {
	if e.err == nil {
		e.err = e.w.WriteUint16(v)
	}
}

func (e *encoder) u32(v uint32) {
	if e.err == nil {
		e.err = e.w.WriteUint32(v)
	}
}

func (e *encoder) uintN(v uint64, n int) {
	if e.err == nil {
		e.err = e.w.WriteUintN(v, n)
	}
}

func (e *encoder) offset(v uint64) { e.uintN(v, e.w.OffsetSize()) }
func (e *encoder) length(v uint64) { e.uintN(v, e.w.LengthSize()) }

func (e *encoder) bytes(b []byte) {
	if e.err == nil {
		e.err = e.w.WriteBytes(b)
	}
}
