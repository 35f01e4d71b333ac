package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

// Link is a link message. Only hard links are written; soft links are
// decoded so that readers can skip them.
type Link struct {
	Name    string
	Address uint64
	Soft    string
	IsSoft  bool
}

// NewHardLink returns a hard link to the object header at addr.
func NewHardLink(name string, addr uint64) *Link {
	return &Link{Name: name, Address: addr}
}

func (m *Link) Type() Type { return TypeLink }

// Encode writes a version 1 hard link message with a UTF-8 name.
func (m *Link) Encode(w *binpkg.Writer) error {
	if m.IsSoft {
		return fmt.Errorf("writing soft link %q is not supported", m.Name)
	}
	e := &encoder{w: w}
	n := len(m.Name)
	sizeBits, width := uint8(0), 1
	switch {
	case n > 0xFFFF:
		sizeBits, width = 2, 4
	case n > 0xFF:
		sizeBits, width = 1, 2
	}
	e.u8(1)
	e.u8(sizeBits | 0x10) // charset field present
	e.u8(CharsetUTF8)
	e.uintN(uint64(n), width)
	e.bytes([]byte(m.Name))
	e.offset(m.Address)
	return e.err
}

func decodeLink(r *binpkg.Reader) (*Link, error) {
	d := &decoder{r: r}
	if v := d.u8(); d.err == nil && v != 1 {
		return nil, fmt.Errorf("unsupported link version %d", v)
	}
	flags := d.u8()
	linkType := uint8(0)
	if flags&0x08 != 0 {
		linkType = d.u8()
	}
	if flags&0x04 != 0 {
		d.bytes(8) // creation order
	}
	if flags&0x10 != 0 {
		d.u8() // charset
	}
	nameLen := d.uintN(1 << (flags & 0x03))
	m := &Link{Name: string(d.bytes(int(nameLen)))}

	switch linkType {
	case 0:
		m.Address = d.offset()
	case 1:
		m.IsSoft = true
		m.Soft = string(d.bytes(int(d.u16())))
	default:
		// external and user-defined links carry no local address
		d.bytes(int(d.u16()))
		m.IsSoft = true
	}
	return m, d.err
}

// LinkInfo is the link info message of a compact, new-style group.
type LinkInfo struct {
	FractalHeapAddress uint64
	NameIndexAddress   uint64
}

// NewLinkInfo returns link info for a group storing its links compactly.
func NewLinkInfo() *LinkInfo {
	return &LinkInfo{FractalHeapAddress: ^uint64(0), NameIndexAddress: ^uint64(0)}
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

func (m *LinkInfo) Encode(w *binpkg.Writer) error {
	e := &encoder{w: w}
	e.u8(0)
	e.u8(0)
	e.offset(m.FractalHeapAddress)
	e.offset(m.NameIndexAddress)
	return e.err
}

func decodeLinkInfo(r *binpkg.Reader) (*LinkInfo, error) {
	d := &decoder{r: r}
	d.u8()
	flags := d.u8()
	if flags&0x01 != 0 {
		d.bytes(8)
	}
	m := &LinkInfo{FractalHeapAddress: d.offset(), NameIndexAddress: d.offset()}
	return m, d.err
}

// GroupInfo is the group info message; this module always writes defaults.
type GroupInfo struct{}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) Encode(w *binpkg.Writer) error {
	e := &encoder{w: w}
	e.u8(0)
	e.u8(0)
	return e.err
}

func decodeGroupInfo(r *binpkg.Reader) (*GroupInfo, error) {
	d := &decoder{r: r}
	d.u8()
	flags := d.u8()
	if flags&0x01 != 0 {
		d.bytes(4)
	}
	if flags&0x02 != 0 {
		d.bytes(4)
	}
	return &GroupInfo{}, d.err
}

// FillValue is a version 3 fill value message without a user value.
type FillValue struct {
	AllocTime uint8
	WriteTime uint8
	Value     []byte
}

// Allocation times.
const (
	AllocEarly       uint8 = 1
	AllocLate        uint8 = 2
	AllocIncremental uint8 = 3
)

// FillWriteIfSet writes fill values only when the user defined one.
const FillWriteIfSet uint8 = 2

func (m *FillValue) Type() Type { return TypeFillValue }

func (m *FillValue) Encode(w *binpkg.Writer) error {
	e := &encoder{w: w}
	flags := m.AllocTime&0x03 | (m.WriteTime&0x03)<<2
	if m.Value != nil {
		flags |= 0x20
	}
	e.u8(3)
	e.u8(flags)
	if m.Value != nil {
		e.u32(uint32(len(m.Value)))
		e.bytes(m.Value)
	}
	return e.err
}

func decodeFillValue(r *binpkg.Reader) (*FillValue, error) {
	d := &decoder{r: r}
	version := d.u8()
	m := &FillValue{}
	switch version {
	case 1, 2:
		m.AllocTime = d.u8()
		m.WriteTime = d.u8()
		if defined := d.u8(); version == 1 || defined != 0 {
			if size := d.u32(); size > 0 {
				m.Value = d.bytes(int(size))
			}
		}
	case 3:
		flags := d.u8()
		m.AllocTime = flags & 0x03
		m.WriteTime = (flags >> 2) & 0x03
		if flags&0x20 != 0 {
			m.Value = d.bytes(int(d.u32()))
		}
	default:
		if d.err == nil {
			return nil, fmt.Errorf("unsupported fill value version %d", version)
		}
	}
	return m, d.err
}
