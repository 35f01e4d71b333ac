package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

// Class is a datatype class.
type Class uint8

const (
	ClassFixedPoint Class = 0
	ClassFloatPoint Class = 1
	ClassString     Class = 3
	ClassVarLen     Class = 9
)

// String padding and character set values for ClassString.
const (
	PadNullTerm  uint8 = 0
	PadNullPad   uint8 = 1
	PadSpacePad  uint8 = 2
	CharsetASCII uint8 = 0
	CharsetUTF8  uint8 = 1
)

// Datatype is a datatype message restricted to integers, IEEE floats,
// fixed-length strings and variable-length strings. Only the first three
// are written.
type Datatype struct {
	Class     Class
	Size      uint32
	Signed    bool
	BigEndian bool
	Padding   uint8
	Charset   uint8

	// Base is the element type of a variable-length string.
	Base *Datatype
}

// NewInteger returns a little-endian integer type of size bytes.
func NewInteger(size int, signed bool) *Datatype {
	return &Datatype{Class: ClassFixedPoint, Size: uint32(size), Signed: signed}
}

// NewFloat returns an IEEE 754 little-endian float type of 4 or 8 bytes.
func NewFloat(size int) *Datatype {
	return &Datatype{Class: ClassFloatPoint, Size: uint32(size)}
}

// NewString returns a null-padded UTF-8 string type of width bytes.
func NewString(width int) *Datatype {
	return &Datatype{Class: ClassString, Size: uint32(width), Padding: PadNullPad, Charset: CharsetUTF8}
}

func (m *Datatype) Type() Type { return TypeDatatype }

func (m *Datatype) String() string {
	switch m.Class {
	case ClassFixedPoint:
		if m.Signed {
			return fmt.Sprintf("int%d", m.Size*8)
		}
		return fmt.Sprintf("uint%d", m.Size*8)
	case ClassFloatPoint:
		return fmt.Sprintf("float%d", m.Size*8)
	case ClassString:
		return fmt.Sprintf("string%d", m.Size)
	case ClassVarLen:
		return "vlen string"
	}
	return fmt.Sprintf("class%d", m.Class)
}

// Encode writes a version 1 datatype message.
func (m *Datatype) Encode(w *binpkg.Writer) error {
	e := &encoder{w: w}
	var bits uint32
	switch m.Class {
	case ClassFixedPoint:
		if m.BigEndian {
			bits |= 0x01
		}
		if m.Signed {
			bits |= 0x08
		}
	case ClassFloatPoint:
		if m.BigEndian {
			bits |= 0x01
		}
		// implied leading mantissa bit, sign at the top bit
		bits |= 0x20 | (m.Size*8-1)<<8
	case ClassString:
		bits = uint32(m.Padding&0x0F) | uint32(m.Charset&0x0F)<<4
	default:
		return fmt.Errorf("cannot encode datatype class %d", m.Class)
	}

	e.u8(uint8(m.Class) | 1<<4)
	e.u8(uint8(bits))
	e.u8(uint8(bits >> 8))
	e.u8(uint8(bits >> 16))
	e.u32(m.Size)

	switch m.Class {
	case ClassFixedPoint:
		e.u16(0)
		e.u16(uint16(m.Size * 8))
	case ClassFloatPoint:
		switch m.Size {
		case 4:
			writeFloatProps(e, 32, 23, 8, 23, 127)
		case 8:
			writeFloatProps(e, 64, 52, 11, 52, 1023)
		default:
			return fmt.Errorf("unsupported float size %d", m.Size)
		}
	}
	return e.err
}

func writeFloatProps(e *encoder, precision uint16, expLoc, expSize, mantSize uint8, bias uint32) {
	e.u16(0) // bit offset
	e.u16(precision)
	e.u8(expLoc)
	e.u8(expSize)
	e.u8(0) // mantissa location
	e.u8(mantSize)
	e.u32(bias)
}

func decodeDatatype(r *binpkg.Reader) (*Datatype, error) {
	d := &decoder{r: r}
	cv := d.u8()
	b0, b1, b2 := d.u8(), d.u8(), d.u8()
	m := &Datatype{Class: Class(cv & 0x0F), Size: d.u32()}
	if d.err != nil {
		return nil, d.err
	}
	bits := uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16

	switch m.Class {
	case ClassFixedPoint:
		m.BigEndian = bits&0x01 != 0
		m.Signed = bits&0x08 != 0
		d.bytes(4)
	case ClassFloatPoint:
		m.BigEndian = bits&0x01 != 0
		d.bytes(12)
	case ClassString:
		m.Padding = uint8(bits & 0x0F)
		m.Charset = uint8(bits>>4) & 0x0F
	case ClassVarLen:
		if bits&0x0F != 1 {
			return nil, fmt.Errorf("%w: variable-length sequence", ErrUnsupported)
		}
		m.Padding = uint8(bits>>4) & 0x0F
		m.Charset = uint8(bits>>8) & 0x0F
		base, err := decodeDatatype(r)
		if err != nil {
			return nil, err
		}
		m.Base = base
	default:
		return nil, fmt.Errorf("%w: datatype class %d", ErrUnsupported, m.Class)
	}
	return m, d.err
}
