package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

// maxAttributeMessage is the largest body a compact attribute can have; the
// message size field is 16 bits wide.
const maxAttributeMessage = 0xFFFF

// Attribute is an attribute message.
type Attribute struct {
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// Encode writes a version 3 attribute message with a UTF-8 name.
func (m *Attribute) Encode(w *binpkg.Writer) error {
	cfg := w.Config()
	dt, err := Bytes(m.Datatype, cfg)
	if err != nil {
		return err
	}
	ds, err := Bytes(m.Dataspace, cfg)
	if err != nil {
		return err
	}
	if size := 9 + len(m.Name) + 1 + len(dt) + len(ds) + len(m.Data); size > maxAttributeMessage {
		return fmt.Errorf("%w: attribute %q is %d bytes, dense attribute storage is required", ErrUnsupported, m.Name, size)
	}

	e := &encoder{w: w}
	e.u8(3)
	e.u8(0)
	e.u16(uint16(len(m.Name) + 1))
	e.u16(uint16(len(dt)))
	e.u16(uint16(len(ds)))
	e.u8(CharsetUTF8)
	e.bytes(append([]byte(m.Name), 0))
	e.bytes(dt)
	e.bytes(ds)
	e.bytes(m.Data)
	return e.err
}

func decodeAttribute(r *binpkg.Reader, body []byte) (*Attribute, error) {
	d := &decoder{r: r}
	version := d.u8()
	d.u8() // flags
	nameSize := int(d.u16())
	dtSize := int(d.u16())
	dsSize := int(d.u16())
	if d.err != nil {
		return nil, d.err
	}

	pad := func(n int) int { return n }
	switch version {
	case 1:
		pad = func(n int) int { return (n + 7) &^ 7 }
	case 2:
	case 3:
		d.u8() // name encoding
	default:
		return nil, fmt.Errorf("unsupported attribute version %d", version)
	}

	name := d.bytes(pad(nameSize))
	if len(name) >= nameSize && nameSize > 0 {
		name = name[:nameSize-1]
	}
	dtRaw := d.bytes(pad(dtSize))
	dsRaw := d.bytes(pad(dsSize))
	if d.err != nil {
		return nil, d.err
	}

	cfg := r.Config()
	dt, err := decodeDatatype(binpkg.ReaderOf(dtRaw[:dtSize], cfg))
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	ds, err := decodeDataspace(binpkg.ReaderOf(dsRaw[:dsSize], cfg))
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}

	m := &Attribute{Name: string(name), Datatype: dt, Dataspace: ds}
	if rest := int(r.Pos()); rest < len(body) {
		m.Data = append([]byte(nil), body[rest:]...)
	}
	return m, nil
}
