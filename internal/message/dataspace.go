package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

// SpaceType is the dataspace kind.
type SpaceType uint8

const (
	SpaceScalar SpaceType = 0
	SpaceSimple SpaceType = 1
	SpaceNull   SpaceType = 2
)

// Dataspace describes the dimensions of a dataset or attribute.
type Dataspace struct {
	SpaceType SpaceType
	Dims      []uint64
	MaxDims   []uint64
}

// NewDataspace returns a simple dataspace, or a scalar one for no dims.
func NewDataspace(dims []uint64) *Dataspace {
	if len(dims) == 0 {
		return &Dataspace{SpaceType: SpaceScalar}
	}
	return &Dataspace{SpaceType: SpaceSimple, Dims: dims}
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NumElements returns the number of elements; 1 for a scalar, 0 for null.
func (m *Dataspace) NumElements() uint64 {
	if m.SpaceType == SpaceNull {
		return 0
	}
	n := uint64(1)
	for _, d := range m.Dims {
		n *= d
	}
	return n
}

// Encode writes a version 2 dataspace message.
func (m *Dataspace) Encode(w *binpkg.Writer) error {
	e := &encoder{w: w}
	flags := uint8(0)
	if len(m.MaxDims) > 0 {
		flags |= 0x01
	}
	e.u8(2)
	e.u8(uint8(len(m.Dims)))
	e.u8(flags)
	e.u8(uint8(m.SpaceType))
	for _, d := range m.Dims {
		e.length(d)
	}
	for _, d := range m.MaxDims {
		e.length(d)
	}
	return e.err
}

func decodeDataspace(r *binpkg.Reader) (*Dataspace, error) {
	d := &decoder{r: r}
	version := d.u8()
	rank := int(d.u8())
	flags := d.u8()
	m := &Dataspace{SpaceType: SpaceSimple}

	switch version {
	case 1:
		d.bytes(5)
		if rank == 0 {
			m.SpaceType = SpaceScalar
		}
	case 2:
		m.SpaceType = SpaceType(d.u8())
	default:
		if d.err == nil {
			return nil, fmt.Errorf("unsupported dataspace version %d", version)
		}
	}

	for i := 0; i < rank; i++ {
		m.Dims = append(m.Dims, d.length())
	}
	if flags&0x01 != 0 {
		for i := 0; i < rank; i++ {
			m.MaxDims = append(m.MaxDims, d.length())
		}
	}
	return m, d.err
}
