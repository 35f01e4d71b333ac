package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

// Filter identifiers.
const (
	FilterDeflate    uint16 = 1
	FilterShuffle    uint16 = 2
	FilterFletcher32 uint16 = 3
	FilterSZIP       uint16 = 4
)

// FilterOptional marks a filter that may be skipped when it fails.
const FilterOptional uint16 = 0x0001

// FilterInfo is one entry of a filter pipeline.
type FilterInfo struct {
	ID     uint16
	Flags  uint16
	Name   string
	Params []uint32
}

// FilterPipeline lists the filters applied to every chunk, in write order.
type FilterPipeline struct {
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// Has reports whether the pipeline contains filter id.
func (m *FilterPipeline) Has(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Encode writes a version 2 filter pipeline message.
func (m *FilterPipeline) Encode(w *binpkg.Writer) error {
	e := &encoder{w: w}
	e.u8(2)
	e.u8(uint8(len(m.Filters)))
	for _, f := range m.Filters {
		e.u16(f.ID)
		if f.ID >= 256 {
			e.u16(uint16(len(f.Name) + 1))
		}
		e.u16(f.Flags)
		e.u16(uint16(len(f.Params)))
		if f.ID >= 256 {
			e.bytes(append([]byte(f.Name), 0))
		}
		for _, p := range f.Params {
			e.u32(p)
		}
	}
	return e.err
}

func decodeFilterPipeline(r *binpkg.Reader) (*FilterPipeline, error) {
	d := &decoder{r: r}
	version := d.u8()
	n := int(d.u8())
	if d.err == nil && version != 1 && version != 2 {
		return nil, fmt.Errorf("unsupported filter pipeline version %d", version)
	}
	if version == 1 {
		d.bytes(6)
	}

	m := &FilterPipeline{Filters: make([]FilterInfo, n)}
	for i := range m.Filters {
		f := &m.Filters[i]
		f.ID = d.u16()
		nameLen := 0
		if version == 1 || f.ID >= 256 {
			nameLen = int(d.u16())
		}
		f.Flags = d.u16()
		nparams := int(d.u16())
		if nameLen > 0 {
			name := d.bytes(nameLen)
			for j, b := range name {
				if b == 0 {
					name = name[:j]
					break
				}
			}
			f.Name = string(name)
			if version == 1 && nameLen%8 != 0 {
				d.bytes(8 - nameLen%8)
			}
		}
		f.Params = make([]uint32, nparams)
		for j := range f.Params {
			f.Params[j] = d.u32()
		}
		if version == 1 && nparams%2 != 0 {
			d.bytes(4)
		}
	}
	return m, d.err
}
