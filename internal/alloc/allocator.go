// Package alloc hands out file offsets while a file is being serialized.
//
// Space is only ever appended; every allocation is recorded with a kind so
// the writer can report how much of a file is metadata and how much is
// raw data.
package alloc

import (
	"fmt"
	"sort"
)

// Kind classifies an allocation.
type Kind uint8

const (
	KindMeta  Kind = iota // object headers and index structures
	KindRaw               // contiguous dataset storage
	KindChunk             // chunk payloads
)

func (k Kind) String() string {
	switch k {
	case KindMeta:
		return "meta"
	case KindRaw:
		return "raw"
	case KindChunk:
		return "chunk"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Region is a single allocation.
type Region struct {
	Addr uint64
	Size uint64
	Kind Kind
}

// End returns the first address past the region.
func (r Region) End() uint64 { return r.Addr + r.Size }

// Stats sums allocations per kind.
type Stats struct {
	Count   int
	Bytes   map[Kind]uint64
	Largest uint64
}

// Allocator is an append-only space allocator. It is not safe for
// concurrent use; the writer allocates from a single goroutine.
type Allocator struct {
	base    uint64
	eof     uint64
	regions []Region
}

// New returns an allocator whose first allocation is at base.
func New(base uint64) *Allocator {
	return &Allocator{base: base, eof: base}
}

// Alloc reserves size bytes at end of file. A zero size returns the
// current end of file without recording anything.
func (a *Allocator) Alloc(size uint64, kind Kind) uint64 {
	if size == 0 {
		return a.eof
	}
	addr := a.eof
	a.eof += size
	a.regions = append(a.regions, Region{Addr: addr, Size: size, Kind: kind})
	return addr
}

// AllocAligned is Alloc with the start address rounded up to a multiple of
// align.
func (a *Allocator) AllocAligned(size, align uint64, kind Kind) uint64 {
	if align > 1 {
		if r := a.eof % align; r != 0 {
			a.eof += align - r
		}
	}
	return a.Alloc(size, kind)
}

// EOF returns the current end of file address.
func (a *Allocator) EOF() uint64 { return a.eof }

// Base returns the address of the first allocation.
func (a *Allocator) Base() uint64 { return a.base }

// Regions returns the allocations in address order.
func (a *Allocator) Regions() []Region {
	out := append([]Region(nil), a.regions...)
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// Stats summarizes the allocations made so far.
func (a *Allocator) Stats() Stats {
	s := Stats{Count: len(a.regions), Bytes: make(map[Kind]uint64)}
	for _, r := range a.regions {
		s.Bytes[r.Kind] += r.Size
		if r.Size > s.Largest {
			s.Largest = r.Size
		}
	}
	return s
}

// Validate checks that no two regions overlap and none starts below the
// base address.
func (a *Allocator) Validate() error {
	regions := a.Regions()
	for i, r := range regions {
		if r.Addr < a.base {
			return fmt.Errorf("alloc: region at 0x%x below base 0x%x", r.Addr, a.base)
		}
		if i > 0 && regions[i-1].End() > r.Addr {
			return fmt.Errorf("alloc: regions at 0x%x and 0x%x overlap", regions[i-1].Addr, r.Addr)
		}
	}
	return nil
}
