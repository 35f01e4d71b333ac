package message

import (
	"encoding/binary"
	"errors"
	"reflect"
	"strings"
	"testing"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

var cfg = binpkg.DefaultConfig()

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	raw, err := Bytes(m, cfg)
	if err != nil {
		t.Fatalf("encoding %T: %v", m, err)
	}
	got, err := Decode(m.Type(), raw, cfg)
	if err != nil {
		t.Fatalf("decoding %T: %v", m, err)
	}
	return got
}

func TestDataspace(t *testing.T) {
	scalar := roundTrip(t, NewDataspace(nil)).(*Dataspace)
	if scalar.SpaceType != SpaceScalar || scalar.NumElements() != 1 {
		t.Errorf("scalar dataspace = %+v", scalar)
	}

	simple := roundTrip(t, NewDataspace([]uint64{30000, 64})).(*Dataspace)
	if !reflect.DeepEqual(simple.Dims, []uint64{30000, 64}) || simple.NumElements() != 30000*64 {
		t.Errorf("simple dataspace = %+v", simple)
	}
}

func TestDatatype(t *testing.T) {
	tests := []*Datatype{NewInteger(2, true), NewInteger(8, false), NewFloat(4), NewFloat(8), NewString(12)}
	for _, dt := range tests {
		t.Run(dt.String(), func(t *testing.T) {
			got := roundTrip(t, dt).(*Datatype)
			if !reflect.DeepEqual(got, dt) {
				t.Errorf("got %+v, want %+v", got, dt)
			}
		})
	}

	raw, _ := Bytes(NewFloat(8), cfg)
	if len(raw) != 8+12 {
		t.Errorf("float64 datatype is %d bytes, want 20", len(raw))
	}
	if raw[1] != 0x20 || raw[2] != 63 {
		t.Errorf("float64 class bits = %x %x", raw[1], raw[2])
	}
}

func TestChunkedLayout(t *testing.T) {
	l := NewFixedArrayLayout([]uint32{1000, 4}, 2, 10, 0x1234)
	got := roundTrip(t, l).(*Layout)
	if !reflect.DeepEqual(got, l) {
		t.Errorf("got %+v, want %+v", got, l)
	}
	if got.ChunkBytes() != 8000 {
		t.Errorf("ChunkBytes = %d", got.ChunkBytes())
	}
	if w := dimWidth([]uint32{1000, 4, 2}); w != 2 {
		t.Errorf("dimWidth = %d, want 2", w)
	}
}

func TestContiguousLayout(t *testing.T) {
	l := NewContiguousLayout(4096, 800)
	got := roundTrip(t, l).(*Layout)
	if got.Class != LayoutContiguous || got.Address != 4096 || got.Size != 800 {
		t.Errorf("got %+v", got)
	}
}

func TestFilterPipeline(t *testing.T) {
	p := &FilterPipeline{Filters: []FilterInfo{
		{ID: FilterShuffle, Flags: FilterOptional, Params: []uint32{8}},
		{ID: FilterDeflate, Flags: FilterOptional, Params: []uint32{4}},
		{ID: FilterFletcher32, Params: []uint32{}},
	}}
	got := roundTrip(t, p).(*FilterPipeline)
	if !reflect.DeepEqual(got, p) {
		t.Errorf("got %+v, want %+v", got, p)
	}
	if !got.Has(FilterDeflate) || got.Has(FilterSZIP) {
		t.Error("Has reported wrong filters")
	}
}

func TestAttribute(t *testing.T) {
	a := &Attribute{
		Name:      "neurodata_type",
		Datatype:  NewString(7),
		Dataspace: NewDataspace(nil),
		Data:      []byte("NWBFile"),
	}
	got := roundTrip(t, a).(*Attribute)
	if got.Name != a.Name || string(got.Data) != "NWBFile" || got.Datatype.Size != 7 {
		t.Errorf("got %+v", got)
	}
}

func TestAttributeTooLarge(t *testing.T) {
	a := &Attribute{
		Name:      "big",
		Datatype:  NewInteger(1, false),
		Dataspace: NewDataspace([]uint64{70000}),
		Data:      make([]byte, 70000),
	}
	if _, err := Bytes(a, cfg); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestLink(t *testing.T) {
	short := roundTrip(t, NewHardLink("acquisition", 0x400)).(*Link)
	if short.Name != "acquisition" || short.Address != 0x400 || short.IsSoft {
		t.Errorf("got %+v", short)
	}

	name := strings.Repeat("x", 300)
	long := roundTrip(t, NewHardLink(name, 7)).(*Link)
	if long.Name != name || long.Address != 7 {
		t.Errorf("long name link decoded as %q -> %d", long.Name[:10], long.Address)
	}
}

func TestDecodeUnknownAndTruncated(t *testing.T) {
	m, err := Decode(Type(0x0E), []byte{1, 2, 3}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if raw, ok := m.(*Raw); !ok || len(raw.Data) != 3 {
		t.Errorf("expected Raw message, got %T", m)
	}

	if _, err := Decode(TypeDataspace, []byte{2, 1}, cfg); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestSymbolTable(t *testing.T) {
	st := &SymbolTable{BTreeAddress: 136, HeapAddress: 680}
	got := roundTrip(t, st).(*SymbolTable)
	if *got != *st {
		t.Errorf("got %+v, want %+v", got, st)
	}
}

func TestVersion3ChunkedLayout(t *testing.T) {
	raw := []byte{3, byte(LayoutChunked), 3}
	raw = binary.LittleEndian.AppendUint64(raw, 0x800)
	for _, d := range []uint32{100, 4, 2} {
		raw = binary.LittleEndian.AppendUint32(raw, d)
	}
	m, err := Decode(TypeDataLayout, raw, cfg)
	if err != nil {
		t.Fatal(err)
	}
	l := m.(*Layout)
	if l.Index != IndexBTreeV1 || l.Address != 0x800 || l.ElementSize != 2 {
		t.Errorf("got %+v", l)
	}
	if !reflect.DeepEqual(l.ChunkDims, []uint32{100, 4}) {
		t.Errorf("chunk dims = %v", l.ChunkDims)
	}
}

func TestVarLenString(t *testing.T) {
	raw := []byte{0x19, 0x01, 0x01, 0x00}
	raw = binary.LittleEndian.AppendUint32(raw, 16)
	raw = append(raw, 0x13, 0x00, 0x00, 0x00)
	raw = binary.LittleEndian.AppendUint32(raw, 1)

	m, err := Decode(TypeDatatype, raw, cfg)
	if err != nil {
		t.Fatal(err)
	}
	dt := m.(*Datatype)
	if dt.Class != ClassVarLen || dt.Size != 16 || dt.Charset != CharsetUTF8 || dt.Padding != PadNullTerm {
		t.Errorf("got %+v", dt)
	}
	if dt.Base == nil || dt.Base.Class != ClassString || dt.Base.Size != 1 {
		t.Errorf("base = %+v", dt.Base)
	}
	if dt.String() != "vlen string" {
		t.Errorf("String() = %q", dt.String())
	}

	seq := append([]byte{0x19, 0x00, 0x00, 0x00}, raw[4:]...)
	if _, err := Decode(TypeDatatype, seq, cfg); !errors.Is(err, ErrUnsupported) {
		t.Errorf("sequence: expected ErrUnsupported, got %v", err)
	}
}
