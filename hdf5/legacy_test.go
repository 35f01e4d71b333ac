package hdf5

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/robert-malhotra/go-nwbconv/array"
	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/filter"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
	"github.com/robert-malhotra/go-nwbconv/internal/superblock"
)

// legacyFile assembles a file the way the HDF5 library lays it out by
// default: a version 0 superblock, version 1 object headers, groups kept
// in a B-tree of symbol table nodes with names in a local heap, chunks
// indexed by a version 1 B-tree and variable-length strings in a global
// heap. Offsets and lengths are 8 bytes.
type legacyFile struct {
	buf binpkg.Buffer
	end uint64
}

const (
	legacySuperblockSize = 96
	undefinedAddr        = ^uint64(0)
)

func newLegacyFile() *legacyFile {
	return &legacyFile{end: legacySuperblockSize}
}

// put stores b at the next 8-byte aligned address.
func (l *legacyFile) put(b []byte) uint64 {
	addr := l.end
	l.buf.WriteAt(b, int64(addr))
	l.end += uint64(len(b)+7) &^ 7
	return addr
}

type legacyMessage struct {
	typ  message.Type
	body []byte
}

func (l *legacyFile) header(msgs ...legacyMessage) uint64 {
	var body []byte
	for _, m := range msgs {
		n := (len(m.body) + 7) &^ 7
		body = binary.LittleEndian.AppendUint16(body, uint16(m.typ))
		body = binary.LittleEndian.AppendUint16(body, uint16(n))
		body = append(body, 0, 0, 0, 0)
		body = append(body, m.body...)
		body = append(body, make([]byte, n-len(m.body))...)
	}
	h := []byte{1, 0}
	h = binary.LittleEndian.AppendUint16(h, uint16(len(msgs)))
	h = binary.LittleEndian.AppendUint32(h, 1)
	h = binary.LittleEndian.AppendUint32(h, uint32(len(body)))
	h = append(h, 0, 0, 0, 0)
	return l.put(append(h, body...))
}

type legacyEntry struct {
	name   string
	addr   uint64
	target string // soft links only
}

// group writes the local heap, B-tree and symbol table node of a group
// and returns its symbol table message.
func (l *legacyFile) group(entries ...legacyEntry) legacyMessage {
	data := make([]byte, 8)
	str := func(s string) uint64 {
		off := uint64(len(data))
		data = append(data, s...)
		data = append(data, make([]byte, 8-len(s)%8)...)
		return off
	}
	snod := []byte{'S', 'N', 'O', 'D', 1, 0}
	snod = binary.LittleEndian.AppendUint16(snod, uint16(len(entries)))
	var lastName uint64
	for _, e := range entries {
		lastName = str(e.name)
		snod = binary.LittleEndian.AppendUint64(snod, lastName)
		scratch := make([]byte, 16)
		var cache uint32
		addr := e.addr
		if e.target != "" {
			cache, addr = 2, undefinedAddr
			binary.LittleEndian.PutUint32(scratch, uint32(str(e.target)))
		}
		snod = binary.LittleEndian.AppendUint64(snod, addr)
		snod = binary.LittleEndian.AppendUint32(snod, cache)
		snod = binary.LittleEndian.AppendUint32(snod, 0)
		snod = append(snod, scratch...)
	}

	dataAddr := l.put(data)
	heap := []byte{'H', 'E', 'A', 'P', 0, 0, 0, 0}
	heap = binary.LittleEndian.AppendUint64(heap, uint64(len(data)))
	heap = binary.LittleEndian.AppendUint64(heap, undefinedAddr)
	heap = binary.LittleEndian.AppendUint64(heap, dataAddr)
	heapAddr := l.put(heap)

	tree := []byte{'T', 'R', 'E', 'E', 0, 0}
	if len(entries) == 0 {
		tree = binary.LittleEndian.AppendUint16(tree, 0)
	} else {
		tree = binary.LittleEndian.AppendUint16(tree, 1)
	}
	tree = binary.LittleEndian.AppendUint64(tree, undefinedAddr)
	tree = binary.LittleEndian.AppendUint64(tree, undefinedAddr)
	tree = binary.LittleEndian.AppendUint64(tree, 0)
	if len(entries) > 0 {
		tree = binary.LittleEndian.AppendUint64(tree, l.put(snod))
		tree = binary.LittleEndian.AppendUint64(tree, lastName)
	}
	treeAddr := l.put(tree)

	st := binary.LittleEndian.AppendUint64(nil, treeAddr)
	return legacyMessage{message.TypeSymbolTable, binary.LittleEndian.AppendUint64(st, heapAddr)}
}

// collection writes a global heap collection holding objs, numbered from 1.
func (l *legacyFile) collection(objs ...string) uint64 {
	const size = 4096
	b := []byte{'G', 'C', 'O', 'L', 1, 0, 0, 0}
	b = binary.LittleEndian.AppendUint64(b, size)
	for i, o := range objs {
		b = binary.LittleEndian.AppendUint16(b, uint16(i+1))
		b = binary.LittleEndian.AppendUint16(b, 1)
		b = binary.LittleEndian.AppendUint32(b, 0)
		b = binary.LittleEndian.AppendUint64(b, uint64(len(o)))
		b = append(b, o...)
		b = append(b, make([]byte, (8-len(o)%8)%8)...)
	}
	return l.put(append(b, make([]byte, size-len(b))...))
}

// finish writes the superblock pointing at the root header and stores
// the file on disk.
func (l *legacyFile) finish(t *testing.T, root uint64, rootTable legacyMessage) string {
	t.Helper()
	sb := append([]byte(nil), superblock.Signature...)
	sb = append(sb, 0, 0, 0, 0, 0, 8, 8, 0)
	sb = binary.LittleEndian.AppendUint16(sb, 4)
	sb = binary.LittleEndian.AppendUint16(sb, 16)
	sb = binary.LittleEndian.AppendUint32(sb, 0)
	for _, addr := range []uint64{0, undefinedAddr, l.end, undefinedAddr, 0, root} {
		sb = binary.LittleEndian.AppendUint64(sb, addr)
	}
	sb = binary.LittleEndian.AppendUint32(sb, 1)
	sb = binary.LittleEndian.AppendUint32(sb, 0)
	sb = append(sb, rootTable.body...)
	if len(sb) != legacySuperblockSize {
		t.Fatalf("superblock is %d bytes", len(sb))
	}
	l.buf.WriteAt(sb, 0)

	path := filepath.Join(t.TempDir(), "legacy.h5")
	if err := os.WriteFile(path, l.buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func dataspaceV1(dims ...uint64) legacyMessage {
	b := []byte{1, uint8(len(dims)), 0, 0, 0, 0, 0, 0}
	for _, d := range dims {
		b = binary.LittleEndian.AppendUint64(b, d)
	}
	return legacyMessage{message.TypeDataspace, b}
}

func encoded(t *testing.T, m message.Message) legacyMessage {
	t.Helper()
	b, err := message.Bytes(m, binpkg.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return legacyMessage{m.Type(), b}
}

func varLenStringType() []byte {
	b := []byte{0x19, 0x01, 0x00, 0x00}
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = append(b, 0x13, 0x00, 0x00, 0x00)
	return binary.LittleEndian.AppendUint32(b, 1)
}

// varLenString is the stored form of a variable-length string: its length
// followed by the global heap ID of its bytes.
func varLenString(collection uint64, index uint32, s string) []byte {
	b := binary.LittleEndian.AppendUint32(nil, uint32(len(s)))
	b = binary.LittleEndian.AppendUint64(b, collection)
	return binary.LittleEndian.AppendUint32(b, index)
}

func attributeV1(name string, dt, space, data []byte) legacyMessage {
	pad := func(b []byte) []byte { return append(b, make([]byte, (8-len(b)%8)%8)...) }
	b := []byte{1, 0}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(name)+1))
	b = binary.LittleEndian.AppendUint16(b, uint16(len(dt)))
	b = binary.LittleEndian.AppendUint16(b, uint16(len(space)))
	b = append(b, pad(append([]byte(name), 0))...)
	b = append(b, pad(dt)...)
	b = append(b, pad(space)...)
	return legacyMessage{message.TypeAttribute, append(b, data...)}
}

func deflatePipelineV1(level uint32) legacyMessage {
	b := []byte{1, 1, 0, 0, 0, 0, 0, 0}
	b = binary.LittleEndian.AppendUint16(b, message.FilterDeflate)
	b = binary.LittleEndian.AppendUint16(b, 8)
	b = binary.LittleEndian.AppendUint16(b, message.FilterOptional)
	b = binary.LittleEndian.AppendUint16(b, 1)
	b = append(b, "deflate\x00"...)
	b = binary.LittleEndian.AppendUint32(b, level)
	return legacyMessage{message.TypeFilterPipeline, binary.LittleEndian.AppendUint32(b, 0)}
}

func writeLegacyFile(t *testing.T) string {
	t.Helper()
	l := newLegacyFile()
	heapAddr := l.collection("2.7.0", "Mus musculus", "C57BL/6")

	// int16 [3 2], contiguous, with a fixed-length string attribute
	raw := make([]byte, 0, 12)
	for i := int16(1); i <= 6; i++ {
		raw = binary.LittleEndian.AppendUint16(raw, uint16(i))
	}
	rawAddr := l.put(raw)
	unit := attributeV1("unit", mustEncode(t, message.NewString(2)), dataspaceV1().body, []byte("uV"))
	data := l.header(
		dataspaceV1(3, 2),
		encoded(t, message.NewInteger(2, true)),
		encoded(t, message.NewContiguousLayout(rawAddr, uint64(len(raw)))),
		unit,
	)

	// float64 [5] in deflated chunks of 3 indexed by a version 1 B-tree
	p, err := filter.NewPipeline(filter.Options{Deflate: true, Level: 6}.Message(8), 8)
	if err != nil {
		t.Fatal(err)
	}
	values := []float64{0.5, 1.5, 2.5, 3.5, 4.5, 0}
	tree := []byte{'T', 'R', 'E', 'E', 1, 0}
	tree = binary.LittleEndian.AppendUint16(tree, 2)
	tree = binary.LittleEndian.AppendUint64(tree, undefinedAddr)
	tree = binary.LittleEndian.AppendUint64(tree, undefinedAddr)
	for c := 0; c < 2; c++ {
		var chunk []byte
		for _, v := range values[c*3 : c*3+3] {
			chunk = binary.LittleEndian.AppendUint64(chunk, math.Float64bits(v))
		}
		enc, mask, err := p.Encode(chunk)
		if err != nil {
			t.Fatal(err)
		}
		tree = binary.LittleEndian.AppendUint32(tree, uint32(len(enc)))
		tree = binary.LittleEndian.AppendUint32(tree, mask)
		tree = binary.LittleEndian.AppendUint64(tree, uint64(c*3))
		tree = binary.LittleEndian.AppendUint64(tree, 0)
		tree = binary.LittleEndian.AppendUint64(tree, l.put(enc))
	}
	tree = binary.LittleEndian.AppendUint32(tree, 0)
	tree = binary.LittleEndian.AppendUint32(tree, 0)
	tree = binary.LittleEndian.AppendUint64(tree, 6)
	tree = binary.LittleEndian.AppendUint64(tree, 0)
	treeAddr := l.put(tree)
	chunkLayout := []byte{3, uint8(message.LayoutChunked), 2}
	chunkLayout = binary.LittleEndian.AppendUint64(chunkLayout, treeAddr)
	chunkLayout = binary.LittleEndian.AppendUint32(chunkLayout, 3)
	chunkLayout = binary.LittleEndian.AppendUint32(chunkLayout, 8)
	rate := l.header(
		dataspaceV1(5),
		encoded(t, message.NewFloat(8)),
		legacyMessage{message.TypeDataLayout, chunkLayout},
		deflatePipelineV1(6),
	)

	// variable-length strings [2]
	stringsAddr := l.put(append(varLenString(heapAddr, 2, "Mus musculus"), varLenString(heapAddr, 3, "C57BL/6")...))
	species := l.header(
		dataspaceV1(2),
		legacyMessage{message.TypeDatatype, varLenStringType()},
		encoded(t, message.NewContiguousLayout(stringsAddr, 32)),
	)

	session := l.header(l.group())
	rootTable := l.group(
		legacyEntry{name: "alias", target: "/data"},
		legacyEntry{name: "data", addr: data},
		legacyEntry{name: "rate", addr: rate},
		legacyEntry{name: "session", addr: session},
		legacyEntry{name: "species", addr: species},
	)
	modTime := legacyMessage{message.Type(0x12), []byte{1, 0, 0, 0, 0x80, 0x5f, 0x6c, 0x65}}
	version := attributeV1("nwb_version", varLenStringType(), dataspaceV1().body, varLenString(heapAddr, 1, "2.7.0"))
	root := l.header(rootTable, modTime, version)
	return l.finish(t, root, rootTable)
}

func mustEncode(t *testing.T, m message.Message) []byte {
	t.Helper()
	return encoded(t, m).body
}

func TestReadLegacyLayout(t *testing.T) {
	f := mustOpen(t, writeLegacyFile(t))

	if got := f.Root().Members(); !reflect.DeepEqual(got, []string{"data", "rate", "session", "species"}) {
		t.Fatalf("root members = %v", got)
	}
	if v, err := f.ReadAttr("/@nwb_version"); err != nil || v.Interface() != "2.7.0" {
		t.Errorf("nwb_version = %v, %v", v, err)
	}

	d, err := f.OpenDataset("/data")
	if err != nil {
		t.Fatal(err)
	}
	a, err := d.Read()
	if err != nil {
		t.Fatalf("reading /data: %v", err)
	}
	if !a.Equal(array.MustNew([]int16{1, 2, 3, 4, 5, 6}, 3, 2)) {
		t.Errorf("/data = %v", a.Data())
	}
	if v, err := f.ReadAttr("/data@unit"); err != nil || v.Interface() != "uV" {
		t.Errorf("unit = %v, %v", v, err)
	}

	d, err = f.OpenDataset("/rate")
	if err != nil {
		t.Fatal(err)
	}
	a, err = d.Read()
	if err != nil {
		t.Fatalf("reading /rate: %v", err)
	}
	if !a.Equal(array.FromSlice([]float64{0.5, 1.5, 2.5, 3.5, 4.5})) {
		t.Errorf("/rate = %v", a.Data())
	}
	if s := d.Storage(); !s.Chunked() || s.Chunks[0] != 3 || !s.Deflate || s.Level != 6 {
		t.Errorf("/rate storage = %+v", s)
	}

	d, err = f.OpenDataset("/species")
	if err != nil {
		t.Fatal(err)
	}
	if d.DType() != array.String {
		t.Errorf("/species dtype = %v", d.DType())
	}
	a, err = d.Read()
	if err != nil {
		t.Fatalf("reading /species: %v", err)
	}
	if !a.Equal(array.FromSlice([]string{"Mus musculus", "C57BL/6"})) {
		t.Errorf("/species = %v", a.Data())
	}

	g, err := f.OpenGroup("/session")
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Members()) != 0 {
		t.Errorf("/session members = %v", g.Members())
	}
}

func TestReadLegacyCorruptGroup(t *testing.T) {
	path := writeLegacyFile(t)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// point the root symbol table at the superblock instead of a B-tree
	sb, err := superblock.Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	h := sb.RootGroupAddress
	binary.LittleEndian.PutUint64(raw[h+16+8:], 0)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("expected an error for a group without a B-tree")
	}
}
