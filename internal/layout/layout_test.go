package layout

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/robert-malhotra/go-nwbconv/internal/alloc"
	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/filter"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

var cfg = binpkg.DefaultConfig()

func int32Data(n int) []byte {
	out := make([]byte, 0, n*4)
	for i := 0; i < n; i++ {
		out = binary.LittleEndian.AppendUint32(out, uint32(i*3))
	}
	return out
}

func TestContiguousRoundTrip(t *testing.T) {
	var buf binpkg.Buffer
	al := alloc.New(64)
	data := int32Data(10)

	lay, err := WriteContiguous(&buf, al, cfg, data)
	if err != nil {
		t.Fatal(err)
	}
	if lay.Address != 64 || lay.Size != 40 {
		t.Errorf("layout = %+v", lay)
	}
	got, err := Read(binpkg.NewReader(&buf, cfg), lay, nil, []int{10}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("contiguous round trip mismatch")
	}
}

func TestContiguousEmpty(t *testing.T) {
	var buf binpkg.Buffer
	lay, err := WriteContiguous(&buf, alloc.New(0), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if lay.Address != cfg.UndefinedAddress() || lay.Size != 0 {
		t.Errorf("empty layout = %+v", lay)
	}
	got, err := Read(binpkg.NewReader(&buf, cfg), lay, nil, []int{0}, 8)
	if err != nil || len(got) != 0 {
		t.Errorf("Read = %v, %v", got, err)
	}
}

func writeChunked(t *testing.T, shape, chunks []int, opts filter.Options) (*binpkg.Buffer, *message.Layout, *message.FilterPipeline, []byte) {
	t.Helper()
	fp := opts.Message(4)
	p, err := filter.NewPipeline(fp, 4)
	if err != nil {
		t.Fatal(err)
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := int32Data(n)
	var buf binpkg.Buffer
	c := &Chunked{Shape: shape, Chunks: chunks, ElemSize: 4, Pipeline: p}
	lay, err := c.Write(context.Background(), &buf, alloc.New(48), cfg, data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return &buf, lay, fp, data
}

func TestChunkedRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		shape  []int
		chunks []int
		opts   filter.Options
	}{
		{"1d-unfiltered", []int{100}, []int{16}, filter.Options{}},
		{"2d-edges", []int{7, 5}, []int{3, 2}, filter.Options{}},
		{"2d-deflate", []int{40, 6}, []int{8, 6}, filter.Options{Deflate: true, Level: 4}},
		{"all-filters", []int{33, 4}, []int{10, 3}, filter.Options{Shuffle: true, Deflate: true, Level: 9, Fletcher32: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, lay, fp, data := writeChunked(t, tt.shape, tt.chunks, tt.opts)
			if lay.Index != message.IndexFixedArray || lay.PageBits < minPageBits {
				t.Errorf("layout = %+v", lay)
			}
			got, err := Read(binpkg.NewReader(buf, cfg), lay, fp, tt.shape, 4)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Error("chunked round trip mismatch")
			}
		})
	}
}

func TestManyChunksAvoidPaging(t *testing.T) {
	buf, lay, fp, data := writeChunked(t, []int{3000}, []int{1}, filter.Options{})
	if lay.PageBits != 12 {
		t.Errorf("PageBits = %d, want 12", lay.PageBits)
	}
	got, err := Read(binpkg.NewReader(buf, cfg), lay, fp, []int{3000}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round trip mismatch")
	}
}

func TestFilteredEntrySizeField(t *testing.T) {
	fa := fixedArray{filtered: true, chunkBytes: 4096}
	if got := fa.sizeLen(); got != 3 {
		t.Errorf("sizeLen(4096) = %d, want 3", got)
	}
	fa.chunkBytes = 255
	if got := fa.sizeLen(); got != 2 {
		t.Errorf("sizeLen(255) = %d, want 2", got)
	}
	if got := fa.entrySize(cfg); got != 8+2+4 {
		t.Errorf("entrySize = %d", got)
	}
}

func TestCorruptIndex(t *testing.T) {
	buf, lay, fp, _ := writeChunked(t, []int{20}, []int{5}, filter.Options{})
	raw := buf.Bytes()
	raw[lay.Address+5] ^= 0xFF
	if _, err := Read(binpkg.NewReader(buf, cfg), lay, fp, []int{20}, 4); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
}

func TestChunkRankMismatch(t *testing.T) {
	c := &Chunked{Shape: []int{4, 4}, Chunks: []int{2}, ElemSize: 4}
	if _, err := c.Write(context.Background(), &binpkg.Buffer{}, alloc.New(0), cfg, make([]byte, 64)); err == nil {
		t.Error("expected rank mismatch error")
	}
}

func TestCanceledWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Chunked{Shape: []int{64}, Chunks: []int{8}, ElemSize: 4}
	if _, err := c.Write(ctx, &binpkg.Buffer{}, alloc.New(0), cfg, int32Data(64)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// chunkTree lays out a single-leaf chunk B-tree over 2-d chunks.
func chunkTree(chunks []btreeChunk, end [2]uint64) []byte {
	b := []byte{'T', 'R', 'E', 'E', 1, 0}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(chunks)))
	b = binary.LittleEndian.AppendUint64(b, cfg.UndefinedAddress())
	b = binary.LittleEndian.AppendUint64(b, cfg.UndefinedAddress())
	key := func(size, mask uint32, off [2]uint64) {
		b = binary.LittleEndian.AppendUint32(b, size)
		b = binary.LittleEndian.AppendUint32(b, mask)
		b = binary.LittleEndian.AppendUint64(b, off[0])
		b = binary.LittleEndian.AppendUint64(b, off[1])
		b = binary.LittleEndian.AppendUint64(b, 0)
	}
	for _, c := range chunks {
		key(uint32(len(c.data)), c.mask, c.offset)
		b = binary.LittleEndian.AppendUint64(b, c.addr)
	}
	key(0, 0, end)
	return b
}

type btreeChunk struct {
	offset [2]uint64
	addr   uint64
	data   []byte
	mask   uint32
}

func TestBTreeIndexedChunks(t *testing.T) {
	fp := filter.Options{Deflate: true, Level: 4}.Message(4)
	p, err := filter.NewPipeline(fp, 4)
	if err != nil {
		t.Fatal(err)
	}
	// a 4x3 int32 dataset in 2x3 chunks; only the second chunk was written
	data := int32Data(12)
	enc, mask, err := p.Encode(data[24:])
	if err != nil {
		t.Fatal(err)
	}

	var buf binpkg.Buffer
	chunks := []btreeChunk{{offset: [2]uint64{2, 0}, addr: 0x400, data: enc, mask: mask}}
	buf.WriteAt(chunkTree(chunks, [2]uint64{4, 0}), 0x100)
	buf.WriteAt(enc, 0x400)

	lay := &message.Layout{
		Class:       message.LayoutChunked,
		Address:     0x100,
		ChunkDims:   []uint32{2, 3},
		ElementSize: 4,
		Index:       message.IndexBTreeV1,
	}
	got, err := Read(binpkg.NewReader(&buf, cfg), lay, fp, []int{4, 3}, 4)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := append(make([]byte, 24), data[24:]...)
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBTreeChunkOutsideGrid(t *testing.T) {
	var buf binpkg.Buffer
	chunks := []btreeChunk{{offset: [2]uint64{8, 0}, addr: 0x400, data: make([]byte, 24)}}
	buf.WriteAt(chunkTree(chunks, [2]uint64{10, 0}), 0)
	buf.WriteAt(make([]byte, 24), 0x400)

	lay := &message.Layout{
		Class:       message.LayoutChunked,
		ChunkDims:   []uint32{2, 3},
		ElementSize: 4,
		Index:       message.IndexBTreeV1,
	}
	if _, err := Read(binpkg.NewReader(&buf, cfg), lay, nil, []int{4, 3}, 4); err == nil {
		t.Error("expected an error for a chunk outside the dataset")
	}
}
