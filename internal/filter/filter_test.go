package filter

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

func testData(n int) []byte {
	out := make([]byte, 0, n*8)
	for i := 0; i < n; i++ {
		out = binary.LittleEndian.AppendUint64(out, uint64(i%17))
	}
	return out
}

func TestShuffleRoundTrip(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	s := NewShuffle(4)
	enc, err := s.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 5, 2, 6, 3, 7, 4, 8, 9}
	if !bytes.Equal(enc, want) {
		t.Errorf("Encode = %v, want %v", enc, want)
	}
	dec, err := s.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, in) {
		t.Errorf("Decode = %v, want %v", dec, in)
	}
}

func TestDeflateRoundTrip(t *testing.T) {
	in := testData(1000)
	d, err := NewDeflate(9)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := d.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) >= len(in) {
		t.Errorf("compressed %d bytes to %d", len(in), len(enc))
	}
	dec, err := d.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, in) {
		t.Error("deflate round trip mismatch")
	}
	if _, err := NewDeflate(10); err == nil {
		t.Error("expected error for level 10")
	}
}

func TestFletcher32Detects(t *testing.T) {
	in := testData(10)
	enc, err := Fletcher32{}.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != len(in)+4 {
		t.Fatalf("encoded length %d, want %d", len(enc), len(in)+4)
	}
	if _, err := (Fletcher32{}).Decode(enc); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	enc[3] ^= 0xFF
	if _, err := (Fletcher32{}).Decode(enc); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
}

func TestPipelineOrder(t *testing.T) {
	opts := Options{Shuffle: true, Deflate: true, Level: 4, Fletcher32: true}
	fp := opts.Message(8)
	if len(fp.Filters) != 3 {
		t.Fatalf("got %d filters", len(fp.Filters))
	}
	ids := []uint16{fp.Filters[0].ID, fp.Filters[1].ID, fp.Filters[2].ID}
	want := []uint16{message.FilterShuffle, message.FilterDeflate, message.FilterFletcher32}
	for i := range ids {
		if ids[i] != want[i] {
			t.Fatalf("filter order %v, want %v", ids, want)
		}
	}
	if fp.Filters[2].Flags&message.FilterOptional != 0 {
		t.Error("fletcher32 must be mandatory")
	}
	if got := FromMessage(fp); got != opts {
		t.Errorf("FromMessage = %+v, want %+v", got, opts)
	}
	if (Options{}).Message(8) != nil {
		t.Error("empty options should give no pipeline")
	}

	p, err := NewPipeline(fp, 8)
	if err != nil {
		t.Fatal(err)
	}
	in := testData(512)
	enc, mask, err := p.Encode(in)
	if err != nil || mask != 0 {
		t.Fatalf("Encode: mask %d, err %v", mask, err)
	}
	dec, err := p.Decode(enc, mask)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, in) {
		t.Error("pipeline round trip mismatch")
	}
}

func TestPipelineUnsupported(t *testing.T) {
	fp := &message.FilterPipeline{Filters: []message.FilterInfo{{ID: message.FilterSZIP}}}
	if _, err := NewPipeline(fp, 4); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}
