package binary

import (
	"encoding/binary"
	"testing"
)

func TestLookup3KnownValues(t *testing.T) {
	if got := Lookup3Checksum(nil); got != 0xdeadbeef {
		t.Errorf("Lookup3Checksum(empty) = 0x%08x, want 0xdeadbeef", got)
	}
	if got := Lookup3Checksum([]byte("Four score and seven years ago")); got != 0x17770551 {
		t.Errorf("Lookup3Checksum(four score) = 0x%08x, want 0x17770551", got)
	}
}

func TestLookup3LengthVariations(t *testing.T) {
	seen := make(map[uint32]int)
	for length := 0; length <= 24; length++ {
		data := make([]byte, length)
		for i := range data {
			data[i] = byte(i)
		}
		seen[Lookup3Checksum(data)] = length
	}
	if len(seen) != 25 {
		t.Errorf("expected 25 unique checksums for lengths 0-24, got %d", len(seen))
	}
}

func TestFletcher32(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{"empty", nil, 0},
		{"one word", []byte{0x01, 0x02}, 0x01020102},
		{"odd byte", []byte{0x01}, 0x01000100},
		{"two words", []byte{0x00, 0x01, 0x00, 0x02}, 0x00040003},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fletcher32(tt.input); got != tt.want {
				t.Errorf("Fletcher32 = 0x%08x, want 0x%08x", got, tt.want)
			}
		})
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	cfg := Config{ByteOrder: binary.LittleEndian, OffsetSize: 4, LengthSize: 8}
	data, err := Encode(cfg, func(w *Writer) error {
		if err := w.WriteUint8(7); err != nil {
			return err
		}
		if err := w.WriteUint16(0x1234); err != nil {
			return err
		}
		if err := w.WriteOffset(0xAABBCCDD); err != nil {
			return err
		}
		if err := w.WriteLength(1 << 40); err != nil {
			return err
		}
		return w.WriteUndefined()
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(data) != 1+2+4+8+4 {
		t.Fatalf("encoded %d bytes", len(data))
	}

	r := ReaderOf(data, cfg)
	if v, _ := r.ReadUint8(); v != 7 {
		t.Errorf("uint8 = %d", v)
	}
	if v, _ := r.ReadUint16(); v != 0x1234 {
		t.Errorf("uint16 = 0x%x", v)
	}
	if v, _ := r.ReadOffset(); v != 0xAABBCCDD {
		t.Errorf("offset = 0x%x", v)
	}
	if v, _ := r.ReadLength(); v != 1<<40 {
		t.Errorf("length = %d", v)
	}
	v, err := r.ReadOffset()
	if err != nil || !r.IsUndefined(v) {
		t.Errorf("undefined address = 0x%x, %v", v, err)
	}
	if _, err := r.ReadUint8(); err == nil {
		t.Error("expected error reading past end")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if err := (Config{ByteOrder: binary.LittleEndian, OffsetSize: 3, LengthSize: 8}).Validate(); err != ErrInvalidSize {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}
