package superblock

import (
	"encoding/binary"
	"errors"
	"testing"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

func TestWriteRead(t *testing.T) {
	sb := New()
	sb.EOFAddress = 4096
	sb.RootGroupAddress = 48

	var buf binpkg.Buffer
	if err := sb.Write(binpkg.NewWriter(&buf, sb.Config())); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(buf.Bytes()) != sb.Size() {
		t.Fatalf("wrote %d bytes, Size() = %d", len(buf.Bytes()), sb.Size())
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Version != 3 || got.EOFAddress != 4096 || got.RootGroupAddress != 48 {
		t.Errorf("read back %+v", got)
	}
	if got.ExtensionAddress != ^uint64(0) {
		t.Errorf("extension address = 0x%x, want undefined", got.ExtensionAddress)
	}
}

func TestReadCorrupt(t *testing.T) {
	sb := New()
	var buf binpkg.Buffer
	if err := sb.Write(binpkg.NewWriter(&buf, sb.Config())); err != nil {
		t.Fatal(err)
	}
	buf.Bytes()[20] ^= 0xFF
	if _, err := Read(&buf); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
}

func TestReadNotHDF5(t *testing.T) {
	var buf binpkg.Buffer
	buf.WriteAt([]byte("definitely not an hdf5 file at all"), 0)
	if _, err := Read(&buf); !errors.Is(err, ErrNotHDF5) {
		t.Errorf("expected ErrNotHDF5, got %v", err)
	}
}

// legacySuperblock lays out a version 0 or 1 superblock with 8-byte
// offsets and lengths the way the HDF5 library writes it.
func legacySuperblock(version uint8, eof, root uint64) []byte {
	b := append([]byte(nil), Signature...)
	b = append(b, version, 0, 0, 0, 0, 8, 8, 0)
	b = binary.LittleEndian.AppendUint16(b, 4)  // group leaf K
	b = binary.LittleEndian.AppendUint16(b, 16) // group internal K
	b = binary.LittleEndian.AppendUint32(b, 0)
	if version == 1 {
		b = binary.LittleEndian.AppendUint16(b, 32)
		b = append(b, 0, 0)
	}
	for _, addr := range []uint64{0, ^uint64(0), eof, ^uint64(0)} {
		b = binary.LittleEndian.AppendUint64(b, addr)
	}
	// root symbol table entry
	b = binary.LittleEndian.AppendUint64(b, 0)
	b = binary.LittleEndian.AppendUint64(b, root)
	b = binary.LittleEndian.AppendUint32(b, 1)
	b = binary.LittleEndian.AppendUint32(b, 0)
	return append(b, make([]byte, 16)...)
}

func TestReadLegacyVersions(t *testing.T) {
	for _, version := range []uint8{0, 1} {
		var buf binpkg.Buffer
		buf.WriteAt(legacySuperblock(version, 2048, 96), 0)
		got, err := Read(&buf)
		if err != nil {
			t.Fatalf("version %d: %v", version, err)
		}
		if got.Version != version || got.OffsetSize != 8 || got.LengthSize != 8 {
			t.Errorf("version %d: read back %+v", version, got)
		}
		if got.EOFAddress != 2048 || got.RootGroupAddress != 96 {
			t.Errorf("version %d: eof 0x%x, root 0x%x", version, got.EOFAddress, got.RootGroupAddress)
		}
	}
}

func TestReadLegacyAfterUserBlock(t *testing.T) {
	var buf binpkg.Buffer
	buf.WriteAt(make([]byte, 512), 0)
	buf.WriteAt(legacySuperblock(0, 4096, 600), 512)
	got, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.FileOffset != 512 || got.RootGroupAddress != 600 {
		t.Errorf("read back %+v", got)
	}
}
