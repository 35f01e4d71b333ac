// Package superblock reads and writes the HDF5 superblock, the entry point
// of every file. Versions 2 and 3 are written; versions 0 and 1, which the
// HDF5 library still produces by default, are also read.
//
// Version 2/3 layout (O = size of offsets):
//
//	0      8  signature
//	8      1  version (2 or 3)
//	9      1  size of offsets
//	10     1  size of lengths
//	11     1  file consistency flags
//	12     O  base address
//	12+O   O  superblock extension address
//	12+2O  O  end of file address
//	12+3O  O  root group object header address
//	12+4O  4  lookup3 checksum
package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

// Signature is the 8-byte HDF5 format signature.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// Locations searched for the signature, in order.
var searchOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrChecksum           = errors.New("superblock checksum mismatch")
)

// Superblock holds the fields of a superblock. For versions 0 and 1,
// ExtensionAddress holds the free-space info address and RootGroupAddress
// comes from the root symbol table entry.
type Superblock struct {
	Version          uint8
	OffsetSize       uint8
	LengthSize       uint8
	Flags            uint8
	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// FileOffset is where the signature was found.
	FileOffset int64
}

// New returns a version 3 superblock with 8-byte offsets and lengths.
func New() *Superblock {
	return &Superblock{Version: 3, OffsetSize: 8, LengthSize: 8, ExtensionAddress: ^uint64(0)}
}

// Config returns the binary configuration the superblock describes.
func (sb *Superblock) Config() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

// Size returns the encoded size in bytes.
func (sb *Superblock) Size() int {
	return 12 + 4*int(sb.OffsetSize) + 4
}

// Read locates and parses the superblock.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, len(Signature))
	for _, off := range searchOffsets {
		if _, err := r.ReadAt(sig, off); err != nil {
			break
		}
		if bytes.Equal(sig, Signature) {
			return readAt(r, off)
		}
	}
	return nil, ErrNotHDF5
}

func readAt(r io.ReaderAt, off int64) (*Superblock, error) {
	head := make([]byte, 12)
	if _, err := r.ReadAt(head, off); err != nil {
		return nil, err
	}
	if head[8] == 0 || head[8] == 1 {
		return readLegacy(r, off, head[8])
	}
	if head[8] != 2 && head[8] != 3 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, head[8])
	}

	sb := &Superblock{
		Version:    head[8],
		OffsetSize: head[9],
		LengthSize: head[10],
		Flags:      head[11],
		FileOffset: off,
	}
	cfg := sb.Config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	raw := make([]byte, sb.Size())
	if _, err := r.ReadAt(raw, off); err != nil {
		return nil, err
	}
	body := raw[:len(raw)-4]
	if binary.LittleEndian.Uint32(raw[len(raw)-4:]) != binpkg.Lookup3Checksum(body) {
		return nil, ErrChecksum
	}

	br := binpkg.ReaderOf(body, cfg).At(12)
	for _, dst := range []*uint64{&sb.BaseAddress, &sb.ExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress} {
		v, err := br.ReadOffset()
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	return sb, nil
}

// Write encodes the superblock with its checksum at the writer position.
func (sb *Superblock) Write(w *binpkg.Writer) error {
	body, err := binpkg.Encode(sb.Config(), func(bw *binpkg.Writer) error {
		if err := bw.WriteBytes(Signature); err != nil {
			return err
		}
		for _, b := range []uint8{sb.Version, sb.OffsetSize, sb.LengthSize, sb.Flags} {
			if err := bw.WriteUint8(b); err != nil {
				return err
			}
		}
		for _, addr := range []uint64{sb.BaseAddress, sb.ExtensionAddress, sb.EOFAddress, sb.RootGroupAddress} {
			if err := bw.WriteOffset(addr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := w.WriteBytes(body); err != nil {
		return err
	}
	return w.WriteUint32(binpkg.Lookup3Checksum(body))
}

// readLegacy parses a version 0 or 1 superblock (O = size of offsets):
//
//	0      8  signature
//	8      1  version
//	9      3  free-space, root group and reserved version bytes
//	12     1  shared header message version
//	13     1  size of offsets
//	14     1  size of lengths
//	15     1  reserved
//	16     4  group leaf and internal node K
//	20     4  file consistency flags
//	24     4  indexed storage K and reserved (version 1 only)
//	24     O  base address
//	+O     O  free-space info address
//	+2O    O  end of file address
//	+3O    O  driver information address
//	+4O       root group symbol table entry
//
// The symbol table entry starts with the link name offset followed by the
// object header address.
func readLegacy(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	head := make([]byte, 24)
	if _, err := r.ReadAt(head, off); err != nil {
		return nil, err
	}
	sb := &Superblock{
		Version:    version,
		OffsetSize: head[13],
		LengthSize: head[14],
		Flags:      head[20],
		FileOffset: off,
	}
	cfg := sb.Config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := off + 24
	if version == 1 {
		start += 4
	}
	br := binpkg.NewReader(r, cfg).At(start)
	var driver, nameOffset uint64
	for _, dst := range []*uint64{&sb.BaseAddress, &sb.ExtensionAddress, &sb.EOFAddress, &driver, &nameOffset, &sb.RootGroupAddress} {
		v, err := br.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("reading superblock: %w", err)
		}
		*dst = v
	}
	return sb, nil
}
