package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"github.com/robert-malhotra/go-nwbconv/internal/alloc"
	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
)

var (
	headerSignature    = []byte("FAHD")
	dataBlockSignature = []byte("FADB")
)

const minPageBits = 10

type entry struct {
	addr uint64
	size uint64
	mask uint32
}

// fixedArray is a chunk index with one entry per chunk. The page size is
// chosen so that the data block is never paged.
type fixedArray struct {
	filtered   bool
	chunkBytes uint64
	pageBits   uint8
}

func pageBits(n int) uint8 {
	b := uint8(minPageBits)
	for n > 1<<b {
		b++
	}
	return b
}

func (fa fixedArray) clientID() uint8 {
	if fa.filtered {
		return 1
	}
	return 0
}

// sizeLen is the width of the chunk size field of a filtered entry.
func (fa fixedArray) sizeLen() int {
	n := 1 + (bits.Len64(fa.chunkBytes)-1+8)/8
	if n > 8 {
		n = 8
	}
	return n
}

func (fa fixedArray) entrySize(cfg binpkg.Config) int {
	if fa.filtered {
		return cfg.OffsetSize + fa.sizeLen() + 4
	}
	return cfg.OffsetSize
}

func (fa fixedArray) write(w io.WriterAt, al *alloc.Allocator, cfg binpkg.Config, entries []entry) (uint64, error) {
	headerSize := 4 + 4 + cfg.LengthSize + cfg.OffsetSize + 4
	blockSize := 4 + 2 + cfg.OffsetSize + len(entries)*fa.entrySize(cfg) + 4
	headerAddr := al.Alloc(uint64(headerSize), alloc.KindMeta)
	blockAddr := al.Alloc(uint64(blockSize), alloc.KindMeta)

	header, err := binpkg.Encode(cfg, func(bw *binpkg.Writer) error {
		bw.WriteBytes(headerSignature)
		bw.WriteUint8(0)
		bw.WriteUint8(fa.clientID())
		bw.WriteUint8(uint8(fa.entrySize(cfg)))
		bw.WriteUint8(fa.pageBits)
		bw.WriteLength(uint64(len(entries)))
		return bw.WriteOffset(blockAddr)
	})
	if err != nil {
		return 0, err
	}
	header = binary.LittleEndian.AppendUint32(header, binpkg.Lookup3Checksum(header))

	block, err := binpkg.Encode(cfg, func(bw *binpkg.Writer) error {
		bw.WriteBytes(dataBlockSignature)
		bw.WriteUint8(0)
		bw.WriteUint8(fa.clientID())
		bw.WriteOffset(headerAddr)
		for _, e := range entries {
			if err := bw.WriteOffset(e.addr); err != nil {
				return err
			}
			if fa.filtered {
				bw.WriteUintN(e.size, fa.sizeLen())
				bw.WriteUint32(e.mask)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	block = binary.LittleEndian.AppendUint32(block, binpkg.Lookup3Checksum(block))

	if _, err := w.WriteAt(header, int64(headerAddr)); err != nil {
		return 0, fmt.Errorf("writing fixed array header: %w", err)
	}
	if _, err := w.WriteAt(block, int64(blockAddr)); err != nil {
		return 0, fmt.Errorf("writing fixed array data block: %w", err)
	}
	return headerAddr, nil
}

func (fa fixedArray) read(r *binpkg.Reader, addr uint64, n int) ([]entry, error) {
	cfg := r.Config()
	header, err := r.At(int64(addr)).ReadBytes(4 + 4 + cfg.LengthSize + cfg.OffsetSize + 4)
	if err != nil {
		return nil, fmt.Errorf("reading fixed array header at 0x%x: %w", addr, err)
	}
	if !bytes.Equal(header[:4], headerSignature) {
		return nil, fmt.Errorf("%w at 0x%x", ErrBadSignature, addr)
	}
	if err := verify(header); err != nil {
		return nil, err
	}
	hr := binpkg.ReaderOf(header[4:], cfg)
	hr.Skip(1) // version
	clientID, _ := hr.ReadUint8()
	esize, _ := hr.ReadUint8()
	pb, _ := hr.ReadUint8()
	count, _ := hr.ReadLength()
	blockAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}

	fa.filtered = clientID == 1
	if int(esize) != fa.entrySize(cfg) {
		return nil, fmt.Errorf("%w: fixed array entry size %d", ErrUnsupported, esize)
	}
	if count > 1<<pb {
		return nil, fmt.Errorf("%w: paged fixed array", ErrUnsupported)
	}
	if int(count) < n {
		return nil, fmt.Errorf("fixed array at 0x%x has %d entries, need %d", addr, count, n)
	}

	block, err := r.At(int64(blockAddr)).ReadBytes(4 + 2 + cfg.OffsetSize + int(count)*int(esize) + 4)
	if err != nil {
		return nil, fmt.Errorf("reading fixed array data block at 0x%x: %w", blockAddr, err)
	}
	if !bytes.Equal(block[:4], dataBlockSignature) {
		return nil, fmt.Errorf("%w at 0x%x", ErrBadSignature, blockAddr)
	}
	if err := verify(block); err != nil {
		return nil, err
	}

	br := binpkg.ReaderOf(block[6+cfg.OffsetSize:], cfg)
	entries := make([]entry, count)
	for i := range entries {
		e := entry{size: fa.chunkBytes}
		if e.addr, err = br.ReadOffset(); err != nil {
			return nil, err
		}
		if fa.filtered {
			if e.size, err = br.ReadUintN(fa.sizeLen()); err != nil {
				return nil, err
			}
			if e.mask, err = br.ReadUint32(); err != nil {
				return nil, err
			}
		}
		entries[i] = e
	}
	return entries, nil
}

func verify(block []byte) error {
	n := len(block) - 4
	if binary.LittleEndian.Uint32(block[n:]) != binpkg.Lookup3Checksum(block[:n]) {
		return ErrChecksum
	}
	return nil
}
