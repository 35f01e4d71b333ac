package layout

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/internal/alloc"
	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/btree"
	"github.com/robert-malhotra/go-nwbconv/internal/filter"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

// Chunked describes a dataset to be written in chunks.
type Chunked struct {
	Shape    []int
	Chunks   []int
	ElemSize int
	Pipeline *filter.Pipeline
}

type encodedChunk struct {
	data []byte
	mask uint32
}

func (c *Chunked) filtered() bool {
	return c.Pipeline != nil && c.Pipeline.Len() > 0
}

func (c *Chunked) chunkBytes() int {
	return array.Size(c.Chunks) * c.ElemSize
}

// NumChunks returns the number of chunks in the grid.
func (c *Chunked) NumChunks() int {
	return array.Size(array.GridShape(c.Shape, c.Chunks))
}

// Write splits full into chunks, runs them through the pipeline, stores
// them and writes a fixed array index. Chunks are encoded concurrently and
// written in grid order.
func (c *Chunked) Write(ctx context.Context, w io.WriterAt, al *alloc.Allocator, cfg binpkg.Config, full []byte) (*message.Layout, error) {
	if len(c.Chunks) != len(c.Shape) {
		return nil, fmt.Errorf("layout: chunk rank %d does not match dataset rank %d", len(c.Chunks), len(c.Shape))
	}
	for i, n := range c.Chunks {
		if n <= 0 {
			return nil, fmt.Errorf("layout: chunk dimension %d is %d", i, n)
		}
	}

	indices := array.GridIndices(array.GridShape(c.Shape, c.Chunks))
	chunks := make([]encodedChunk, len(indices))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, idx := range indices {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw := array.ExtractChunk(full, c.Shape, c.Chunks, idx, c.ElemSize)
			if !c.filtered() {
				chunks[i] = encodedChunk{data: raw}
				return nil
			}
			data, mask, err := c.Pipeline.Encode(raw)
			if err != nil {
				return fmt.Errorf("chunk %v: %w", idx, err)
			}
			chunks[i] = encodedChunk{data: data, mask: mask}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]entry, len(chunks))
	for i, ch := range chunks {
		addr := al.Alloc(uint64(len(ch.data)), alloc.KindChunk)
		if _, err := w.WriteAt(ch.data, int64(addr)); err != nil {
			return nil, fmt.Errorf("writing chunk %d: %w", i, err)
		}
		entries[i] = entry{addr: addr, size: uint64(len(ch.data)), mask: ch.mask}
	}

	fa := fixedArray{
		filtered:   c.filtered(),
		chunkBytes: uint64(c.chunkBytes()),
		pageBits:   pageBits(len(entries)),
	}
	addr, err := fa.write(w, al, cfg, entries)
	if err != nil {
		return nil, err
	}

	dims := make([]uint32, len(c.Chunks))
	for i, n := range c.Chunks {
		dims[i] = uint32(n)
	}
	return message.NewFixedArrayLayout(dims, uint32(c.ElemSize), fa.pageBits, addr), nil
}

func readChunked(r *binpkg.Reader, lay *message.Layout, p *filter.Pipeline, shape []int, elemSize int) ([]byte, error) {
	if len(lay.ChunkDims) != len(shape) {
		return nil, fmt.Errorf("layout: chunk rank %d does not match dataset rank %d", len(lay.ChunkDims), len(shape))
	}
	chunks := make([]int, len(lay.ChunkDims))
	for i, d := range lay.ChunkDims {
		chunks[i] = int(d)
	}
	grid := array.GridShape(shape, chunks)
	n := array.Size(grid)
	chunkBytes := lay.ChunkBytes()
	filtered := p.Len() > 0

	var entries []entry
	switch lay.Index {
	case message.IndexFixedArray:
		fa := fixedArray{filtered: filtered, chunkBytes: chunkBytes}
		var err error
		if entries, err = fa.read(r, lay.Address, n); err != nil {
			return nil, err
		}
	case message.IndexSingleChunk:
		size := chunkBytes
		if filtered {
			size = lay.SingleFilteredSize
		}
		entries = []entry{{addr: lay.Address, size: size, mask: lay.SingleFilterMask}}
	case message.IndexImplicit:
		entries = make([]entry, n)
		for i := range entries {
			entries[i] = entry{addr: lay.Address + uint64(i)*chunkBytes, size: chunkBytes}
		}
	case message.IndexBTreeV1:
		var err error
		if entries, err = btreeEntries(r, lay.Address, grid, chunks); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: chunk index type %d", ErrUnsupported, lay.Index)
	}

	out := make([]byte, array.Size(shape)*elemSize)
	for i, idx := range array.GridIndices(grid) {
		e := entries[i]
		if r.IsUndefined(e.addr) {
			continue
		}
		raw, err := r.At(int64(e.addr)).ReadBytes(int(e.size))
		if err != nil {
			return nil, fmt.Errorf("reading chunk %v at 0x%x: %w", idx, e.addr, err)
		}
		data, err := p.Decode(raw, e.mask)
		if err != nil {
			return nil, fmt.Errorf("chunk %v: %w", idx, err)
		}
		if uint64(len(data)) < chunkBytes {
			return nil, fmt.Errorf("chunk %v: decoded %d bytes, want %d", idx, len(data), chunkBytes)
		}
		array.InsertChunk(out, shape, chunks, idx, elemSize, data)
	}
	return out, nil
}

// btreeEntries places the chunks of a version 1 B-tree in grid order.
// Chunks that were never written keep an undefined address.
func btreeEntries(r *binpkg.Reader, addr uint64, grid, chunks []int) ([]entry, error) {
	entries := make([]entry, array.Size(grid))
	for i := range entries {
		entries[i].addr = r.Config().UndefinedAddress()
	}
	if r.IsUndefined(addr) {
		return entries, nil
	}
	found, err := btree.Chunks(r, addr, len(chunks))
	if err != nil {
		return nil, err
	}
	strides := array.Strides(grid)
	for _, c := range found {
		pos := 0
		for d, off := range c.Offset {
			g := int(off) / chunks[d]
			if int(off)%chunks[d] != 0 || g >= grid[d] {
				return nil, fmt.Errorf("layout: chunk at %v does not fit a %v grid of %v chunks", c.Offset, grid, chunks)
			}
			pos += g * strides[d]
		}
		entries[pos] = entry{addr: c.Address, size: uint64(c.Size), mask: c.Mask}
	}
	return entries, nil
}
