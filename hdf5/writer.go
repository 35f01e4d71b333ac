package hdf5

import (
	"context"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-nwbconv/internal/alloc"
	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/dtype"
	"github.com/robert-malhotra/go-nwbconv/internal/filter"
	"github.com/robert-malhotra/go-nwbconv/internal/layout"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
	"github.com/robert-malhotra/go-nwbconv/internal/object"
	"github.com/robert-malhotra/go-nwbconv/internal/superblock"
)

type writer struct {
	ctx context.Context
	w   io.WriterAt
	cfg binpkg.Config
	al  *alloc.Allocator
}

// write serializes the tree below root. Children are written before their
// parents so every link target address is known when a group header is
// encoded; the superblock goes last, at offset 0.
func write(ctx context.Context, w io.WriterAt, root *Group) (alloc.Stats, error) {
	sb := superblock.New()
	wr := &writer{ctx: ctx, w: w, cfg: sb.Config(), al: alloc.New(uint64(sb.Size()))}

	addr, err := wr.group(root)
	if err != nil {
		return alloc.Stats{}, err
	}
	if err := wr.al.Validate(); err != nil {
		return alloc.Stats{}, err
	}
	sb.RootGroupAddress = addr
	sb.EOFAddress = wr.al.EOF()
	if err := sb.Write(binpkg.NewWriter(w, wr.cfg)); err != nil {
		return alloc.Stats{}, fmt.Errorf("writing superblock: %w", err)
	}
	return wr.al.Stats(), nil
}

func (wr *writer) group(g *Group) (uint64, error) {
	msgs := []message.Message{message.NewLinkInfo(), &message.GroupInfo{}}
	for _, child := range g.children {
		var (
			addr uint64
			err  error
		)
		switch c := child.(type) {
		case *Group:
			addr, err = wr.group(c)
		case *Dataset:
			addr, err = wr.dataset(c)
		}
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, message.NewHardLink(child.Name(), addr))
	}
	return wr.header(g.path, msgs, g.attrs)
}

func (wr *writer) dataset(d *Dataset) (uint64, error) {
	if err := wr.ctx.Err(); err != nil {
		return 0, err
	}
	a := d.data
	dt, raw, err := dtype.Encode(a)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", d.path, err)
	}
	msgs := []message.Message{message.NewDataspace(toDims(a.Shape())), dt}

	if d.storage.Chunked() && a.Len() > 0 {
		fp := d.storage.filters().Message(int(dt.Size))
		p, err := filter.NewPipeline(fp, int(dt.Size))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", d.path, err)
		}
		c := &layout.Chunked{Shape: a.Shape(), Chunks: d.storage.Chunks, ElemSize: int(dt.Size), Pipeline: p}
		lay, err := c.Write(wr.ctx, wr.w, wr.al, wr.cfg, raw)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", d.path, err)
		}
		msgs = append(msgs,
			&message.FillValue{AllocTime: message.AllocIncremental, WriteTime: message.FillWriteIfSet},
			lay)
		if fp != nil {
			msgs = append(msgs, fp)
		}
	} else {
		lay, err := layout.WriteContiguous(wr.w, wr.al, wr.cfg, raw)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", d.path, err)
		}
		msgs = append(msgs,
			&message.FillValue{AllocTime: message.AllocLate, WriteTime: message.FillWriteIfSet},
			lay)
	}
	return wr.header(d.path, msgs, d.attrs)
}

func (wr *writer) header(path string, msgs []message.Message, attrs []*Attribute) (uint64, error) {
	for _, a := range attrs {
		m, err := attrMessage(a)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
		msgs = append(msgs, m)
	}
	raw, err := object.Encode(msgs, wr.cfg)
	if err != nil {
		return 0, fmt.Errorf("encoding header of %s: %w", path, err)
	}
	addr := wr.al.Alloc(uint64(len(raw)), alloc.KindMeta)
	if _, err := wr.w.WriteAt(raw, int64(addr)); err != nil {
		return 0, fmt.Errorf("writing header of %s: %w", path, err)
	}
	return addr, nil
}
