package hdf5

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/btree"
	"github.com/robert-malhotra/go-nwbconv/internal/dtype"
	"github.com/robert-malhotra/go-nwbconv/internal/filter"
	"github.com/robert-malhotra/go-nwbconv/internal/heap"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
	"github.com/robert-malhotra/go-nwbconv/internal/object"
)

// load reads the object tree below the root group at addr. Dataset
// contents are not read until requested.
func (f *File) load(r *binpkg.Reader, addr uint64) (*Group, error) {
	h, err := object.Read(r, addr)
	if err != nil {
		return nil, fmt.Errorf("reading root group: %w", err)
	}
	return f.loadGroup(r, h, "/", map[uint64]bool{addr: true})
}

// member is a hard link from a group to a child object header.
type member struct {
	name string
	addr uint64
}

// members lists the hard links of a group, from its link messages or,
// for groups in the older format, from its symbol table. Soft links are
// skipped.
func members(r *binpkg.Reader, h *object.Header) ([]member, error) {
	var out []member
	if st, ok := h.Find(message.TypeSymbolTable).(*message.SymbolTable); ok {
		names, err := heap.ReadLocal(r, st.HeapAddress)
		if err != nil {
			return nil, err
		}
		entries, err := btree.Members(r, st.BTreeAddress, names)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsSoft {
				out = append(out, member{name: e.Name, addr: e.Address})
			}
		}
		return out, nil
	}
	for _, m := range h.FindAll(message.TypeLink) {
		if link := m.(*message.Link); !link.IsSoft {
			out = append(out, member{name: link.Name, addr: link.Address})
		}
	}
	return out, nil
}

func (f *File) loadGroup(r *binpkg.Reader, h *object.Header, path string, ancestors map[uint64]bool) (*Group, error) {
	g := newGroup(f, path)
	var err error
	if g.attrs, err = f.readAttrs(h); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	links, err := members(r, h)
	if err != nil {
		return nil, fmt.Errorf("reading members of %s: %w", path, err)
	}

	for _, link := range links {
		childPath := joinPath(path, link.name)
		if ancestors[link.addr] {
			return nil, fmt.Errorf("%w: hard link cycle at %s", ErrUnsupported, childPath)
		}
		ch, err := object.Read(r, link.addr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", childPath, err)
		}

		if ch.Find(message.TypeDataLayout) != nil {
			d, err := f.loadDataset(r, ch, childPath)
			if err != nil {
				return nil, err
			}
			g.add(d)
			continue
		}

		ancestors[link.addr] = true
		sub, err := f.loadGroup(r, ch, childPath, ancestors)
		delete(ancestors, link.addr)
		if err != nil {
			return nil, err
		}
		g.add(sub)
	}
	return g, nil
}

func (f *File) loadDataset(r *binpkg.Reader, h *object.Header, path string) (*Dataset, error) {
	space, ok := h.Find(message.TypeDataspace).(*message.Dataspace)
	if !ok {
		return nil, fmt.Errorf("%s: dataset has no dataspace", path)
	}
	dt, ok := h.Find(message.TypeDatatype).(*message.Datatype)
	if !ok {
		return nil, fmt.Errorf("%s: dataset has no datatype", path)
	}
	lay := h.Find(message.TypeDataLayout).(*message.Layout)
	fp, _ := h.Find(message.TypeFilterPipeline).(*message.FilterPipeline)

	elem, err := dtype.ArrayType(dt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrUnsupported, err)
	}
	if _, err := filter.NewPipeline(fp, int(dt.Size)); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrUnsupported, err)
	}

	d := &Dataset{
		node:  node{file: f, path: path},
		dtype: elem,
		shape: fromDims(space),
		src:   &source{r: r, datatype: dt, layout: lay, pipeline: fp},
	}
	if lay.Class == message.LayoutChunked {
		chunks := make([]int, len(lay.ChunkDims))
		for i, c := range lay.ChunkDims {
			chunks[i] = int(c)
		}
		d.storage = storageFrom(chunks, filter.FromMessage(fp))
	}
	if d.attrs, err = f.readAttrs(h); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// readAttrs decodes the attributes of a header. Attributes stored with
// types this package cannot represent are skipped.
func (f *File) readAttrs(h *object.Header) ([]*Attribute, error) {
	var attrs []*Attribute
	for _, m := range h.FindAll(message.TypeAttribute) {
		am, ok := m.(*message.Attribute)
		if !ok {
			continue
		}
		a, err := attrFromMessage(am, f.heaps)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}
