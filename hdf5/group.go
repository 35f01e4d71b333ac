package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/internal/filter"
)

// Group is a container of named groups and datasets.
type Group struct {
	node
	children []Object
	index    map[string]Object
}

func newGroup(f *File, path string) *Group {
	return &Group{node: node{file: f, path: path}, index: make(map[string]Object)}
}

func (g *Group) add(obj Object) {
	g.children = append(g.children, obj)
	g.index[obj.Name()] = obj
}

// Members returns the names of the group's children in creation order.
func (g *Group) Members() []string {
	names := make([]string, len(g.children))
	for i, c := range g.children {
		names[i] = c.Name()
	}
	return names
}

// Children returns the group's children in creation order.
func (g *Group) Children() []Object {
	return append([]Object(nil), g.children...)
}

// Get returns the direct child called name.
func (g *Group) Get(name string) (Object, bool) {
	obj, ok := g.index[name]
	return obj, ok
}

// CreateGroup adds an empty child group.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkNew(name); err != nil {
		return nil, err
	}
	child := newGroup(g.file, joinPath(g.path, name))
	g.add(child)
	g.file.dirty = true
	return child, nil
}

// CreateDataset adds a dataset holding data.
func (g *Group) CreateDataset(name string, data *array.Array, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkNew(name); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("dataset %q: nil data", name)
	}
	if data.DType() == array.Invalid {
		return nil, fmt.Errorf("%w: dataset %q has no element type", ErrUnsupported, name)
	}

	o := &datasetOptions{}
	for _, opt := range opts {
		opt(o)
	}
	storage, err := resolveStorage(data.Shape(), o)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}

	d := &Dataset{
		node:    node{file: g.file, path: joinPath(g.path, name)},
		dtype:   data.DType(),
		shape:   data.Shape(),
		storage: storage,
		data:    data,
	}
	for _, a := range o.attributes {
		if err := d.SetAttr(a.name, a.value); err != nil {
			return nil, err
		}
	}
	g.add(d)
	g.file.dirty = true
	return d, nil
}

// OpenGroup returns the group at a path relative to g.
func (g *Group) OpenGroup(path string) (*Group, error) {
	obj, err := g.lookup(path)
	if err != nil {
		return nil, err
	}
	sub, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, obj.Path())
	}
	return sub, nil
}

// OpenDataset returns the dataset at a path relative to g.
func (g *Group) OpenDataset(path string) (*Dataset, error) {
	obj, err := g.lookup(path)
	if err != nil {
		return nil, err
	}
	d, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, obj.Path())
	}
	return d, nil
}

func (g *Group) lookup(path string) (Object, error) {
	if g.file.closed {
		return nil, ErrClosed
	}
	var cur Object = g
	for _, name := range SplitPath(path) {
		grp, ok := cur.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotGroup, cur.Path())
		}
		next, ok := grp.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, joinPath(grp.path, name))
		}
		cur = next
	}
	return cur, nil
}

func (g *Group) checkNew(name string) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}
	if _, ok := g.index[name]; ok {
		return fmt.Errorf("%w: %s", ErrExists, joinPath(g.path, name))
	}
	return nil
}

func resolveStorage(shape []int, o *datasetOptions) (Storage, error) {
	s := storageFrom(nil, o.filters)
	if o.filters.Deflate && (o.filters.Level < 0 || o.filters.Level > 9) {
		return s, fmt.Errorf("%w: compression level %d out of range 0-9", ErrInvalidOptions, o.filters.Level)
	}
	if o.chunks == nil {
		if !o.filters.Empty() {
			return s, fmt.Errorf("%w: filters require chunked storage", ErrInvalidOptions)
		}
		return s, nil
	}
	if len(shape) == 0 {
		return s, fmt.Errorf("%w: scalar datasets cannot be chunked", ErrInvalidOptions)
	}
	if len(o.chunks) != len(shape) {
		return s, fmt.Errorf("%w: chunk rank %d, dataset rank %d", ErrInvalidOptions, len(o.chunks), len(shape))
	}
	s.Chunks = make([]int, len(shape))
	for i, c := range o.chunks {
		if c <= 0 {
			return s, fmt.Errorf("%w: chunk dimension %d is %d", ErrInvalidOptions, i, c)
		}
		s.Chunks[i] = min(c, max(shape[i], 1))
	}
	return s, nil
}

// Storage describes how a dataset is laid out in the file.
type Storage struct {
	Chunks     []int // nil for contiguous storage
	Deflate    bool
	Level      int
	Shuffle    bool
	Fletcher32 bool
}

// Chunked reports whether the dataset is stored in chunks.
func (s Storage) Chunked() bool { return s.Chunks != nil }

func (s Storage) filters() filter.Options {
	return filter.Options{Shuffle: s.Shuffle, Deflate: s.Deflate, Level: s.Level, Fletcher32: s.Fletcher32}
}

func storageFrom(chunks []int, o filter.Options) Storage {
	return Storage{Chunks: chunks, Deflate: o.Deflate, Level: o.Level, Shuffle: o.Shuffle, Fletcher32: o.Fletcher32}
}
