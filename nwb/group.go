package nwb

import (
	"fmt"

	"github.com/robert-malhotra/go-nwbconv/array"
)

// Group is a container of named groups and datasets.
type Group struct {
	node
	file     *File
	children []Object
	index    map[string]Object
}

func newGroup(f *File, parent *Group, name string) *Group {
	return &Group{
		node:  node{name: name, parent: parent, attrs: Attributes{}},
		file:  f,
		index: map[string]Object{},
	}
}

// SetType marks the group as a neurodata type of the core namespace and
// assigns it an object id.
func (g *Group) SetType(neurodataType string) *Group {
	g.setType(neurodataType, CoreNamespace)
	return g
}

// Children returns the group's children in insertion order.
func (g *Group) Children() []Object {
	return append([]Object(nil), g.children...)
}

// Groups returns the child groups in insertion order.
func (g *Group) Groups() []*Group {
	var out []*Group
	for _, c := range g.children {
		if cg, ok := c.(*Group); ok {
			out = append(out, cg)
		}
	}
	return out
}

// Datasets returns the child datasets in insertion order.
func (g *Group) Datasets() []*Dataset {
	var out []*Dataset
	for _, c := range g.children {
		if d, ok := c.(*Dataset); ok {
			out = append(out, d)
		}
	}
	return out
}

// Get returns the direct child called name.
func (g *Group) Get(name string) (Object, bool) {
	obj, ok := g.index[name]
	return obj, ok
}

// Has reports whether g has a child called name.
func (g *Group) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Group returns the group at the relative path p.
func (g *Group) Group(p string) (*Group, error) {
	obj, err := g.lookup(p)
	if err != nil {
		return nil, err
	}
	sub, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, obj.Path())
	}
	return sub, nil
}

// Dataset returns the dataset at the relative path p.
func (g *Group) Dataset(p string) (*Dataset, error) {
	obj, err := g.lookup(p)
	if err != nil {
		return nil, err
	}
	d, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, obj.Path())
	}
	return d, nil
}

func (g *Group) lookup(p string) (Object, error) {
	var cur Object = g
	for _, name := range splitPath(p) {
		grp, ok := cur.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotGroup, cur.Path())
		}
		next, ok := grp.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, trimRoot(grp.Path()), name)
		}
		cur = next
	}
	return cur, nil
}

func trimRoot(p string) string {
	if p == "/" {
		return ""
	}
	return p
}

// CreateGroup adds an empty child group.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkNew(name); err != nil {
		return nil, err
	}
	child := newGroup(g.file, g, name)
	g.add(child)
	return child, nil
}

// CreateTypedGroup adds an empty child group of the given neurodata type.
func (g *Group) CreateTypedGroup(name, neurodataType string) (*Group, error) {
	child, err := g.CreateGroup(name)
	if err != nil {
		return nil, err
	}
	return child.SetType(neurodataType), nil
}

// Require returns the child group at the relative path p, creating any
// missing groups on the way.
func (g *Group) Require(p string) (*Group, error) {
	cur := g
	for _, name := range splitPath(p) {
		obj, ok := cur.index[name]
		if !ok {
			next, err := cur.CreateGroup(name)
			if err != nil {
				return nil, err
			}
			cur = next
			continue
		}
		next, ok := obj.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotGroup, obj.Path())
		}
		cur = next
	}
	return cur, nil
}

// CreateDataset adds a dataset holding data, an *array.Array or a DataIO.
func (g *Group) CreateDataset(name string, data array.Valuer) (*Dataset, error) {
	if err := g.checkNew(name); err != nil {
		return nil, err
	}
	if data == nil || data.Values() == nil {
		return nil, fmt.Errorf("dataset %s: nil data", name)
	}
	d := &Dataset{node: node{name: name, parent: g, attrs: Attributes{}}, data: data}
	g.add(d)
	return d, nil
}

// CreateValue adds a dataset holding a Go value, converted with
// array.FromValue. Scalars become rank 0 datasets.
func (g *Group) CreateValue(name string, v any) (*Dataset, error) {
	a, err := array.FromValue(v)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	return g.CreateDataset(name, a)
}

// Remove deletes the direct child called name.
func (g *Group) Remove(name string) error {
	if _, ok := g.index[name]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, trimRoot(g.Path()), name)
	}
	delete(g.index, name)
	for i, c := range g.children {
		if c.Name() == name {
			g.children = append(g.children[:i], g.children[i+1:]...)
			break
		}
	}
	return nil
}

func (g *Group) add(obj Object) {
	g.children = append(g.children, obj)
	g.index[obj.Name()] = obj
}

func (g *Group) checkNew(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if _, ok := g.index[name]; ok {
		return fmt.Errorf("%w: %s/%s", ErrExists, trimRoot(g.Path()), name)
	}
	return nil
}
