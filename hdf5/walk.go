package hdf5

import "errors"

// SkipGroup may be returned by a WalkFunc to skip the children of the
// group it was called with.
var SkipGroup = errors.New("skip this group")

// WalkFunc is called for every object during Walk.
type WalkFunc func(path string, obj Object) error

// Walk visits g and everything below it in depth-first creation order.
// Groups are visited before their children.
func Walk(g *Group, fn WalkFunc) error {
	err := walkGroup(g, fn)
	if errors.Is(err, SkipGroup) {
		return nil
	}
	return err
}

func walkGroup(g *Group, fn WalkFunc) error {
	if err := fn(g.path, g); err != nil {
		return err
	}
	for _, child := range g.children {
		switch c := child.(type) {
		case *Group:
			if err := walkGroup(c, fn); err != nil && !errors.Is(err, SkipGroup) {
				return err
			}
		default:
			if err := fn(c.Path(), c); err != nil {
				return err
			}
		}
	}
	return nil
}

// AttrInfo describes one attribute during WalkAttrs.
type AttrInfo struct {
	Path       string // "/object@name"
	ObjectPath string
	ObjectType string // "group" or "dataset"
	Attr       *Attribute
}

// WalkAttrs calls fn for every attribute in the file.
func (f *File) WalkAttrs(fn func(AttrInfo) error) error {
	if f.closed {
		return ErrClosed
	}
	return Walk(f.root, func(path string, obj Object) error {
		typ := "dataset"
		if _, ok := obj.(*Group); ok {
			typ = "group"
		}
		for _, a := range obj.Attrs() {
			info := AttrInfo{Path: JoinAttrPath(path, a.Name), ObjectPath: path, ObjectType: typ, Attr: a}
			if err := fn(info); err != nil {
				return err
			}
		}
		return nil
	})
}
