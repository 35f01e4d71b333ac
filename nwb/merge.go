package nwb

import (
	"fmt"
	"reflect"
)

// Merge copies the content of src into f. Groups present in both are
// merged recursively and missing attributes are added; objects only in
// src are moved over. A dataset present in both must hold equal data,
// and an attribute present in both must have an equal value, except for
// the root group's file-level attributes, which keep f's values. src is
// consumed and must not be used afterwards.
func (f *File) Merge(src *File) error {
	return mergeGroup(f.root, src.root, true)
}

func mergeGroup(dst, src *Group, root bool) error {
	for k, v := range src.attrs {
		cur, ok := dst.attrs[k]
		switch {
		case !ok:
			dst.attrs[k] = v
		case root || k == AttrObjectID:
		case !reflect.DeepEqual(cur, v):
			return fmt.Errorf("%w: attribute %s of %s", ErrConflict, k, dst.Path())
		}
	}
	for _, child := range src.children {
		existing, ok := dst.index[child.Name()]
		if !ok {
			adopt(dst, child)
			continue
		}
		switch c := child.(type) {
		case *Group:
			eg, ok := existing.(*Group)
			if !ok {
				return fmt.Errorf("%w: %s is a group in one file and a dataset in the other", ErrConflict, existing.Path())
			}
			if err := mergeGroup(eg, c, false); err != nil {
				return err
			}
		case *Dataset:
			ed, ok := existing.(*Dataset)
			if !ok {
				return fmt.Errorf("%w: %s is a group in one file and a dataset in the other", ErrConflict, existing.Path())
			}
			if root {
				// identifier, session_start_time and friends stay as they are.
				continue
			}
			if !ed.Array().Equal(c.Array()) {
				return fmt.Errorf("%w: dataset %s", ErrConflict, ed.Path())
			}
		}
	}
	return nil
}

// adopt moves obj and its subtree under dst.
func adopt(dst *Group, obj Object) {
	switch o := obj.(type) {
	case *Group:
		o.parent = dst
		var rehome func(g *Group)
		rehome = func(g *Group) {
			g.file = dst.file
			for _, c := range g.Groups() {
				rehome(c)
			}
		}
		rehome(o)
	case *Dataset:
		o.parent = dst
	}
	dst.add(obj)
}
