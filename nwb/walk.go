package nwb

import "errors"

// SkipGroup may be returned by a WalkFunc to skip the children of the
// group it was called with.
var SkipGroup = errors.New("skip this group")

// WalkFunc is called for every object during Walk.
type WalkFunc func(path string, obj Object) error

// Walk visits every object of the file depth first in insertion order,
// groups before their children.
func (f *File) Walk(fn WalkFunc) error {
	return WalkGroup(f.root, fn)
}

// WalkGroup is Walk starting at g.
func WalkGroup(g *Group, fn WalkFunc) error {
	err := walk(g, fn)
	if errors.Is(err, SkipGroup) {
		return nil
	}
	return err
}

func walk(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g); err != nil {
		return err
	}
	for _, child := range g.children {
		if cg, ok := child.(*Group); ok {
			if err := walk(cg, fn); err != nil && !errors.Is(err, SkipGroup) {
				return err
			}
			continue
		}
		if err := fn(child.Path(), child); err != nil {
			return err
		}
	}
	return nil
}
