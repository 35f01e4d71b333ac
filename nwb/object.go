package nwb

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/robert-malhotra/go-nwbconv/array"
)

// Reserved attribute names.
const (
	AttrNeurodataType = "neurodata_type"
	AttrNamespace     = "namespace"
	AttrObjectID      = "object_id"
)

// CoreNamespace is the namespace of the NWB core types.
const CoreNamespace = "core"

// Attributes holds the attributes of an object. Values are strings,
// numbers, string or number slices, or arrays.
type Attributes map[string]any

// Keys returns the attribute names in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the named attribute if it is a string.
func (a Attributes) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Float returns the named attribute as a float64.
func (a Attributes) Float(name string) (float64, bool) {
	switch v := a[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Object is a group or a dataset.
type Object interface {
	Name() string
	Path() string
	Parent() *Group
	Attrs() Attributes
	NeurodataType() string
	ObjectID() string
}

type node struct {
	name   string
	parent *Group
	attrs  Attributes
}

// Name returns the object name; the root group is "/".
func (n *node) Name() string { return n.name }

// Parent returns the containing group, or nil for the root.
func (n *node) Parent() *Group { return n.parent }

// Attrs returns the object's attributes. The map may be modified.
func (n *node) Attrs() Attributes { return n.attrs }

// NeurodataType returns the neurodata_type attribute.
func (n *node) NeurodataType() string { return n.attrs.String(AttrNeurodataType) }

// ObjectID returns the object_id attribute.
func (n *node) ObjectID() string { return n.attrs.String(AttrObjectID) }

// Path returns the absolute path of the object.
func (n *node) Path() string {
	if n.parent == nil {
		return "/"
	}
	return path.Join(n.parent.Path(), n.name)
}

func (n *node) setType(neurodataType, namespace string) {
	n.attrs[AttrNeurodataType] = neurodataType
	n.attrs[AttrNamespace] = namespace
	if n.attrs.String(AttrObjectID) == "" {
		n.attrs[AttrObjectID] = uuid.NewString()
	}
}

// Dataset is a named array inside a group.
type Dataset struct {
	node
	data array.Valuer
}

// Data returns the payload: an *array.Array or a DataIO.
func (d *Dataset) Data() array.Valuer { return d.data }

// Array returns the raw array, unwrapping a DataIO.
func (d *Dataset) Array() *array.Array {
	a, _ := Unwrap(d.data)
	return a
}

// SetData replaces the payload.
func (d *Dataset) SetData(v array.Valuer) { d.data = v }

// SetType marks the dataset as a neurodata type of the core namespace
// and assigns it an object id.
func (d *Dataset) SetType(neurodataType string) *Dataset {
	d.setType(neurodataType, CoreNamespace)
	return d
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func splitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}
