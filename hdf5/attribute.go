package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/dtype"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

// Attribute is a named array attached to a group or dataset.
type Attribute struct {
	Name  string
	Value *array.Array
}

// Interface returns the attribute value as a Go scalar for rank 0
// attributes and as a slice otherwise.
func (a *Attribute) Interface() any {
	return a.Value.Value()
}

// Object is a group or a dataset.
type Object interface {
	Name() string
	Path() string
	Attr(name string) *Attribute
	Attrs() []*Attribute
	SetAttr(name string, value any) error
}

// node holds what groups and datasets have in common.
type node struct {
	file  *File
	path  string
	attrs []*Attribute
}

// Path returns the absolute path of the object.
func (o *node) Path() string { return o.path }

// Name returns the last path component, or "/" for the root group.
func (o *node) Name() string {
	if o.path == "/" {
		return "/"
	}
	return path.Base(o.path)
}

// Attr returns the named attribute, or nil.
func (o *node) Attr(name string) *Attribute {
	for _, a := range o.attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Attrs returns the attributes in creation order.
func (o *node) Attrs() []*Attribute {
	return append([]*Attribute(nil), o.attrs...)
}

// SetAttr creates or replaces an attribute.
func (o *node) SetAttr(name string, value any) error {
	if err := o.file.checkWritable(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: empty attribute name on %s", ErrInvalidPath, o.path)
	}
	v, err := array.FromValue(value)
	if err != nil {
		return fmt.Errorf("attribute %q on %s: %w", name, o.path, err)
	}
	a := &Attribute{Name: name, Value: v}
	m, err := attrMessage(a)
	if err != nil {
		return fmt.Errorf("attribute %q on %s: %w", name, o.path, err)
	}
	if _, err := message.Bytes(m, binary.DefaultConfig()); err != nil {
		return fmt.Errorf("%w: attribute %q on %s: %w", ErrUnsupported, name, o.path, err)
	}

	o.file.dirty = true
	for i, old := range o.attrs {
		if old.Name == name {
			o.attrs[i] = a
			return nil
		}
	}
	o.attrs = append(o.attrs, a)
	return nil
}

func attrMessage(a *Attribute) (*message.Attribute, error) {
	dt, raw, err := dtype.Encode(a.Value)
	if err != nil {
		return nil, err
	}
	return &message.Attribute{
		Name:      a.Name,
		Datatype:  dt,
		Dataspace: message.NewDataspace(toDims(a.Value.Shape())),
		Data:      raw,
	}, nil
}

func attrFromMessage(m *message.Attribute, heaps dtype.HeapReader) (*Attribute, error) {
	v, err := dtype.Decode(m.Datatype, fromDims(m.Dataspace), m.Data, heaps)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	return &Attribute{Name: m.Name, Value: v}, nil
}

func toDims(shape []int) []uint64 {
	if len(shape) == 0 {
		return nil
	}
	dims := make([]uint64, len(shape))
	for i, d := range shape {
		dims[i] = uint64(d)
	}
	return dims
}

func fromDims(ds *message.Dataspace) []int {
	shape := make([]int, len(ds.Dims))
	for i, d := range ds.Dims {
		shape[i] = int(d)
	}
	return shape
}
