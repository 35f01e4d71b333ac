package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-nwbconv/array"
	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/dtype"
	"github.com/robert-malhotra/go-nwbconv/internal/layout"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

// Dataset is a typed N-dimensional array stored in the file.
type Dataset struct {
	node
	dtype   array.DType
	shape   []int
	storage Storage

	// data is set for new datasets and cached after the first Read.
	data *array.Array
	src  *source
}

// source locates the stored bytes of a dataset read from disk.
type source struct {
	r        *binpkg.Reader
	datatype *message.Datatype
	layout   *message.Layout
	pipeline *message.FilterPipeline
}

// DType returns the element type.
func (d *Dataset) DType() array.DType { return d.dtype }

// Shape returns the dataset dimensions. Scalars have an empty shape.
func (d *Dataset) Shape() []int { return append([]int{}, d.shape...) }

// Storage returns the layout and filters of the dataset.
func (d *Dataset) Storage() Storage {
	s := d.storage
	if s.Chunks != nil {
		s.Chunks = append([]int(nil), s.Chunks...)
	}
	return s
}

// Read returns the dataset contents. Data read from disk is decoded on
// first use and cached.
func (d *Dataset) Read() (*array.Array, error) {
	if d.data != nil {
		return d.data, nil
	}
	if d.file.closed {
		return nil, ErrClosed
	}
	if d.src == nil {
		return nil, fmt.Errorf("dataset %s has no data", d.path)
	}
	raw, err := layout.Read(d.src.r, d.src.layout, d.src.pipeline, d.shape, int(d.src.datatype.Size))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", d.path, err)
	}
	a, err := dtype.Decode(d.src.datatype, d.shape, raw, d.file.heaps)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", d.path, err)
	}
	d.data, d.src = a, nil
	return a, nil
}
