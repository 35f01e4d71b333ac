package hdf5

import "github.com/robert-malhotra/go-nwbconv/internal/filter"

// DatasetOption configures dataset creation.
type DatasetOption func(*datasetOptions)

type attrDef struct {
	name  string
	value any
}

type datasetOptions struct {
	chunks     []int
	filters    filter.Options
	attributes []attrDef
}

// WithChunks stores the dataset in chunks of the given shape. Chunk
// dimensions larger than the dataset are clamped to it.
func WithChunks(dims ...int) DatasetOption {
	return func(o *datasetOptions) {
		o.chunks = append([]int{}, dims...)
	}
}

// WithCompression enables deflate at level 0 through 9. It requires
// chunking.
func WithCompression(level int) DatasetOption {
	return func(o *datasetOptions) {
		o.filters.Deflate = true
		o.filters.Level = level
	}
}

// WithShuffle enables the byte shuffle filter. It requires chunking.
func WithShuffle() DatasetOption {
	return func(o *datasetOptions) {
		o.filters.Shuffle = true
	}
}

// WithFletcher32 stores a Fletcher-32 checksum with every chunk. It
// requires chunking.
func WithFletcher32() DatasetOption {
	return func(o *datasetOptions) {
		o.filters.Fletcher32 = true
	}
}

// WithAttribute sets an attribute on the new dataset. The value may be
// anything array.FromValue accepts.
func WithAttribute(name string, value any) DatasetOption {
	return func(o *datasetOptions) {
		o.attributes = append(o.attributes, attrDef{name: name, value: value})
	}
}
