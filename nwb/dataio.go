package nwb

import (
	"fmt"

	"github.com/robert-malhotra/go-nwbconv/array"
)

// Compression codecs understood by the backends.
const (
	Gzip = "gzip"
	Zstd = "zstd"
	Zlib = "zlib"
)

// DatasetConfig describes how a backend should store one dataset. A nil
// Chunks lets the backend pick a chunk shape; an empty Compression stores
// the data uncompressed.
type DatasetConfig struct {
	Chunks      []int  `mapstructure:"chunks" yaml:"chunks,omitempty"`
	Compression string `mapstructure:"compression" yaml:"compression,omitempty"`
	Level       int    `mapstructure:"level" yaml:"level,omitempty"`
	Shuffle     bool   `mapstructure:"shuffle" yaml:"shuffle,omitempty"`
	Fletcher32  bool   `mapstructure:"fletcher32" yaml:"fletcher32,omitempty"`
}

// Clone returns a copy of c that shares no memory with it.
func (c DatasetConfig) Clone() DatasetConfig {
	if c.Chunks != nil {
		c.Chunks = append([]int{}, c.Chunks...)
	}
	return c
}

func (c DatasetConfig) String() string {
	s := fmt.Sprintf("chunks=%v", c.Chunks)
	if c.Compression != "" {
		s += fmt.Sprintf(" %s(%d)", c.Compression, c.Level)
	}
	if c.Shuffle {
		s += " shuffle"
	}
	if c.Fletcher32 {
		s += " fletcher32"
	}
	return s
}

// Location names a dataset by the container that holds it and the field
// within that container, for example {"acquisition/ElectricalSeries",
// "data"}. Container is a path or an object id.
type Location struct {
	Container string `mapstructure:"container" yaml:"container"`
	Field     string `mapstructure:"field" yaml:"field"`
}

func (l Location) String() string {
	return l.Container + ":" + l.Field
}

// DataIO wraps a dataset payload with the backend it was configured for
// and the storage settings to use.
type DataIO struct {
	Backend string
	Config  DatasetConfig
	Data    *array.Array
}

// Values returns the wrapped array.
func (d DataIO) Values() *array.Array { return d.Data }

// Unwrap returns the raw array behind v and the DataIO wrapping it, if any.
func Unwrap(v array.Valuer) (*array.Array, *DataIO) {
	switch x := v.(type) {
	case DataIO:
		return x.Data, &x
	case *DataIO:
		return x.Data, x
	case nil:
		return nil, nil
	}
	return v.Values(), nil
}
