// Package backend connects the in-memory NWB model to the storage engines.
//
// The set of backends is closed: HDF5 files written by package hdf5 and
// Zarr v2 stores written by package zarr. Each backend opens an IO handle
// for a path and supplies the default dataset configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-nwbconv/nwb"
)

// Name identifies a backend.
type Name string

const (
	HDF5 Name = "hdf5"
	Zarr Name = "zarr"
)

// ErrUnknownBackend is returned by Lookup for names outside the registry.
var ErrUnknownBackend = errors.New("unknown backend")

// ErrUnsupportedConfig is returned when a dataset configuration cannot be
// expressed by a backend.
var ErrUnsupportedConfig = errors.New("unsupported dataset configuration")

// Mode selects how an existing file at the target path is treated.
type Mode int

const (
	// Overwrite replaces whatever is at the path.
	Overwrite Mode = iota
	// Append reads the existing file so new content can be added to it.
	Append
)

func (m Mode) String() string {
	if m == Append {
		return "append"
	}
	return "overwrite"
}

// IO is an open handle on one file. Close must be called on every path.
type IO interface {
	// Read loads the existing file. Only valid in Append mode.
	Read(ctx context.Context) (*nwb.File, error)
	// Write persists f to the path, replacing previous content.
	Write(ctx context.Context, f *nwb.File) error
	Close() error
}

// Option configures an IO handle.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger of the IO handle.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Backend is one registry entry.
type Backend struct {
	Name          Name
	Open          func(path string, mode Mode, opts ...Option) (IO, error)
	Exists        func(path string) (bool, error)
	DefaultConfig func() nwb.DatasetConfig
}

var registry = map[Name]Backend{
	HDF5: {
		Name:   HDF5,
		Open:   openHDF5,
		Exists: fileExists,
		DefaultConfig: func() nwb.DatasetConfig {
			return nwb.DatasetConfig{Compression: nwb.Gzip, Level: 4}
		},
	},
	Zarr: {
		Name:   Zarr,
		Open:   openZarr,
		Exists: zarrExists,
		DefaultConfig: func() nwb.DatasetConfig {
			return nwb.DatasetConfig{Compression: nwb.Zstd, Level: 3}
		},
	},
}

// Lookup returns the backend called name. The empty name selects HDF5.
func Lookup(name Name) (Backend, error) {
	if name == "" {
		name = HDF5
	}
	b, ok := registry[Name(strings.ToLower(string(name)))]
	if !ok {
		return Backend{}, fmt.Errorf("%w: %q (expected one of %v)", ErrUnknownBackend, name, Names())
	}
	return b, nil
}

// Names lists the registered backends.
func Names() []Name {
	out := make([]Name, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func fileExists(path string) (bool, error) {
	ok, err := statExists(path)
	return ok, ioErr(HDF5, "exists", path, err)
}

func statExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// IOError reports a failed backend operation.
type IOError struct {
	Backend Name
	Op      string
	Path    string
	Err     error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Backend, e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioErr(b Name, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Backend: b, Op: op, Path: path, Err: err}
}
