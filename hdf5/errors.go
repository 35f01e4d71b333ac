// Package hdf5 reads and writes HDF5 files in pure Go.
//
// A File is an in-memory tree of groups, datasets and attributes. Files
// made with Create are serialized in one pass when they are saved or
// closed: the tree is written to a temporary file next to the target,
// which is then renamed into place. Files opened with Open are read-only.
//
// The writer produces superblock version 3 files with version 2 object
// headers, compact link storage, contiguous layouts, and chunked layouts
// indexed by a fixed array with optional shuffle, deflate and Fletcher-32
// filters. The reader understands the same subset, and also the layout
// the HDF5 library writes by default: version 0 and 1 superblocks,
// version 1 object headers, groups stored as a B-tree with a local heap,
// chunks indexed by a version 1 B-tree, and variable-length strings.
package hdf5

import "errors"

var (
	ErrNotHDF5        = errors.New("not an HDF5 file")
	ErrNotFound       = errors.New("object not found")
	ErrNotDataset     = errors.New("object is not a dataset")
	ErrNotGroup       = errors.New("object is not a group")
	ErrExists         = errors.New("object already exists")
	ErrUnsupported    = errors.New("unsupported feature")
	ErrInvalidPath    = errors.New("invalid path")
	ErrInvalidOptions = errors.New("invalid dataset options")
	ErrReadOnly       = errors.New("file is read-only")
	ErrClosed         = errors.New("file is closed")
)
