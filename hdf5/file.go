package hdf5

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/robert-malhotra/go-nwbconv/internal/alloc"
	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/heap"
	"github.com/robert-malhotra/go-nwbconv/internal/superblock"
)

// File is an HDF5 file. It is not safe for concurrent use.
type File struct {
	path     string
	file     *os.File
	root     *Group
	writable bool
	dirty    bool
	closed   bool
	stats    alloc.Stats

	// heaps resolves variable-length strings of files read from disk.
	heaps *heap.Globals
}

// Create starts a new, empty file at path. Nothing is written until Save
// or Close; an existing file at path is replaced at that point.
func Create(path string) (*File, error) {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("creating %s: %s is not a directory", path, dir)
	}
	f := &File{path: path, writable: true, dirty: true}
	f.root = newGroup(f, "/")
	return f, nil
}

// Open opens a file for reading. Files written by this package and
// files in the older format of superblock versions 0 and 1 are
// understood.
func Open(path string) (*File, error) {
	osf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	sb, err := superblock.Read(osf)
	if err != nil {
		osf.Close()
		if errors.Is(err, superblock.ErrNotHDF5) {
			return nil, fmt.Errorf("%w: %s", ErrNotHDF5, path)
		}
		if errors.Is(err, superblock.ErrUnsupportedVersion) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	r := binpkg.NewReader(osf, sb.Config())
	f := &File{path: path, file: osf, heaps: heap.NewGlobals(r)}
	if f.root, err = f.load(r, sb.RootGroupAddress); err != nil {
		osf.Close()
		return nil, err
	}
	return f, nil
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Root returns the root group.
func (f *File) Root() *Group { return f.root }

// Writable reports whether the file accepts modifications.
func (f *File) Writable() bool { return f.writable }

// Stats returns allocation statistics of the last save.
func (f *File) Stats() alloc.Stats { return f.stats }

// OpenGroup returns the group at an absolute path.
func (f *File) OpenGroup(path string) (*Group, error) {
	return f.root.OpenGroup(path)
}

// OpenDataset returns the dataset at an absolute path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	return f.root.OpenDataset(path)
}

// ReadAttr returns the value of an attribute given as "/object@name".
func (f *File) ReadAttr(path string) (*Attribute, error) {
	objPath, name, err := ParseAttrPath(path)
	if err != nil {
		return nil, err
	}
	obj, err := f.root.lookup(objPath)
	if err != nil {
		return nil, err
	}
	a := obj.Attr(name)
	if a == nil {
		return nil, fmt.Errorf("%w: attribute %s", ErrNotFound, path)
	}
	return a, nil
}

// Save writes the tree to disk if it changed. The file stays open.
func (f *File) Save(ctx context.Context) error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable || !f.dirty {
		return nil
	}
	return f.persist(ctx)
}

// Close saves pending changes and releases the file.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	var err error
	if f.writable && f.dirty {
		err = f.persist(context.Background())
	}
	f.closed = true
	if f.file != nil {
		err = multierr.Append(err, f.file.Close())
		f.file = nil
	}
	return err
}

func (f *File) checkWritable() error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return ErrReadOnly
	}
	return nil
}

// persist writes the whole tree to a temporary file in the target
// directory and renames it over the target.
func (f *File) persist(ctx context.Context) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	stats, err := write(ctx, tmp, f.root)
	if err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	f.stats = stats
	f.dirty = false
	return nil
}
