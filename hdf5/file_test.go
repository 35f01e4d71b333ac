package hdf5

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/internal/alloc"
)

func writeFile(t *testing.T, build func(root *Group)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.h5")
	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	build(f.Root())
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func mustOpen(t *testing.T, path string) *File {
	t.Helper()
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestCreateEmptyFile(t *testing.T) {
	path := writeFile(t, func(*Group) {})

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw[:8]) != "\x89HDF\r\n\x1a\n" {
		t.Errorf("bad signature %q", raw[:8])
	}

	f := mustOpen(t, path)
	if len(f.Root().Members()) != 0 {
		t.Errorf("root has members %v", f.Root().Members())
	}
	if f.Writable() {
		t.Error("Open should be read-only")
	}
}

func TestCreateMissingDirectory(t *testing.T) {
	if _, err := Create(filepath.Join(t.TempDir(), "missing", "x.h5")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestOpenNotHDF5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(path, []byte("this is not an hdf5 file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrNotHDF5) {
		t.Errorf("expected ErrNotHDF5, got %v", err)
	}
}

func TestNoTempFilesLeft(t *testing.T) {
	path := writeFile(t, func(root *Group) {
		root.CreateDataset("x", array.FromSlice([]float64{1, 2, 3}))
	})
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "test.h5" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contains %v", names)
	}
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	path := writeFile(t, func(*Group) {})
	f := mustOpen(t, path)
	if _, err := f.Root().CreateGroup("g"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("CreateGroup: expected ErrReadOnly, got %v", err)
	}
	if err := f.Root().SetAttr("a", 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("SetAttr: expected ErrReadOnly, got %v", err)
	}
}

func TestReopenPreservesStorage(t *testing.T) {
	path := writeFile(t, func(root *Group) {
		g, _ := root.CreateGroup("acquisition")
		g.CreateDataset("raw", array.MustNew([]int16{1, 2, 3, 4, 5, 6}, 3, 2), WithChunks(2, 2), WithCompression(4))
		root.SetAttr("nwb_version", "2.7.0")
	})

	f := mustOpen(t, path)
	if f.Writable() {
		t.Error("opened file reports writable")
	}
	d, err := f.OpenDataset("/acquisition/raw")
	if err != nil {
		t.Fatal(err)
	}
	a, err := d.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(array.MustNew([]int16{1, 2, 3, 4, 5, 6}, 3, 2)) {
		t.Errorf("raw = %v", a.Data())
	}
	s := d.Storage()
	if !s.Chunked() || s.Chunks[0] != 2 || !s.Deflate || s.Level != 4 {
		t.Errorf("storage not preserved: %+v", s)
	}
	if v, err := f.ReadAttr("/@nwb_version"); err != nil || v.Interface() != "2.7.0" {
		t.Errorf("nwb_version = %v, %v", v, err)
	}
}

func TestSaveKeepsFileOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.h5")
	f, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Root().CreateDataset("a", array.FromSlice([]uint8{1, 2}), WithChunks(1))
	if err := f.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	st := f.Stats()
	if st.Bytes[alloc.KindChunk] != 2 || st.Bytes[alloc.KindMeta] == 0 {
		t.Errorf("stats = %+v", st)
	}
	if _, err := f.Root().CreateGroup("later"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := mustOpen(t, path).OpenGroup("/later"); err != nil {
		t.Errorf("group added after Save is missing: %v", err)
	}
	if err := f.Save(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Save after Close: expected ErrClosed, got %v", err)
	}
}

func TestCanceledSaveLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cancel.h5")
	f, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Root().CreateDataset("a", array.FromSlice(make([]float64, 1000)), WithChunks(10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.Save(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("target exists after failed save: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 0 {
		t.Errorf("temporary file left behind")
	}
}
