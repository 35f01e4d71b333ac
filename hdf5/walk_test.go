package hdf5

import (
	"errors"
	"reflect"
	"testing"

	"github.com/robert-malhotra/go-nwbconv/array"
)

func buildTree(t *testing.T) *File {
	t.Helper()
	path := writeFile(t, func(root *Group) {
		root.SetAttr("identifier", "abc")
		acq, _ := root.CreateGroup("acquisition")
		acq.CreateDataset("ts", array.FromSlice([]float64{1}), WithAttribute("unit", "s"))
		proc, _ := root.CreateGroup("processing")
		beh, _ := proc.CreateGroup("behavior")
		beh.SetAttr("description", "tracking")
		beh.CreateDataset("xy", array.MustNew([]float32{1, 2, 3, 4}, 2, 2))
		root.CreateDataset("timestamps_reference_time", array.Scalar("2024-01-01T00:00:00"))
	})
	return mustOpen(t, path)
}

func TestWalkOrder(t *testing.T) {
	f := buildTree(t)
	var paths []string
	err := Walk(f.Root(), func(path string, obj Object) error {
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"/",
		"/acquisition",
		"/acquisition/ts",
		"/processing",
		"/processing/behavior",
		"/processing/behavior/xy",
		"/timestamps_reference_time",
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("Walk visited %v, want %v", paths, want)
	}
}

func TestWalkSkipAndStop(t *testing.T) {
	f := buildTree(t)
	var paths []string
	err := Walk(f.Root(), func(path string, obj Object) error {
		paths = append(paths, path)
		if path == "/processing" {
			return SkipGroup
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range paths {
		if p == "/processing/behavior" {
			t.Errorf("SkipGroup did not skip children: %v", paths)
		}
	}

	stop := errors.New("stop")
	n := 0
	err = Walk(f.Root(), func(string, Object) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || n != 2 {
		t.Errorf("Walk returned %v after %d calls", err, n)
	}
}

func TestWalkAttrs(t *testing.T) {
	f := buildTree(t)
	var got []string
	err := f.WalkAttrs(func(info AttrInfo) error {
		got = append(got, info.Path+"="+info.ObjectType)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"/@identifier=group",
		"/acquisition/ts@unit=dataset",
		"/processing/behavior@description=group",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WalkAttrs = %v, want %v", got, want)
	}
}

func TestParseAttrPath(t *testing.T) {
	tests := []struct {
		in, obj, name string
	}{
		{"/@root", "/", "root"},
		{"/data@units", "/data", "units"},
		{"a/b/@c", "/a/b", "c"},
	}
	for _, tt := range tests {
		obj, name, err := ParseAttrPath(tt.in)
		if err != nil || obj != tt.obj || name != tt.name {
			t.Errorf("ParseAttrPath(%q) = %q, %q, %v", tt.in, obj, name, err)
		}
		if tt.obj != "/" && JoinAttrPath(obj, name) != CleanPath(tt.obj)+"@"+tt.name {
			t.Errorf("JoinAttrPath(%q, %q) = %q", obj, name, JoinAttrPath(obj, name))
		}
	}
	for _, bad := range []string{"/data", "/data@"} {
		if _, _, err := ParseAttrPath(bad); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("ParseAttrPath(%q): expected ErrInvalidPath, got %v", bad, err)
		}
	}
}
