// Package registry maps interface type names to their constructors.
package registry

import (
	"sort"

	"github.com/robert-malhotra/go-nwbconv/datainterface"
	"github.com/robert-malhotra/go-nwbconv/datainterface/behavior"
	"github.com/robert-malhotra/go-nwbconv/datainterface/ecephys"
	"github.com/robert-malhotra/go-nwbconv/datainterface/ophys"
	"github.com/robert-malhotra/go-nwbconv/metadata"
)

// Factory builds an interface from its source data.
type Factory func(source map[string]any, opts ...datainterface.Option) (datainterface.Interface, error)

// Entry is one interface type. Source and Options are zero values of the
// type's source and options structs, used to describe it without data.
type Entry struct {
	New     Factory
	Source  any
	Options any
}

func factory[T datainterface.Interface](fn func(map[string]any, ...datainterface.Option) (T, error)) Factory {
	return func(source map[string]any, opts ...datainterface.Option) (datainterface.Interface, error) {
		iface, err := fn(source, opts...)
		if err != nil {
			return nil, err
		}
		return iface, nil
	}
}

// Interfaces is the explicit table of interface types.
var Interfaces = map[string]Entry{
	// flat binary file of interleaved samples
	"BinaryRecording": {
		New:     factory(ecephys.NewRecording),
		Source:  ecephys.RecordingSource{},
		Options: ecephys.RecordingOptions{},
	},
	// phy spike sorting output folder
	"PhySorting": {
		New:     factory(ecephys.NewSorting),
		Source:  ecephys.SortingSource{},
		Options: ecephys.SortingOptions{},
	},
	// raw two-photon frames
	"BinaryImaging": {
		New:     factory(ophys.NewImaging),
		Source:  ophys.ImagingSource{},
		Options: ophys.ImagingOptions{},
	},
	// masks.npy and traces.npy
	"NpySegmentation": {
		New:     factory(ophys.NewSegmentation),
		Source:  ophys.SegmentationSource{},
		Options: ophys.SegmentationOptions{},
	},
	// t,x,y CSV
	"CSVPosition": {
		New:     factory(behavior.NewPosition),
		Source:  behavior.PositionSource{},
		Options: behavior.PositionOptions{},
	},
}

func lookup(typeName string) (Entry, error) {
	e, ok := Interfaces[typeName]
	if !ok {
		return Entry{}, datainterface.ConfigError("unknown interface type %q (expected one of %v)", typeName, Types())
	}
	return e, nil
}

// New builds an interface of the named type.
func New(typeName string, source map[string]any, opts ...datainterface.Option) (datainterface.Interface, error) {
	e, err := lookup(typeName)
	if err != nil {
		return nil, err
	}
	return e.New(source, opts...)
}

// SourceSchema describes the source data of the named type.
func SourceSchema(typeName string) (metadata.Schema, error) {
	e, err := lookup(typeName)
	if err != nil {
		return nil, err
	}
	s := metadata.FromStruct(e.Source)
	s["$schema"] = metadata.SchemaDraft
	s["title"] = typeName + " source data"
	return s, nil
}

// OptionsSchema describes the conversion options of the named type.
func OptionsSchema(typeName string) (metadata.Schema, error) {
	e, err := lookup(typeName)
	if err != nil {
		return nil, err
	}
	s := metadata.FromStruct(e.Options)
	s["required"] = []string{}
	return s, nil
}

// Types lists the registered type names.
func Types() []string {
	out := make([]string, 0, len(Interfaces))
	for name := range Interfaces {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
