package datainterface

import (
	"context"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

type fakeSource struct {
	Name string  `mapstructure:"name" desc:"name of the series"`
	Rate float64 `mapstructure:"rate,omitempty"`
}

type fakeOptions struct {
	Samples int  `mapstructure:"samples"`
	Fail    bool `mapstructure:"fail"`
}

// fakeInterface writes one TimeSeries to acquisition.
type fakeInterface struct {
	Base
	source fakeSource
	extra  metadata.Metadata
	calls  []Options
}

func newFake(name string, extra metadata.Metadata) *fakeInterface {
	f := &fakeInterface{source: fakeSource{Name: name, Rate: 10}, extra: extra}
	f.Base = NewBase(&f.source, &fakeOptions{Samples: 8})
	return f
}

func (f *fakeInterface) Metadata() metadata.Metadata {
	return metadata.Merge(f.Base.Metadata(), f.extra)
}

func (f *fakeInterface) AddToNWB(_ context.Context, file *nwb.File, _ metadata.Metadata, opts Options) error {
	f.calls = append(f.calls, opts)
	o := fakeOptions{Samples: 8}
	if err := DecodeOptions(opts, &o); err != nil {
		return err
	}
	if o.Fail {
		return ShapeError("%s: refusing to write", f.source.Name)
	}
	acq, err := file.Acquisition()
	if err != nil {
		return err
	}
	data := make([]float64, o.Samples)
	for i := range data {
		data[i] = float64(i)
	}
	_, err = nwb.AddTimeSeries(acq, nwb.TimeSeries{
		Name: f.source.Name,
		Data: array.FromSlice(data),
		Unit: "volts",
		Rate: f.source.Rate,
	})
	return err
}

func (f *fakeInterface) Datasets() []nwb.Location {
	return []nwb.Location{{Container: "acquisition/" + f.source.Name, Field: "data"}}
}
