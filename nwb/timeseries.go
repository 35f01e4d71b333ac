package nwb

import (
	"fmt"

	"github.com/robert-malhotra/go-nwbconv/array"
)

// TimeSeries describes a TimeSeries group. Exactly one of Rate and
// Timestamps gives the timing.
type TimeSeries struct {
	Name        string
	Type        string // neurodata type, default "TimeSeries"
	Description string
	Comments    string
	Data        array.Valuer
	Unit        string
	Conversion  float64 // default 1
	Offset      float64
	Resolution  float64 // default -1, unknown
	Rate        float64
	Start       float64
	Timestamps  *array.Array
}

// AddTimeSeries writes ts as a child of parent and returns its group.
func AddTimeSeries(parent *Group, ts TimeSeries) (*Group, error) {
	if (ts.Rate > 0) == (ts.Timestamps != nil) {
		return nil, fmt.Errorf("time series %s: need exactly one of rate and timestamps", ts.Name)
	}
	if ts.Data == nil || ts.Data.Values() == nil || ts.Data.Values().Rank() == 0 {
		return nil, fmt.Errorf("time series %s: data must have at least one dimension", ts.Name)
	}
	samples := ts.Data.Values().Shape()[0]
	if ts.Timestamps != nil && ts.Timestamps.Len() != samples {
		return nil, fmt.Errorf("time series %s: %d timestamps for %d samples", ts.Name, ts.Timestamps.Len(), samples)
	}
	if ts.Type == "" {
		ts.Type = "TimeSeries"
	}
	if ts.Conversion == 0 {
		ts.Conversion = 1
	}
	if ts.Resolution == 0 {
		ts.Resolution = -1
	}
	if ts.Description == "" {
		ts.Description = "no description"
	}
	if ts.Comments == "" {
		ts.Comments = "no comments"
	}

	g, err := parent.CreateTypedGroup(ts.Name, ts.Type)
	if err != nil {
		return nil, err
	}
	g.attrs["description"] = ts.Description
	g.attrs["comments"] = ts.Comments

	data, err := g.CreateDataset("data", ts.Data)
	if err != nil {
		return nil, err
	}
	data.attrs["unit"] = ts.Unit
	data.attrs["conversion"] = ts.Conversion
	data.attrs["offset"] = ts.Offset
	data.attrs["resolution"] = ts.Resolution

	if ts.Timestamps != nil {
		d, err := g.CreateDataset("timestamps", ts.Timestamps)
		if err != nil {
			return nil, err
		}
		d.attrs["interval"] = int64(1)
		d.attrs["unit"] = "seconds"
		return g, nil
	}
	d, err := g.CreateDataset("starting_time", array.Scalar(ts.Start))
	if err != nil {
		return nil, err
	}
	d.attrs["rate"] = ts.Rate
	d.attrs["unit"] = "seconds"
	return g, nil
}
