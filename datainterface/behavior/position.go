// Package behavior converts tracked animal position.
package behavior

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/datainterface"
	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

const (
	ModuleName        = "behavior"
	ModuleDescription = "processed behavioral data"
)

// PositionSource is the source data of a PositionInterface.
type PositionSource struct {
	FilePath   string `mapstructure:"file_path" desc:"CSV file with a header row naming t, x and y columns"`
	TimeColumn string `mapstructure:"time_column,omitempty" desc:"name of the time column, t by default"`
}

// PositionOptions are the conversion options of a PositionInterface.
type PositionOptions struct {
	StubTest bool `mapstructure:"stub_test" desc:"write only the first rows"`
}

// StubRows is the number of samples written by a stub conversion.
const StubRows = 100

// PositionMetadata is the Behavior metadata section.
type PositionMetadata struct {
	Position struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"Position"`
	SpatialSeries struct {
		Name           string `mapstructure:"name"`
		Description    string `mapstructure:"description,omitempty"`
		ReferenceFrame string `mapstructure:"reference_frame,omitempty"`
		Unit           string `mapstructure:"unit,omitempty"`
	} `mapstructure:"SpatialSeries"`
}

// PositionInterface converts a CSV of timestamps and x, y (and
// optionally z) coordinates into a SpatialSeries inside Position.
type PositionInterface struct {
	datainterface.Base
	source     PositionSource
	timestamps []float64
	coords     []float64
	columns    []string
	container  string
}

var _ datainterface.Interface = (*PositionInterface)(nil)

// NewPosition reads and validates the CSV file.
func NewPosition(source map[string]any, opts ...datainterface.Option) (*PositionInterface, error) {
	p := &PositionInterface{
		source:    PositionSource{TimeColumn: "t"},
		container: nwb.Processing + "/" + ModuleName + "/Position/SpatialSeries",
	}
	if err := datainterface.DecodeSource(source, &p.source); err != nil {
		return nil, err
	}
	f, err := os.Open(p.source.FilePath)
	if err != nil {
		return nil, datainterface.ConfigError("%v", err)
	}
	defer f.Close()
	if err := p.parse(f); err != nil {
		return nil, err
	}
	p.Base = datainterface.NewBase(&p.source, &PositionOptions{}, opts...)
	return p, nil
}

func (p *PositionInterface) parse(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return datainterface.ShapeError("%s: header: %v", p.source.FilePath, err)
	}
	index := map[string]int{}
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	cols := []string{p.source.TimeColumn, "x", "y"}
	if _, ok := index["z"]; ok {
		cols = append(cols, "z")
	}
	for _, c := range cols {
		if _, ok := index[c]; !ok {
			return datainterface.ShapeError("%s: no %q column in %v", p.source.FilePath, c, header)
		}
	}
	p.columns = cols[1:]

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return datainterface.ShapeError("%s: %v", p.source.FilePath, err)
		}
		for i, c := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[index[c]]), 64)
			if err != nil {
				return datainterface.ShapeError("%s line %d column %s: %v", p.source.FilePath, line, c, err)
			}
			if i == 0 {
				if n := len(p.timestamps); n > 0 && v < p.timestamps[n-1] {
					return datainterface.ShapeError("%s line %d: time %v goes backwards", p.source.FilePath, line, v)
				}
				p.timestamps = append(p.timestamps, v)
				continue
			}
			p.coords = append(p.coords, v)
		}
	}
	if len(p.timestamps) == 0 {
		return datainterface.ShapeError("%s has no samples", p.source.FilePath)
	}
	return nil
}

// Samples returns the number of rows read.
func (p *PositionInterface) Samples() int { return len(p.timestamps) }

func (p *PositionInterface) MetadataSchema() metadata.Schema {
	s := metadata.BaseSchema()
	s.AddProperty(metadata.Behavior, metadata.FromStruct(&PositionMetadata{}), false)
	return s
}

func (p *PositionInterface) Metadata() metadata.Metadata {
	md := p.Base.Metadata()
	md[metadata.Behavior] = map[string]any{
		"Position": map[string]any{"name": "Position"},
		"SpatialSeries": map[string]any{
			"name":            "SpatialSeries",
			"description":     "Position of the animal.",
			"reference_frame": "unknown",
			"unit":            "meters",
		},
	}
	return md
}

func (p *PositionInterface) Datasets() []nwb.Location {
	return []nwb.Location{{Container: p.container, Field: "data"}}
}

func (p *PositionInterface) AddToNWB(ctx context.Context, f *nwb.File, md metadata.Metadata, opts datainterface.Options) error {
	var o PositionOptions
	if err := datainterface.DecodeOptions(opts, &o); err != nil {
		return err
	}
	var m PositionMetadata
	m.Position.Name = "Position"
	m.SpatialSeries.Name = "SpatialSeries"
	if err := md.Decode(metadata.Behavior, &m); err != nil {
		return datainterface.ConfigError("%v", err)
	}

	module, err := f.GetModule(ModuleName, ModuleDescription)
	if err != nil {
		return err
	}
	position, err := module.Require(m.Position.Name)
	if err != nil {
		return err
	}
	position.SetType("Position")
	if err := ctx.Err(); err != nil {
		return err
	}

	n := p.Samples()
	if o.StubTest {
		n = min(n, StubRows)
	}
	dims := len(p.columns)
	data, err := array.New(append([]float64{}, p.coords[:n*dims]...), n, dims)
	if err != nil {
		return err
	}
	ts := array.FromSlice(append([]float64{}, p.timestamps[:n]...))

	unit := m.SpatialSeries.Unit
	if unit == "" {
		unit = "meters"
	}
	g, err := nwb.AddTimeSeries(position, nwb.TimeSeries{
		Name:        m.SpatialSeries.Name,
		Type:        "SpatialSeries",
		Description: m.SpatialSeries.Description,
		Data:        data,
		Unit:        unit,
		Timestamps:  ts,
	})
	if err != nil {
		return err
	}
	frame := m.SpatialSeries.ReferenceFrame
	if frame == "" {
		frame = "unknown"
	}
	if _, err := g.CreateValue("reference_frame", frame); err != nil {
		return err
	}
	p.container = g.Path()[1:]
	p.Logger().Debug("wrote spatial series",
		zap.String("path", g.Path()),
		zap.Int("samples", n),
		zap.Strings("columns", p.columns))
	return nil
}
