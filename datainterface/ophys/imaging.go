package ophys

import (
	"context"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/datainterface"
	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

// StubFrames is the number of frames written by a stub conversion.
const StubFrames = 100

// ImagingSource is the source data of an ImagingInterface.
type ImagingSource struct {
	FilePath          string  `mapstructure:"file_path" desc:"path to the raw frames, little-endian, row-major"`
	Height            int     `mapstructure:"height" desc:"rows per frame"`
	Width             int     `mapstructure:"width" desc:"columns per frame"`
	SamplingFrequency float64 `mapstructure:"sampling_frequency" desc:"frame rate in Hz"`
	DType             string  `mapstructure:"dtype,omitempty" desc:"pixel type, uint16 by default"`
}

// ImagingOptions are the conversion options of an ImagingInterface.
type ImagingOptions struct {
	StubTest bool `mapstructure:"stub_test" desc:"write only the first frames"`
}

// ImagingInterface converts a raw file of frames x height x width pixels.
// The number of frames follows from the file size.
type ImagingInterface struct {
	datainterface.Base
	source ImagingSource
	dtype  array.DType
	series string
}

var _ datainterface.Interface = (*ImagingInterface)(nil)

// NewImaging builds an ImagingInterface from source data.
func NewImaging(source map[string]any, opts ...datainterface.Option) (*ImagingInterface, error) {
	im := &ImagingInterface{source: ImagingSource{DType: "uint16"}, series: "TwoPhotonSeries"}
	if err := datainterface.DecodeSource(source, &im.source); err != nil {
		return nil, err
	}
	s := im.source
	if s.Height <= 0 || s.Width <= 0 {
		return nil, datainterface.ConfigError("frame size %dx%d", s.Height, s.Width)
	}
	if s.SamplingFrequency <= 0 {
		return nil, datainterface.ConfigError("sampling_frequency must be positive, got %v", s.SamplingFrequency)
	}
	dt, err := array.ParseDType(s.DType)
	if err != nil || dt == array.String {
		return nil, datainterface.ConfigError("dtype %q", s.DType)
	}
	if _, err := os.Stat(s.FilePath); err != nil {
		return nil, datainterface.ConfigError("%v", err)
	}
	im.dtype = dt
	im.Base = datainterface.NewBase(&im.source, &ImagingOptions{}, opts...)
	return im, nil
}

func (im *ImagingInterface) MetadataSchema() metadata.Schema { return Schema() }

func (im *ImagingInterface) Metadata() metadata.Metadata {
	md := im.Base.Metadata()
	ophys := DefaultMetadata()
	ophys["TwoPhotonSeries"] = []any{
		map[string]any{
			"name":        "TwoPhotonSeries",
			"description": "Imaging data from two-photon excitation microscopy.",
			"unit":        "n.a.",
		},
	}
	md[metadata.Ophys] = ophys
	return md
}

func (im *ImagingInterface) Datasets() []nwb.Location {
	return []nwb.Location{{Container: nwb.Acquisition + "/" + im.series, Field: "data"}}
}

// Frames returns the number of frames in the file.
func (im *ImagingInterface) Frames() (int, error) {
	st, err := os.Stat(im.source.FilePath)
	if err != nil {
		return 0, err
	}
	frame := int64(im.source.Height * im.source.Width * im.dtype.Size())
	if st.Size()%frame != 0 {
		return 0, datainterface.ShapeError("%s: %d bytes is not a whole number of %dx%d %v frames",
			im.source.FilePath, st.Size(), im.source.Height, im.source.Width, im.dtype)
	}
	return int(st.Size() / frame), nil
}

func (im *ImagingInterface) AddToNWB(ctx context.Context, f *nwb.File, md metadata.Metadata, opts datainterface.Options) error {
	var o ImagingOptions
	if err := datainterface.DecodeOptions(opts, &o); err != nil {
		return err
	}
	frames, err := im.Frames()
	if err != nil {
		return err
	}
	if frames == 0 {
		return datainterface.ShapeError("%s holds no frames", im.source.FilePath)
	}
	if o.StubTest {
		frames = min(frames, StubFrames)
	}
	m, err := Decode(md)
	if err != nil {
		return err
	}
	plane, err := AddImagingPlane(f, m, im.source.SamplingFrequency)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(im.source.FilePath)
	if err != nil {
		return err
	}
	defer in.Close()
	raw := make([]byte, frames*im.source.Height*im.source.Width*im.dtype.Size())
	if _, err := io.ReadFull(in, raw); err != nil {
		return errors.Wrapf(err, "read %s", im.source.FilePath)
	}
	data, err := array.Decode(im.dtype, []int{frames, im.source.Height, im.source.Width}, raw, binary.LittleEndian, 0)
	if err != nil {
		return err
	}

	series := Series{Name: "TwoPhotonSeries", Unit: "n.a."}
	if len(m.TwoPhotonSeries) > 0 {
		series = m.TwoPhotonSeries[0]
	}
	acq, err := f.Acquisition()
	if err != nil {
		return err
	}
	g, err := nwb.AddTimeSeries(acq, nwb.TimeSeries{
		Name:        series.Name,
		Type:        "TwoPhotonSeries",
		Description: series.Description,
		Data:        data,
		Unit:        orDefault(series.Unit, "n.a."),
		Rate:        im.source.SamplingFrequency,
	})
	if err != nil {
		return err
	}
	g.Attrs()["imaging_plane"] = plane.Path()
	if _, err := g.CreateValue("dimension", []int32{int32(im.source.Width), int32(im.source.Height)}); err != nil {
		return err
	}
	im.series = series.Name
	im.Logger().Debug("wrote imaging series",
		zap.String("name", series.Name),
		zap.Int("frames", frames),
		zap.Bool("stub", o.StubTest))
	return nil
}
