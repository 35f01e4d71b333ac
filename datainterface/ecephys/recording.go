package ecephys

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

// RecordingSource is the source data of a RecordingInterface.
type RecordingSource struct {
	FilePath          string  `mapstructure:"file_path" desc:"path to the binary file of interleaved samples"`
	NumChannels       int     `mapstructure:"num_channels" desc:"number of interleaved channels"`
	SamplingFrequency float64 `mapstructure:"sampling_frequency" desc:"sampling frequency in Hz"`
	DType             string  `mapstructure:"dtype,omitempty" desc:"sample type, int16 by default"`
	Gain              float64 `mapstructure:"gain,omitempty" desc:"microvolts per sample unit, 1 by default"`
	Offset            float64 `mapstructure:"offset,omitempty" desc:"offset in microvolts"`
}

// RecordingOptions are the conversion options of a RecordingInterface.
type RecordingOptions struct {
	StubTest bool   `mapstructure:"stub_test" desc:"write only the first frames"`
	ESKey    string `mapstructure:"es_key" desc:"metadata key and name of the ElectricalSeries"`
}

// RecordingInterface converts a flat binary recording of little-endian
// interleaved samples, frames x channels.
type RecordingInterface struct {
	datainterface.Base
	source RecordingSource
	dtype  array.DType
	series string
}

var _ datainterface.Interface = (*RecordingInterface)(nil)

// NewRecording builds a RecordingInterface from source data.
func NewRecording(source map[string]any, opts ...datainterface.Option) (*RecordingInterface, error) {
	r := &RecordingInterface{source: RecordingSource{DType: "int16", Gain: 1}}
	if err := datainterface.DecodeSource(source, &r.source); err != nil {
		return nil, err
	}
	s := r.source
	if s.FilePath == "" {
		return nil, datainterface.ConfigError("file_path is required")
	}
	if s.NumChannels <= 0 {
		return nil, datainterface.ConfigError("num_channels must be positive, got %d", s.NumChannels)
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
	r.dtype = dt
	r.series = "ElectricalSeries"
	r.Base = datainterface.NewBase(&r.source, &RecordingOptions{ESKey: "ElectricalSeries"}, opts...)
	return r, nil
}

func (r *RecordingInterface) MetadataSchema() metadata.Schema { return Schema() }

func (r *RecordingInterface) Metadata() metadata.Metadata {
	md := r.Base.Metadata()
	ecephys := DefaultMetadata()
	ecephys["ElectricalSeries"] = map[string]any{
		"name":        "ElectricalSeries",
		"description": "Raw acquisition traces.",
	}
	md[metadata.Ecephys] = ecephys
	return md
}

// Datasets returns the series data written by the last AddToNWB, or the
// default series before any conversion ran.
func (r *RecordingInterface) Datasets() []nwb.Location {
	return []nwb.Location{{Container: nwb.Acquisition + "/" + r.series, Field: "data"}}
}

// Frames returns the number of complete frames in the file.
func (r *RecordingInterface) Frames() (int, error) {
	st, err := os.Stat(r.source.FilePath)
	if err != nil {
		return 0, err
	}
	frame := int64(r.source.NumChannels * r.dtype.Size())
	if st.Size()%frame != 0 {
		return 0, datainterface.ShapeError("%s: %d bytes is not a whole number of %d-channel %v frames",
			r.source.FilePath, st.Size(), r.source.NumChannels, r.dtype)
	}
	return int(st.Size() / frame), nil
}

func (r *RecordingInterface) read(frames int) (*array.Array, error) {
	f, err := os.Open(r.source.FilePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw := make([]byte, frames*r.source.NumChannels*r.dtype.Size())
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, errors.Wrapf(err, "read %s", r.source.FilePath)
	}
	return array.Decode(r.dtype, []int{frames, r.source.NumChannels}, raw, binary.LittleEndian, 0)
}

func (r *RecordingInterface) AddToNWB(ctx context.Context, f *nwb.File, md metadata.Metadata, opts datainterface.Options) error {
	o := RecordingOptions{ESKey: "ElectricalSeries"}
	if err := datainterface.DecodeOptions(opts, &o); err != nil {
		return err
	}
	frames, err := r.Frames()
	if err != nil {
		return err
	}
	if frames == 0 {
		return datainterface.ShapeError("%s holds no frames", r.source.FilePath)
	}
	if o.StubTest {
		frames = min(frames, StubFrames)
	}

	m, err := Decode(md)
	if err != nil {
		return err
	}
	if err := AddDevices(f, m.Device); err != nil {
		return err
	}
	if err := AddElectrodeGroups(f, m.ElectrodeGroup); err != nil {
		return err
	}
	electrodes, err := AddElectrodes(f, m, r.source.NumChannels)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := r.read(frames)
	if err != nil {
		return err
	}
	name, _ := md.String(metadata.Ecephys + "." + o.ESKey + ".name")
	name = orDefault(name, o.ESKey)
	description, _ := md.String(metadata.Ecephys + "." + o.ESKey + ".description")

	acq, err := f.Acquisition()
	if err != nil {
		return err
	}
	es, err := nwb.AddTimeSeries(acq, nwb.TimeSeries{
		Name:        name,
		Type:        "ElectricalSeries",
		Description: description,
		Data:        data,
		Unit:        "volts",
		Conversion:  r.source.Gain * 1e-6,
		Offset:      r.source.Offset * 1e-6,
		Rate:        r.source.SamplingFrequency,
	})
	if err != nil {
		return err
	}
	rows := make([]int64, r.source.NumChannels)
	for i := range rows {
		rows[i] = int64(i)
	}
	if _, err := electrodes.AddRegion(es, "electrodes", "electrode table region", rows); err != nil {
		return err
	}
	r.series = name
	r.Logger().Debug("wrote electrical series",
		zap.String("name", name),
		zap.Int("frames", frames),
		zap.Int("channels", r.source.NumChannels),
		zap.Bool("stub", o.StubTest))
	return nil
}
