package ophys

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/datainterface"
	"github.com/robert-malhotra/go-nwbconv/internal/npy"
	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

// SegmentationSource is the source data of a SegmentationInterface.
type SegmentationSource struct {
	FolderPath        string  `mapstructure:"folder_path" desc:"folder holding masks.npy and traces.npy"`
	SamplingFrequency float64 `mapstructure:"sampling_frequency" desc:"frame rate of the traces in Hz"`
}

// SegmentationOptions are the conversion options of a SegmentationInterface.
type SegmentationOptions struct {
	StubTest bool `mapstructure:"stub_test" desc:"write only the first frames of the traces"`
}

// SegmentationInterface converts ROI masks, rois x height x width, and
// their fluorescence traces, frames x rois.
type SegmentationInterface struct {
	datainterface.Base
	source SegmentationSource
	masks  *array.Array
	traces *array.Array
	series string
}

var _ datainterface.Interface = (*SegmentationInterface)(nil)

// Paths of the written containers, relative to the root.
const (
	planeSegmentationPath = nwb.Processing + "/" + ModuleName + "/ImageSegmentation/PlaneSegmentation"
	fluorescencePath      = nwb.Processing + "/" + ModuleName + "/Fluorescence"
)

// NewSegmentation loads masks.npy and traces.npy from the source folder.
func NewSegmentation(source map[string]any, opts ...datainterface.Option) (*SegmentationInterface, error) {
	s := &SegmentationInterface{series: "RoiResponseSeries"}
	if err := datainterface.DecodeSource(source, &s.source); err != nil {
		return nil, err
	}
	if st, err := os.Stat(s.source.FolderPath); err != nil || !st.IsDir() {
		return nil, datainterface.ConfigError("folder_path %q is not a directory", s.source.FolderPath)
	}
	if s.source.SamplingFrequency <= 0 {
		return nil, datainterface.ConfigError("sampling_frequency must be positive, got %v", s.source.SamplingFrequency)
	}
	var err error
	if s.masks, err = npy.ReadFile(filepath.Join(s.source.FolderPath, "masks.npy")); err != nil {
		return nil, datainterface.ConfigError("%v", err)
	}
	if s.traces, err = npy.ReadFile(filepath.Join(s.source.FolderPath, "traces.npy")); err != nil {
		return nil, datainterface.ConfigError("%v", err)
	}
	if s.masks.Rank() != 3 {
		return nil, datainterface.ShapeError("masks have shape %v, want rois x height x width", s.masks.Shape())
	}
	if s.traces.Rank() != 2 {
		return nil, datainterface.ShapeError("traces have shape %v, want frames x rois", s.traces.Shape())
	}
	if rois := s.masks.Shape()[0]; s.traces.Shape()[1] != rois {
		return nil, datainterface.ShapeError("%d masks but traces for %d rois", rois, s.traces.Shape()[1])
	}
	s.Base = datainterface.NewBase(&s.source, &SegmentationOptions{}, opts...)
	return s, nil
}

// ROIs returns the number of regions of interest.
func (s *SegmentationInterface) ROIs() int { return s.masks.Shape()[0] }

func (s *SegmentationInterface) MetadataSchema() metadata.Schema { return Schema() }

func (s *SegmentationInterface) Metadata() metadata.Metadata {
	md := s.Base.Metadata()
	ophys := DefaultMetadata()
	ophys["RoiResponseSeries"] = []any{
		map[string]any{
			"name":        "RoiResponseSeries",
			"description": "Fluorescence of each region of interest.",
			"unit":        "n.a.",
		},
	}
	md[metadata.Ophys] = ophys
	return md
}

func (s *SegmentationInterface) Datasets() []nwb.Location {
	return []nwb.Location{
		{Container: planeSegmentationPath, Field: "image_mask"},
		{Container: fluorescencePath + "/" + s.series, Field: "data"},
	}
}

func (s *SegmentationInterface) AddToNWB(ctx context.Context, f *nwb.File, md metadata.Metadata, opts datainterface.Options) error {
	var o SegmentationOptions
	if err := datainterface.DecodeOptions(opts, &o); err != nil {
		return err
	}
	m, err := Decode(md)
	if err != nil {
		return err
	}
	plane, err := AddImagingPlane(f, m, s.source.SamplingFrequency)
	if err != nil {
		return err
	}
	module, err := f.GetModule(ModuleName, ModuleDescription)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	segmentation, err := module.Require("ImageSegmentation")
	if err != nil {
		return err
	}
	segmentation.SetType("ImageSegmentation")
	ps, err := nwb.NewTable(segmentation, "PlaneSegmentation", "PlaneSegmentation", "Segmented regions of interest.")
	if err != nil {
		return err
	}
	ps.Attrs()["imaging_plane"] = plane.Path()
	if err := ps.AddColumn("image_mask", "Image masks for each ROI.", s.masks); err != nil {
		return err
	}

	fluorescence, err := module.Require("Fluorescence")
	if err != nil {
		return err
	}
	fluorescence.SetType("Fluorescence")

	traces := s.traces
	if o.StubTest {
		traces = traces.Head(StubFrames)
	}
	series := Series{Name: "RoiResponseSeries", Unit: "n.a."}
	if len(m.RoiResponseSeries) > 0 {
		series = m.RoiResponseSeries[0]
	}
	rrs, err := nwb.AddTimeSeries(fluorescence, nwb.TimeSeries{
		Name:        series.Name,
		Type:        "RoiResponseSeries",
		Description: series.Description,
		Data:        traces,
		Unit:        orDefault(series.Unit, "n.a."),
		Rate:        s.source.SamplingFrequency,
	})
	if err != nil {
		return err
	}
	rows := make([]int64, s.ROIs())
	for i := range rows {
		rows[i] = int64(i)
	}
	if _, err := ps.AddRegion(rrs, "rois", "references rows of the plane segmentation table", rows); err != nil {
		return err
	}
	s.series = series.Name
	s.Logger().Debug("wrote segmentation",
		zap.Int("rois", s.ROIs()),
		zap.Int("frames", traces.Shape()[0]),
		zap.Bool("stub", o.StubTest))
	return nil
}
