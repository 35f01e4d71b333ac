package ecephys

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/datainterface"
	"github.com/robert-malhotra/go-nwbconv/internal/npy"
	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

// DefaultStubMultiplier scales the latest first spike of any unit to give
// the end frame of a stub conversion.
const DefaultStubMultiplier = 1.1

// SortingSource is the source data of a SortingInterface.
type SortingSource struct {
	FolderPath           string   `mapstructure:"folder_path" desc:"phy output folder"`
	SamplingFrequency    float64  `mapstructure:"sampling_frequency,omitempty" desc:"sampling frequency in Hz, read from params.py when unset"`
	ExcludeClusterGroups []string `mapstructure:"exclude_cluster_groups,omitempty" desc:"cluster groups to leave out, such as noise"`
}

// SortingOptions are the conversion options of a SortingInterface.
type SortingOptions struct {
	StubTest             bool    `mapstructure:"stub_test" desc:"write only spikes before the stub end frame"`
	StubMultiplier       float64 `mapstructure:"stub_multiplier" desc:"factor applied to the latest first spike frame of any unit"`
	WriteEcephysMetadata bool    `mapstructure:"write_ecephys_metadata" desc:"also write devices, electrode groups and electrodes from Ecephys metadata"`
}

// Unit is the spike train of one cluster, in frames.
type Unit struct {
	ID      int64
	Frames  []uint64
	Quality string
}

// SortingInterface converts the output of the phy spike sorting GUI:
// spike_times.npy, spike_clusters.npy and optionally cluster_group.tsv.
type SortingInterface struct {
	datainterface.Base
	source SortingSource
	units  []Unit
}

var _ datainterface.Interface = (*SortingInterface)(nil)

// NewSorting loads the spike trains of a phy folder.
func NewSorting(source map[string]any, opts ...datainterface.Option) (*SortingInterface, error) {
	s := &SortingInterface{}
	if err := datainterface.DecodeSource(source, &s.source); err != nil {
		return nil, err
	}
	if s.source.FolderPath == "" {
		return nil, datainterface.ConfigError("folder_path is required")
	}
	if st, err := os.Stat(s.source.FolderPath); err != nil || !st.IsDir() {
		return nil, datainterface.ConfigError("folder_path %q is not a directory", s.source.FolderPath)
	}
	if s.source.SamplingFrequency <= 0 {
		rate, err := readSampleRate(filepath.Join(s.source.FolderPath, "params.py"))
		if err != nil {
			return nil, datainterface.ConfigError("sampling_frequency not given and %v", err)
		}
		s.source.SamplingFrequency = rate
	}
	units, err := loadUnits(s.source)
	if err != nil {
		return nil, err
	}
	s.units = units
	s.Base = datainterface.NewBase(&s.source, &SortingOptions{StubMultiplier: DefaultStubMultiplier}, opts...)
	return s, nil
}

var sampleRateRe = regexp.MustCompile(`(?m)^\s*sample_rate\s*=\s*([0-9.eE+-]+)`)

func readSampleRate(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	m := sampleRateRe.FindSubmatch(b)
	if m == nil {
		return 0, errors.Errorf("%s has no sample_rate", path)
	}
	return strconv.ParseFloat(string(m[1]), 64)
}

func loadUnits(s SortingSource) ([]Unit, error) {
	times, err := npy.ReadFile(filepath.Join(s.FolderPath, "spike_times.npy"))
	if err != nil {
		return nil, datainterface.ConfigError("%v", err)
	}
	clustersPath := filepath.Join(s.FolderPath, "spike_clusters.npy")
	if _, err := os.Stat(clustersPath); os.IsNotExist(err) {
		clustersPath = filepath.Join(s.FolderPath, "spike_templates.npy")
	}
	clusters, err := npy.ReadFile(clustersPath)
	if err != nil {
		return nil, datainterface.ConfigError("%v", err)
	}
	if times.Len() != clusters.Len() {
		return nil, datainterface.ShapeError("%d spike times for %d cluster labels", times.Len(), clusters.Len())
	}
	frames, ok := times.Float64s()
	if !ok || !times.DType().IsInteger() {
		return nil, datainterface.ShapeError("spike_times holds %v, want integer frames", times.DType())
	}
	labels, ok := clusters.Float64s()
	if !ok || !clusters.DType().IsInteger() {
		return nil, datainterface.ShapeError("spike_clusters holds %v, want integer ids", clusters.DType())
	}

	quality, err := readClusterGroups(s.FolderPath)
	if err != nil {
		return nil, err
	}
	excluded := map[string]bool{}
	for _, g := range s.ExcludeClusterGroups {
		excluded[g] = true
	}

	byID := map[int64]*Unit{}
	for i, label := range labels {
		id := int64(label)
		if excluded[quality[id]] {
			continue
		}
		u, ok := byID[id]
		if !ok {
			u = &Unit{ID: id, Quality: quality[id]}
			byID[id] = u
		}
		u.Frames = append(u.Frames, uint64(frames[i]))
	}
	units := make([]Unit, 0, len(byID))
	for _, u := range byID {
		sort.Slice(u.Frames, func(i, j int) bool { return u.Frames[i] < u.Frames[j] })
		units = append(units, *u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units, nil
}

// readClusterGroups reads the cluster_id to label mapping of
// cluster_group.tsv. A missing file yields an empty mapping.
func readClusterGroups(folder string) (map[int64]string, error) {
	out := map[int64]string{}
	f, err := os.Open(filepath.Join(folder, "cluster_group.tsv"))
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	header, err := r.Read()
	if err != nil {
		return nil, datainterface.ShapeError("cluster_group.tsv: %v", err)
	}
	idCol, groupCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "cluster_id":
			idCol = i
		case "group", "KSLabel":
			groupCol = i
		}
	}
	if idCol < 0 || groupCol < 0 {
		return nil, datainterface.ShapeError("cluster_group.tsv: header %v lacks cluster_id and group", header)
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, datainterface.ShapeError("cluster_group.tsv: %v", err)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[idCol]), 10, 64)
		if err != nil {
			return nil, datainterface.ShapeError("cluster_group.tsv: %v", err)
		}
		out[id] = strings.TrimSpace(rec[groupCol])
	}
}

// Units returns the loaded units in id order.
func (s *SortingInterface) Units() []Unit { return s.units }

func (s *SortingInterface) MetadataSchema() metadata.Schema {
	sch := Schema()
	sch.AddProperty(metadata.UnitProperties, metadata.Schema{
		"type":  "array",
		"items": metadata.FromStruct(&Column{}),
	}, false)
	return sch
}

func (s *SortingInterface) Datasets() []nwb.Location {
	return []nwb.Location{{Container: nwb.Units, Field: "spike_times"}}
}

// StubUnits truncates every unit to the frames before multiplier times
// the latest first spike of any unit.
func StubUnits(units []Unit, multiplier float64) []Unit {
	var latestFirst uint64
	found := false
	for _, u := range units {
		if len(u.Frames) > 0 && (!found || u.Frames[0] > latestFirst) {
			latestFirst, found = u.Frames[0], true
		}
	}
	if !found {
		return units
	}
	end := multiplier * float64(latestFirst)
	out := make([]Unit, len(units))
	for i, u := range units {
		out[i] = Unit{ID: u.ID, Quality: u.Quality}
		for _, fr := range u.Frames {
			if float64(fr) < end {
				out[i].Frames = append(out[i].Frames, fr)
			}
		}
	}
	return out
}

func (s *SortingInterface) AddToNWB(ctx context.Context, f *nwb.File, md metadata.Metadata, opts datainterface.Options) error {
	o := SortingOptions{StubMultiplier: DefaultStubMultiplier}
	if err := datainterface.DecodeOptions(opts, &o); err != nil {
		return err
	}
	if o.StubMultiplier <= 0 {
		return datainterface.ConfigError("stub_multiplier must be positive, got %v", o.StubMultiplier)
	}
	if f.Root().Has(nwb.Units) {
		return errors.Wrapf(nwb.ErrExists, "%s table", nwb.Units)
	}

	if o.WriteEcephysMetadata && md.Section(metadata.Ecephys) != nil {
		if err := s.writeEcephysMetadata(f, md); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	units := s.units
	if o.StubTest {
		units = StubUnits(units, o.StubMultiplier)
	}

	var props []Column
	if err := md.Decode(metadata.UnitProperties, &props); err != nil {
		return datainterface.ConfigError("%v", err)
	}

	table, err := nwb.NewTable(f.Root(), nwb.Units, "Units", "units table")
	if err != nil {
		return err
	}
	ids := make([]int64, len(units))
	trains := make([][]float64, len(units))
	for i, u := range units {
		ids[i] = u.ID
		trains[i] = make([]float64, len(u.Frames))
		for j, fr := range u.Frames {
			trains[i][j] = float64(fr) / s.source.SamplingFrequency
		}
	}
	if err := table.SetIDs(ids); err != nil {
		return err
	}
	if err := nwb.AddRaggedColumn(table, "spike_times", "the spike times for each unit in seconds", trains); err != nil {
		return err
	}

	hasQuality := false
	for _, p := range props {
		if p.Name == "quality" {
			hasQuality = true
		}
		if err := s.addUnitProperty(f, table, units, p); err != nil {
			return err
		}
	}
	if !hasQuality {
		if err := addQuality(table, units); err != nil {
			return err
		}
	}
	s.Logger().Debug("wrote units",
		zap.Int("units", len(units)),
		zap.Int("properties", len(props)),
		zap.Bool("stub", o.StubTest))
	return nil
}

func (s *SortingInterface) writeEcephysMetadata(f *nwb.File, md metadata.Metadata) error {
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
	channels := 0
	for _, c := range m.Electrodes {
		channels = max(channels, len(c.Data))
	}
	if channels == 0 {
		return nil
	}
	_, err = AddElectrodes(f, m, channels)
	return err
}

// addUnitProperty writes a UnitProperties column. Values are looked up by
// unit id. electrode_group values name a group and are stored as its path.
func (s *SortingInterface) addUnitProperty(f *nwb.File, table *nwb.Table, units []Unit, p Column) error {
	vals := make([]any, len(units))
	for i, u := range units {
		if u.ID < 0 || int(u.ID) >= len(p.Data) {
			return datainterface.ShapeError("unit property %s has %d values, no value for unit %d", p.Name, len(p.Data), u.ID)
		}
		v := p.Data[u.ID]
		if p.Name == "electrode_group" {
			g, err := f.Group(ExtracellularEphys + "/" + metadata.FormatValue(v))
			if err != nil {
				return errors.Wrapf(err, "unit %d electrode_group", u.ID)
			}
			v = g.Path()
		}
		vals[i] = v
	}
	if len(vals) == 0 {
		return nil
	}
	a, err := array.FromValue(vals)
	if err != nil {
		return datainterface.ShapeError("unit property %s: %v", p.Name, err)
	}
	return table.AddColumn(p.Name, orDefault(p.Description, "no description"), a)
}

func addQuality(table *nwb.Table, units []Unit) error {
	labels := make([]string, len(units))
	labelled := false
	for i, u := range units {
		labels[i] = u.Quality
		labelled = labelled || u.Quality != ""
	}
	if !labelled {
		return nil
	}
	return table.AddColumn("quality", "quality of the unit as labelled in phy", array.FromSlice(labels))
}
