// Package ecephys converts extracellular electrophysiology data:
// continuous recordings and spike sorting results.
package ecephys

import (
	"fmt"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/datainterface"
	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

// ExtracellularEphys is the general group holding electrode groups and
// the electrodes table.
const ExtracellularEphys = nwb.General + "/extracellular_ephys"

// Device describes one entry of Ecephys.Device.
type Device struct {
	Name         string `mapstructure:"name" desc:"the name of this device"`
	Description  string `mapstructure:"description,omitempty" desc:"description of the device"`
	Manufacturer string `mapstructure:"manufacturer,omitempty" desc:"the name of the manufacturer"`
}

// ElectrodeGroup describes one entry of Ecephys.ElectrodeGroup.
type ElectrodeGroup struct {
	Name        string `mapstructure:"name" desc:"the name of this electrode group"`
	Description string `mapstructure:"description,omitempty" desc:"description of this electrode group"`
	Location    string `mapstructure:"location,omitempty" desc:"description of location of this electrode group"`
	Device      string `mapstructure:"device" desc:"the name of the device this electrode group is attached to"`
}

// Column is an extra table column given in metadata, one value per row.
type Column struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description,omitempty"`
	Data        []any  `mapstructure:"data"`
}

// Metadata is the Ecephys metadata section.
type Metadata struct {
	Device         []Device         `mapstructure:"Device"`
	ElectrodeGroup []ElectrodeGroup `mapstructure:"ElectrodeGroup"`
	Electrodes     []Column         `mapstructure:"Electrodes,omitempty"`
}

// DefaultMetadata returns one device and one electrode group attached to it.
func DefaultMetadata() map[string]any {
	return map[string]any{
		"Device": []any{
			map[string]any{"name": "Device", "description": "Ecephys probe."},
		},
		"ElectrodeGroup": []any{
			map[string]any{
				"name":        "ElectrodeGroup",
				"description": "no description",
				"location":    "unknown",
				"device":      "Device",
			},
		},
	}
}

// Schema returns the metadata schema with an Ecephys section.
func Schema() metadata.Schema {
	s := metadata.BaseSchema()
	ecephys := metadata.FromStruct(&Metadata{})
	series := metadata.NewSchema("", "", "")
	series.AddProperty("name", metadata.Schema{"type": "string"}, false)
	series.AddProperty("description", metadata.Schema{"type": "string"}, false)
	ecephys.AddProperty("ElectricalSeries", series, false)
	ecephys["additionalProperties"] = true
	s.AddProperty(metadata.Ecephys, ecephys, false)
	return s
}

// Decode reads the Ecephys section of md.
func Decode(md metadata.Metadata) (Metadata, error) {
	var m Metadata
	if err := md.Decode(metadata.Ecephys, &m); err != nil {
		return m, datainterface.ConfigError("%v", err)
	}
	return m, nil
}

// AddDevices creates the devices that do not exist yet.
func AddDevices(f *nwb.File, devices []Device) error {
	parent, err := f.Devices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		if parent.Has(d.Name) {
			continue
		}
		g, err := parent.CreateTypedGroup(d.Name, "Device")
		if err != nil {
			return err
		}
		if d.Description != "" {
			g.Attrs()["description"] = d.Description
		}
		if d.Manufacturer != "" {
			g.Attrs()["manufacturer"] = d.Manufacturer
		}
	}
	return nil
}

// AddElectrodeGroups creates the electrode groups that do not exist yet.
// Their devices must exist.
func AddElectrodeGroups(f *nwb.File, groups []ElectrodeGroup) error {
	parent, err := f.Root().Require(ExtracellularEphys)
	if err != nil {
		return err
	}
	devices, err := f.Devices()
	if err != nil {
		return err
	}
	for _, eg := range groups {
		if parent.Has(eg.Name) {
			continue
		}
		dev, err := devices.Group(eg.Device)
		if err != nil {
			return fmt.Errorf("electrode group %s: device %q: %w", eg.Name, eg.Device, err)
		}
		g, err := parent.CreateTypedGroup(eg.Name, "ElectrodeGroup")
		if err != nil {
			return err
		}
		g.Attrs()["description"] = orDefault(eg.Description, "no description")
		g.Attrs()["location"] = orDefault(eg.Location, "unknown")
		g.Attrs()["device"] = dev.Path()
	}
	return nil
}

// AddElectrodes writes the electrodes table for n channels and returns
// it. An existing table is reused if it has at least n rows. Channels are
// assigned to groups by a group_name column in m.Electrodes, or all to the
// first group.
func AddElectrodes(f *nwb.File, m Metadata, n int) (*nwb.Table, error) {
	parent, err := f.Root().Require(ExtracellularEphys)
	if err != nil {
		return nil, err
	}
	if g, err := parent.Group("electrodes"); err == nil {
		t, err := nwb.AsTable(g)
		if err != nil {
			return nil, err
		}
		if t.Rows() < n {
			return nil, datainterface.ShapeError("electrodes table has %d rows, need %d", t.Rows(), n)
		}
		return t, nil
	}
	if len(m.ElectrodeGroup) == 0 {
		return nil, datainterface.ShapeError("no electrode group for %d channels", n)
	}

	groupNames := make([]string, n)
	for i := range groupNames {
		groupNames[i] = m.ElectrodeGroup[0].Name
	}
	var extra []Column
	for _, c := range m.Electrodes {
		if len(c.Data) != n {
			return nil, datainterface.ShapeError("electrodes column %s has %d values for %d channels", c.Name, len(c.Data), n)
		}
		if c.Name != "group_name" {
			extra = append(extra, c)
			continue
		}
		for i, v := range c.Data {
			groupNames[i] = fmt.Sprint(v)
		}
	}

	locations := make([]string, n)
	paths := make([]string, n)
	for i, name := range groupNames {
		g, err := parent.Group(name)
		if err != nil {
			return nil, fmt.Errorf("channel %d: electrode group %q: %w", i, name, err)
		}
		locations[i] = g.Attrs().String("location")
		paths[i] = g.Path()
	}

	t, err := nwb.NewTable(parent, "electrodes", "DynamicTable", "metadata about extracellular electrodes")
	if err != nil {
		return nil, err
	}
	columns := []struct {
		name, desc string
		data       []string
	}{
		{"location", "the location of channel within the subject e.g. brain region", locations},
		{"group", "a reference to the ElectrodeGroup this electrode is a part of", paths},
		{"group_name", "the name of the ElectrodeGroup this electrode is a part of", groupNames},
	}
	for _, c := range columns {
		if err := t.AddColumn(c.name, c.desc, array.FromSlice(c.data)); err != nil {
			return nil, err
		}
	}
	for _, c := range extra {
		a, err := array.FromValue(c.Data)
		if err != nil {
			return nil, datainterface.ShapeError("electrodes column %s: %v", c.Name, err)
		}
		if err := t.AddColumn(c.Name, orDefault(c.Description, "no description"), a); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
