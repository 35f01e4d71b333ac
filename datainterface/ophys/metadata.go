// Package ophys converts optical physiology data: raw imaging frames and
// segmentation results.
package ophys

import (
	"fmt"

	"github.com/robert-malhotra/go-nwbconv/datainterface"
	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

// Optophysiology is the general group holding imaging planes.
const Optophysiology = nwb.General + "/optophysiology"

// ModuleName and ModuleDescription identify the processing module that
// receives segmentation results.
const (
	ModuleName        = "ophys"
	ModuleDescription = "contains optical physiology processed data"
)

type Device struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description,omitempty"`
}

type OpticalChannel struct {
	Name           string  `mapstructure:"name"`
	Description    string  `mapstructure:"description,omitempty"`
	EmissionLambda float64 `mapstructure:"emission_lambda,omitempty"`
}

type ImagingPlane struct {
	Name             string           `mapstructure:"name"`
	Description      string           `mapstructure:"description,omitempty"`
	Device           string           `mapstructure:"device"`
	ExcitationLambda float64          `mapstructure:"excitation_lambda,omitempty"`
	Indicator        string           `mapstructure:"indicator,omitempty"`
	Location         string           `mapstructure:"location,omitempty"`
	OpticalChannel   []OpticalChannel `mapstructure:"optical_channel,omitempty"`
}

// Series names and describes a written series.
type Series struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description,omitempty"`
	Unit        string `mapstructure:"unit,omitempty"`
}

// Metadata is the Ophys metadata section.
type Metadata struct {
	Device            []Device       `mapstructure:"Device"`
	ImagingPlane      []ImagingPlane `mapstructure:"ImagingPlane"`
	TwoPhotonSeries   []Series       `mapstructure:"TwoPhotonSeries,omitempty"`
	RoiResponseSeries []Series       `mapstructure:"RoiResponseSeries,omitempty"`
}

// DefaultMetadata returns a microscope and one imaging plane with a single
// optical channel.
func DefaultMetadata() map[string]any {
	return map[string]any{
		"Device": []any{
			map[string]any{"name": "Microscope", "description": "Two-photon microscope."},
		},
		"ImagingPlane": []any{
			map[string]any{
				"name":              "ImagingPlane",
				"description":       "The plane being imaged by the microscope.",
				"device":            "Microscope",
				"excitation_lambda": 920.0,
				"indicator":         "unknown",
				"location":          "unknown",
				"optical_channel": []any{
					map[string]any{
						"name":            "OpticalChannel",
						"description":     "An optical channel of the microscope.",
						"emission_lambda": 510.0,
					},
				},
			},
		},
	}
}

// Schema returns the metadata schema with an Ophys section.
func Schema() metadata.Schema {
	s := metadata.BaseSchema()
	ophys := metadata.FromStruct(&Metadata{})
	s.AddProperty(metadata.Ophys, ophys, false)
	return s
}

// Decode reads the Ophys section of md.
func Decode(md metadata.Metadata) (Metadata, error) {
	var m Metadata
	if err := md.Decode(metadata.Ophys, &m); err != nil {
		return m, datainterface.ConfigError("%v", err)
	}
	return m, nil
}

// AddImagingPlane writes the devices of m and its first imaging plane,
// reusing those that exist, and returns the plane group.
func AddImagingPlane(f *nwb.File, m Metadata, rate float64) (*nwb.Group, error) {
	devices, err := f.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range m.Device {
		if devices.Has(d.Name) {
			continue
		}
		g, err := devices.CreateTypedGroup(d.Name, "Device")
		if err != nil {
			return nil, err
		}
		if d.Description != "" {
			g.Attrs()["description"] = d.Description
		}
	}
	if len(m.ImagingPlane) == 0 {
		return nil, datainterface.ConfigError("Ophys.ImagingPlane is empty")
	}
	p := m.ImagingPlane[0]
	parent, err := f.Root().Require(Optophysiology)
	if err != nil {
		return nil, err
	}
	if g, err := parent.Group(p.Name); err == nil {
		return g, nil
	}
	dev, err := devices.Group(p.Device)
	if err != nil {
		return nil, fmt.Errorf("imaging plane %s: device %q: %w", p.Name, p.Device, err)
	}

	plane, err := parent.CreateTypedGroup(p.Name, "ImagingPlane")
	if err != nil {
		return nil, err
	}
	plane.Attrs()["device"] = dev.Path()
	fields := []struct {
		name  string
		value any
	}{
		{"description", orDefault(p.Description, "no description")},
		{"excitation_lambda", p.ExcitationLambda},
		{"imaging_rate", rate},
		{"indicator", orDefault(p.Indicator, "unknown")},
		{"location", orDefault(p.Location, "unknown")},
	}
	for _, fld := range fields {
		if _, err := plane.CreateValue(fld.name, fld.value); err != nil {
			return nil, err
		}
	}
	for _, oc := range p.OpticalChannel {
		g, err := plane.CreateTypedGroup(oc.Name, "OpticalChannel")
		if err != nil {
			return nil, err
		}
		if _, err := g.CreateValue("description", orDefault(oc.Description, "no description")); err != nil {
			return nil, err
		}
		if _, err := g.CreateValue("emission_lambda", oc.EmissionLambda); err != nil {
			return nil, err
		}
	}
	return plane, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
