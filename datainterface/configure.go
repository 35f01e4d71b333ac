package datainterface

import (
	"github.com/pkg/errors"

	"github.com/robert-malhotra/go-nwbconv/backend"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

// DatasetConfigs maps dataset locations to storage settings.
type DatasetConfigs map[nwb.Location]nwb.DatasetConfig

// ConfigureDatasets wraps every dataset iface writes in a DataIO for b.
// A location listed in configs gets that configuration, every other one
// gets b's default. Chunk shapes are resolved by the backend at write
// time.
func ConfigureDatasets(f *nwb.File, iface Interface, b backend.Backend, configs DatasetConfigs) error {
	for _, loc := range iface.Datasets() {
		obj, err := f.GetObject(loc.Container)
		if err != nil {
			return errors.Wrapf(err, "configure %s", loc)
		}
		g, ok := obj.(*nwb.Group)
		if !ok {
			return errors.Wrapf(nwb.ErrNotGroup, "configure %s", loc)
		}
		d, err := g.Dataset(loc.Field)
		if err != nil {
			return errors.Wrapf(err, "configure %s", loc)
		}
		cfg, ok := configs[loc]
		if !ok {
			cfg = b.DefaultConfig()
		}
		d.SetData(nwb.DataIO{Backend: string(b.Name), Config: cfg.Clone(), Data: d.Array()})
	}
	return nil
}
