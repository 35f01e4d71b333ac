package datainterface

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-nwbconv/backend"
	"github.com/robert-malhotra/go-nwbconv/metadata"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

// RunOptions configures RunConversion. Exactly one of Path and File must
// be set.
type RunOptions struct {
	// Path is the output file. It is created, appended to or overwritten
	// depending on whether it exists and on Overwrite.
	Path string
	// File is an in-memory file to populate. Nothing is persisted.
	File *nwb.File
	// Metadata overrides the interface defaults.
	Metadata metadata.Metadata
	// Overwrite replaces an existing file at Path instead of appending.
	Overwrite bool
	// Backend selects the storage format, HDF5 when empty.
	Backend backend.Name
	// DatasetConfigs overrides the backend defaults per dataset.
	DatasetConfigs DatasetConfigs
	// ConversionOptions override the interface defaults.
	ConversionOptions Options
	Logger            *zap.Logger
}

// RunConversion writes the data of iface into a new, existing or in-memory
// NWB file and returns the populated file.
//
// With a Path that does not exist, a file is built from the merged
// metadata and written. With an existing Path it is read and appended to,
// or rebuilt from metadata when Overwrite is set. With a File, the handle
// is populated and nothing is written. Datasets the interface writes are
// configured for the backend before persisting.
func RunConversion(ctx context.Context, iface Interface, opts RunOptions) (f *nwb.File, err error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Debug("conversion state", zap.String("state", "start"))
	if (opts.Path == "") == (opts.File == nil) {
		log.Debug("conversion state", zap.String("state", "rejected"))
		return nil, ConfigError("exactly one of an output path and a file handle is required")
	}
	b, err := backend.Lookup(opts.Backend)
	if err != nil {
		log.Debug("conversion state", zap.String("state", "rejected"))
		return nil, ConfigError("%v", err)
	}
	md := metadata.Merge(iface.Metadata(), opts.Metadata)
	convOpts := Options(metadata.Merge(
		metadata.Metadata(iface.ConversionOptions()),
		metadata.Metadata(opts.ConversionOptions),
	))

	var io backend.IO
	switch {
	case opts.File != nil:
		log.Debug("conversion state",
			zap.String("state", "handle_given"),
			zap.String("identifier", opts.File.Identifier()))
		f = opts.File
		f.SetLogger(opts.Logger)

	default:
		log.Debug("conversion state", zap.String("state", "path_given"), zap.String("path", opts.Path))
		exists, err := b.Exists(opts.Path)
		if err != nil {
			return nil, err
		}
		mode := backend.Overwrite
		if exists && !opts.Overwrite {
			mode = backend.Append
		}
		if mode == backend.Overwrite {
			// Built before the backend is opened, so missing metadata
			// leaves the path untouched.
			f, err = nwb.NewFileFromMetadata(md, nwb.WithLogger(log))
			if err != nil {
				return nil, err
			}
		}
		io, err = b.Open(opts.Path, mode, backend.WithLogger(log))
		if err != nil {
			return nil, err
		}
		defer func() {
			err = multierr.Append(err, io.Close())
			if err != nil {
				f = nil
			}
		}()
		if mode == backend.Append {
			log.Debug("conversion state",
				zap.String("state", "open_existing"),
				zap.String("backend", string(b.Name)))
			if f, err = io.Read(ctx); err != nil {
				return nil, err
			}
			f.SetLogger(opts.Logger)
		} else {
			log.Debug("conversion state",
				zap.String("state", "create_new"),
				zap.String("backend", string(b.Name)),
				zap.Bool("replace", exists))
		}
	}

	if err := iface.AddToNWB(ctx, f, md, convOpts); err != nil {
		return nil, errors.Wrap(err, "add to nwb")
	}
	log.Debug("conversion state", zap.String("state", "populated"))
	if err := ConfigureDatasets(f, iface, b, opts.DatasetConfigs); err != nil {
		return nil, err
	}
	log.Debug("conversion state", zap.String("state", "configured"))
	if io == nil {
		return f, nil
	}
	if err := io.Write(ctx, f); err != nil {
		return nil, err
	}
	log.Debug("conversion state", zap.String("state", "persisted"))
	log.Info("conversion complete",
		zap.String("path", opts.Path),
		zap.String("backend", string(b.Name)))
	return f, nil
}
