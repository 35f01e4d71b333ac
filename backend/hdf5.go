package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/hdf5"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

type hdf5IO struct {
	path   string
	mode   Mode
	logger *zap.Logger
	src    *hdf5.File
}

func openHDF5(path string, mode Mode, opts ...Option) (IO, error) {
	o := buildOptions(opts)
	io := &hdf5IO{path: path, mode: mode, logger: o.logger}
	if mode == Append {
		f, err := hdf5.Open(path)
		if err != nil {
			return nil, ioErr(HDF5, "open", path, err)
		}
		io.src = f
	}
	return io, nil
}

func (h *hdf5IO) Read(ctx context.Context) (*nwb.File, error) {
	if h.src == nil {
		return nil, ioErr(HDF5, "read", h.path, fmt.Errorf("file opened in %s mode", h.mode))
	}
	f := nwb.Empty(nwb.WithLogger(h.logger))
	if err := readHDF5Group(ctx, h.src.Root(), f.Root()); err != nil {
		return nil, ioErr(HDF5, "read", h.path, err)
	}
	h.logger.Debug("read file", zap.String("backend", string(HDF5)), zap.String("path", h.path))
	return f, nil
}

func readHDF5Group(ctx context.Context, src *hdf5.Group, dst *nwb.Group) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, a := range src.Attrs() {
		dst.Attrs()[a.Name] = a.Interface()
	}
	for _, child := range src.Children() {
		switch c := child.(type) {
		case *hdf5.Group:
			g, err := dst.CreateGroup(c.Name())
			if err != nil {
				return err
			}
			if err := readHDF5Group(ctx, c, g); err != nil {
				return err
			}
		case *hdf5.Dataset:
			a, err := c.Read()
			if err != nil {
				return fmt.Errorf("%s: %w", c.Path(), err)
			}
			var data array.Valuer = a
			if s := c.Storage(); s.Chunked() {
				dio := nwb.DataIO{Backend: string(HDF5), Data: a}
				dio.Config = nwb.DatasetConfig{Chunks: s.Chunks, Shuffle: s.Shuffle, Fletcher32: s.Fletcher32}
				if s.Deflate {
					dio.Config.Compression = nwb.Gzip
					dio.Config.Level = s.Level
				}
				data = dio
			}
			d, err := dst.CreateDataset(c.Name(), data)
			if err != nil {
				return err
			}
			for _, attr := range c.Attrs() {
				d.Attrs()[attr.Name] = attr.Interface()
			}
		}
	}
	return nil
}

func (h *hdf5IO) Write(ctx context.Context, f *nwb.File) error {
	out, err := hdf5.Create(h.path)
	if err != nil {
		return ioErr(HDF5, "create", h.path, err)
	}
	if err := writeHDF5Group(f.Root(), out.Root()); err != nil {
		return ioErr(HDF5, "write", h.path, err)
	}
	// Nothing touches the disk before Save, so a failed build leaves the
	// path as it was.
	if err := out.Save(ctx); err != nil {
		return ioErr(HDF5, "write", h.path, err)
	}
	stats := out.Stats()
	h.logger.Debug("wrote file",
		zap.String("backend", string(HDF5)),
		zap.String("path", h.path),
		zap.Int("regions", stats.Count),
		zap.Uint64("largest", stats.Largest))
	return ioErr(HDF5, "close", h.path, out.Close())
}

func writeHDF5Group(src *nwb.Group, dst *hdf5.Group) error {
	if err := writeHDF5Attrs(src.Attrs(), dst); err != nil {
		return err
	}
	for _, child := range src.Children() {
		switch c := child.(type) {
		case *nwb.Group:
			g, err := dst.CreateGroup(c.Name())
			if err != nil {
				return err
			}
			if err := writeHDF5Group(c, g); err != nil {
				return err
			}
		case *nwb.Dataset:
			a, dio := nwb.Unwrap(c.Data())
			var opts []hdf5.DatasetOption
			if dio != nil {
				if dio.Backend != "" && dio.Backend != string(HDF5) {
					return fmt.Errorf("%w: %s configured for backend %s", ErrUnsupportedConfig, c.Path(), dio.Backend)
				}
				var err error
				if opts, err = hdf5Options(Resolve(dio.Config, a)); err != nil {
					return fmt.Errorf("%s: %w", c.Path(), err)
				}
			}
			d, err := dst.CreateDataset(c.Name(), a, opts...)
			if err != nil {
				return err
			}
			if err := writeHDF5Attrs(c.Attrs(), d); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeHDF5Attrs(attrs nwb.Attributes, obj hdf5.Object) error {
	for _, k := range attrs.Keys() {
		if err := obj.SetAttr(k, attrs[k]); err != nil {
			return fmt.Errorf("%s@%s: %w", obj.Path(), k, err)
		}
	}
	return nil
}

func hdf5Options(cfg nwb.DatasetConfig) ([]hdf5.DatasetOption, error) {
	var opts []hdf5.DatasetOption
	if cfg.Chunks != nil {
		opts = append(opts, hdf5.WithChunks(cfg.Chunks...))
	}
	switch cfg.Compression {
	case "":
	case nwb.Gzip:
		opts = append(opts, hdf5.WithCompression(cfg.Level))
	default:
		return nil, fmt.Errorf("%w: hdf5 does not support %s compression", ErrUnsupportedConfig, cfg.Compression)
	}
	if cfg.Shuffle {
		opts = append(opts, hdf5.WithShuffle())
	}
	if cfg.Fletcher32 {
		opts = append(opts, hdf5.WithFletcher32())
	}
	return opts, nil
}

func (h *hdf5IO) Close() error {
	if h.src == nil {
		return nil
	}
	err := h.src.Close()
	h.src = nil
	return ioErr(HDF5, "close", h.path, err)
}
