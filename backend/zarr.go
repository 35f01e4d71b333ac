package backend

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-nwbconv/array"
	"github.com/robert-malhotra/go-nwbconv/nwb"
	"github.com/robert-malhotra/go-nwbconv/zarr"
)

type zarrIO struct {
	path   string
	mode   Mode
	logger *zap.Logger
	store  *zarr.Store
}

// openZarr opens a local directory, or a bucket when path is a URL such
// as "s3://bucket/prefix" or "mem://".
func openZarr(target string, mode Mode, opts ...Option) (IO, error) {
	o := buildOptions(opts)
	ctx := context.Background()
	var (
		store *zarr.Store
		err   error
	)
	if strings.Contains(target, "://") {
		store, err = zarr.Open(ctx, target, zarr.WithLogger(o.logger))
	} else {
		if mode == Append {
			if _, statErr := os.Stat(target); statErr != nil {
				return nil, ioErr(Zarr, "open", target, statErr)
			}
		}
		store, err = zarr.OpenDir(target, zarr.WithLogger(o.logger))
	}
	if err != nil {
		return nil, ioErr(Zarr, "open", target, err)
	}
	if mode == Append {
		ok, err := store.Exists(ctx, "")
		if err == nil && !ok {
			err = fmt.Errorf("%w: no root group", zarr.ErrNotFound)
		}
		if err != nil {
			store.Close()
			return nil, ioErr(Zarr, "open", target, err)
		}
	}
	return &zarrIO{path: target, mode: mode, logger: o.logger, store: store}, nil
}

func zarrExists(target string) (bool, error) {
	if !strings.Contains(target, "://") {
		ok, err := statExists(target)
		return ok, ioErr(Zarr, "exists", target, err)
	}
	ctx := context.Background()
	store, err := zarr.Open(ctx, target)
	if err != nil {
		return false, ioErr(Zarr, "exists", target, err)
	}
	defer store.Close()
	ok, err := store.Exists(ctx, "")
	return ok, ioErr(Zarr, "exists", target, err)
}

func (z *zarrIO) Read(ctx context.Context) (*nwb.File, error) {
	if z.mode != Append {
		return nil, ioErr(Zarr, "read", z.path, fmt.Errorf("store opened in %s mode", z.mode))
	}
	f := nwb.Empty(nwb.WithLogger(z.logger))
	if err := z.readGroup(ctx, "", f.Root()); err != nil {
		return nil, ioErr(Zarr, "read", z.path, err)
	}
	return f, nil
}

func (z *zarrIO) readGroup(ctx context.Context, p string, dst *nwb.Group) error {
	attrs, err := z.store.ReadAttrs(ctx, p)
	if err != nil {
		return err
	}
	setAttrs(dst.Attrs(), attrs)

	nodes, err := z.store.List(ctx, p)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if !n.IsArray {
			g, err := dst.CreateGroup(n.Name)
			if err != nil {
				return err
			}
			if err := z.readGroup(ctx, n.Path, g); err != nil {
				return err
			}
			continue
		}
		a, err := z.store.ReadArray(ctx, n.Path)
		if err != nil {
			return err
		}
		meta, err := z.store.ArrayMeta(ctx, n.Path)
		if err != nil {
			return err
		}
		cfg := nwb.DatasetConfig{Chunks: meta.Chunks}
		if meta.Compressor != nil {
			cfg.Compression = meta.Compressor.ID
			cfg.Level = meta.Compressor.Level
		}
		d, err := dst.CreateDataset(n.Name, nwb.DataIO{Backend: string(Zarr), Config: cfg, Data: a})
		if err != nil {
			return err
		}
		attrs, err := z.store.ReadAttrs(ctx, n.Path)
		if err != nil {
			return err
		}
		setAttrs(d.Attrs(), attrs)
	}
	return nil
}

// setAttrs copies JSON attribute values, turning homogeneous lists back
// into typed slices.
func setAttrs(dst nwb.Attributes, src map[string]any) {
	for k, v := range src {
		if list, ok := v.([]any); ok && len(list) > 0 {
			if a, err := array.FromValue(list); err == nil {
				v = a.Value()
			}
		}
		dst[k] = v
	}
}

func (z *zarrIO) Write(ctx context.Context, f *nwb.File) error {
	if z.mode == Overwrite {
		if err := z.store.Remove(ctx, ""); err != nil {
			return ioErr(Zarr, "write", z.path, err)
		}
	}
	if err := z.writeGroup(ctx, "", f.Root()); err != nil {
		return ioErr(Zarr, "write", z.path, err)
	}
	z.logger.Debug("wrote store", zap.String("backend", string(Zarr)), zap.String("path", z.path))
	return nil
}

func (z *zarrIO) writeGroup(ctx context.Context, p string, g *nwb.Group) error {
	if err := z.store.WriteGroup(ctx, p, g.Attrs()); err != nil {
		return err
	}
	for _, child := range g.Children() {
		childPath := path.Join(p, child.Name())
		switch c := child.(type) {
		case *nwb.Group:
			if err := z.writeGroup(ctx, childPath, c); err != nil {
				return err
			}
		case *nwb.Dataset:
			a, dio := nwb.Unwrap(c.Data())
			var cfg zarr.ArrayConfig
			if dio != nil {
				if dio.Backend != "" && dio.Backend != string(Zarr) {
					return fmt.Errorf("%w: %s configured for backend %s", ErrUnsupportedConfig, c.Path(), dio.Backend)
				}
				var err error
				if cfg, err = z.arrayConfig(c.Path(), Resolve(dio.Config, a)); err != nil {
					return err
				}
			}
			if err := z.store.WriteArray(ctx, childPath, a, cfg, c.Attrs()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (z *zarrIO) arrayConfig(p string, cfg nwb.DatasetConfig) (zarr.ArrayConfig, error) {
	out := zarr.ArrayConfig{Chunks: cfg.Chunks}
	switch cfg.Compression {
	case "":
	case nwb.Zstd, nwb.Zlib, nwb.Gzip:
		out.Compressor = &zarr.Compressor{ID: cfg.Compression, Level: cfg.Level}
	default:
		return out, fmt.Errorf("%w: %s: zarr does not support %s compression", ErrUnsupportedConfig, p, cfg.Compression)
	}
	if cfg.Shuffle || cfg.Fletcher32 {
		z.logger.Warn("zarr ignores shuffle and fletcher32", zap.String("dataset", p))
	}
	return out, nil
}

func (z *zarrIO) Close() error {
	if z.store == nil {
		return nil
	}
	err := z.store.Close()
	z.store = nil
	return ioErr(Zarr, "close", z.path, err)
}
