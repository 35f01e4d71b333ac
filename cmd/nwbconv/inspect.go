package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/robert-malhotra/go-nwbconv/backend"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

func (a *app) inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "list the groups and datasets of an NWB file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "hdf5 or zarr, guessed from the path when unset"},
			&cli.IntFlag{Name: "depth", Value: 20, Usage: "deepest level to list"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errors.New("inspect takes exactly one file")
			}
			path := cmd.Args().First()
			f, err := a.readFile(ctx, path, backend.Name(cmd.String("backend")))
			if err != nil {
				return err
			}
			return a.renderTree(f, int(cmd.Int("depth")))
		},
	}
}

// detectBackend picks zarr for directories and hdf5 otherwise.
func detectBackend(path string, name backend.Name) backend.Name {
	if name != "" {
		return name
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return backend.Zarr
	}
	if strings.HasSuffix(strings.TrimSuffix(path, "/"), ".zarr") {
		return backend.Zarr
	}
	return backend.HDF5
}

// readFile loads an existing file with the given or detected backend.
func (a *app) readFile(ctx context.Context, path string, name backend.Name) (f *nwb.File, err error) {
	b, err := backend.Lookup(detectBackend(path, name))
	if err != nil {
		return nil, err
	}
	exists, err := b.Exists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: no %s file", path, b.Name)
	}
	io, err := b.Open(path, backend.Append, backend.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, io.Close()) }()
	return io.Read(ctx)
}

// renderTree prints one row per object, groups in blue and typed objects
// with their neurodata type.
func (a *app) renderTree(f *nwb.File, maxDepth int) error {
	table := tablewriter.NewWriter(a.out)
	if err := table.Append([]string{"Path", "Kind", "Type", "Shape", "Storage"}); err != nil {
		return err
	}
	group := color.New(color.FgHiBlue, color.Bold)
	typed := color.New(color.FgHiMagenta)
	dim := color.New(color.FgHiBlack)

	err := f.Walk(func(p string, obj nwb.Object) error {
		depth := strings.Count(strings.Trim(p, "/"), "/")
		if p == "/" {
			depth = -1
		}
		if depth >= maxDepth {
			if _, ok := obj.(*nwb.Group); ok {
				return nwb.SkipGroup
			}
			return nil
		}
		row := []string{p, "", "", "", ""}
		if t := obj.NeurodataType(); t != "" {
			row[2] = typed.Sprint(t)
		}
		switch o := obj.(type) {
		case *nwb.Group:
			row[0] = group.Sprint(p)
			row[1] = "group"
			row[3] = dim.Sprintf("%d members", len(o.Children()))
		case *nwb.Dataset:
			row[1] = "dataset"
			arr, dio := nwb.Unwrap(o.Data())
			if arr != nil {
				row[3] = fmt.Sprintf("%v %s", arr.Shape(), arr.DType())
			}
			if dio != nil {
				row[4] = dio.Config.String()
			} else {
				row[4] = dim.Sprint("contiguous")
			}
		}
		return table.Append(row)
	})
	if err != nil {
		return err
	}
	return table.Render()
}
