package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/robert-malhotra/go-nwbconv/backend"
	"github.com/robert-malhotra/go-nwbconv/nwb"
)

func (a *app) mergeCommand() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "copy the objects of other NWB files into a file",
		ArgsUsage: "<dst> <src>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "backend of dst, guessed from the path when unset"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() < 2 {
				return errors.New("merge takes a destination and at least one source")
			}
			dst := cmd.Args().First()
			name := detectBackend(dst, backend.Name(cmd.String("backend")))
			f, err := a.readFile(ctx, dst, name)
			if err != nil {
				return err
			}
			for _, src := range cmd.Args().Tail() {
				other, err := a.readFile(ctx, src, "")
				if err != nil {
					return err
				}
				if err := f.Merge(other); err != nil {
					return err
				}
			}
			if err := a.writeFile(ctx, dst, name, f); err != nil {
				return err
			}
			a.status("merged %d file(s) into %s", cmd.NArg()-1, dst)
			return nil
		},
	}
}

func (a *app) writeFile(ctx context.Context, path string, name backend.Name, f *nwb.File) (err error) {
	b, err := backend.Lookup(name)
	if err != nil {
		return err
	}
	io, err := b.Open(path, backend.Overwrite, backend.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, io.Close()) }()
	return io.Write(ctx, f)
}
