package main

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-nwbconv/internal/job"
	"github.com/robert-malhotra/go-nwbconv/metadata"
)

func (a *app) convertCommand() *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "run a conversion from a job file or from flags",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "job", Aliases: []string{"j"}, Usage: "YAML job file"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "interface type when no job is given"},
			&cli.StringSliceFlag{Name: "source", Aliases: []string{"s"}, Usage: "source field as key=value"},
			&cli.StringSliceFlag{Name: "option", Usage: "conversion option as key=value"},
			&cli.StringFlag{Name: "metadata", Aliases: []string{"m"}, Usage: "YAML metadata file"},
			&cli.StringSliceFlag{Name: "set", Usage: "metadata override as Section.key=value"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output path"},
			&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "hdf5 or zarr"},
			&cli.BoolFlag{Name: "overwrite", Usage: "replace an existing output"},
			&cli.BoolFlag{Name: "stub", Usage: "write a small subset of the data"},
			&cli.BoolFlag{Name: "watch", Usage: "convert again whenever the job or metadata file changes"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			load := func() (*job.Job, error) { return jobFromFlags(cmd) }
			if cmd.Bool("watch") {
				j, err := load()
				if err != nil {
					return err
				}
				return a.watch(ctx, watchedFiles(cmd.String("job"), j.Metadata), func(ctx context.Context) error {
					return a.convert(ctx, overwriting(load))
				})
			}
			return a.convert(ctx, load)
		},
	}
}

func (a *app) convert(ctx context.Context, load func() (*job.Job, error)) error {
	j, err := load()
	if err != nil {
		return err
	}
	f, err := j.Run(ctx, a.logger)
	if err != nil {
		return err
	}
	a.status("wrote %s (identifier %s)", j.Output, f.Identifier())
	return nil
}

// overwriting wraps load so the job replaces its output. Watch runs
// rewrite the file they produced on the previous run.
func overwriting(load func() (*job.Job, error)) func() (*job.Job, error) {
	return func() (*job.Job, error) {
		j, err := load()
		if err != nil {
			return nil, err
		}
		j.Overwrite = true
		return j, nil
	}
}

// jobFromFlags loads --job, or assembles a single-interface job from the
// other flags. Flags given alongside --job override the file.
func jobFromFlags(cmd *cli.Command) (*job.Job, error) {
	var j *job.Job
	if path := cmd.String("job"); path != "" {
		loaded, err := job.Load(path)
		if err != nil {
			return nil, err
		}
		j = loaded
	} else {
		if cmd.String("type") == "" {
			return nil, errors.New("either --job or --type is required")
		}
		source, err := parsePairs(cmd.StringSlice("source"))
		if err != nil {
			return nil, err
		}
		options, err := parsePairs(cmd.StringSlice("option"))
		if err != nil {
			return nil, err
		}
		j = &job.Job{
			Interfaces: map[string]job.Interface{
				cmd.String("type"): {Type: cmd.String("type"), Source: source, Options: options},
			},
		}
	}

	if cmd.IsSet("output") {
		j.Output = cmd.String("output")
	}
	if cmd.IsSet("backend") {
		j.Backend = cmd.String("backend")
	}
	if cmd.IsSet("metadata") {
		j.Metadata = cmd.String("metadata")
	}
	if cmd.Bool("overwrite") {
		j.Overwrite = true
	}
	if cmd.Bool("stub") {
		j.Stub = true
	}
	if sets := cmd.StringSlice("set"); len(sets) > 0 {
		if j.MetadataOverrides == nil {
			j.MetadataOverrides = map[string]any{}
		}
		if err := applyPairs(metadata.Metadata(j.MetadataOverrides), sets); err != nil {
			return nil, err
		}
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// watchedFiles returns the absolute paths of the non-empty arguments.
func watchedFiles(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if p != "" {
			abs, err := filepath.Abs(p)
			if err != nil {
				abs = p
			}
			out = append(out, abs)
		}
	}
	return out
}
