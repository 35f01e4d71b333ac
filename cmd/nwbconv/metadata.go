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

	"github.com/robert-malhotra/go-nwbconv/datainterface"
	"github.com/robert-malhotra/go-nwbconv/datainterface/registry"
	"github.com/robert-malhotra/go-nwbconv/metadata"
)

func (a *app) metadataCommand() *cli.Command {
	return &cli.Command{
		Name:  "metadata",
		Usage: "create, show and edit metadata files",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "print every value of a metadata file",
				ArgsUsage: "<file>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return errors.New("show takes exactly one file")
					}
					md, err := metadata.Load(cmd.Args().First())
					if err != nil {
						return err
					}
					return a.renderMetadata(md)
				},
			},
			{
				Name:      "set",
				Usage:     "set values in a metadata file",
				ArgsUsage: "<file> Section.key=value...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() < 2 {
						return errors.New("set takes a file and at least one key=value")
					}
					path := cmd.Args().First()
					md, err := metadata.Load(path)
					if err != nil {
						return err
					}
					pairs := cmd.Args().Tail()
					if err := applyPairs(md, pairs); err != nil {
						return err
					}
					if err := md.Save(path); err != nil {
						return err
					}
					a.status("updated %d value(s) in %s", len(pairs), path)
					return nil
				},
			},
			{
				Name:  "init",
				Usage: "write the metadata an interface derives from its source",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true},
					&cli.StringSliceFlag{Name: "source", Aliases: []string{"s"}, Usage: "source field as key=value"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "metadata.yml"},
					&cli.BoolFlag{Name: "force", Usage: "replace an existing file"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					out := cmd.String("output")
					if _, err := os.Stat(out); err == nil && !cmd.Bool("force") {
						return fmt.Errorf("%s exists, use --force to replace it", out)
					}
					iface, err := a.buildInterface(cmd.String("type"), cmd.StringSlice("source"))
					if err != nil {
						return err
					}
					if err := iface.Metadata().Save(out); err != nil {
						return err
					}
					a.status("wrote %s", out)
					return nil
				},
			},
		},
	}
}

func (a *app) buildInterface(typeName string, pairs []string) (datainterface.Interface, error) {
	source, err := parsePairs(pairs)
	if err != nil {
		return nil, err
	}
	return registry.New(typeName, source, datainterface.WithLogger(a.logger))
}

// renderMetadata prints one row per leaf value, sections highlighted.
func (a *app) renderMetadata(md metadata.Metadata) error {
	table := tablewriter.NewWriter(a.out)
	if err := table.Append([]string{"Path", "Value"}); err != nil {
		return err
	}
	section := color.New(color.FgHiBlue, color.Bold)
	for _, p := range md.Paths() {
		v, _ := md.Get(p)
		head, rest, found := strings.Cut(p, ".")
		name := section.Sprint(head)
		if found {
			name += "." + rest
		}
		if err := table.Append([]string{name, metadata.FormatValue(v)}); err != nil {
			return err
		}
	}
	return table.Render()
}
