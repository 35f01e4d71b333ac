package main

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-nwbconv/datainterface/registry"
	"github.com/robert-malhotra/go-nwbconv/metadata"
)

var schemaJSON = jsoniter.ConfigCompatibleWithStandardLibrary

func (a *app) schemaCommand() *cli.Command {
	return &cli.Command{
		Name:      "schema",
		Usage:     "print the JSON schema of an interface type",
		ArgsUsage: "<type>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: "source", Usage: "source, options or metadata"},
			&cli.StringSliceFlag{Name: "source", Aliases: []string{"s"}, Usage: "source field as key=value, needed for metadata"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("schema takes one type, one of %v", registry.Types())
			}
			typeName := cmd.Args().First()

			var s metadata.Schema
			var err error
			switch cmd.String("kind") {
			case "source":
				s, err = registry.SourceSchema(typeName)
			case "options":
				s, err = registry.OptionsSchema(typeName)
			case "metadata":
				if len(cmd.StringSlice("source")) == 0 {
					return errors.New("the metadata schema needs --source to build the interface")
				}
				iface, berr := a.buildInterface(typeName, cmd.StringSlice("source"))
				if berr != nil {
					return berr
				}
				s = iface.MetadataSchema()
			default:
				return fmt.Errorf("unknown schema kind %q", cmd.String("kind"))
			}
			if err != nil {
				return err
			}
			data, err := schemaJSON.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, string(data))
			return err
		},
	}
}
