// Command nwbconv converts acquisition data to NWB files and inspects the
// results.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-nwbconv/internal/logger"
)

// app holds what every command shares.
type app struct {
	logger *zap.Logger
	out    io.Writer
}

func newApp(out io.Writer) *app {
	return &app{logger: zap.NewNop(), out: out}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:  "nwbconv",
		Usage: "convert neurophysiology data to NWB",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Value: "console", Usage: "console or json"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			l, err := logger.New(logger.Config{
				Level:   cmd.String("log-level"),
				Format:  cmd.String("log-format"),
				Service: "nwbconv",
			})
			if err != nil {
				return ctx, err
			}
			a.logger = l
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			_ = a.logger.Sync()
			return nil
		},
		Writer:                    a.out,
		DisableSliceFlagSeparator: true,
		Commands: []*cli.Command{
			a.convertCommand(),
			a.metadataCommand(),
			a.schemaCommand(),
			a.inspectCommand(),
			a.mergeCommand(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).command().Run(ctx, os.Args); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// status prints a green check line.
func (a *app) status(format string, args ...any) {
	color.New(color.FgGreen).Fprint(a.out, "✓ ")
	fmt.Fprintf(a.out, format+"\n", args...)
}
