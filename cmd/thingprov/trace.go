package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/thingprov/thingprov-go/cmd/thingprov/commands"
)

var traceFilterFlags = []cli.Flag{
	&cli.StringFlag{Name: "session", Usage: "filter by session ID"},
	&cli.StringFlag{Name: "device", Usage: "filter by device identity"},
	&cli.StringFlag{Name: "peer", Usage: "filter by BLE peer address"},
	&cli.StringFlag{Name: "layer", Usage: "filter by layer (link, message, session)"},
	&cli.StringFlag{Name: "direction", Usage: "filter by direction (in, out)"},
	&cli.StringFlag{Name: "category", Usage: "filter by category (message, state, error)"},
	&cli.StringFlag{Name: "time-start", Usage: "events at or after this RFC3339 time"},
	&cli.StringFlag{Name: "time-end", Usage: "events before this RFC3339 time"},
}

var traceCommand = &cli.Command{
	Name:  "trace",
	Usage: "inspect protocol traces",
	Subcommands: []*cli.Command{
		{
			Name:      "view",
			Usage:     "print trace events",
			ArgsUsage: "<trace.plog>",
			Flags:     traceFilterFlags,
			Action: func(cCtx *cli.Context) error {
				path, err := traceArg(cCtx)
				if err != nil {
					return err
				}
				filter, err := traceFilter(cCtx).Build()
				if err != nil {
					return err
				}
				return commands.RunView(path, filter, cCtx.App.Writer)
			},
		},
		{
			Name:      "stats",
			Usage:     "summarize a trace",
			ArgsUsage: "<trace.plog>",
			Action: func(cCtx *cli.Context) error {
				path, err := traceArg(cCtx)
				if err != nil {
					return err
				}
				return commands.RunStats(path, cCtx.App.Writer)
			},
		},
		{
			Name:      "export",
			Usage:     "export trace events as jsonl or csv",
			ArgsUsage: "<trace.plog>",
			Flags: append([]cli.Flag{
				&cli.StringFlag{Name: "format", Value: "jsonl", Usage: "jsonl or csv"},
				&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file (default stdout)"},
			}, traceFilterFlags...),
			Action: func(cCtx *cli.Context) error {
				path, err := traceArg(cCtx)
				if err != nil {
					return err
				}
				filter, err := traceFilter(cCtx).Build()
				if err != nil {
					return err
				}
				return commands.RunExport(path, filter, cCtx.String("format"), cCtx.String("output"), cCtx.App.Writer)
			},
		},
	},
}

func traceArg(cCtx *cli.Context) (string, error) {
	if cCtx.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one trace file, got %d arguments", cCtx.NArg())
	}
	return cCtx.Args().First(), nil
}

func traceFilter(cCtx *cli.Context) commands.FilterOptions {
	return commands.FilterOptions{
		SessionID: cCtx.String("session"),
		DeviceID:  cCtx.String("device"),
		PeerAddr:  cCtx.String("peer"),
		TimeStart: cCtx.String("time-start"),
		TimeEnd:   cCtx.String("time-end"),
		Layer:     cCtx.String("layer"),
		Direction: cCtx.String("direction"),
		Category:  cCtx.String("category"),
	}
}
