package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/pathlab-mcp-server/pkg/refrange"
)

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Flag a single result against its reference range",
		ArgsUsage: "<value> <reference-range>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gender",
				Usage: "Patient gender for gender-split ranges (male, female)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the full result as JSON",
			},
		},
		Action: classify,
	}
}

type classifyOutput struct {
	Flag   string `json:"flag"`
	Symbol string `json:"symbol,omitempty"`
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
	Parsed bool   `json:"parsed"`
}

func classify(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("expected <value> <reference-range>, got %d arguments", cmd.Args().Len())
	}

	res := refrange.Classify(cmd.Args().Get(0), cmd.Args().Get(1), cmd.String("gender"))
	out := classifyOutput{
		Flag:   res.Flag.String(),
		Symbol: res.Flag.Symbol(),
		Rule:   string(res.Rule),
		Reason: res.Reason,
		Parsed: res.Parsed(),
	}

	w := cmd.Root().Writer
	if cmd.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "%s\t%s\t%s\n", out.Flag, out.Rule, out.Reason)
	return nil
}
