package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/pathlab-mcp-server/internal/setup"
)

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Register the lite MCP server with an MCP client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Path to the client's JSON configuration file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "name",
				Value: setup.DefaultServerName,
				Usage: "Server entry name in the client configuration",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Add or replace the server entry",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "binary", Usage: "Path to mcp-server-lite; searched for when omitted"},
					&cli.StringFlag{Name: "data-dir", Sources: cli.EnvVars("PATHLAB_DATA_DIR"), Usage: "Data directory passed to the server"},
					&cli.StringFlag{Name: "lab-id", Sources: cli.EnvVars("PATHLAB_LAB_ID"), Usage: "Lab ID applied to saved reports"},
					&cli.StringFlag{Name: "redis-url", Usage: "Optional Redis URL for the tool result cache"},
				},
				Action: mcpRegister,
			},
			{
				Name:   "unregister",
				Usage:  "Remove the server entry",
				Action: mcpUnregister,
			},
		},
	}
}

func mcpRegister(ctx context.Context, cmd *cli.Command) error {
	entry, err := setup.Register(setup.Options{
		ConfigPath: cmd.String("config"),
		ServerName: cmd.String("name"),
		BinaryPath: cmd.String("binary"),
		DataDir:    cmd.String("data-dir"),
		LabID:      cmd.String("lab-id"),
		RedisURL:   cmd.String("redis-url"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "Registered %q -> %s\n", cmd.String("name"), entry.Command)
	return nil
}

func mcpUnregister(ctx context.Context, cmd *cli.Command) error {
	removed, err := setup.Unregister(cmd.String("config"), cmd.String("name"))
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(cmd.Root().Writer, "No entry named %q\n", cmd.String("name"))
		return nil
	}
	fmt.Fprintf(cmd.Root().Writer, "Removed %q\n", cmd.String("name"))
	return nil
}
