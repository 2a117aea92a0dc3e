package main

import (
	"context"
	"fmt"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v3"

	"github.com/pathlab-mcp-server/internal/notify"
)

func whatsAppCommand() *cli.Command {
	return &cli.Command{
		Name:  "whatsapp",
		Usage: "Manage the WhatsApp session used for report notifications",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "store-url",
				Sources: cli.EnvVars("PATHLAB_NOTIFICATIONS_WHATSAPP_STORE_URL"),
				Usage:   "PostgreSQL URL of the WhatsApp device store",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "pair",
				Usage: "Link this server as a WhatsApp device by scanning a QR code",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Value: 2 * time.Minute,
						Usage: "How long to wait for the code to be scanned",
					},
				},
				Action: whatsAppPair,
			},
			{
				Name:   "logout",
				Usage:  "Unlink the paired device",
				Action: whatsAppLogout,
			},
		},
	}
}

func openWhatsApp(ctx context.Context, cmd *cli.Command) (*notify.WhatsAppClient, error) {
	storeURL := cmd.String("store-url")
	if storeURL == "" {
		return nil, fmt.Errorf("store-url is required (set via --store-url or PATHLAB_NOTIFICATIONS_WHATSAPP_STORE_URL env var)")
	}
	return notify.NewWhatsAppClient(ctx, storeURL, cliLogger())
}

func whatsAppPair(ctx context.Context, cmd *cli.Command) error {
	client, err := openWhatsApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	w := cmd.Root().Writer
	if client.Paired() {
		fmt.Fprintln(w, "Device is already paired; run logout first to pair again")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	err = client.Connect(ctx, func(code string) {
		qr, err := qrcode.New(code, qrcode.Medium)
		if err != nil {
			fmt.Fprintf(w, "Failed to render QR code: %v\n", err)
			return
		}
		fmt.Fprintln(w, "Scan this code from WhatsApp > Linked devices:")
		fmt.Fprintln(w, qr.ToSmallString(false))
	})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("pairing not completed: %w", ctx.Err())
		case <-ticker.C:
			if client.Status() == notify.StatusConnected && client.Paired() {
				fmt.Fprintln(w, "WhatsApp device paired")
				return nil
			}
		}
	}
}

func whatsAppLogout(ctx context.Context, cmd *cli.Command) error {
	client, err := openWhatsApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	w := cmd.Root().Writer
	if !client.Paired() {
		fmt.Fprintln(w, "No device is paired")
		return nil
	}
	if err := client.Connect(ctx, nil); err != nil {
		return err
	}
	if err := client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "WhatsApp device unlinked")
	return nil
}
