package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	ws "github.com/codeconnects/backend/internal/websocket"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream your live notifications until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		printInfo("Watching notifications (Ctrl+C to stop)")
		return c.Watch(ctx, func(n ws.NotificationPayload) {
			if printJSON(n) {
				return
			}
			switch n.Level {
			case "success":
				printSuccess("%s", n.Text)
			case "error":
				errorColor.Printf("✗ %s\n", n.Text)
			default:
				printInfo("%s", n.Text)
			}
		})
	},
}
