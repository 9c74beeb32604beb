// Package events implements "fujinetd events tail": a live view of
// whatever the bus's event.Stream publishes, driven here by a simulated
// network link so the command has something to show without real
// Wi-Fi/Ethernet hardware behind it.
package events

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fujinet-nio/fujinet-nio/cmd/fujinetd/fujiapp"
	"github.com/fujinet-nio/fujinet-nio/pkg/event"
	"github.com/spf13/cobra"
)

// New builds the "events" command tree.
func New(getApp func() *fujiapp.App) *cobra.Command {
	cmd := &cobra.Command{Use: "events", Short: "Observe events published on the bus"}

	var (
		count    int
		interval time.Duration
	)

	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print events as they're published until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			seen := 0
			done := make(chan struct{})
			token := app.Events.Subscribe(func(ev event.Event) {
				fmt.Fprintf(os.Stdout, "%s %v\n", ev.Type, ev.Data)
				seen++
				if count > 0 && seen >= count {
					close(done)
				}
			})
			defer app.Events.Unsubscribe(token)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-done:
					return nil
				case <-ticker.C:
					app.PollLink()
				}
			}
		},
	}
	tailCmd.Flags().IntVar(&count, "count", 0, "Stop after this many events (0 = run until interrupted)")
	tailCmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "Poll interval for the simulated link")

	cmd.AddCommand(tailCmd)
	return cmd
}
