// Package device implements "fujinetd device list": a status overview of
// every device registered on the bus.
package device

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fujinet-nio/fujinet-nio/cmd/fujinetd/fujiapp"
	"github.com/fujinet-nio/fujinet-nio/internal/cli/output"
	"github.com/spf13/cobra"
)

// deviceList renders bus.DeviceManager.Devices() as a table.
type deviceList struct {
	ids      []uint8
	sessions int
}

func (l deviceList) Headers() []string { return []string{"DEVICE_ID", "ROLE", "SESSIONS"} }

func (l deviceList) Rows() [][]string {
	rows := make([][]string, 0, len(l.ids))
	for _, id := range l.ids {
		role := "unknown"
		sessions := "-"
		switch id {
		case fujiapp.DeviceIDDisk:
			role = "disk"
		case fujiapp.DeviceIDNetwork:
			role = "network"
			sessions = strconv.Itoa(l.sessions)
		}
		rows = append(rows, []string{fmt.Sprintf("0x%02X", id), role, sessions})
	}
	return rows
}

// New builds the "device" command tree. getApp returns the bootstrapped
// application state (set up by the root command's PersistentPreRunE);
// getFormat returns the requested output format.
func New(getApp func() *fujiapp.App, getFormat func() output.Format) *cobra.Command {
	cmd := &cobra.Command{Use: "device", Short: "Inspect devices registered on the bus"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List devices registered on the bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp()
			list := deviceList{ids: app.Bus.Devices(), sessions: app.Net.ActiveSessions()}
			return output.Print(os.Stdout, getFormat(), list)
		},
	}
	cmd.AddCommand(listCmd)
	return cmd
}
