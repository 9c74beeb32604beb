// Package network implements "fujinetd network": opening, reading,
// writing, and closing sessions against the network device's bus wire
// protocol. Unlike the disk slot commands, the network device exposes no
// typed Go API -- only Handle(ctx, bus.IORequest) -- so these commands
// hand-encode and decode the same wire payloads the firmware's transport
// loop would.
package network

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fujinet-nio/fujinet-nio/cmd/fujinetd/fujiapp"
	"github.com/fujinet-nio/fujinet-nio/internal/cli/output"
	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice"
	"github.com/fujinet-nio/fujinet-nio/pkg/wire"
	"github.com/spf13/cobra"
)

// sessionResult renders an open/info response as a single-row table.
type sessionResult struct {
	fields [][2]string
}

func (r sessionResult) Headers() []string { return []string{"FIELD", "VALUE"} }

func (r sessionResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.fields))
	for _, f := range r.fields {
		rows = append(rows, []string{f[0], f[1]})
	}
	return rows
}

func methodByte(name string) (uint8, error) {
	switch strings.ToUpper(name) {
	case "GET", "":
		return 1, nil
	case "POST":
		return 2, nil
	case "PUT":
		return 3, nil
	case "DELETE":
		return 4, nil
	case "HEAD":
		return 5, nil
	default:
		return 0, fmt.Errorf("unsupported method %q", name)
	}
}

const (
	flagFollowRedirect uint8 = 1 << 1
)

func dispatch(app *fujiapp.App, cmd uint16, payload []byte) (*wire.Reader, error) {
	resp := app.Bus.Dispatch(context.Background(), bus.IORequest{
		Device:  fujiapp.DeviceIDNetwork,
		Type:    bus.RequestCommand,
		Command: cmd,
		Payload: payload,
	})
	if resp.Status != bus.Ok {
		return nil, fmt.Errorf("network device: %s", resp.Status)
	}
	r := wire.NewReader(resp.Payload)
	r.U8() // version
	return r, nil
}

func parseHandle(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid handle %q: must be a 16-bit integer", s)
	}
	return uint16(n), nil
}

// New builds the "network" command tree.
func New(getApp func() *fujiapp.App, getFormat func() output.Format) *cobra.Command {
	cmd := &cobra.Command{Use: "network", Short: "Open and drive network device sessions"}

	var (
		method    string
		follow    bool
		headerArg []string
	)

	openCmd := &cobra.Command{
		Use:   "open <url>",
		Short: "Open a network session against a url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp()
			url := args[0]

			mb, err := methodByte(method)
			if err != nil {
				return err
			}
			var flags uint8
			if follow {
				flags |= flagFollowRedirect
			}

			headers := make(map[string]string, len(headerArg))
			for _, h := range headerArg {
				name, value, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("invalid header %q: expected NAME:VALUE", h)
				}
				headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
			}

			w := wire.NewWriter().U8(wire.ProtocolVersion).U8(mb).U8(flags).LPString(url).
				U16(uint16(len(headers)))
			for name, value := range headers {
				w.LPString(name).LPString(value)
			}
			w.U32(0).U16(0)

			r, err := dispatch(app, netdevice.OpOpen, w.Build())
			if err != nil {
				return err
			}
			respFlags := r.U8()
			r.U16()
			h := r.U16()
			if r.Err() != nil {
				return fmt.Errorf("malformed open response")
			}

			result := sessionResult{fields: [][2]string{
				{"handle", fmt.Sprintf("0x%04X", h)},
				{"accepted", yesno(respFlags&1 != 0)},
				{"needs-body-write", yesno(respFlags&(1<<1) != 0)},
			}}
			return output.Print(os.Stdout, getFormat(), result)
		},
	}
	openCmd.Flags().StringVar(&method, "method", "GET", "HTTP-style method: GET, POST, PUT, DELETE, HEAD")
	openCmd.Flags().BoolVar(&follow, "follow-redirects", true, "Follow redirects")
	openCmd.Flags().StringArrayVar(&headerArg, "header", nil, "Request header as NAME:VALUE (repeatable)")

	var maxBytes uint16
	readCmd := &cobra.Command{
		Use:   "read <handle> <offset>",
		Short: "Read bytes from an open session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp()
			h, err := parseHandle(args[0])
			if err != nil {
				return err
			}
			offset, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid offset %q", args[1])
			}

			w := wire.NewWriter().U8(wire.ProtocolVersion).U16(h).U32(uint32(offset)).U16(maxBytes)
			r, err := dispatch(app, netdevice.OpRead, w.Build())
			if err != nil {
				return err
			}
			flags := r.U8()
			r.U16()
			r.U16() // handle echo
			r.U32() // offset echo
			n := r.U16()
			data := r.Bytes(int(n))
			if r.Err() != nil {
				return fmt.Errorf("malformed read response")
			}

			result := sessionResult{fields: [][2]string{
				{"bytes", strconv.Itoa(len(data))},
				{"eof", yesno(flags&1 != 0)},
				{"data", string(data)},
			}}
			return output.Print(os.Stdout, getFormat(), result)
		},
	}
	readCmd.Flags().Uint16Var(&maxBytes, "max-bytes", 512, "Maximum bytes to read")

	writeCmd := &cobra.Command{
		Use:   "write <handle> <offset> <data>",
		Short: "Write bytes to an open session awaiting a request body",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp()
			h, err := parseHandle(args[0])
			if err != nil {
				return err
			}
			offset, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid offset %q", args[1])
			}
			data := []byte(args[2])

			w := wire.NewWriter().U8(wire.ProtocolVersion).U16(h).U32(uint32(offset)).
				U16(uint16(len(data))).Bytes(data)
			if _, err := dispatch(app, netdevice.OpWrite, w.Build()); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "wrote %d bytes to handle 0x%04X\n", len(data), h)
			return nil
		},
	}

	infoCmd := &cobra.Command{
		Use:   "info <handle>",
		Short: "Show response status and headers for an open session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp()
			h, err := parseHandle(args[0])
			if err != nil {
				return err
			}

			w := wire.NewWriter().U8(wire.ProtocolVersion).U16(h).U16(2048)
			r, err := dispatch(app, netdevice.OpInfo, w.Build())
			if err != nil {
				return err
			}
			flags := r.U8()
			r.U16()
			r.U16() // handle echo
			status := r.U16()
			length := r.U64()
			n := r.U16()
			headerBlock := r.Bytes(int(n))
			if r.Err() != nil {
				return fmt.Errorf("malformed info response")
			}

			result := sessionResult{fields: [][2]string{
				{"status", strconv.Itoa(int(status))},
				{"length", strconv.FormatUint(length, 10)},
				{"has-headers", yesno(flags&1 != 0)},
				{"has-length", yesno(flags&(1<<1) != 0)},
				{"has-status", yesno(flags&(1<<2) != 0)},
				{"headers", string(headerBlock)},
			}}
			return output.Print(os.Stdout, getFormat(), result)
		},
	}

	closeCmd := &cobra.Command{
		Use:   "close <handle>",
		Short: "Close an open session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp()
			h, err := parseHandle(args[0])
			if err != nil {
				return err
			}
			w := wire.NewWriter().U8(wire.ProtocolVersion).U16(h)
			if _, err := dispatch(app, netdevice.OpClose, w.Build()); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "closed handle 0x%04X\n", h)
			return nil
		},
	}

	cmd.AddCommand(openCmd, readCmd, writeCmd, infoCmd, closeCmd)
	return cmd
}

func yesno(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
