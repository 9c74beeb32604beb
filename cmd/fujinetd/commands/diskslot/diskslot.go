// Package diskslot implements "fujinetd disk": listing, mounting, and
// unmounting the firmware's eight disk slots.
package diskslot

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fujinet-nio/fujinet-nio/cmd/fujinetd/fujiapp"
	"github.com/fujinet-nio/fujinet-nio/internal/cli/output"
	"github.com/fujinet-nio/fujinet-nio/internal/cli/prompt"
	"github.com/fujinet-nio/fujinet-nio/pkg/disk"
	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image"
	"github.com/spf13/cobra"
)

type slotList struct {
	infos [disk.NumSlots]disk.SlotInfo
}

func (l slotList) Headers() []string {
	return []string{"SLOT", "INSERTED", "PATH", "SECTORS", "DIRTY", "READONLY"}
}

func (l slotList) Rows() [][]string {
	rows := make([][]string, 0, disk.NumSlots)
	for i, info := range l.infos {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i),
			yesno(info.Inserted),
			emptyOr(info.Path, "-"),
			fmt.Sprintf("%d", info.Geometry.SectorCount),
			yesno(info.Dirty),
			yesno(info.ReadOnly),
		})
	}
	return rows
}

func yesno(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func emptyOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// New builds the "disk" command tree.
func New(getApp func() *fujiapp.App, getFormat func() output.Format) *cobra.Command {
	cmd := &cobra.Command{Use: "disk", Short: "List, mount, and unmount disk slots"}

	var (
		fsName     string
		readOnly   bool
		interactiv bool
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all disk slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp()
			var list slotList
			for i := 0; i < disk.NumSlots; i++ {
				info, err := app.Disk.Info(i)
				if err != nil {
					return fmt.Errorf("slot %d: %w", i, err)
				}
				list.infos[i] = info
			}
			return output.Print(os.Stdout, getFormat(), list)
		},
	}

	mountCmd := &cobra.Command{
		Use:   "mount <slot> <path>",
		Short: "Mount a disk image into a slot",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp()

			var idx int
			var path string
			switch {
			case len(args) == 2:
				parsed, err := parseSlot(args[0])
				if err != nil {
					return err
				}
				idx, path = parsed, args[1]
			case interactiv || len(args) == 0:
				slotNum, err := prompt.InputInt("Slot (0-7)", 0)
				if err != nil {
					return handleAbort(err)
				}
				if slotNum < 0 || slotNum >= disk.NumSlots {
					return fmt.Errorf("slot %d out of range [0, %d)", slotNum, disk.NumSlots)
				}
				idx = slotNum
				path, err = prompt.InputRequired("Image path")
				if err != nil {
					return handleAbort(err)
				}
			default:
				return fmt.Errorf("mount requires either <slot> <path> or --interactive")
			}

			if fsName == "" {
				fsName = "flash"
			}

			info, err := app.Disk.Mount(idx, fsName, path, disk.MountOptions{
				ReadOnlyRequested: readOnly,
				TypeOverride:      image.Auto,
			})
			if err != nil {
				return fmt.Errorf("mount slot %d: %w", idx, err)
			}
			return output.Print(os.Stdout, getFormat(), slotList{infos: [disk.NumSlots]disk.SlotInfo{idx: info}})
		},
	}
	mountCmd.Flags().StringVar(&fsName, "fs", "flash", "Storage filesystem name to resolve path against")
	mountCmd.Flags().BoolVar(&readOnly, "read-only", false, "Mount read-only")
	mountCmd.Flags().BoolVarP(&interactiv, "interactive", "i", false, "Prompt for slot and path interactively")

	unmountCmd := &cobra.Command{
		Use:   "unmount <slot>",
		Short: "Unmount a disk slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp()
			idx, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			info, err := app.Disk.Unmount(idx)
			if err != nil {
				return fmt.Errorf("unmount slot %d: %w", idx, err)
			}
			return output.Print(os.Stdout, getFormat(), slotList{infos: [disk.NumSlots]disk.SlotInfo{idx: info}})
		},
	}

	cmd.AddCommand(listCmd, mountCmd, unmountCmd)
	return cmd
}

func parseSlot(s string) (int, error) {
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q: must be an integer", s)
	}
	if idx < 0 || idx >= disk.NumSlots {
		return 0, fmt.Errorf("slot %d out of range [0, %d)", idx, disk.NumSlots)
	}
	return idx, nil
}

func handleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}
