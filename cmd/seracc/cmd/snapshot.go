package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/seracc/pkg/snapshot"
)

var (
	snapLabel string
	snapDiff  string
	snapLive  bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save, restore and compare register snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save [FILE]",
	Short: "Capture every readable register to a file",
	Long: `Capture every readable register of the device to a CBOR file. Without FILE
the snapshot is written to the configured snapshot directory, named after
the capture time.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOn(doSnapshotSave),
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore FILE",
	Short: "Write a snapshot back to the device",
	Long: `Write every read-write register of a snapshot back to the device. Read-only
registers, write-only registers and side-effect aliases are left alone.`,
	Args: cobra.ExactArgs(1),
	RunE: runOn(doSnapshotRestore),
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Print a snapshot or its difference to another state",
	Long: `Print the words of a snapshot. With --diff the snapshot is compared to a
second file, with --live to the current device state.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotRestoreCmd, snapshotShowCmd)
	snapshotSaveCmd.Flags().StringVarP(&snapLabel, "label", "l", "", "free-form label stored with the snapshot")
	snapshotShowCmd.Flags().StringVar(&snapDiff, "diff", "", "compare against another snapshot file")
	snapshotShowCmd.Flags().BoolVar(&snapLive, "live", false, "compare against the device")
}

func doSnapshotSave(s *session, p *printer, args []string) error {
	snap, err := snapshot.Capture(s.dev, snapLabel)
	if err != nil {
		return err
	}
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		path = filepath.Join(cfg.SnapshotDir, snap.Taken.Format("20060102-150405")+".cbor")
	}
	if err := snapshot.Save(path, snap); err != nil {
		return err
	}
	logger.Info("snapshot saved", "path", path, "id", snap.ID, "words", len(snap.Words))
	p.printf("saved %d words to %s\n", len(snap.Words), path)
	return nil
}

func doSnapshotRestore(s *session, p *printer, args []string) error {
	snap, err := snapshot.Load(args[0])
	if err != nil {
		return err
	}
	n, err := snapshot.Restore(s.dev, snap)
	if err != nil {
		return err
	}
	p.printf("restored %d registers from %s\n", n, args[0])
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if snapDiff != "" && snapLive {
		return fmt.Errorf("--diff and --live are exclusive")
	}
	snap, err := snapshot.Load(args[0])
	if err != nil {
		return err
	}
	p := newPrinter(cmd)

	switch {
	case snapDiff != "":
		other, err := snapshot.Load(snapDiff)
		if err != nil {
			return err
		}
		return printDiff(p, snapshot.Diff(snap, other), nil)
	case snapLive:
		return withSession(cmd.Context(), func(s *session) error {
			live, err := snapshot.Capture(s.dev, "live")
			if err != nil {
				return err
			}
			return printDiff(p, snapshot.Diff(snap, live), s)
		})
	}

	if p.json {
		return p.encode(snap)
	}
	p.printf("%s  %s  %s", snap.ID, snap.Device, snap.Taken.Local().Format(time.DateTime))
	if snap.Label != "" {
		p.printf("  %q", snap.Label)
	}
	p.printf("\n")
	for _, a := range snap.Addresses() {
		p.printf("%s  %-28s  0x%08X\n", hex32(a), snap.Names[a], snap.Words[a])
	}
	return nil
}

type changeJSON struct {
	Address string                 `json:"address"`
	Name    string                 `json:"name,omitempty"`
	Before  *uint32                `json:"before"`
	After   *uint32                `json:"after"`
	Fields  []snapshot.FieldChange `json:"fields,omitempty"`
}

// printDiff lists changed words. With a session the changes are broken
// down to fields.
func printDiff(p *printer, changes []snapshot.Change, s *session) error {
	out := make([]changeJSON, 0, len(changes))
	for _, c := range changes {
		j := changeJSON{Address: hex32(c.Address), Name: c.Name}
		if c.InBefore {
			j.Before = &c.Before
		}
		if c.InAfter {
			j.After = &c.After
		}
		if s != nil && c.InBefore && c.InAfter {
			j.Fields = c.Fields(s.dev)
		}
		out = append(out, j)
	}
	if p.json {
		return p.encode(out)
	}

	if len(out) == 0 {
		p.printf("no differences\n")
		return nil
	}
	for _, c := range out {
		p.printf("%s  %-28s  %s -> %s\n", c.Address, c.Name, side(c.Before), side(c.After))
		for _, f := range c.Fields {
			p.printf("%-10s    %-26s  %d -> %d\n", "", f.Path, f.Before, f.After)
		}
	}
	return nil
}

func side(v *uint32) string {
	if v == nil {
		return "-"
	}
	return hex32(*v)
}
