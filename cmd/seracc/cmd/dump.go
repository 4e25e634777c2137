package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

var dumpFields bool

var dumpCmd = &cobra.Command{
	Use:   "dump [PERIPHERAL...]",
	Short: "Read every register of one or more peripherals",
	Long: `Read every readable register of the named peripherals, or of the whole
device when none is given. Write-only registers are listed without a value.`,
	RunE: runOn(doDump),
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().BoolVarP(&dumpFields, "fields", "f", false, "decode every field")
}

func doDump(s *session, p *printer, args []string) error {
	periphs := s.dev.Peripherals()
	if len(args) > 0 {
		periphs = periphs[:0:0]
		for _, name := range args {
			t, err := s.dev.Resolve(name)
			if err != nil {
				return err
			}
			if t.Register != nil {
				return fmt.Errorf("%s is a register; use get", t.Path())
			}
			periphs = append(periphs, t.Peripheral)
		}
	}

	var out []wordJSON
	for _, periph := range periphs {
		for _, r := range periph.Registers() {
			if !r.Access().CanRead() {
				out = append(out, wordJSON{Path: r.Path(), Address: hex32(r.Address()), NoRead: true})
				continue
			}
			w, err := readTarget(regmap.Target{Peripheral: periph, Register: r}, dumpFields)
			if err != nil {
				return err
			}
			out = append(out, w)
		}
	}
	if p.json {
		return p.encode(out)
	}

	if p.tty {
		p.printf("%-10s  %-28s  %s\n", "ADDRESS", "REGISTER", "VALUE")
	}
	for _, w := range out {
		value := hex32(w.Value)
		if w.NoRead {
			value = "(write-only)"
		}
		p.printf("%-10s  %-28s  %s\n", w.Address, w.Path, value)
		for _, f := range w.Fields {
			if f.Value != 0 || p.tty {
				p.printf("%-10s    %-26s  %d\n", "", f.Name, f.Value)
			}
		}
	}
	return nil
}
