package cmd

import (
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve PATH",
	Short: "Show where a path points without touching the bus",
	Long: `Resolve a dotted path, including family subscripts, to its canonical name,
address, mask and access mode. No register is read.

Examples:
  seracc resolve GPIO[C].BSRR.BR[3]
  seracc resolve TIM[2].CCMR1[Input].IC1F`,
	Args: cobra.ExactArgs(1),
	RunE: runOn(doResolve),
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

type resolvedJSON struct {
	Path     string `json:"path"`
	Address  string `json:"address,omitempty"`
	Access   string `json:"access,omitempty"`
	Reset    string `json:"reset,omitempty"`
	Mask     string `json:"mask,omitempty"`
	Shift    uint   `json:"shift,omitempty"`
	Width    int    `json:"width,omitempty"`
	Families any    `json:"families,omitempty"`
}

func doResolve(s *session, p *printer, args []string) error {
	t, err := s.dev.Resolve(args[0])
	if err != nil {
		return err
	}
	out := resolvedJSON{Path: t.Path()}
	switch {
	case t.Field != nil:
		out.Address = hex32(t.Register.Address())
		out.Access = t.Register.Access().String()
		out.Mask = hex32(t.Field.Mask())
		out.Shift = t.Field.Shift()
		out.Width = t.Field.Width()
	case t.Register != nil:
		out.Address = hex32(t.Register.Address())
		out.Access = t.Register.Access().String()
		out.Reset = hex32(t.Register.ResetValue())
		if fams := t.Register.Families(); len(fams) > 0 {
			out.Families = fams
		}
	default:
		out.Address = hex32(t.Peripheral.Base())
		if fams := t.Peripheral.Families(); len(fams) > 0 {
			out.Families = fams
		}
	}
	if p.json {
		return p.encode(out)
	}

	p.printf("%s\n", out.Path)
	p.printf("  address  %s\n", out.Address)
	if out.Access != "" {
		p.printf("  access   %s\n", out.Access)
	}
	if out.Reset != "" {
		p.printf("  reset    %s\n", out.Reset)
	}
	if out.Mask != "" {
		p.printf("  mask     %s (shift %d, width %d)\n", out.Mask, out.Shift, out.Width)
	}
	if out.Families != nil {
		p.printf("  families %v\n", out.Families)
	}
	return nil
}
