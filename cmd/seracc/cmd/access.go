package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/seracc/pkg/mmio"
	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

var readCmd = &cobra.Command{
	Use:   "read ADDRESS [COUNT]",
	Short: "Read raw 32-bit words",
	Long: `Read COUNT consecutive 32-bit words starting at ADDRESS, bypassing the
register description. ADDRESS must be word aligned.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runOn(doRead),
}

var writeCmd = &cobra.Command{
	Use:   "write ADDRESS VALUE",
	Short: "Write one raw 32-bit word",
	Args:  cobra.ExactArgs(2),
	RunE:  runOn(doWrite),
}

var getCmd = &cobra.Command{
	Use:   "get PATH...",
	Short: "Read registers or fields by name",
	Long: `Read registers or bitfields by dotted path. A register path prints the word,
a field path prints the field value right aligned.

Examples:
  seracc get RCC.AHB1ENR
  seracc get RCC.AHB1ENR.DMAEN[2] GPIO[A].MODER.MODE[5]`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOn(doGet),
}

var setCmd = &cobra.Command{
	Use:   "set PATH VALUE",
	Short: "Write a register or field by name",
	Long: `Write a register, or set a bitfield with a read-modify-write of its register.
On write-only set/reset registers (BSRR, BRR) a field set is a single store.

Examples:
  seracc set RCC.AHB2ENR.GPIOEN[A] 1
  seracc set GPIOA.BSRR.BS5 1`,
	Args: cobra.ExactArgs(2),
	RunE: runOn(doSet),
}

func init() {
	rootCmd.AddCommand(readCmd, writeCmd, getCmd, setCmd)
}

// runOn adapts a session operation to a cobra RunE.
func runOn(fn func(*session, *printer, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *session) error {
			return fn(s, newPrinter(cmd), args)
		})
	}
}

func doRead(s *session, p *printer, args []string) error {
	addr, err := parseUint32(args[0])
	if err != nil {
		return err
	}
	if err := mmio.CheckAligned(addr); err != nil {
		return err
	}
	count := uint32(1)
	if len(args) > 1 {
		if count, err = parseUint32(args[1]); err != nil {
			return err
		}
	}
	if count > 0 && uint64(addr)+uint64(count-1)*mmio.WordSize > 0xFFFFFFFF {
		return fmt.Errorf("reading %d words from %s runs past the end of the address space", count, hex32(addr))
	}

	var words []wordJSON
	for i := uint32(0); i < count; i++ {
		a := addr + i*mmio.WordSize
		v, err := s.bus.Read32(a)
		if err != nil {
			return err
		}
		words = append(words, wordJSON{Address: hex32(a), Value: v})
	}
	if p.json {
		return p.encode(words)
	}
	for _, w := range words {
		p.printf("%s: 0x%08X\n", w.Address, w.Value)
	}
	return nil
}

func doWrite(s *session, p *printer, args []string) error {
	addr, err := parseUint32(args[0])
	if err != nil {
		return err
	}
	v, err := parseUint32(args[1])
	if err != nil {
		return err
	}
	if err := s.bus.Write32(addr, v); err != nil {
		return err
	}
	logger.Debug("write", "addr", hex32(addr), "value", hex32(v))
	return nil
}

func doGet(s *session, p *printer, args []string) error {
	var out []wordJSON
	for _, path := range args {
		t, err := s.dev.Resolve(path)
		if err != nil {
			return err
		}
		w, err := readTarget(t, p.tty || p.json)
		if err != nil {
			return err
		}
		out = append(out, w)
	}
	if p.json {
		return p.encode(out)
	}
	for _, w := range out {
		printWord(p, w)
	}
	return nil
}

func doSet(s *session, p *printer, args []string) error {
	t, err := s.dev.Resolve(args[0])
	if err != nil {
		return err
	}
	v, err := parseUint32(args[1])
	if err != nil {
		return err
	}
	switch {
	case t.Field != nil:
		err = t.Field.Set(v)
	case t.Register != nil:
		err = t.Register.Write(v)
	default:
		return fmt.Errorf("%s is a peripheral; name a register or field", t.Path())
	}
	if err != nil {
		return err
	}
	logger.Debug("set", "path", t.Path(), "value", v)
	if !t.Register.Access().CanRead() {
		return nil
	}
	w, err := readTarget(t, false)
	if err != nil {
		return err
	}
	if p.json {
		return p.encode(w)
	}
	printWord(p, w)
	return nil
}

// readTarget reads a register or field. With fields set, a register read
// also decodes every field of the word.
func readTarget(t regmap.Target, fields bool) (wordJSON, error) {
	if t.Register == nil {
		return wordJSON{}, fmt.Errorf("%s is a peripheral; name a register or field", t.Path())
	}
	w := wordJSON{Path: t.Path(), Address: hex32(t.Register.Address())}
	if t.Field != nil {
		v, err := t.Field.Get()
		if err != nil {
			return w, err
		}
		w.Value, w.field = v, true
		return w, nil
	}
	word, err := t.Register.Read()
	if err != nil {
		return w, err
	}
	w.Value = word
	if fields {
		for _, f := range t.Register.Fields() {
			w.Fields = append(w.Fields, fieldJSON{Name: f.Name(), Value: f.Extract(word)})
		}
	}
	return w, nil
}

func printWord(p *printer, w wordJSON) {
	if w.field {
		p.printf("%s = %d (0x%X)\n", w.Path, w.Value, w.Value)
		return
	}
	p.printf("%s = 0x%08X\n", w.Path, w.Value)
	for _, f := range w.Fields {
		p.printf("  %-12s %d\n", f.Name, f.Value)
	}
}
