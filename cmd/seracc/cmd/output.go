package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// printer formats results for a terminal, a pipe or JSON consumers.
type printer struct {
	w    io.Writer
	json bool
	tty  bool // aligned tables and field breakdowns
}

func newPrinter(cmd *cobra.Command) *printer {
	w := cmd.OutOrStdout()
	p := &printer{w: w, json: jsonOut}
	if f, ok := w.(*os.File); ok {
		p.tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return p
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// wordJSON is one register or memory word in JSON output.
type wordJSON struct {
	Path    string      `json:"path,omitempty"`
	Address string      `json:"address"`
	Value   uint32      `json:"value"`
	NoRead  bool        `json:"write_only,omitempty"`
	Fields  []fieldJSON `json:"fields,omitempty"`

	field bool
}

type fieldJSON struct {
	Name  string `json:"name"`
	Value uint32 `json:"value"`
}

func hex32(v uint32) string { return fmt.Sprintf("0x%08X", v) }

// parseUint32 accepts decimal, 0x hex, 0o octal and 0b binary, with
// underscores between digits.
func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint32(v), nil
}
