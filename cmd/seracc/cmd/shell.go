package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/seracc/pkg/config"
	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive register shell",
	Long: `Open the bus once and read commands from the terminal. The shell accepts
get, set, read, write, resolve, dump and idcode with the same arguments as
the command line. Register paths complete with TAB.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

type shellOp struct {
	fn   func(*session, *printer, []string) error
	min  int
	max  int // -1: unbounded
	help string
}

var shellOps = map[string]shellOp{
	"get":     {doGet, 1, -1, "get PATH...          read registers or fields"},
	"set":     {doSet, 2, 2, "set PATH VALUE       write a register or field"},
	"read":    {doRead, 1, 2, "read ADDR [COUNT]    read raw words"},
	"write":   {doWrite, 2, 2, "write ADDR VALUE     write a raw word"},
	"resolve": {doResolve, 1, 1, "resolve PATH         show address and mask"},
	"dump":    {doDump, 0, -1, "dump [-f] [PERIPH]   read whole peripherals"},
	"idcode":  {doIDCode, 0, 0, "idcode               identify the device"},
}

func runShell(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	active = s
	defer func() {
		active = nil
		if err := s.close(); err != nil {
			logger.Warn("close bus", "err", err)
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.dev.Name() + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryFile:     historyFile(),
		AutoComplete:    newCompleter(s.dev),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	p := &printer{w: rl.Stdout(), json: jsonOut, tty: true}
	fmt.Fprintf(rl.Stdout(), "%s on %s bus, %d peripherals. Type 'help' for commands.\n",
		s.dev.Name(), cfg.Bus, len(s.dev.Peripherals()))

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		name, args := strings.ToLower(parts[0]), parts[1:]

		switch name {
		case "exit", "quit", "q":
			return nil
		case "help", "?":
			printShellHelp(rl.Stdout())
			continue
		}
		op, ok := shellOps[name]
		if !ok {
			fmt.Fprintf(rl.Stderr(), "unknown command %q\n", name)
			continue
		}
		if name == "dump" {
			args = dumpArgs(args)
		}
		if len(args) < op.min || (op.max >= 0 && len(args) > op.max) {
			fmt.Fprintf(rl.Stderr(), "usage: %s\n", op.help)
			continue
		}
		if err := op.fn(s, p, args); err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
	}
}

// dumpArgs strips the -f flag and sets dumpFields from it.
func dumpArgs(args []string) []string {
	dumpFields = false
	out := args[:0:0]
	for _, a := range args {
		if a == "-f" || a == "--fields" {
			dumpFields = true
			continue
		}
		out = append(out, a)
	}
	return out
}

func printShellHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	for _, name := range []string{"get", "set", "read", "write", "resolve", "dump", "idcode"} {
		fmt.Fprintf(w, "  %s\n", shellOps[name].help)
	}
	fmt.Fprintln(w, "  exit                 leave the shell")
}

// historyFile keeps the shell history next to the settings file.
func historyFile() string {
	path := configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return ""
		}
		path = p
	}
	return filepath.Join(filepath.Dir(path), "history")
}

// newCompleter completes command names, then peripheral and register paths.
func newCompleter(dev *regmap.Device) *readline.PrefixCompleter {
	paths := func(string) []string {
		var out []string
		for _, p := range dev.Peripherals() {
			out = append(out, p.Name())
			for _, r := range p.Registers() {
				out = append(out, r.Path())
			}
		}
		return out
	}
	var items []readline.PrefixCompleterInterface
	for _, name := range []string{"get", "set", "resolve", "dump"} {
		items = append(items, readline.PcItem(name, readline.PcItemDynamic(paths)))
	}
	for _, name := range []string{"read", "write", "idcode", "help", "exit"} {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}
