package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/seracc/pkg/config"
)

var (
	// Global flags
	verbose    bool
	busKind    string
	descFiles  []string
	configPath string
	jsonOut    bool
	probeSer   string
	clockHz    uint32
	simIDCode  uint32

	cfg    *config.Config
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

var rootCmd = &cobra.Command{
	Use:   "seracc",
	Short: "STM32 register access tool",
	Long: `Read and modify the peripheral registers of an STM32G4 by name, through a
CMSIS-DAP debug probe, /dev/mem, or a built-in simulator.

Registers and fields are addressed with dotted paths. Numbered families can be
indexed: GPIO[A].ODR.OD[5] is GPIOA.ODR.OD5, RCC.AHB1ENR.DMAEN[2] is DMA2EN.

Examples:
  seracc get RCC.AHB1ENR                         # Read a register (simulator)
  seracc --bus dap set GPIO[A].MODER.MODE[5] 1   # Configure PA5 as output
  seracc --bus dap dump GPIOA RCC                # Dump peripherals
  seracc --desc board.regs resolve UART1.CR1     # Use another description`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging on stderr)")
	pf.StringVarP(&busKind, "bus", "b", config.BusSim, "register bus: sim, dap or devmem")
	pf.StringSliceVarP(&descFiles, "desc", "d", nil, "register description files (default: embedded STM32G4)")
	pf.StringVarP(&configPath, "config", "c", "", "settings file (default: user config dir)")
	pf.BoolVar(&jsonOut, "json", false, "print results as JSON")
	pf.StringVar(&probeSer, "serial", "", "probe serial number (if multiple probes)")
	pf.Uint32Var(&clockHz, "clock", 1_000_000, "SWD clock in Hz")
	pf.Uint32Var(&simIDCode, "sim-idcode", 0, "simulator: DBGMCU_IDCODE to report")
}

// setup loads the settings file, lets explicitly given flags override it and
// validates the result.
func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	c, err := config.Read(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("bus") || c.Bus == "" {
		c.Bus = busKind
	}
	if flags.Changed("desc") {
		c.Descriptions = descFiles
	}
	if flags.Changed("serial") {
		c.Probe.Serial = probeSer
	}
	if flags.Changed("clock") {
		c.Probe.ClockHz = clockHz
	}
	if flags.Changed("sim-idcode") {
		c.SimIDCode = simIDCode
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	logger.Debug("settings", "bus", cfg.Bus, "descriptions", cfg.Descriptions)
	return nil
}
