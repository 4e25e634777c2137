package dap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/OpenTraceLab/seracc/pkg/mmio"
)

// ErrBusFault is returned when the target's bus answers a MEM-AP access with
// an error (unmapped address, disabled peripheral clock on some parts).
var ErrBusFault = errors.New("dap: target bus fault")

// Bus is an mmio.Bus on a live target. Every Read32 and Write32 is one MEM-AP
// word access; the probe serialises concurrent callers.
type Bus struct {
	probe *Probe
	log   *slog.Logger
}

var _ mmio.Bus = (*Bus)(nil)

// NewBus returns a bus over a connected probe.
func NewBus(p *Probe, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bus{probe: p, log: logger}
}

// Probe returns the underlying probe.
func (b *Bus) Probe() *Probe { return b.probe }

func (b *Bus) Read32(addr uint32) (uint32, error) {
	if err := mmio.CheckAligned(addr); err != nil {
		return 0, err
	}
	v, err := b.probe.ReadMem32(addr)
	if err != nil {
		return 0, b.wrap("read", addr, err)
	}
	b.log.Debug("read32", "addr", fmt.Sprintf("0x%08X", addr), "value", fmt.Sprintf("0x%08X", v))
	return v, nil
}

func (b *Bus) Write32(addr, value uint32) error {
	if err := mmio.CheckAligned(addr); err != nil {
		return err
	}
	if err := b.probe.WriteMem32(addr, value); err != nil {
		return b.wrap("write", addr, err)
	}
	b.log.Debug("write32", "addr", fmt.Sprintf("0x%08X", addr), "value", fmt.Sprintf("0x%08X", value))
	return nil
}

func (b *Bus) wrap(op string, addr uint32, err error) error {
	var te *TransferError
	if errors.As(err, &te) && te.Fault() {
		return fmt.Errorf("dap: %s 0x%08X: %w: %w", op, addr, ErrBusFault, err)
	}
	return fmt.Errorf("dap: %s 0x%08X: %w", op, addr, err)
}

// Close closes the probe.
func (b *Bus) Close() error { return b.probe.Close() }
