package mmio

import (
	"errors"
	"fmt"
)

// WordSize is the width of every access issued through a Bus, in bytes.
const WordSize = 4

// Bus abstracts a 32-bit memory-mapped address space. Implementations must
// perform exactly one aligned access per call and must never cache values
// between calls: peripheral registers change underneath software.
type Bus interface {
	Read32(addr uint32) (uint32, error)
	Write32(addr uint32, value uint32) error
}

var (
	// ErrUnaligned is returned for addresses that are not word aligned.
	ErrUnaligned = errors.New("mmio: unaligned access")
	// ErrOutOfRange is returned when an address falls outside a mapped window.
	ErrOutOfRange = errors.New("mmio: address out of range")
)

// CheckAligned validates that addr is usable for a 32-bit access.
func CheckAligned(addr uint32) error {
	if addr%WordSize != 0 {
		return fmt.Errorf("%w: 0x%08X", ErrUnaligned, addr)
	}
	return nil
}

// Window restricts a Bus to [Start, Start+Size). It is used to keep tooling
// from wandering outside the peripheral region of a target.
type Window struct {
	Bus   Bus
	Start uint32
	Size  uint32
}

// NewWindow wraps bus so only addresses in [start, start+size) are reachable.
func NewWindow(bus Bus, start, size uint32) *Window {
	return &Window{Bus: bus, Start: start, Size: size}
}

// Contains reports whether the full word at addr lies inside the window.
func (w *Window) Contains(addr uint32) bool {
	if addr < w.Start {
		return false
	}
	off := uint64(addr-w.Start) + WordSize
	return off <= uint64(w.Size)
}

func (w *Window) Read32(addr uint32) (uint32, error) {
	if !w.Contains(addr) {
		return 0, fmt.Errorf("%w: 0x%08X", ErrOutOfRange, addr)
	}
	return w.Bus.Read32(addr)
}

func (w *Window) Write32(addr uint32, value uint32) error {
	if !w.Contains(addr) {
		return fmt.Errorf("%w: 0x%08X", ErrOutOfRange, addr)
	}
	return w.Bus.Write32(addr, value)
}
