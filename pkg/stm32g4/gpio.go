package stm32g4

import (
	"sync"

	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

// Mode is the MODER setting of a pin.
type Mode uint32

const (
	ModeInput Mode = iota
	ModeOutput
	ModeAlternate
	ModeAnalog
)

func (m Mode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModeOutput:
		return "output"
	case ModeAlternate:
		return "alternate"
	case ModeAnalog:
		return "analog"
	}
	return "Mode(?)"
}

// Pull is the PUPDR setting of a pin.
type Pull uint32

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// GPIO is one general-purpose I/O port. Pins are numbered 0..15; other pins
// fail with regmap.ErrUnknownIndex.
type GPIO struct {
	p    *regmap.Peripheral
	port byte
	mu   sync.Mutex
}

// Port returns the port letter.
func (g *GPIO) Port() byte { return g.port }

// Peripheral returns the underlying register block.
func (g *GPIO) Peripheral() *regmap.Peripheral { return g.p }

func (g *GPIO) pin(register, family string, pin int) (*regmap.BitField, error) {
	return member(g.p.MustRegister(register), family, pin)
}

// SetMode configures a pin as input, output, alternate function or analog.
func (g *GPIO) SetMode(pin int, m Mode) error {
	f, err := g.pin("MODER", "MODE", pin)
	if err != nil {
		return err
	}
	return f.SetLocked(&g.mu, uint32(m))
}

// Mode returns the configured mode of a pin.
func (g *GPIO) Mode(pin int) (Mode, error) {
	f, err := g.pin("MODER", "MODE", pin)
	if err != nil {
		return 0, err
	}
	v, err := f.Get()
	return Mode(v), err
}

// SetPull configures the pull resistor of a pin.
func (g *GPIO) SetPull(pin int, p Pull) error {
	f, err := g.pin("PUPDR", "PUPD", pin)
	if err != nil {
		return err
	}
	return f.SetLocked(&g.mu, uint32(p))
}

// SetAlternate selects alternate function af (0..15) for a pin.
func (g *GPIO) SetAlternate(pin int, af uint32) error {
	register := "AFRL"
	if pin >= 8 {
		register = "AFRH"
	}
	f, err := g.pin(register, "AFSEL", pin)
	if err != nil {
		return err
	}
	return f.SetLocked(&g.mu, af)
}

// Set drives a pin high with a single store to BSRR.
func (g *GPIO) Set(pin int) error {
	f, err := g.pin("BSRR", "BS", pin)
	if err != nil {
		return err
	}
	return f.Set(1)
}

// Reset drives a pin low with a single store to BRR.
func (g *GPIO) Reset(pin int) error {
	f, err := g.pin("BRR", "BR", pin)
	if err != nil {
		return err
	}
	return f.Set(1)
}

// Write drives a pin to level.
func (g *GPIO) Write(pin int, level bool) error {
	if level {
		return g.Set(pin)
	}
	return g.Reset(pin)
}

// Read returns the input level of a pin.
func (g *GPIO) Read(pin int) (bool, error) {
	f, err := g.pin("IDR", "ID", pin)
	if err != nil {
		return false, err
	}
	return f.IsSet()
}

// Output returns the level the output data register drives on a pin.
func (g *GPIO) Output(pin int) (bool, error) {
	f, err := g.pin("ODR", "OD", pin)
	if err != nil {
		return false, err
	}
	return f.IsSet()
}
