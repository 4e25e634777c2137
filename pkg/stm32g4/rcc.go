package stm32g4

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

// RCC is the reset and clock controller.
type RCC struct {
	p  *regmap.Peripheral
	mu sync.Mutex
}

// Peripheral returns the underlying register block.
func (r *RCC) Peripheral() *regmap.Peripheral { return r.p }

// EnableGPIO turns on the AHB2 clock of a GPIO port.
func (r *RCC) EnableGPIO(port byte) error {
	return r.setKey("AHB2ENR", "GPIOEN", string(port), 1)
}

// DisableGPIO turns off the AHB2 clock of a GPIO port.
func (r *RCC) DisableGPIO(port byte) error {
	return r.setKey("AHB2ENR", "GPIOEN", string(port), 0)
}

// EnableDMA turns on the AHB1 clock of DMAn.
func (r *RCC) EnableDMA(n int) error {
	return r.setKey("AHB1ENR", "DMAEN", fmt.Sprint(n), 1)
}

// EnableTimer turns on the clock of TIMn, on APB1 or APB2 depending on the
// timer.
func (r *RCC) EnableTimer(n int) error {
	return r.setAny([]string{"APB1ENR1", "APB2ENR"}, "TIMEN", n, 1)
}

// DisableTimer turns off the clock of TIMn.
func (r *RCC) DisableTimer(n int) error {
	return r.setAny([]string{"APB1ENR1", "APB2ENR"}, "TIMEN", n, 0)
}

// ResetTimer pulses the reset line of TIMn.
func (r *RCC) ResetTimer(n int) error {
	regs := []string{"APB1RSTR1", "APB2RSTR"}
	if err := r.setAny(regs, "TIMRST", n, 1); err != nil {
		return err
	}
	return r.setAny(regs, "TIMRST", n, 0)
}

// ResetFlags returns the names of the reset causes latched in CSR
// ("PINRSTF", "SFTRSTF", ...).
func (r *RCC) ResetFlags() ([]string, error) {
	csr := r.p.MustRegister("CSR")
	word, err := csr.Read()
	if err != nil {
		return nil, err
	}
	var flags []string
	for _, f := range csr.Fields() {
		if strings.HasSuffix(f.Name(), "RSTF") && f.Extract(word) != 0 {
			flags = append(flags, f.Name())
		}
	}
	return flags, nil
}

// ClearResetFlags sets RMVF, which clears every latched reset cause.
func (r *RCC) ClearResetFlags() error {
	return r.p.MustRegister("CSR").MustField("RMVF").SetLocked(&r.mu, 1)
}

func (r *RCC) setKey(register, family, key string, value uint32) error {
	fam, ok := r.p.MustRegister(register).Family(family)
	if !ok {
		return fmt.Errorf("stm32g4: %w: RCC.%s has no family %s", regmap.ErrNotFound, register, family)
	}
	f, err := fam.ResolveKey(key)
	if err != nil {
		return err
	}
	return f.SetLocked(&r.mu, value)
}

// setAny sets the family member on the first register that declares it.
func (r *RCC) setAny(registers []string, family string, index int, value uint32) error {
	var err error
	for _, name := range registers {
		var f *regmap.BitField
		f, err = member(r.p.MustRegister(name), family, index)
		if errors.Is(err, regmap.ErrUnknownIndex) {
			continue
		}
		if err != nil {
			return err
		}
		return f.SetLocked(&r.mu, value)
	}
	return err
}
