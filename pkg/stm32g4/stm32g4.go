// Package stm32g4 declares the register tree of the STM32G4 series and wraps
// the most used peripherals in typed accessors.
//
// The tree is built from the embedded stm32g4.regs description. Take hands it
// out once per process so that only one owner drives the hardware:
//
//	dev, err := stm32g4.Take(bus)
//	if err != nil {
//		return err
//	}
//	rcc := dev.RCC()
//	if err := rcc.EnableGPIO('A'); err != nil {
//		return err
//	}
//	gpio, _ := dev.GPIO('A')
//	gpio.SetMode(5, stm32g4.ModeOutput)
//	gpio.Set(5)
package stm32g4

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/OpenTraceLab/seracc/pkg/mmio"
	"github.com/OpenTraceLab/seracc/pkg/regdesc"
	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

//go:embed stm32g4.regs
var source string

// ErrAlreadyTaken is returned by Take while a previous handle is live.
var ErrAlreadyTaken = errors.New("stm32g4: peripherals already taken")

var (
	descOnce sync.Once
	desc     *regdesc.Description
	descErr  error
)

// Source returns the embedded description text.
func Source() string { return source }

// Description returns the parsed embedded description. It is parsed once.
func Description() (*regdesc.Description, error) {
	descOnce.Do(func() {
		p, err := regdesc.NewParser()
		if err != nil {
			descErr = err
			return
		}
		f, err := p.ParseString("stm32g4.regs", source)
		if err != nil {
			descErr = err
			return
		}
		desc, descErr = regdesc.Resolve(f)
	})
	return desc, descErr
}

// Device is the STM32G4 register tree bound to one bus.
type Device struct {
	tree *regmap.Device

	mu     sync.Mutex
	rcc    *RCC
	dbg    *DBGMCU
	gpio   map[byte]*GPIO
	timers map[int]*Timer
	dmas   map[int]*DMA
}

// New builds the register tree on bus. Unlike Take it may be called any
// number of times; tooling that inspects several targets uses it directly.
func New(bus mmio.Bus) (*Device, error) {
	d, err := Description()
	if err != nil {
		return nil, err
	}
	tree, err := d.Build(bus)
	if err != nil {
		return nil, fmt.Errorf("stm32g4: %w", err)
	}
	return &Device{
		tree:   tree,
		gpio:   make(map[byte]*GPIO),
		timers: make(map[int]*Timer),
		dmas:   make(map[int]*DMA),
	}, nil
}

var (
	takeMu sync.Mutex
	taken  bool
)

// Take builds the register tree on bus and hands it out. Only one handle
// exists at a time; later calls fail with ErrAlreadyTaken until Release.
func Take(bus mmio.Bus) (*Device, error) {
	takeMu.Lock()
	defer takeMu.Unlock()
	if taken {
		return nil, ErrAlreadyTaken
	}
	d, err := New(bus)
	if err != nil {
		return nil, err
	}
	taken = true
	return d, nil
}

// Release gives the handle back so Take succeeds again. The released Device
// keeps working; callers must drop it.
func Release() {
	takeMu.Lock()
	taken = false
	takeMu.Unlock()
}

// Tree returns the generic register tree for path based access.
func (d *Device) Tree() *regmap.Device { return d.tree }

// Resolve is a shorthand for Tree().Resolve.
func (d *Device) Resolve(path string) (regmap.Target, error) {
	return d.tree.Resolve(path)
}

// RCC returns the reset and clock controller.
func (d *Device) RCC() *RCC {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rcc == nil {
		p, _ := d.tree.Lookup("RCC")
		d.rcc = &RCC{p: p}
	}
	return d.rcc
}

// DBGMCU returns the debug support block.
func (d *Device) DBGMCU() *DBGMCU {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dbg == nil {
		p, _ := d.tree.Lookup("DBGMCU")
		d.dbg = &DBGMCU{p: p}
	}
	return d.dbg
}

// GPIO returns the port with the given letter ('A'..'G').
func (d *Device) GPIO(port byte) (*GPIO, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if g, ok := d.gpio[port]; ok {
		return g, nil
	}
	p, err := d.family("GPIO", string(port))
	if err != nil {
		return nil, err
	}
	g := &GPIO{p: p, port: port}
	d.gpio[port] = g
	return g, nil
}

// Timer returns the general-purpose timer TIMn.
func (d *Device) Timer(n int) (*Timer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[n]; ok {
		return t, nil
	}
	p, err := d.family("TIM", fmt.Sprint(n))
	if err != nil {
		return nil, err
	}
	t := &Timer{p: p, n: n}
	d.timers[n] = t
	return t, nil
}

// DMA returns the DMA controller DMAn.
func (d *Device) DMA(n int) (*DMA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.dmas[n]; ok {
		return c, nil
	}
	p, err := d.family("DMA", fmt.Sprint(n))
	if err != nil {
		return nil, err
	}
	c := &DMA{p: p}
	d.dmas[n] = c
	return c, nil
}

func (d *Device) family(name, key string) (*regmap.Peripheral, error) {
	fam, ok := d.tree.Family(name)
	if !ok {
		return nil, fmt.Errorf("stm32g4: %w: family %s", regmap.ErrNotFound, name)
	}
	return fam.ResolveKey(key)
}

// member resolves one member of a register family, e.g. ("MODE", 5) on
// MODER gives MODE5.
func member(r *regmap.Register, family string, index int) (*regmap.BitField, error) {
	fam, ok := r.Family(family)
	if !ok {
		return nil, fmt.Errorf("stm32g4: %w: %s has no family %s", regmap.ErrNotFound, r.Path(), family)
	}
	return fam.Resolve(index)
}

// reg resolves one member of a peripheral register family.
func reg(p *regmap.Peripheral, family string, index int) (*regmap.Register, error) {
	fam, ok := p.Family(family)
	if !ok {
		return nil, fmt.Errorf("stm32g4: %w: %s has no family %s", regmap.ErrNotFound, p.Name(), family)
	}
	return fam.Resolve(index)
}
