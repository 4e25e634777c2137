package stm32g4

import (
	"github.com/OpenTraceLab/seracc/pkg/mmio"
	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

// DefaultIDCode is the DBGMCU_IDCODE NewSim reports when none is given: a
// Category 3 part, revision Y.
const DefaultIDCode = 0x20016469

// NewSim returns simulated memory holding the reset state of every described
// register, with the side effects the accessors in this package rely on:
//
//   - GPIO BSRR and BRR update ODR; IDR reads back ODR
//   - RCC ready flags follow their enable bits, SWS follows SW, RMVF clears
//     the reset flags
//   - DMA IFCR clears ISR
//   - TIM EGR bits self-clear; SR flags are cleared by writing zero
func NewSim(idcode uint32) (*mmio.Memory, error) {
	d, err := Description()
	if err != nil {
		return nil, err
	}
	if idcode == 0 {
		idcode = DefaultIDCode
	}
	mem := mmio.NewMemory()
	for _, p := range d.Peripherals {
		for _, r := range p.Registers {
			if r.Access != regmap.AccessWriteOnly {
				mem.Preload(p.Base+r.Offset, r.Reset)
			}
		}
	}

	for _, p := range d.Peripherals {
		at := func(name string) uint32 {
			for _, r := range p.Registers {
				if r.Name == name {
					return p.Base + r.Offset
				}
			}
			return 0
		}
		switch {
		case p.Name == "RCC":
			mem.OnWrite(at("CR"), rccCRHook)
			mem.OnWrite(at("CFGR"), rccCFGRHook)
			mem.OnWrite(at("CSR"), rccCSRHook)
		case p.Name == "DBGMCU":
			mem.Preload(at("IDCODE"), idcode)
		case at("BSRR") != 0:
			mem.OnWrite(at("BSRR"), mmio.SetResetHook(mem, at("ODR")))
			mem.OnWrite(at("BRR"), mmio.ResetOnlyHook(mem, at("ODR")))
			mem.OnRead(at("IDR"), mmio.MirrorHook(mem, at("ODR")))
		case at("IFCR") != 0:
			mem.OnWrite(at("IFCR"), mmio.ClearHook(mem, at("ISR")))
		case at("EGR") != 0:
			mem.OnWrite(at("EGR"), func(_, _, _ uint32) uint32 { return 0 })
			mem.OnWrite(at("SR"), func(_, stored, written uint32) uint32 { return stored & written })
		}
	}
	return mem, nil
}

const (
	crHSION  = 1 << 8
	crHSIRDY = 1 << 10
	crHSEON  = 1 << 16
	crHSERDY = 1 << 17
	crPLLON  = 1 << 24
	crPLLRDY = 1 << 25

	csrRMVF  = 1 << 23
	csrFlags = 0xFE000000
)

func rccCRHook(_, _, written uint32) uint32 {
	v := written &^ (crHSIRDY | crHSERDY | crPLLRDY)
	if v&crHSION != 0 {
		v |= crHSIRDY
	}
	if v&crHSEON != 0 {
		v |= crHSERDY
	}
	if v&crPLLON != 0 {
		v |= crPLLRDY
	}
	return v
}

func rccCFGRHook(_, _, written uint32) uint32 {
	return written&^0xC | (written&0x3)<<2
}

func rccCSRHook(_, stored, written uint32) uint32 {
	flags := stored & csrFlags
	if written&csrRMVF != 0 {
		flags = 0
	}
	return written&^(csrFlags|csrRMVF) | flags
}
