package stm32g4

import (
	"fmt"

	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

// Width is a DMA transfer size.
type Width uint32

const (
	Width8 Width = iota
	Width16
	Width32
)

// ChannelConfig describes one DMA channel transfer.
type ChannelConfig struct {
	Peripheral   uint32 // CPARx
	Memory       uint32 // CMARx
	Count        uint32 // CNDTRx, at most 0xFFFF
	FromMemory   bool   // DIR: memory to peripheral
	MemIncrement bool
	PerIncrement bool
	Circular     bool
	PeriphWidth  Width
	MemWidth     Width
	Priority     uint32 // 0 (low) .. 3 (very high)
	IRQComplete  bool
}

// ChannelFlags are the interrupt flags of one channel in ISR.
type ChannelFlags struct {
	Global       bool
	Complete     bool
	HalfComplete bool
	Error        bool
}

// DMA is a DMA controller. Channels are numbered 1..8.
type DMA struct {
	p *regmap.Peripheral
}

// Peripheral returns the underlying register block.
func (d *DMA) Peripheral() *regmap.Peripheral { return d.p }

// Configure programs a disabled channel. The CCRx word is assembled first and
// stored once.
func (d *DMA) Configure(ch int, cfg ChannelConfig) error {
	ccr, err := reg(d.p, "CCR", ch)
	if err != nil {
		return err
	}
	enabled, err := ccr.MustField("EN").IsSet()
	if err != nil {
		return err
	}
	if enabled {
		return fmt.Errorf("stm32g4: %s: channel is enabled", ccr.Path())
	}

	for _, w := range []struct {
		family string
		value  uint32
	}{
		{"CPAR", cfg.Peripheral},
		{"CMAR", cfg.Memory},
	} {
		r, err := reg(d.p, w.family, ch)
		if err != nil {
			return err
		}
		if err := r.Write(w.value); err != nil {
			return err
		}
	}
	cndtr, err := reg(d.p, "CNDTR", ch)
	if err != nil {
		return err
	}
	if err := cndtr.MustField("NDT").Set(cfg.Count); err != nil {
		return err
	}

	word := uint32(0)
	for _, f := range []struct {
		name  string
		value uint32
	}{
		{"DIR", b2u(cfg.FromMemory)},
		{"MINC", b2u(cfg.MemIncrement)},
		{"PINC", b2u(cfg.PerIncrement)},
		{"CIRC", b2u(cfg.Circular)},
		{"PSIZE", uint32(cfg.PeriphWidth)},
		{"MSIZE", uint32(cfg.MemWidth)},
		{"PL", cfg.Priority},
		{"TCIE", b2u(cfg.IRQComplete)},
	} {
		word, err = ccr.MustField(f.name).Insert(word, f.value)
		if err != nil {
			return err
		}
	}
	return ccr.Write(word)
}

// Enable starts a configured channel.
func (d *DMA) Enable(ch int) error {
	return d.enable(ch, 1)
}

// Disable stops a channel.
func (d *DMA) Disable(ch int) error {
	return d.enable(ch, 0)
}

func (d *DMA) enable(ch int, v uint32) error {
	ccr, err := reg(d.p, "CCR", ch)
	if err != nil {
		return err
	}
	return ccr.MustField("EN").Set(v)
}

// Remaining returns the number of transfers left on a channel.
func (d *DMA) Remaining(ch int) (uint32, error) {
	cndtr, err := reg(d.p, "CNDTR", ch)
	if err != nil {
		return 0, err
	}
	return cndtr.MustField("NDT").Get()
}

// Flags reads the interrupt flags of a channel.
func (d *DMA) Flags(ch int) (ChannelFlags, error) {
	isr := d.p.MustRegister("ISR")
	word, err := isr.Read()
	if err != nil {
		return ChannelFlags{}, err
	}
	var out ChannelFlags
	for _, fl := range []struct {
		family string
		dst    *bool
	}{
		{"GIF", &out.Global},
		{"TCIF", &out.Complete},
		{"HTIF", &out.HalfComplete},
		{"TEIF", &out.Error},
	} {
		f, err := member(isr, fl.family, ch)
		if err != nil {
			return ChannelFlags{}, err
		}
		*fl.dst = f.Extract(word) != 0
	}
	return out, nil
}

// ClearFlags clears every interrupt flag of a channel with one store to
// IFCR.
func (d *DMA) ClearFlags(ch int) error {
	ifcr := d.p.MustRegister("IFCR")
	word := uint32(0)
	for _, family := range []string{"CGIF", "CTCIF", "CHTIF", "CTEIF"} {
		f, err := member(ifcr, family, ch)
		if err != nil {
			return err
		}
		word |= f.Mask()
	}
	return ifcr.Write(word)
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
