package regmap

import (
	"fmt"

	"github.com/OpenTraceLab/seracc/pkg/mmio"
)

// Peripheral is one memory-mapped peripheral instance: the anchor address of
// every register declared on it.
type Peripheral struct {
	bus         mmio.Bus
	base        uint32
	name        string
	description string

	registers []*Register
	byName    map[string]*Register
	families  familySet[*Register]
}

// NewPeripheral binds a peripheral named name to base on bus. The base must
// be word aligned.
func NewPeripheral(bus mmio.Bus, base uint32, name, description string) (*Peripheral, error) {
	if name == "" {
		return nil, configErr("peripheral", name, "empty name")
	}
	if bus == nil {
		return nil, configErr("peripheral", name, "nil bus")
	}
	if base%mmio.WordSize != 0 {
		return nil, configErr("peripheral", name, "base 0x%08X is not word aligned", base)
	}
	return &Peripheral{
		bus:         bus,
		base:        base,
		name:        name,
		description: description,
		byName:      make(map[string]*Register),
	}, nil
}

func (p *Peripheral) Base() uint32        { return p.base }
func (p *Peripheral) Name() string        { return p.name }
func (p *Peripheral) Description() string { return p.description }

// Bus returns the bus every register of p is accessed through.
func (p *Peripheral) Bus() mmio.Bus { return p.bus }

// AddRegister declares a register on p. Several registers may share an offset
// (mode-dependent views such as CCMR1_Output and CCMR1_Input); names must be
// unique.
func (p *Peripheral) AddRegister(spec RegisterSpec) (*Register, error) {
	path := p.name + "." + spec.Name
	if spec.Name == "" {
		return nil, configErr("register", path, "empty name")
	}
	if _, dup := p.byName[spec.Name]; dup {
		return nil, configErr("register", path, "duplicate name")
	}
	if spec.Offset%mmio.WordSize != 0 {
		return nil, configErr("register", path, "offset 0x%X is not word aligned", spec.Offset)
	}
	if uint64(p.base)+uint64(spec.Offset)+mmio.WordSize-1 > 0xFFFFFFFF {
		return nil, configErr("register", path, "address 0x%08X+0x%X overflows 32 bits", p.base, spec.Offset)
	}
	if spec.Access > AccessWriteOnly {
		return nil, configErr("register", path, "unknown access mode %d", spec.Access)
	}

	r := &Register{
		periph:      p,
		offset:      spec.Offset,
		reset:       spec.Reset,
		access:      spec.Access,
		name:        spec.Name,
		description: spec.Description,
		byName:      make(map[string]*BitField),
	}
	for _, f := range spec.Fields {
		if _, err := r.AddField(f); err != nil {
			return nil, err
		}
	}
	for _, fam := range spec.Families {
		if _, err := r.AddFamily(fam.Name, fam.Pattern); err != nil {
			return nil, err
		}
	}

	p.registers = append(p.registers, r)
	p.byName[r.name] = r
	return r, nil
}

// Lookup returns the register called name.
func (p *Peripheral) Lookup(name string) (*Register, bool) {
	r, ok := p.byName[name]
	return r, ok
}

// MustRegister is Lookup for declarations known to exist; it panics
// otherwise.
func (p *Peripheral) MustRegister(name string) *Register {
	r, ok := p.byName[name]
	if !ok {
		panic(fmt.Sprintf("regmap: %s has no register %s", p.name, name))
	}
	return r
}

// Registers returns the registers in declaration order.
func (p *Peripheral) Registers() []*Register {
	out := make([]*Register, len(p.registers))
	copy(out, p.registers)
	return out
}

// Views returns every register declared at offset, in declaration order.
// More than one entry means the hardware reinterprets the same word depending
// on a mode selected elsewhere; picking the valid view is up to the caller.
func (p *Peripheral) Views(offset uint32) []*Register {
	var out []*Register
	for _, r := range p.registers {
		if r.offset == offset {
			out = append(out, r)
		}
	}
	return out
}

// AddFamily declares a Subscriptor over registers of p. An empty name
// derives it from the pattern ("TIM{}RST" -> "TIMRST").
func (p *Peripheral) AddFamily(name, pattern string) (*Subscriptor[*Register], error) {
	return p.families.add(p, p.name, name, pattern)
}

// Family returns the Subscriptor registered as name.
func (p *Peripheral) Family(name string) (*Subscriptor[*Register], bool) {
	return p.families.get(name)
}

// Families lists family names in declaration order.
func (p *Peripheral) Families() []string {
	return p.families.names()
}

func (p *Peripheral) String() string {
	return fmt.Sprintf("%s@0x%08X", p.name, p.base)
}
