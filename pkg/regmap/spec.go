package regmap

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/seracc/pkg/mmio"
)

// Access is the software access mode of a register.
type Access uint8

const (
	AccessReadWrite Access = iota
	AccessReadOnly
	// AccessWriteOnly registers are store-only aliases, typically the
	// hardware-atomic set/clear registers (BSRR, BRR).
	AccessWriteOnly
)

func (a Access) CanRead() bool  { return a != AccessWriteOnly }
func (a Access) CanWrite() bool { return a != AccessReadOnly }

func (a Access) String() string {
	switch a {
	case AccessReadWrite:
		return "rw"
	case AccessReadOnly:
		return "ro"
	case AccessWriteOnly:
		return "wo"
	default:
		return fmt.Sprintf("Access(%d)", uint8(a))
	}
}

// ParseAccess accepts "rw", "ro" and "wo" (case-insensitive).
func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(s) {
	case "", "rw", "read-write":
		return AccessReadWrite, nil
	case "ro", "read-only":
		return AccessReadOnly, nil
	case "wo", "write-only":
		return AccessWriteOnly, nil
	}
	return 0, fmt.Errorf("%w: unknown access %q", ErrConfiguration, s)
}

// FieldSpec declares a bitfield.
type FieldSpec struct {
	Name        string
	Mask        uint32
	Description string
}

// FamilySpec declares a Subscriptor. An empty Name is derived from Pattern.
type FamilySpec struct {
	Name    string
	Pattern string
}

// RegisterSpec declares a register and its fields.
type RegisterSpec struct {
	Name        string
	Offset      uint32
	Reset       uint32
	Access      Access
	Description string
	Fields      []FieldSpec
	Families    []FamilySpec
}

// PeripheralSpec is a reusable peripheral layout. One spec can be
// instantiated at several bases: GPIOD..GPIOG share GPIOC's registers.
type PeripheralSpec struct {
	Name        string
	Base        uint32
	Description string
	Registers   []RegisterSpec
	Families    []FamilySpec
}

// Instantiate builds the peripheral tree described by s on bus. The first
// configuration error aborts construction; no partial tree is returned.
func (s PeripheralSpec) Instantiate(bus mmio.Bus) (*Peripheral, error) {
	p, err := NewPeripheral(bus, s.Base, s.Name, s.Description)
	if err != nil {
		return nil, err
	}
	for _, rs := range s.Registers {
		if _, err := p.AddRegister(rs); err != nil {
			return nil, err
		}
	}
	for _, fam := range s.Families {
		if _, err := p.AddFamily(fam.Name, fam.Pattern); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Rebase returns a copy of s bound to a different instance name and base.
// Register and field declarations are shared by value.
func (s PeripheralSpec) Rebase(name string, base uint32, description string) PeripheralSpec {
	out := s
	out.Name = name
	out.Base = base
	if description != "" {
		out.Description = description
	}
	return out
}

// Bit returns the mask of bit n.
func Bit(n uint) uint32 {
	return 1 << n
}

// BitRange returns the mask covering bits hi..lo inclusive. The arguments may
// be given in either order.
func BitRange(hi, lo uint) uint32 {
	if hi < lo {
		hi, lo = lo, hi
	}
	width := hi - lo + 1
	if width >= 32 {
		return 0xFFFFFFFF
	}
	return ((1 << width) - 1) << lo
}
