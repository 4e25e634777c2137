package regmap

import (
	"fmt"
	"math/bits"
)

// Register is one 32-bit word at a fixed offset from its peripheral's base.
// Every Read and Write is a single bus access; nothing is cached.
type Register struct {
	periph      *Peripheral
	offset      uint32
	reset       uint32
	access      Access
	name        string
	description string

	fields   []*BitField
	byName   map[string]*BitField
	families familySet[*BitField]
}

func (r *Register) Name() string        { return r.name }
func (r *Register) Description() string { return r.description }
func (r *Register) Offset() uint32      { return r.offset }
func (r *Register) Access() Access      { return r.access }

// ResetValue is the documented value after hardware reset. It is never
// applied implicitly; see Reset.
func (r *Register) ResetValue() uint32 { return r.reset }

// Peripheral returns the owning peripheral.
func (r *Register) Peripheral() *Peripheral { return r.periph }

// Address returns base + offset.
func (r *Register) Address() uint32 {
	if r.periph == nil {
		return r.offset
	}
	return r.periph.base + r.offset
}

// Path returns "PERIPH.REG".
func (r *Register) Path() string {
	if r.periph == nil {
		return r.name
	}
	return r.periph.name + "." + r.name
}

func (r *Register) String() string {
	return fmt.Sprintf("%s@0x%08X", r.Path(), r.Address())
}

func (r *Register) ready() error {
	if r == nil || r.periph == nil || r.periph.bus == nil {
		return ErrUninitialized
	}
	return nil
}

// Read performs one aligned 32-bit load from the register's address.
func (r *Register) Read() (uint32, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	if !r.access.CanRead() {
		return 0, fmt.Errorf("%w: %s is write-only", ErrAccess, r.Path())
	}
	v, err := r.periph.bus.Read32(r.Address())
	if err != nil {
		return 0, fmt.Errorf("regmap: read %s: %w", r.Path(), err)
	}
	return v, nil
}

// Write performs one aligned 32-bit store of value to the register's
// address.
func (r *Register) Write(value uint32) error {
	if err := r.ready(); err != nil {
		return err
	}
	if !r.access.CanWrite() {
		return fmt.Errorf("%w: %s is read-only", ErrAccess, r.Path())
	}
	if err := r.periph.bus.Write32(r.Address(), value); err != nil {
		return fmt.Errorf("regmap: write %s: %w", r.Path(), err)
	}
	return nil
}

// Reset writes the documented reset value.
func (r *Register) Reset() error {
	return r.Write(r.reset)
}

// HasBits reports whether every bit of mask is set.
func (r *Register) HasBits(mask uint32) (bool, error) {
	v, err := r.Read()
	if err != nil {
		return false, err
	}
	return v&mask == mask, nil
}

// SetBits sets the bits of mask with a read-modify-write. Like BitField.Set
// it is not atomic with respect to other writers.
func (r *Register) SetBits(mask uint32) error {
	v, err := r.Read()
	if err != nil {
		return err
	}
	return r.Write(v | mask)
}

// ClearBits clears the bits of mask with a read-modify-write.
func (r *Register) ClearBits(mask uint32) error {
	v, err := r.Read()
	if err != nil {
		return err
	}
	return r.Write(v &^ mask)
}

// AddField declares a bitfield on r. Masks of sibling fields are not checked
// for overlap.
func (r *Register) AddField(spec FieldSpec) (*BitField, error) {
	path := r.Path() + "." + spec.Name
	if spec.Name == "" {
		return nil, configErr("field", path, "empty name")
	}
	if spec.Mask == 0 {
		return nil, configErr("field", path, "zero mask")
	}
	if _, dup := r.byName[spec.Name]; dup {
		return nil, configErr("field", path, "duplicate name")
	}
	f := &BitField{
		reg:         r,
		mask:        spec.Mask,
		shift:       uint(bits.TrailingZeros32(spec.Mask)),
		name:        spec.Name,
		description: spec.Description,
	}
	r.fields = append(r.fields, f)
	r.byName[f.name] = f
	return f, nil
}

// Lookup returns the field called name.
func (r *Register) Lookup(name string) (*BitField, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// MustField is Lookup for declarations known to exist; it panics otherwise.
func (r *Register) MustField(name string) *BitField {
	f, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("regmap: %s has no field %s", r.Path(), name))
	}
	return f
}

// Fields returns the fields in declaration order.
func (r *Register) Fields() []*BitField {
	out := make([]*BitField, len(r.fields))
	copy(out, r.fields)
	return out
}

// AddFamily declares a Subscriptor over fields of r.
func (r *Register) AddFamily(name, pattern string) (*Subscriptor[*BitField], error) {
	return r.families.add(r, r.Path(), name, pattern)
}

// Family returns the Subscriptor registered as name.
func (r *Register) Family(name string) (*Subscriptor[*BitField], bool) {
	return r.families.get(name)
}

// Families lists family names in declaration order.
func (r *Register) Families() []string {
	return r.families.names()
}
