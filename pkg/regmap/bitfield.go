package regmap

import (
	"fmt"
	"math/bits"
	"sync"
)

// BitField is a named, masked sub-range of a register. The mask is usually a
// contiguous run of ones but does not have to be.
type BitField struct {
	reg         *Register
	mask        uint32
	shift       uint
	name        string
	description string
}

func (f *BitField) Name() string        { return f.name }
func (f *BitField) Description() string { return f.description }
func (f *BitField) Mask() uint32        { return f.mask }

// Shift is the index of the lowest set bit of the mask.
func (f *BitField) Shift() uint { return f.shift }

// Width is the number of bits covered by the mask.
func (f *BitField) Width() int { return bits.OnesCount32(f.mask) }

// Max is the largest value Set accepts: mask >> Shift.
func (f *BitField) Max() uint32 { return f.mask >> f.shift }

// Register returns the owning register.
func (f *BitField) Register() *Register { return f.reg }

// Path returns "PERIPH.REG.FIELD".
func (f *BitField) Path() string {
	if f.reg == nil {
		return f.name
	}
	return f.reg.Path() + "." + f.name
}

func (f *BitField) String() string {
	return fmt.Sprintf("%s[0x%08X]", f.Path(), f.mask)
}

// Extract returns the field's right-aligned value within word.
func (f *BitField) Extract(word uint32) uint32 {
	return (word & f.mask) >> f.shift
}

// Insert returns word with the field replaced by value. Bits outside the
// mask are preserved. Values wider than the field, or that would land on a
// hole of a non-contiguous mask, are rejected rather than truncated.
func (f *BitField) Insert(word, value uint32) (uint32, error) {
	if value > f.Max() || (value<<f.shift)&^f.mask != 0 {
		return word, &ValueOutOfRangeError{Field: f.Path(), Value: value, Max: f.Max()}
	}
	return (word &^ f.mask) | (value << f.shift), nil
}

func (f *BitField) ready() error {
	if f == nil || f.reg == nil {
		return ErrUninitialized
	}
	return f.reg.ready()
}

// Get reads the register and returns the field value, right aligned.
func (f *BitField) Get() (uint32, error) {
	if err := f.ready(); err != nil {
		return 0, err
	}
	word, err := f.reg.Read()
	if err != nil {
		return 0, err
	}
	return f.Extract(word), nil
}

// IsSet reports whether any bit of the field is set.
func (f *BitField) IsSet() (bool, error) {
	v, err := f.Get()
	return v != 0, err
}

// Set stores value into the field. On read/write registers this is a
// read-modify-write: one Read, one Write, every bit outside the mask written
// back as it was read. It is not atomic; an interrupt or another goroutine
// writing the same register between the two accesses loses its update. Use
// SetLocked when the register is shared.
//
// On write-only registers (atomic set/clear aliases such as BSRR) Set is a
// single store of the shifted value with every other bit zero.
func (f *BitField) Set(value uint32) error {
	if err := f.ready(); err != nil {
		return err
	}
	if f.reg.access == AccessWriteOnly {
		word, err := f.Insert(0, value)
		if err != nil {
			return err
		}
		return f.reg.Write(word)
	}
	if _, err := f.Insert(0, value); err != nil {
		return err
	}
	word, err := f.reg.Read()
	if err != nil {
		return err
	}
	word, _ = f.Insert(word, value)
	return f.reg.Write(word)
}

// SetLocked runs Set while holding guard. The guard is the caller's critical
// section: a mutex shared by every writer of the register, or an
// interrupt-masking lock on targets that have one.
func (f *BitField) SetLocked(guard sync.Locker, value uint32) error {
	guard.Lock()
	defer guard.Unlock()
	return f.Set(value)
}
