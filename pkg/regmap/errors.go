package regmap

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. The typed errors below match the corresponding
// sentinel so callers can choose between errors.Is and errors.As.
var (
	// ErrConfiguration marks malformed declarations: bad addresses, zero
	// masks, bad patterns, duplicate names. Such errors abort tree assembly.
	ErrConfiguration = errors.New("regmap: invalid configuration")
	// ErrValueOutOfRange is returned by BitField.Set for values wider than
	// the field. The register is left unmodified.
	ErrValueOutOfRange = errors.New("regmap: value out of range")
	// ErrUnknownIndex is returned by Subscriptor lookups for an index that
	// has no declared sibling.
	ErrUnknownIndex = errors.New("regmap: unknown index")
	// ErrUninitialized is returned for accesses through a Register or
	// BitField that was not obtained from a constructed Peripheral.
	ErrUninitialized = errors.New("regmap: access through uninitialized declaration")
	// ErrAccess is returned when reading a write-only register or writing a
	// read-only one.
	ErrAccess = errors.New("regmap: access mode violation")
	// ErrNotFound is returned by path lookups naming an undeclared member.
	ErrNotFound = errors.New("regmap: not found")
)

// ConfigurationError describes a rejected declaration.
type ConfigurationError struct {
	Kind   string // "peripheral", "register", "field", "family" or "device"
	Name   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("regmap: invalid %s %q: %s", e.Kind, e.Name, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErr(kind, name, format string, args ...any) error {
	return &ConfigurationError{Kind: kind, Name: name, Reason: fmt.Sprintf(format, args...)}
}

// ValueOutOfRangeError reports a value that does not fit a field's mask.
type ValueOutOfRangeError struct {
	Field string // dotted path of the field
	Value uint32
	Max   uint32
}

func (e *ValueOutOfRangeError) Error() string {
	return fmt.Sprintf("regmap: value %d (0x%X) out of range for %s (max %d)", e.Value, e.Value, e.Field, e.Max)
}

// Is reports whether target is ErrValueOutOfRange.
func (e *ValueOutOfRangeError) Is(target error) bool {
	return target == ErrValueOutOfRange
}

// UnknownIndexError names the lookup key a Subscriptor could not resolve.
type UnknownIndexError struct {
	Owner   string
	Pattern string
	Key     string // substituted name that was looked up
}

func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("regmap: %s has no member %q (pattern %q)", e.Owner, e.Key, e.Pattern)
}

// Is reports whether target is ErrUnknownIndex.
func (e *UnknownIndexError) Is(target error) bool {
	return target == ErrUnknownIndex
}
