// Package regmap provides typed access to memory-mapped peripheral registers.
//
// A declaration tree is built top-down and accessed bottom-up:
//
//	Device
//	  └─ Peripheral   base address on an mmio.Bus
//	       └─ Register   offset, reset value, access mode
//	            └─ BitField   mask
//
// A BitField read delegates to its Register, which performs a single 32-bit
// load from Peripheral.Base()+Offset() through the bus. Nothing is cached.
//
// # Families
//
// Generated register maps declare numbered siblings with distinct names
// (TIM2RST, TIM3RST, ...). A Subscriptor exposes such a family through one
// pattern:
//
//	rst, _ := rcc.MustRegister("APB1RSTR1").Family("TIMRST") // "TIM{}RST"
//	f, err := rst.Resolve(3)                                  // TIM3RST
//	if errors.Is(err, regmap.ErrUnknownIndex) {
//		// no timer 3 on this part
//	}
//
// # Concurrency
//
// Register.Read and Register.Write are single accesses. BitField.Set is a
// read-modify-write and is not atomic: a writer that slips in between the
// read and the write loses its update. Registers shared between goroutines
// (or with an interrupt handler on a target) need a caller-supplied critical
// section, see BitField.SetLocked. Hardware set/clear aliases such as GPIO
// BSRR are declared AccessWriteOnly; Set on their fields is one store.
//
// # Errors
//
// Construction problems return *ConfigurationError (ErrConfiguration) and
// must abort assembly of the tree. Set with a value wider than the field
// returns *ValueOutOfRangeError, Subscriptor misses return
// *UnknownIndexError; both are recoverable. Accesses through declarations not
// obtained from a Peripheral return ErrUninitialized.
package regmap
