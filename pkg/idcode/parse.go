package idcode

// DBGMCUIDCode is the address of DBGMCU_IDCODE on STM32G4 (and every other
// Cortex-M4/M7 STM32).
const DBGMCUIDCode = 0xE0042000

// ParseDPIDR splits a raw DPIDR value into its fields.
func ParseDPIDR(raw uint32) DPIDR {
	return DPIDR{
		Raw:          raw,
		Revision:     uint8((raw >> 28) & 0xF),
		PartNumber:   uint8((raw >> 20) & 0xFF),
		MinimalDP:    raw&(1<<16) != 0,
		Version:      uint8((raw >> 12) & 0xF),
		DesignerCode: uint16((raw >> 1) & 0x7FF),
		Valid:        raw&0x1 == 0x1,
	}
}

// ParseDBGMCU splits a raw DBGMCU_IDCODE value.
func ParseDBGMCU(raw uint32) DeviceID {
	return DeviceID{
		Raw:        raw,
		DeviceCode: uint16(raw & 0xFFF),
		Revision:   uint16(raw >> 16),
	}
}

// Bank returns the JEP106 continuation count encoded in code.
func Bank(code uint16) uint8 { return uint8(code>>7) & 0xF }

// ID returns the 7-bit JEP106 identity encoded in code.
func ID(code uint16) uint8 { return uint8(code & 0x7F) }
