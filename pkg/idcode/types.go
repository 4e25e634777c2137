package idcode

// DPIDR is a parsed Arm debug port identification register.
type DPIDR struct {
	Raw          uint32
	Revision     uint8  // [31:28]
	PartNumber   uint8  // [27:20]
	MinimalDP    bool   // [16] MINDP, no transaction counter or pushed ops
	Version      uint8  // [15:12] DPv0..DPv3
	DesignerCode uint16 // [11:1] JEP106 continuation count and ID
	Valid        bool   // bit 0 reads as one
}

// DeviceID is a parsed STM32 DBGMCU_IDCODE.
type DeviceID struct {
	Raw        uint32
	DeviceCode uint16 // DEV_ID [11:0]
	Revision   uint16 // REV_ID [31:16]
}

// Manufacturer represents a JEP106 manufacturer entry
type Manufacturer struct {
	Code         uint16 // continuation count << 7 | ID
	Name         string // "STMicroelectronics"
	Abbreviation string // "STM"
}
