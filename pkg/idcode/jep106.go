package idcode

import "fmt"

// manufacturers is the subset of the JEP106 database seen on Arm debug
// ports, keyed by continuation count << 7 | ID.
var manufacturers = map[uint16]Manufacturer{
	0x001: {Code: 0x001, Name: "AMD", Abbreviation: "AMD"},
	0x00E: {Code: 0x00E, Name: "Freescale (Motorola)", Abbreviation: "Freescale"},
	0x015: {Code: 0x015, Name: "NXP (Philips)", Abbreviation: "NXP"},
	0x017: {Code: 0x017, Name: "Texas Instruments", Abbreviation: "TI"},
	0x01F: {Code: 0x01F, Name: "Atmel", Abbreviation: "Atmel"},
	0x020: {Code: 0x020, Name: "STMicroelectronics", Abbreviation: "STM"},
	0x034: {Code: 0x034, Name: "Cypress", Abbreviation: "Cypress"},
	0x23B: {Code: 0x23B, Name: "ARM Ltd", Abbreviation: "ARM"},
	0x244: {Code: 0x244, Name: "Nordic Semiconductor", Abbreviation: "Nordic"},
}

// LookupManufacturer returns manufacturer info for a JEP106 code
func LookupManufacturer(code uint16) (Manufacturer, bool) {
	m, ok := manufacturers[code]
	if !ok {
		return Manufacturer{
			Code:         code,
			Name:         fmt.Sprintf("Unknown (bank %d, ID 0x%02X)", Bank(code), ID(code)),
			Abbreviation: "Unknown",
		}, false
	}
	return m, true
}

// LookupDesigner returns the designer of a debug port.
func LookupDesigner(id DPIDR) (Manufacturer, bool) {
	return LookupManufacturer(id.DesignerCode)
}

func (id DPIDR) String() string {
	m, _ := LookupDesigner(id)
	return fmt.Sprintf("0x%08X (designer %s, DPv%d, part 0x%02X, rev %d)",
		id.Raw, m.Abbreviation, id.Version, id.PartNumber, id.Revision)
}
