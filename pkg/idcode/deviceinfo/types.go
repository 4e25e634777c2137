package deviceinfo

import "github.com/OpenTraceLab/seracc/pkg/idcode"

// DeviceInfo describes an STM32 part identified by its DBGMCU_IDCODE.
type DeviceInfo struct {
	ID idcode.DeviceID

	// Human-friendly
	Name        string // "STM32G471/473/474/483/484"
	Family      string // "STM32G4"
	Category    string // "Category 3"
	Description string
	Revision    string // silicon revision letter, "" when unknown

	ARMCore    string // "Cortex-M4"
	FlashKiB   int    // largest flash in the category
	SRAMKiB    int
	GPIOPorts  string // "A-G"
	DescFile   string // embedded register description covering the part
	Known      bool
	revLetters map[uint16]string
}
