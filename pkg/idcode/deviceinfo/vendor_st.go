package deviceinfo

// STMicroelectronics STM32G4 entries
func init() {
	revs := map[uint16]string{
		0x1000: "A",
		0x1001: "Z",
		0x2000: "B",
		0x2001: "Y",
	}

	register(0x468, DeviceInfo{
		Name:        "STM32G431/441",
		Family:      "STM32G4",
		Category:    "Category 2",
		Description: "Arm Cortex-M4 MCU with FPU, 170 MHz",
		ARMCore:     "Cortex-M4",
		FlashKiB:    128,
		SRAMKiB:     32,
		GPIOPorts:   "A-G",
		DescFile:    "stm32g4.regs",
		revLetters:  revs,
	})

	register(0x469, DeviceInfo{
		Name:        "STM32G471/473/474/483/484",
		Family:      "STM32G4",
		Category:    "Category 3",
		Description: "Arm Cortex-M4 MCU with FPU, 170 MHz, HRTIM on G474/484",
		ARMCore:     "Cortex-M4",
		FlashKiB:    512,
		SRAMKiB:     128,
		GPIOPorts:   "A-G",
		DescFile:    "stm32g4.regs",
		revLetters:  revs,
	})

	register(0x479, DeviceInfo{
		Name:        "STM32G491/4A1",
		Family:      "STM32G4",
		Category:    "Category 4",
		Description: "Arm Cortex-M4 MCU with FPU, 170 MHz",
		ARMCore:     "Cortex-M4",
		FlashKiB:    512,
		SRAMKiB:     112,
		GPIOPorts:   "A-G",
		DescFile:    "stm32g4.regs",
		revLetters:  revs,
	})
}
