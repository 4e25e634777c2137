package stm32g4

import (
	"sync"

	"github.com/OpenTraceLab/seracc/pkg/idcode"
	"github.com/OpenTraceLab/seracc/pkg/idcode/deviceinfo"
	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

// DBGMCU is the MCU debug component.
type DBGMCU struct {
	p  *regmap.Peripheral
	mu sync.Mutex
}

// Peripheral returns the underlying register block.
func (d *DBGMCU) Peripheral() *regmap.Peripheral { return d.p }

// IDCode reads and decodes DBGMCU_IDCODE.
func (d *DBGMCU) IDCode() (idcode.DeviceID, error) {
	raw, err := d.p.MustRegister("IDCODE").Read()
	if err != nil {
		return idcode.DeviceID{}, err
	}
	return idcode.ParseDBGMCU(raw), nil
}

// Identify looks the part up in the device database.
func (d *DBGMCU) Identify() (deviceinfo.DeviceInfo, error) {
	id, err := d.IDCode()
	if err != nil {
		return deviceinfo.DeviceInfo{}, err
	}
	return deviceinfo.Lookup(id.Raw), nil
}

// FreezeTimer stops TIMn while the core is halted by the debugger.
func (d *DBGMCU) FreezeTimer(n int, freeze bool) error {
	f, err := member(d.p.MustRegister("APB1FZR1"), "DBG_TIM_STOP", n)
	if err != nil {
		return err
	}
	return f.SetLocked(&d.mu, b2u(freeze))
}

// KeepDebugInLowPower keeps the debug connection alive in sleep, stop and
// standby modes.
func (d *DBGMCU) KeepDebugInLowPower(on bool) error {
	cr := d.p.MustRegister("CR")
	mask := cr.MustField("DBG_SLEEP").Mask() | cr.MustField("DBG_STOP").Mask() | cr.MustField("DBG_STANDBY").Mask()
	d.mu.Lock()
	defer d.mu.Unlock()
	if on {
		return cr.SetBits(mask)
	}
	return cr.ClearBits(mask)
}
