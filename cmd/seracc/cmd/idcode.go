package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/seracc/pkg/idcode"
	"github.com/OpenTraceLab/seracc/pkg/idcode/deviceinfo"
)

var idcodeCmd = &cobra.Command{
	Use:   "idcode",
	Short: "Identify the target device",
	Long: `Read DBGMCU_IDCODE and look the part up in the device database. On a debug
probe the debug port IDR and the probe firmware are reported as well.`,
	Args: cobra.NoArgs,
	RunE: runOn(doIDCode),
}

func init() {
	rootCmd.AddCommand(idcodeCmd)
}

type identJSON struct {
	IDCode   string                `json:"idcode"`
	Device   deviceinfo.DeviceInfo `json:"device"`
	DPIDR    string                `json:"dpidr,omitempty"`
	Designer string                `json:"designer,omitempty"`
	Probe    string                `json:"probe,omitempty"`
	Firmware string                `json:"firmware,omitempty"`
}

func doIDCode(s *session, p *printer, args []string) error {
	t, err := s.dev.Resolve("DBGMCU.IDCODE")
	if err != nil {
		return fmt.Errorf("no DBGMCU in the register description: %w", err)
	}
	raw, err := t.Register.Read()
	if err != nil {
		return err
	}
	info := deviceinfo.Lookup(raw)
	out := identJSON{IDCode: hex32(raw), Device: info}
	if s.probe != nil {
		dp := idcode.ParseDPIDR(s.probe.DPIDR())
		m, _ := idcode.LookupDesigner(dp)
		fw := s.probe.Info()
		out.DPIDR = hex32(dp.Raw)
		out.Designer = m.Name
		out.Probe = fw.Product
		out.Firmware = fw.Firmware
	}
	if p.json {
		return p.encode(out)
	}

	p.printf("IDCODE    %s\n", out.IDCode)
	if !info.Known {
		p.printf("Device    unknown (DEV_ID 0x%03X, REV_ID 0x%04X)\n", info.ID.DeviceCode, info.ID.Revision)
	} else {
		p.printf("Device    %s (%s, %s)\n", info.Name, info.Family, info.Category)
		if info.Revision != "" {
			p.printf("Revision  %s\n", info.Revision)
		}
		p.printf("Core      %s, %d KiB flash, %d KiB SRAM, ports %s\n", info.ARMCore, info.FlashKiB, info.SRAMKiB, info.GPIOPorts)
	}
	if out.DPIDR != "" {
		p.printf("DPIDR     %s (%s)\n", out.DPIDR, out.Designer)
		p.printf("Probe     %s %s\n", out.Probe, out.Firmware)
	}
	return nil
}
