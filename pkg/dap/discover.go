package dap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// ProbeKind categorizes probe families.
type ProbeKind string

const (
	ProbeKindCMSISDAP ProbeKind = "cmsis-dap"
	ProbeKindSim      ProbeKind = "simulator"
)

// ProbeInfo describes a detected probe.
type ProbeInfo struct {
	Kind        ProbeKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string
}

// Label returns a user-friendly description for the probe.
func (i ProbeInfo) Label() string {
	label := i.Description
	if label == "" {
		label = fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
	}
	if i.Serial != "" {
		label += " [" + i.Serial + "]"
	}
	return label
}

// DiscoverProbes enumerates connected CMSIS-DAP probes that match known
// VID/PID pairs. The simulator entry is always appended so callers can offer
// a hardware-free target.
func DiscoverProbes(ctx context.Context) ([]ProbeInfo, error) {
	var results []ProbeInfo
	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		_, ok := classifyUSBDevice(desc)
		return ok
	})
	for _, d := range devs {
		info, _ := classifyUSBDevice(d.Desc)
		info.Serial, _ = d.SerialNumber()
		results = append(results, info)
		d.Close()
	}
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, fmt.Errorf("dap: enumerate probes: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	results = append(results, ProbeInfo{
		Kind:        ProbeKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (ProbeInfo, bool) {
	for _, known := range knownProbes {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return ProbeInfo{
				Kind:        ProbeKindCMSISDAP,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return ProbeInfo{}, false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownProbes = []knownUSBDevice{
	{VendorID: VendorIDRaspberryPi, ProductID: ProductIDCMSISDAP, Description: "Raspberry Pi Debug Probe"},
	{VendorID: 0x0d28, ProductID: 0x0204, Description: "DAPLink CMSIS-DAP"},
	{VendorID: 0x1366, ProductID: 0x0101, Description: "SEGGER J-Link CMSIS-DAP"},
	{VendorID: 0xc251, ProductID: 0xf001, Description: "Keil ULINKplus"},
	{VendorID: 0x03eb, ProductID: 0x2141, Description: "Atmel-ICE CMSIS-DAP"},
}
