package dap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// Raspberry Pi debugprobe / picoprobe CMSIS-DAP firmware
	VendorIDRaspberryPi = 0x2E8A
	ProductIDCMSISDAP   = 0x000C

	// Default packet size for CMSIS-DAP v1/v2
	DefaultPacketSize = 64
	DefaultTimeout    = 5 * time.Second
)

// Transport carries one CMSIS-DAP command and its response.
type Transport interface {
	WriteRead(cmd []byte) ([]byte, error)
	PacketSize() int
	Close() error
}

// USBTransport handles USB communication with a CMSIS-DAP v2 probe over its
// vendor-class bulk endpoints.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
}

// NewUSBTransport opens the probe with the given VID/PID. A non-empty serial
// selects one probe when several identical ones are attached.
func NewUSBTransport(vid, pid uint16, serial string) (*USBTransport, error) {
	ctx := gousb.NewContext()

	dev, err := openDevice(ctx, vid, pid, serial)
	if err != nil {
		ctx.Close()
		return nil, err
	}

	// Not supported on every platform; claiming fails later if it mattered.
	_ = dev.SetAutoDetach(true)

	t := &USBTransport{
		ctx:        ctx,
		dev:        dev,
		packetSize: DefaultPacketSize,
		timeout:    DefaultTimeout,
	}
	if err := t.claimInterface(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return t, nil
}

func openDevice(ctx *gousb.Context, vid, pid uint16, serial string) (*gousb.Device, error) {
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == vid && uint16(desc.Product) == pid
	})
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("dap: USB error: %w", err)
	}

	var found *gousb.Device
	for _, d := range devs {
		if found == nil {
			if serial == "" {
				found = d
				continue
			}
			if s, _ := d.SerialNumber(); s == serial {
				found = d
				continue
			}
		}
		d.Close()
	}
	if found == nil {
		if serial != "" {
			return nil, fmt.Errorf("dap: device not found (VID:0x%04X PID:0x%04X serial %q)", vid, pid, serial)
		}
		return nil, fmt.Errorf("dap: device not found (VID:0x%04X PID:0x%04X)", vid, pid)
	}
	return found, nil
}

// claimInterface finds and claims the CMSIS-DAP vendor interface
func (t *USBTransport) claimInterface() error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("dap: failed to get config: %w", err)
	}
	t.cfg = cfg

	vendorIntfNum := -1
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) > 0 && intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			vendorIntfNum = intf.Number
			break
		}
	}
	if vendorIntfNum == -1 {
		vendorIntfNum = 0
	}

	intf, err := cfg.Interface(vendorIntfNum, 0)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("dap: failed to claim interface %d: %w", vendorIntfNum, err)
	}
	t.intf = intf

	if err := t.findEndpoints(); err != nil {
		intf.Close()
		cfg.Close()
		return err
	}
	return nil
}

// findEndpoints discovers the bulk IN and OUT endpoints
func (t *USBTransport) findEndpoints() error {
	var outAddr, inAddr int
	for _, ep := range t.intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch {
		case ep.Direction == gousb.EndpointDirectionOut && outAddr == 0:
			outAddr = ep.Number
		case ep.Direction == gousb.EndpointDirectionIn && inAddr == 0:
			inAddr = ep.Number
			t.packetSize = ep.MaxPacketSize
		}
	}
	if outAddr == 0 {
		return fmt.Errorf("dap: bulk OUT endpoint not found")
	}
	if inAddr == 0 {
		return fmt.Errorf("dap: bulk IN endpoint not found")
	}

	epOut, err := t.intf.OutEndpoint(outAddr)
	if err != nil {
		return fmt.Errorf("dap: failed to open OUT endpoint: %w", err)
	}
	t.epOut = epOut

	epIn, err := t.intf.InEndpoint(inAddr)
	if err != nil {
		return fmt.Errorf("dap: failed to open IN endpoint: %w", err)
	}
	t.epIn = epIn
	return nil
}

// WriteRead performs a command/response transaction. The command is padded to
// the packet size and the response must echo the command ID.
func (t *USBTransport) WriteRead(cmd []byte) ([]byte, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("dap: empty command")
	}
	if len(cmd) > t.packetSize {
		return nil, fmt.Errorf("dap: command of %d bytes exceeds packet size %d", len(cmd), t.packetSize)
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	packet := make([]byte, t.packetSize)
	copy(packet, cmd)
	if _, err := t.epOut.WriteContext(ctx, packet); err != nil {
		return nil, fmt.Errorf("dap: USB write failed: %w", err)
	}

	resp := make([]byte, t.packetSize)
	n, err := t.epIn.ReadContext(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("dap: USB read failed: %w", err)
	}
	if n == 0 || resp[0] != cmd[0] {
		return nil, fmt.Errorf("dap: response does not match command 0x%02X", cmd[0])
	}
	return resp[:n], nil
}

// PacketSize returns the bulk packet size discovered from the IN endpoint.
func (t *USBTransport) PacketSize() int {
	return t.packetSize
}

// SetTimeout sets the per-transaction timeout
func (t *USBTransport) SetTimeout(timeout time.Duration) {
	t.timeout = timeout
}

// Close releases USB resources
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}
