package dap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// SW-DP register addresses
const (
	DPIDR    = 0x0 // read
	DPAbort  = 0x0 // write
	DPCtrl   = 0x4
	DPSelect = 0x8
	DPRdBuff = 0xC
)

// CTRL/STAT power-up request and acknowledge bits
const (
	CtrlCDBGPWRUPREQ = 1 << 28
	CtrlCDBGPWRUPACK = 1 << 29
	CtrlCSYSPWRUPREQ = 1 << 30
	CtrlCSYSPWRUPACK = 1 << 31
)

// ABORT clears all sticky error flags.
const AbortClearAll = 0x1E

// MEM-AP register addresses (bank in bits [7:4])
const (
	APCSW = 0x00
	APTAR = 0x04
	APDRW = 0x0C
	APIDR = 0xFC
)

// CSW values for 32-bit accesses without address increment.
const (
	CSWSize32     = 0x2
	CSWAddrIncOff = 0x0 << 4
	CSWDefault    = 0x23000000 | CSWSize32 | CSWAddrIncOff
)

// JTAG-to-SWD switch: line reset, 0xE79E, line reset, idle.
var swdSwitchSequence = []byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0x9E, 0xE7,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0x00,
}

const swdSwitchBits = 136

// ErrNotConnected is returned by register accesses before Connect.
var ErrNotConnected = errors.New("dap: probe not connected")

// FirmwareInfo is what the probe firmware reports through DAP_Info.
type FirmwareInfo struct {
	Vendor       string
	Product      string
	SerialNumber string
	Firmware     string
	PacketSize   int
}

// Probe drives a target's SW-DP and one MEM-AP through a CMSIS-DAP transport.
type Probe struct {
	transport Transport
	protocol  *Protocol
	log       *slog.Logger

	info      FirmwareInfo
	ap        uint8
	clockHz   uint32
	dpidr     uint32
	sel       uint32
	selValid  bool
	connected bool

	mu sync.Mutex
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithLogger routes probe diagnostics to l.
func WithLogger(l *slog.Logger) ProbeOption {
	return func(p *Probe) {
		if l != nil {
			p.log = l
		}
	}
}

// WithAP selects the MEM-AP index used for memory accesses (default 0).
func WithAP(ap uint8) ProbeOption {
	return func(p *Probe) { p.ap = ap }
}

// WithClock sets the SWD clock applied on Connect (default 1 MHz).
func WithClock(hz uint32) ProbeOption {
	return func(p *Probe) {
		if hz > 0 {
			p.clockHz = hz
		}
	}
}

// NewProbe wraps t. Nothing is sent until Connect.
func NewProbe(t Transport, opts ...ProbeOption) *Probe {
	p := &Probe{
		transport: t,
		protocol:  NewProtocol(t.PacketSize()),
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		clockHz:   1_000_000,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Info returns what the probe reported during Connect.
func (p *Probe) Info() FirmwareInfo { return p.info }

// DPIDR returns the debug port ID read during Connect.
func (p *Probe) DPIDR() uint32 { return p.dpidr }

// Connect queries the probe, switches the target to SWD, reads DPIDR, powers
// up the debug domain and programs the MEM-AP for word accesses.
// A failure after DAP_Connect disconnects again, leaving the probe unconnected.
func (p *Probe) Connect(ctx context.Context) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() {
		if err != nil && p.connected {
			p.disconnect()
		}
	}()

	if err := p.queryInfo(); err != nil {
		return fmt.Errorf("dap: query probe info: %w", err)
	}

	port, err := p.command(p.protocol.EncodeConnect(PortSWD), p.protocol.DecodeConnect)
	if err != nil {
		return err
	}
	if port != PortSWD {
		return fmt.Errorf("dap: probe connected port %d, want SWD", port)
	}
	p.connected = true

	steps := []struct {
		what string
		cmd  []byte
		dec  func([]byte) error
	}{
		{"clock", p.protocol.EncodeSetClock(p.clockHz), p.protocol.DecodeSetClock},
		{"transfer configure", p.protocol.EncodeTransferConfigure(0, 64, 0), p.protocol.DecodeTransferConfigure},
		{"SWD configure", p.protocol.EncodeSWDConfigure(1, false), p.protocol.DecodeSWDConfigure},
	}
	for _, s := range steps {
		resp, err := p.transport.WriteRead(s.cmd)
		if err != nil {
			return fmt.Errorf("dap: %s: %w", s.what, err)
		}
		if err := s.dec(resp); err != nil {
			return err
		}
	}

	seq, err := p.protocol.EncodeSWJSequence(swdSwitchBits, swdSwitchSequence)
	if err != nil {
		return err
	}
	resp, err := p.transport.WriteRead(seq)
	if err != nil {
		return fmt.Errorf("dap: SWD switch: %w", err)
	}
	if err := p.protocol.DecodeSWJSequence(resp); err != nil {
		return err
	}

	data, err := p.transfer([]Transfer{{Read: true, Addr: DPIDR}})
	if err != nil {
		return fmt.Errorf("dap: read DPIDR: %w", err)
	}
	p.dpidr = data[0]
	p.log.Debug("target connected", "dpidr", fmt.Sprintf("0x%08X", p.dpidr))

	if _, err := p.transfer([]Transfer{
		{Addr: DPAbort, Value: AbortClearAll},
		{Addr: DPSelect, Value: 0},
		{Addr: DPCtrl, Value: CtrlCSYSPWRUPREQ | CtrlCDBGPWRUPREQ},
	}); err != nil {
		return fmt.Errorf("dap: power-up request: %w", err)
	}
	p.sel, p.selValid = 0, true

	if err := p.waitPowerUp(ctx); err != nil {
		return err
	}

	if err := p.writeAP(APCSW, CSWDefault); err != nil {
		return fmt.Errorf("dap: program CSW: %w", err)
	}
	return nil
}

func (p *Probe) waitPowerUp(ctx context.Context) error {
	const want = CtrlCSYSPWRUPACK | CtrlCDBGPWRUPACK
	for attempt := 0; ; attempt++ {
		data, err := p.transfer([]Transfer{{Read: true, Addr: DPCtrl}})
		if err != nil {
			return fmt.Errorf("dap: read CTRL/STAT: %w", err)
		}
		if data[0]&want == want {
			return nil
		}
		if attempt >= 100 {
			return fmt.Errorf("dap: debug power-up not acknowledged (CTRL/STAT 0x%08X)", data[0])
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// queryInfo retrieves device information from the probe
func (p *Probe) queryInfo() error {
	str := func(id byte) string {
		resp, err := p.transport.WriteRead(p.protocol.EncodeInfo(id))
		if err != nil {
			return ""
		}
		s, _ := p.protocol.DecodeInfo(resp)
		return s
	}

	resp, err := p.transport.WriteRead(p.protocol.EncodeInfo(InfoPacketSize))
	if err != nil {
		return err
	}
	if size, err := p.protocol.DecodeInfoUint(resp); err == nil && size > 0 {
		p.info.PacketSize = int(size)
		// the transport pads to its own size; never encode more than both allow
		if int(size) < p.protocol.PacketSize {
			p.protocol.PacketSize = int(size)
		}
	}
	p.info.Vendor = str(InfoVendorID)
	p.info.Product = str(InfoProductID)
	p.info.SerialNumber = str(InfoSerialNum)
	p.info.Firmware = str(InfoFirmwareVer)
	p.log.Debug("probe info", "vendor", p.info.Vendor, "product", p.info.Product,
		"serial", p.info.SerialNumber, "firmware", p.info.Firmware, "packet", p.info.PacketSize)
	return nil
}

func (p *Probe) command(cmd []byte, dec func([]byte) (byte, error)) (byte, error) {
	resp, err := p.transport.WriteRead(cmd)
	if err != nil {
		return 0, err
	}
	return dec(resp)
}

func (p *Probe) transfer(xfers []Transfer) ([]uint32, error) {
	cmd, err := p.protocol.EncodeTransfer(xfers)
	if err != nil {
		return nil, err
	}
	resp, err := p.transport.WriteRead(cmd)
	if err != nil {
		return nil, err
	}
	data, err := p.protocol.DecodeTransfer(resp, xfers)
	if err != nil {
		var te *TransferError
		if errors.As(err, &te) && te.Ack&AckMask == AckFault {
			// sticky errors block every later access until cleared
			p.clearSticky()
		}
		return nil, err
	}
	return data, nil
}

func (p *Probe) clearSticky() {
	cmd, err := p.protocol.EncodeTransfer([]Transfer{{Addr: DPAbort, Value: AbortClearAll}})
	if err != nil {
		return
	}
	if _, err := p.transport.WriteRead(cmd); err != nil {
		p.log.Warn("clear sticky errors", "err", err)
	}
}

// selectFor returns the DP SELECT write needed before accessing AP register
// addr, or false when SELECT already holds the right bank.
func (p *Probe) selectFor(addr byte) (Transfer, bool) {
	sel := uint32(p.ap)<<24 | uint32(addr&0xF0)
	if p.selValid && p.sel == sel {
		return Transfer{}, false
	}
	p.sel, p.selValid = sel, true
	return Transfer{Addr: DPSelect, Value: sel}, true
}

func (p *Probe) apTransfers(xfers ...Transfer) []Transfer {
	var out []Transfer
	for _, x := range xfers {
		if x.AP {
			if s, ok := p.selectFor(x.Addr); ok {
				out = append(out, s)
			}
		}
		out = append(out, x)
	}
	return out
}

func (p *Probe) run(xfers ...Transfer) ([]uint32, error) {
	if !p.connected {
		return nil, ErrNotConnected
	}
	data, err := p.transfer(p.apTransfers(xfers...))
	if err != nil {
		// SELECT may or may not have been written
		p.selValid = false
	}
	return data, err
}

func (p *Probe) writeAP(addr byte, v uint32) error {
	_, err := p.run(Transfer{AP: true, Addr: addr, Value: v})
	return err
}

// ReadDP reads a debug port register.
func (p *Probe) ReadDP(addr byte) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := p.run(Transfer{Read: true, Addr: addr})
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// WriteDP writes a debug port register.
func (p *Probe) WriteDP(addr byte, v uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if addr == DPSelect {
		p.selValid = false
	}
	_, err := p.run(Transfer{Addr: addr, Value: v})
	return err
}

// ReadAP reads a register of the selected access port.
func (p *Probe) ReadAP(addr byte) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := p.run(Transfer{AP: true, Read: true, Addr: addr})
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// WriteAP writes a register of the selected access port.
func (p *Probe) WriteAP(addr byte, v uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeAP(addr, v)
}

// ReadMem32 reads one word through the MEM-AP: TAR then DRW in a single
// DAP_Transfer.
func (p *Probe) ReadMem32(addr uint32) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := p.run(
		Transfer{AP: true, Addr: APTAR, Value: addr},
		Transfer{AP: true, Read: true, Addr: APDRW},
	)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// WriteMem32 writes one word through the MEM-AP.
func (p *Probe) WriteMem32(addr, v uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.run(
		Transfer{AP: true, Addr: APTAR, Value: addr},
		Transfer{AP: true, Addr: APDRW, Value: v},
	)
	return err
}

// ResetTarget asserts the probe's hardware reset line.
func (p *Probe) ResetTarget() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	resp, err := p.transport.WriteRead(p.protocol.EncodeResetTarget())
	if err != nil {
		return fmt.Errorf("dap: reset target: %w", err)
	}
	p.selValid = false
	return p.protocol.DecodeResetTarget(resp)
}

// Close disconnects and releases the transport.
func (p *Probe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		p.disconnect()
	}
	return p.transport.Close()
}

func (p *Probe) disconnect() {
	if resp, err := p.transport.WriteRead(p.protocol.EncodeDisconnect()); err == nil {
		if err := p.protocol.DecodeDisconnect(resp); err != nil {
			p.log.Warn("disconnect", "err", err)
		}
	}
	p.connected, p.selValid = false, false
}
