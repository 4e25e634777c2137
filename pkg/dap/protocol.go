package dap

import (
	"encoding/binary"
	"fmt"
)

// CMSIS-DAP Command IDs
const (
	CmdInfo              = 0x00
	CmdHostStatus        = 0x01
	CmdConnect           = 0x02
	CmdDisconnect        = 0x03
	CmdTransferConfigure = 0x04
	CmdTransfer          = 0x05
	CmdResetTarget       = 0x0A
	CmdSWJClock          = 0x11
	CmdSWJSequence       = 0x12
	CmdSWDConfigure      = 0x13
	CmdJTAGConfigure     = 0x15
	CmdInvalid           = 0xFF
)

// DAP_Info Info IDs
const (
	InfoVendorID     = 0x01
	InfoProductID    = 0x02
	InfoSerialNum    = 0x03
	InfoFirmwareVer  = 0x04
	InfoCapabilities = 0xF0
	InfoPacketCount  = 0xFE
	InfoPacketSize   = 0xFF
)

// Connection ports
const (
	PortDefault = 0
	PortSWD     = 1
	PortJTAG    = 2
)

// Status codes
const (
	StatusOK    = 0x00
	StatusError = 0xFF
)

// DAP_Transfer request bits
const (
	ReqAPnDP      = 0x01
	ReqRnW        = 0x02
	ReqA2         = 0x04
	ReqA3         = 0x08
	ReqValueMatch = 0x10
	ReqMatchMask  = 0x20
)

// DAP_Transfer acknowledge values (bits [2:0] of the response byte)
const (
	AckOK       = 0x1
	AckWait     = 0x2
	AckFault    = 0x4
	AckNoAck    = 0x7
	AckMask     = 0x7
	AckProtoErr = 0x8
	AckMismatch = 0x10
)

// Protocol handles encoding/decoding of CMSIS-DAP commands
type Protocol struct {
	PacketSize int
}

// NewProtocol creates a new protocol handler
func NewProtocol(packetSize int) *Protocol {
	if packetSize <= 0 {
		packetSize = DefaultPacketSize
	}
	return &Protocol{PacketSize: packetSize}
}

func checkHeader(resp []byte, cmd byte, min int) error {
	if len(resp) < min {
		return fmt.Errorf("dap: response too short for command 0x%02X", cmd)
	}
	if resp[0] != cmd {
		return fmt.Errorf("dap: invalid command ID 0x%02X, want 0x%02X", resp[0], cmd)
	}
	return nil
}

func decodeStatus(resp []byte, cmd byte, what string) error {
	if err := checkHeader(resp, cmd, 2); err != nil {
		return err
	}
	if resp[1] != StatusOK {
		return fmt.Errorf("dap: %s failed", what)
	}
	return nil
}

// EncodeInfo builds a DAP_Info command
func (p *Protocol) EncodeInfo(infoID byte) []byte {
	return []byte{CmdInfo, infoID}
}

// DecodeInfo parses a string DAP_Info response
func (p *Protocol) DecodeInfo(resp []byte) (string, error) {
	if err := checkHeader(resp, CmdInfo, 2); err != nil {
		return "", err
	}
	length := int(resp[1])
	if len(resp) < 2+length {
		return "", fmt.Errorf("dap: incomplete info string")
	}
	// some probes include the terminating NUL in the length
	s := resp[2 : 2+length]
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s), nil
}

// DecodeInfoUint parses a numeric DAP_Info response (1, 2 or 4 bytes).
func (p *Protocol) DecodeInfoUint(resp []byte) (uint32, error) {
	if err := checkHeader(resp, CmdInfo, 2); err != nil {
		return 0, err
	}
	length := int(resp[1])
	if len(resp) < 2+length {
		return 0, fmt.Errorf("dap: incomplete info value")
	}
	switch length {
	case 1:
		return uint32(resp[2]), nil
	case 2:
		return uint32(binary.LittleEndian.Uint16(resp[2:4])), nil
	case 4:
		return binary.LittleEndian.Uint32(resp[2:6]), nil
	}
	return 0, fmt.Errorf("dap: unexpected info length %d", length)
}

// EncodeConnect builds a DAP_Connect command
func (p *Protocol) EncodeConnect(port byte) []byte {
	return []byte{CmdConnect, port}
}

// DecodeConnect parses a DAP_Connect response
func (p *Protocol) DecodeConnect(resp []byte) (byte, error) {
	if err := checkHeader(resp, CmdConnect, 2); err != nil {
		return 0, err
	}
	if resp[1] == 0 {
		return 0, fmt.Errorf("dap: connection failed")
	}
	return resp[1], nil
}

// EncodeDisconnect builds a DAP_Disconnect command
func (p *Protocol) EncodeDisconnect() []byte {
	return []byte{CmdDisconnect}
}

// DecodeDisconnect parses a DAP_Disconnect response
func (p *Protocol) DecodeDisconnect(resp []byte) error {
	return decodeStatus(resp, CmdDisconnect, "disconnect")
}

// EncodeSetClock builds a DAP_SWJ_Clock command
func (p *Protocol) EncodeSetClock(hz uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = CmdSWJClock
	binary.LittleEndian.PutUint32(cmd[1:], hz)
	return cmd
}

// DecodeSetClock parses response
func (p *Protocol) DecodeSetClock(resp []byte) error {
	return decodeStatus(resp, CmdSWJClock, "set clock")
}

// EncodeSWJSequence builds a DAP_SWJ_Sequence command clocking bits of data
// out on SWDIO/TMS, LSB first. 256 bits are encoded as a count of zero.
func (p *Protocol) EncodeSWJSequence(bits int, data []byte) ([]byte, error) {
	if bits <= 0 || bits > 256 {
		return nil, fmt.Errorf("dap: SWJ sequence length %d out of range [1, 256]", bits)
	}
	n := (bits + 7) / 8
	if len(data) < n {
		return nil, fmt.Errorf("dap: SWJ sequence needs %d bytes, got %d", n, len(data))
	}
	cmd := make([]byte, 2+n)
	cmd[0] = CmdSWJSequence
	cmd[1] = byte(bits) // 256 wraps to 0
	copy(cmd[2:], data[:n])
	return cmd, nil
}

// DecodeSWJSequence parses response
func (p *Protocol) DecodeSWJSequence(resp []byte) error {
	return decodeStatus(resp, CmdSWJSequence, "SWJ sequence")
}

// EncodeSWDConfigure builds a DAP_SWD_Configure command. turnaround is 1..4
// clock cycles; dataPhase forces a data phase on WAIT/FAULT.
func (p *Protocol) EncodeSWDConfigure(turnaround int, dataPhase bool) []byte {
	cfg := byte(0)
	if turnaround > 1 && turnaround <= 4 {
		cfg = byte(turnaround - 1)
	}
	if dataPhase {
		cfg |= 0x04
	}
	return []byte{CmdSWDConfigure, cfg}
}

// DecodeSWDConfigure parses response
func (p *Protocol) DecodeSWDConfigure(resp []byte) error {
	return decodeStatus(resp, CmdSWDConfigure, "SWD configure")
}

// EncodeTransferConfigure builds a DAP_TransferConfigure command
func (p *Protocol) EncodeTransferConfigure(idleCycles byte, waitRetry, matchRetry uint16) []byte {
	cmd := make([]byte, 6)
	cmd[0] = CmdTransferConfigure
	cmd[1] = idleCycles
	binary.LittleEndian.PutUint16(cmd[2:], waitRetry)
	binary.LittleEndian.PutUint16(cmd[4:], matchRetry)
	return cmd
}

// DecodeTransferConfigure parses response
func (p *Protocol) DecodeTransferConfigure(resp []byte) error {
	return decodeStatus(resp, CmdTransferConfigure, "transfer configure")
}

// Transfer is one DP or AP register access inside a DAP_Transfer command.
type Transfer struct {
	AP    bool
	Read  bool
	Addr  byte // register address, only A[3:2] is sent
	Value uint32
}

// Request returns the request byte of t.
func (t Transfer) Request() byte {
	req := t.Addr & (ReqA2 | ReqA3)
	if t.AP {
		req |= ReqAPnDP
	}
	if t.Read {
		req |= ReqRnW
	}
	return req
}

// EncodeTransfer builds a DAP_Transfer command for DAP index 0.
func (p *Protocol) EncodeTransfer(xfers []Transfer) ([]byte, error) {
	if len(xfers) == 0 || len(xfers) > 255 {
		return nil, fmt.Errorf("dap: transfer count %d out of range [1, 255]", len(xfers))
	}
	cmd := make([]byte, 3, 3+5*len(xfers))
	cmd[0] = CmdTransfer
	cmd[1] = 0
	cmd[2] = byte(len(xfers))
	reads := 0
	for _, x := range xfers {
		cmd = append(cmd, x.Request())
		if x.Read {
			reads++
			continue
		}
		cmd = binary.LittleEndian.AppendUint32(cmd, x.Value)
	}
	if len(cmd) > p.PacketSize {
		return nil, fmt.Errorf("dap: transfer command of %d bytes exceeds packet size %d", len(cmd), p.PacketSize)
	}
	if 3+4*reads > p.PacketSize {
		return nil, fmt.Errorf("dap: transfer response of %d reads exceeds packet size %d", reads, p.PacketSize)
	}
	return cmd, nil
}

// TransferError reports a DAP_Transfer that stopped early.
type TransferError struct {
	Completed int  // transfers executed before the failure
	Ack       byte // raw response byte
}

func (e *TransferError) Error() string {
	switch {
	case e.Ack&AckProtoErr != 0:
		return fmt.Sprintf("dap: transfer %d: SWD protocol error", e.Completed)
	case e.Ack&AckMismatch != 0:
		return fmt.Sprintf("dap: transfer %d: value mismatch", e.Completed)
	}
	switch e.Ack & AckMask {
	case AckWait:
		return fmt.Sprintf("dap: transfer %d: WAIT", e.Completed)
	case AckFault:
		return fmt.Sprintf("dap: transfer %d: FAULT", e.Completed)
	case AckNoAck:
		return fmt.Sprintf("dap: transfer %d: no target response", e.Completed)
	}
	return fmt.Sprintf("dap: transfer %d: ack 0x%02X", e.Completed, e.Ack)
}

// Fault reports whether the target answered FAULT, e.g. a bus error on a
// MEM-AP access.
func (e *TransferError) Fault() bool { return e.Ack&AckMask == AckFault }

// DecodeTransfer parses a DAP_Transfer response and returns the read data in
// request order.
func (p *Protocol) DecodeTransfer(resp []byte, xfers []Transfer) ([]uint32, error) {
	if err := checkHeader(resp, CmdTransfer, 3); err != nil {
		return nil, err
	}
	count, ack := int(resp[1]), resp[2]
	if count != len(xfers) || ack != AckOK {
		return nil, &TransferError{Completed: count, Ack: ack}
	}
	var data []uint32
	off := 3
	for _, x := range xfers {
		if !x.Read {
			continue
		}
		if off+4 > len(resp) {
			return nil, fmt.Errorf("dap: incomplete transfer data")
		}
		data = append(data, binary.LittleEndian.Uint32(resp[off:]))
		off += 4
	}
	return data, nil
}

// EncodeResetTarget builds a DAP_ResetTarget command
func (p *Protocol) EncodeResetTarget() []byte {
	return []byte{CmdResetTarget}
}

// DecodeResetTarget parses response
func (p *Protocol) DecodeResetTarget(resp []byte) error {
	return decodeStatus(resp, CmdResetTarget, "reset target")
}

// EncodeJTAGConfigure builds a DAP_JTAG_Configure command
func (p *Protocol) EncodeJTAGConfigure(irLengths []byte) []byte {
	cmd := make([]byte, 2+len(irLengths))
	cmd[0] = CmdJTAGConfigure
	cmd[1] = byte(len(irLengths))
	copy(cmd[2:], irLengths)
	return cmd
}

// DecodeJTAGConfigure parses response
func (p *Protocol) DecodeJTAGConfigure(resp []byte) error {
	return decodeStatus(resp, CmdJTAGConfigure, "JTAG configure")
}
