package dap

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/OpenTraceLab/seracc/pkg/mmio"
)

// Identification values answered by SimTarget: a Cortex-M4 SW-DP and AHB-AP.
const (
	SimDPIDR = 0x2BA01477
	SimAPIDR = 0x24770011
)

const ctrlStickyErr = 1 << 5

// SimTarget is an in-memory Transport that answers CMSIS-DAP commands as a
// probe attached to a Cortex-M target would, with the target's memory backed
// by an mmio.Bus. It lets the whole Probe/Bus path run in tests.
type SimTarget struct {
	// OnReset is called for DAP_ResetTarget.
	OnReset func()

	mu       sync.Mutex
	mem      mmio.Bus
	closed   bool
	port     byte
	clockHz  uint32
	commands [][]byte

	ctrl    uint32
	sel     uint32
	csw     uint32
	tar     uint32
	rdbuff  uint32
	sticky  bool
	swdLive bool
}

var _ Transport = (*SimTarget)(nil)

// NewSimTarget returns a simulated probe whose target memory is mem.
func NewSimTarget(mem mmio.Bus) *SimTarget {
	return &SimTarget{mem: mem}
}

func (s *SimTarget) PacketSize() int { return DefaultPacketSize }

// Commands returns a copy of every command received, in order.
func (s *SimTarget) Commands() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.commands))
	for i, c := range s.commands {
		out[i] = append([]byte(nil), c...)
	}
	return out
}

// ClockHz returns the last SWJ clock requested.
func (s *SimTarget) ClockHz() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clockHz
}

// Connected reports whether a DAP_Connect is active.
func (s *SimTarget) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != 0
}

func (s *SimTarget) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *SimTarget) WriteRead(cmd []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("dap: simulator closed")
	}
	if len(cmd) == 0 {
		return nil, errors.New("dap: empty command")
	}
	s.commands = append(s.commands, append([]byte(nil), cmd...))

	switch cmd[0] {
	case CmdInfo:
		return s.info(cmd), nil
	case CmdConnect:
		port := byte(PortSWD)
		if len(cmd) > 1 && cmd[1] == PortJTAG {
			port = PortJTAG
		}
		s.port = port
		return []byte{CmdConnect, port}, nil
	case CmdDisconnect:
		s.port = 0
		s.swdLive = false
		return []byte{CmdDisconnect, StatusOK}, nil
	case CmdSWJClock:
		if len(cmd) < 5 {
			return []byte{CmdSWJClock, StatusError}, nil
		}
		s.clockHz = binary.LittleEndian.Uint32(cmd[1:])
		return []byte{CmdSWJClock, StatusOK}, nil
	case CmdSWJSequence:
		// any sequence long enough to hold the switch pattern brings SWD up
		if len(cmd) >= 2 && (cmd[1] == 0 || int(cmd[1]) >= swdSwitchBits) {
			s.swdLive = true
		}
		return []byte{CmdSWJSequence, StatusOK}, nil
	case CmdSWDConfigure, CmdTransferConfigure, CmdJTAGConfigure, CmdHostStatus:
		return []byte{cmd[0], StatusOK}, nil
	case CmdResetTarget:
		if s.OnReset != nil {
			s.OnReset()
		}
		s.sticky = false
		return []byte{CmdResetTarget, StatusOK, 1}, nil
	case CmdTransfer:
		return s.transfer(cmd), nil
	}
	return []byte{CmdInvalid}, nil
}

func (s *SimTarget) info(cmd []byte) []byte {
	if len(cmd) < 2 {
		return []byte{CmdInfo, 0}
	}
	str := func(v string) []byte {
		return append([]byte{CmdInfo, byte(len(v))}, v...)
	}
	switch cmd[1] {
	case InfoVendorID:
		return str("OpenTraceLab")
	case InfoProductID:
		return str("Simulated CMSIS-DAP")
	case InfoSerialNum:
		return str("SIM0001")
	case InfoFirmwareVer:
		return str("2.1.0")
	case InfoCapabilities:
		return []byte{CmdInfo, 1, 0x01} // SWD only
	case InfoPacketCount:
		return []byte{CmdInfo, 1, 1}
	case InfoPacketSize:
		return binary.LittleEndian.AppendUint16([]byte{CmdInfo, 2}, DefaultPacketSize)
	}
	return []byte{CmdInfo, 0}
}

func (s *SimTarget) transfer(cmd []byte) []byte {
	resp := []byte{CmdTransfer, 0, 0}
	if len(cmd) < 3 {
		return resp
	}
	count := int(cmd[2])
	off := 3
	done := 0
	ack := byte(AckOK)
	for done < count {
		if off >= len(cmd) {
			ack = AckOK | AckProtoErr
			break
		}
		req := cmd[off]
		off++
		var wdata uint32
		if req&ReqRnW == 0 || req&ReqValueMatch != 0 {
			if off+4 > len(cmd) {
				ack = AckOK | AckProtoErr
				break
			}
			wdata = binary.LittleEndian.Uint32(cmd[off:])
			off += 4
		}
		if !s.swdLive || s.port != PortSWD {
			ack = AckNoAck
			break
		}

		v, a := s.access(req, wdata)
		if a != AckOK {
			ack = a
			break
		}
		if req&ReqRnW != 0 {
			if req&ReqValueMatch != 0 {
				if v != wdata {
					ack = AckOK | AckMismatch
					break
				}
			} else {
				resp = binary.LittleEndian.AppendUint32(resp, v)
			}
		}
		done++
	}
	resp[1] = byte(done)
	resp[2] = ack
	return resp
}

func (s *SimTarget) access(req byte, wdata uint32) (uint32, byte) {
	addr := req & (ReqA2 | ReqA3)
	read := req&ReqRnW != 0

	if req&ReqAPnDP == 0 {
		switch {
		case read && addr == DPIDR:
			return SimDPIDR, AckOK
		case !read && addr == DPAbort:
			if wdata&0x04 != 0 {
				s.sticky = false
			}
		case addr == DPCtrl && read:
			v := s.ctrl &^ (CtrlCSYSPWRUPACK | CtrlCDBGPWRUPACK)
			if s.ctrl&CtrlCSYSPWRUPREQ != 0 {
				v |= CtrlCSYSPWRUPACK
			}
			if s.ctrl&CtrlCDBGPWRUPREQ != 0 {
				v |= CtrlCDBGPWRUPACK
			}
			if s.sticky {
				v |= ctrlStickyErr
			}
			return v, AckOK
		case addr == DPCtrl:
			s.ctrl = wdata
		case addr == DPSelect && !read:
			s.sel = wdata
		case addr == DPRdBuff && read:
			return s.rdbuff, AckOK
		}
		return 0, AckOK
	}

	if s.sticky || s.ctrl&CtrlCDBGPWRUPREQ == 0 {
		return 0, AckFault
	}
	if s.sel>>24 != 0 {
		// no AP at this index
		return 0, AckOK
	}

	switch uint32(addr) | s.sel&0xF0 {
	case APCSW:
		if read {
			return s.csw, AckOK
		}
		s.csw = wdata
	case APTAR:
		if read {
			return s.tar, AckOK
		}
		s.tar = wdata
	case APDRW:
		if s.csw&0x7 != CSWSize32 {
			s.sticky = true
			return 0, AckFault
		}
		var v uint32
		var err error
		if read {
			v, err = s.mem.Read32(s.tar)
		} else {
			err = s.mem.Write32(s.tar, wdata)
		}
		if err != nil {
			s.sticky = true
			return 0, AckFault
		}
		if s.csw&0x30 == 0x10 {
			s.tar += 4
		}
		s.rdbuff = v
		return v, AckOK
	case APIDR:
		if read {
			return SimAPIDR, AckOK
		}
	}
	return 0, AckOK
}
