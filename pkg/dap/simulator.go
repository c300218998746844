package dap

import (
	"encoding/binary"
	"fmt"
)

// Bus is the target memory behind the simulated MEM-AP.
type Bus interface {
	Read8(addr uint32) (uint8, error)
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)
	Write8(addr uint32, v uint8) error
	Write16(addr uint32, v uint16) error
	Write32(addr uint32, v uint32) error
}

// CommandHook lets tests answer a command themselves. Returning ok=false
// falls back to the built-in behaviour.
type CommandHook func(cmd []byte) (resp []byte, ok bool)

// Simulated debug port identification values.
const (
	SimDPIDR = 0x0BE12477 // DPv2 MINDP, designer ARM
	SimAPIDR = 0x04770025 // AHB5-AP
)

// DP CTRL/STAT bits used by the simulator.
const (
	ctrlStickyErr = 1 << 5
	ctrlDbgPwrReq = 1 << 28
	ctrlDbgPwrAck = 1 << 29
	ctrlSysPwrReq = 1 << 30
	ctrlSysPwrAck = 1 << 31
)

// SimTransport is an in-memory CMSIS-DAP probe attached to a single
// MEM-AP in front of a Bus. It records every command for inspection
// within tests.
type SimTransport struct {
	Vendor   string
	Product  string
	Serial   string
	Firmware string
	DPIDR    uint32
	APIDR    uint32

	OnCommand CommandHook

	bus        Bus
	packetSize int

	port      byte
	clockHz   uint32
	sequences [][]byte
	commands  [][]byte
	closed    bool

	ctrlStat uint32
	sel      uint32
	csw      uint32
	tar      uint32
	rdbuff   uint32
}

// NewSimTransport creates a probe in front of bus.
func NewSimTransport(bus Bus) *SimTransport {
	return &SimTransport{
		Vendor:     "OpenTraceLab",
		Product:    "Simulated CMSIS-DAP",
		Serial:     "SIM0001",
		Firmware:   "2.1.0",
		DPIDR:      SimDPIDR,
		APIDR:      SimAPIDR,
		bus:        bus,
		packetSize: DefaultPacketSize,
	}
}

// Commands returns a copy of every command received.
func (s *SimTransport) Commands() [][]byte {
	out := make([][]byte, len(s.commands))
	for i, c := range s.commands {
		out[i] = append([]byte(nil), c...)
	}
	return out
}

// Sequences returns the SWJ sequence payloads received.
func (s *SimTransport) Sequences() [][]byte {
	return append([][]byte(nil), s.sequences...)
}

// ClockHz returns the last SWJ clock set.
func (s *SimTransport) ClockHz() uint32 {
	return s.clockHz
}

// Closed reports whether Close was called.
func (s *SimTransport) Closed() bool {
	return s.closed
}

func (s *SimTransport) PacketSize() int {
	return s.packetSize
}

func (s *SimTransport) Close() error {
	s.closed = true
	return nil
}

func (s *SimTransport) WriteRead(cmd []byte) ([]byte, error) {
	if s.closed {
		return nil, fmt.Errorf("transport closed")
	}
	if len(cmd) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	if len(cmd) > s.packetSize {
		return nil, fmt.Errorf("command of %d bytes exceeds packet size %d", len(cmd), s.packetSize)
	}
	s.commands = append(s.commands, append([]byte(nil), cmd...))

	if s.OnCommand != nil {
		if resp, ok := s.OnCommand(cmd); ok {
			return resp, nil
		}
	}

	switch cmd[0] {
	case CmdInfo:
		return s.info(cmd)
	case CmdConnect:
		if len(cmd) < 2 || cmd[1] == PortJTAG {
			return []byte{CmdConnect, 0}, nil
		}
		s.port = PortSWD
		return []byte{CmdConnect, PortSWD}, nil
	case CmdDisconnect:
		s.port = 0
		return []byte{CmdDisconnect, StatusOK}, nil
	case CmdSWJClock:
		if len(cmd) < 5 {
			return []byte{CmdSWJClock, StatusError}, nil
		}
		s.clockHz = binary.LittleEndian.Uint32(cmd[1:])
		return []byte{CmdSWJClock, StatusOK}, nil
	case CmdSWJSequence:
		if len(cmd) >= 2 {
			s.sequences = append(s.sequences, append([]byte(nil), cmd[2:]...))
		}
		return []byte{CmdSWJSequence, StatusOK}, nil
	case CmdHostStatus, CmdTransferConfigure, CmdSWDConfigure:
		return []byte{cmd[0], StatusOK}, nil
	case CmdResetTarget:
		return []byte{CmdResetTarget, StatusOK, 0}, nil
	case CmdTransfer:
		return s.transfer(cmd)
	case CmdTransferBlock:
		return s.transferBlock(cmd)
	}
	return []byte{0xFF}, nil
}

func (s *SimTransport) info(cmd []byte) ([]byte, error) {
	if len(cmd) < 2 {
		return []byte{CmdInfo, 0}, nil
	}
	var str string
	switch cmd[1] {
	case InfoVendorID:
		str = s.Vendor
	case InfoProductID:
		str = s.Product
	case InfoSerialNum:
		str = s.Serial
	case InfoFirmwareVer:
		str = s.Firmware
	case InfoCapabilities:
		return []byte{CmdInfo, 1, 0x01}, nil
	case InfoPacketCount:
		return []byte{CmdInfo, 1, 1}, nil
	case InfoPacketSize:
		return []byte{CmdInfo, 2, byte(s.packetSize), byte(s.packetSize >> 8)}, nil
	}
	resp := []byte{CmdInfo, byte(len(str))}
	return append(resp, str...), nil
}

func (s *SimTransport) transfer(cmd []byte) ([]byte, error) {
	if len(cmd) < 3 {
		return []byte{CmdTransfer, 0, 0}, nil
	}
	count := int(cmd[2])
	resp := []byte{CmdTransfer, 0, AckOK}
	off := 3
	done := 0
	for ; done < count; done++ {
		if off >= len(cmd) {
			resp[2] = AckProtocolError
			break
		}
		req := cmd[off]
		off++
		var v uint32
		if req&ReqRnW == 0 {
			if off+4 > len(cmd) {
				resp[2] = AckProtocolError
				break
			}
			v = binary.LittleEndian.Uint32(cmd[off:])
			off += 4
		}
		val, ack := s.access(req, v)
		if ack != AckOK {
			resp[2] = ack
			break
		}
		if req&ReqRnW != 0 {
			resp = binary.LittleEndian.AppendUint32(resp, val)
		}
	}
	resp[1] = byte(done)
	return resp, nil
}

func (s *SimTransport) transferBlock(cmd []byte) ([]byte, error) {
	if len(cmd) < 5 {
		return []byte{CmdTransferBlock, 0, 0, AckProtocolError}, nil
	}
	count := int(binary.LittleEndian.Uint16(cmd[2:]))
	req := cmd[4]
	resp := []byte{CmdTransferBlock, 0, 0, AckOK}
	off := 5
	done := 0
	for ; done < count; done++ {
		var v uint32
		if req&ReqRnW == 0 {
			if off+4 > len(cmd) {
				resp[3] = AckProtocolError
				break
			}
			v = binary.LittleEndian.Uint32(cmd[off:])
			off += 4
		}
		val, ack := s.access(req, v)
		if ack != AckOK {
			resp[3] = ack
			break
		}
		if req&ReqRnW != 0 {
			resp = binary.LittleEndian.AppendUint32(resp, val)
		}
	}
	binary.LittleEndian.PutUint16(resp[1:], uint16(done))
	return resp, nil
}

func (s *SimTransport) access(req byte, v uint32) (uint32, byte) {
	if s.port != PortSWD {
		return 0, AckNoAck
	}
	addr := uint8(req & (ReqA2 | ReqA3))
	read := req&ReqRnW != 0
	if req&ReqAPnDP == 0 {
		return s.dp(read, addr, v), AckOK
	}
	if s.ctrlStat&ctrlStickyErr != 0 {
		return 0, AckFault
	}
	val, err := s.ap(read, addr, v)
	if err != nil {
		s.ctrlStat |= ctrlStickyErr
		return 0, AckFault
	}
	if read {
		s.rdbuff = val
	}
	return val, AckOK
}

func (s *SimTransport) dp(read bool, addr uint8, v uint32) uint32 {
	switch {
	case read && addr == DPIDR:
		return s.DPIDR
	case read && addr == DPCtrlStat:
		st := s.ctrlStat
		if st&ctrlDbgPwrReq != 0 {
			st |= ctrlDbgPwrAck
		}
		if st&ctrlSysPwrReq != 0 {
			st |= ctrlSysPwrAck
		}
		return st
	case read && addr == DPSelect:
		return s.sel
	case read && addr == DPRDBuff:
		return s.rdbuff
	case addr == DPAbort:
		// STKERRCLR
		if v&(1<<2) != 0 {
			s.ctrlStat &^= ctrlStickyErr
		}
	case addr == DPCtrlStat:
		s.ctrlStat = v&^(ctrlDbgPwrAck|ctrlSysPwrAck|ctrlStickyErr) | s.ctrlStat&ctrlStickyErr
	case addr == DPSelect:
		s.sel = v
	}
	return 0
}

func (s *SimTransport) ap(read bool, addr uint8, v uint32) (uint32, error) {
	if s.sel>>24 != 0 {
		// Only AP 0 exists.
		return 0, nil
	}
	reg := (s.sel & 0xF0) | uint32(addr)
	switch reg {
	case 0x00: // CSW
		if read {
			return s.csw | 1<<6, nil // DeviceEn
		}
		s.csw = v
		return 0, nil
	case 0x04: // TAR
		if read {
			return s.tar, nil
		}
		s.tar = v
		return 0, nil
	case 0x0C: // DRW
		val, err := s.drw(read, v)
		if err != nil {
			return 0, err
		}
		if s.csw&0x30 == 0x10 {
			inc := uint32(1) << (s.csw & 0x7)
			s.tar = s.tar&^0x3FF | (s.tar+inc)&0x3FF
		}
		return val, nil
	case 0xF8: // BASE
		return 0xE00FF003, nil
	case 0xFC: // IDR
		return s.APIDR, nil
	}
	return 0, nil
}

func (s *SimTransport) drw(read bool, v uint32) (uint32, error) {
	addr := s.tar
	switch s.csw & 0x7 {
	case 0:
		lane := (addr & 3) * 8
		if read {
			b, err := s.bus.Read8(addr)
			return uint32(b) << lane, err
		}
		return 0, s.bus.Write8(addr, uint8(v>>lane))
	case 1:
		lane := (addr & 2) * 8
		if read {
			h, err := s.bus.Read16(addr)
			return uint32(h) << lane, err
		}
		return 0, s.bus.Write16(addr, uint16(v>>lane))
	case 2:
		if read {
			return s.bus.Read32(addr)
		}
		return 0, s.bus.Write32(addr, v)
	}
	return 0, fmt.Errorf("unsupported transfer size %d", s.csw&0x7)
}
