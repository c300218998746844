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
	CmdTransferBlock     = 0x06
	CmdResetTarget       = 0x0A
	CmdSWJClock          = 0x11
	CmdSWJSequence       = 0x12
	CmdSWDConfigure      = 0x13
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

// DAP_HostStatus types
const (
	HostStatusConnect = 0
	HostStatusRunning = 1
)

// Transfer request bits
const (
	ReqAPnDP = 1 << 0
	ReqRnW   = 1 << 1
	ReqA2    = 1 << 2
	ReqA3    = 1 << 3
)

// Transfer response ACK values
const (
	AckOK            = 0x01
	AckWait          = 0x02
	AckFault         = 0x04
	AckNoAck         = 0x07
	AckProtocolError = 0x08
	AckMismatch      = 0x10
)

// Protocol handles encoding/decoding of CMSIS-DAP commands
type Protocol struct {
	PacketSize int
}

// NewProtocol creates a new protocol handler
func NewProtocol(packetSize int) *Protocol {
	return &Protocol{
		PacketSize: packetSize,
	}
}

func checkResponse(resp []byte, cmd byte, n int) error {
	if len(resp) < n {
		return fmt.Errorf("response too short")
	}
	if resp[0] != cmd {
		return fmt.Errorf("invalid command ID: 0x%02X", resp[0])
	}
	return nil
}

func decodeStatus(resp []byte, cmd byte, what string) error {
	if err := checkResponse(resp, cmd, 2); err != nil {
		return err
	}
	if resp[1] != StatusOK {
		return fmt.Errorf("%s failed", what)
	}
	return nil
}

// EncodeInfo builds a DAP_Info command
func (p *Protocol) EncodeInfo(infoID byte) []byte {
	return []byte{CmdInfo, infoID}
}

// DecodeInfo parses a DAP_Info string response
func (p *Protocol) DecodeInfo(resp []byte) (string, error) {
	if err := checkResponse(resp, CmdInfo, 2); err != nil {
		return "", err
	}

	length := int(resp[1])
	if len(resp) < 2+length {
		return "", fmt.Errorf("incomplete info string")
	}

	// Strings are NUL terminated on most firmware.
	s := resp[2 : 2+length]
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s), nil
}

// DecodeInfoUint parses a numeric DAP_Info response (1, 2 or 4 bytes)
func (p *Protocol) DecodeInfoUint(resp []byte) (uint32, error) {
	if err := checkResponse(resp, CmdInfo, 2); err != nil {
		return 0, err
	}
	length := int(resp[1])
	if len(resp) < 2+length {
		return 0, fmt.Errorf("incomplete info value")
	}
	switch length {
	case 1:
		return uint32(resp[2]), nil
	case 2:
		return uint32(binary.LittleEndian.Uint16(resp[2:])), nil
	case 4:
		return binary.LittleEndian.Uint32(resp[2:]), nil
	}
	return 0, fmt.Errorf("unexpected info length %d", length)
}

// EncodeHostStatus builds a DAP_HostStatus command
func (p *Protocol) EncodeHostStatus(kind byte, on bool) []byte {
	var status byte
	if on {
		status = 1
	}
	return []byte{CmdHostStatus, kind, status}
}

// DecodeHostStatus parses a DAP_HostStatus response
func (p *Protocol) DecodeHostStatus(resp []byte) error {
	return decodeStatus(resp, CmdHostStatus, "host status")
}

// EncodeConnect builds a DAP_Connect command
func (p *Protocol) EncodeConnect(port byte) []byte {
	return []byte{CmdConnect, port}
}

// DecodeConnect parses a DAP_Connect response
func (p *Protocol) DecodeConnect(resp []byte) (byte, error) {
	if err := checkResponse(resp, CmdConnect, 2); err != nil {
		return 0, err
	}
	if resp[1] == 0 {
		return 0, fmt.Errorf("connection failed")
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

// EncodeSWJSequence builds a DAP_SWJ_Sequence command clocking bits out
// of data, LSB first. bits must be 1..256.
func (p *Protocol) EncodeSWJSequence(bits int, data []byte) ([]byte, error) {
	if bits < 1 || bits > 256 {
		return nil, fmt.Errorf("sequence length %d out of range", bits)
	}
	n := (bits + 7) / 8
	if len(data) < n {
		return nil, fmt.Errorf("sequence needs %d bytes, have %d", n, len(data))
	}
	cmd := make([]byte, 2+n)
	cmd[0] = CmdSWJSequence
	cmd[1] = byte(bits) // 256 encodes as 0
	copy(cmd[2:], data[:n])
	return cmd, nil
}

// DecodeSWJSequence parses response
func (p *Protocol) DecodeSWJSequence(resp []byte) error {
	return decodeStatus(resp, CmdSWJSequence, "SWJ sequence")
}

// EncodeSWDConfigure builds a DAP_SWD_Configure command. turnaround is
// 1..4 clock cycles.
func (p *Protocol) EncodeSWDConfigure(turnaround int, alwaysData bool) []byte {
	cfg := byte(turnaround-1) & 0x03
	if alwaysData {
		cfg |= 1 << 2
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

// EncodeResetTarget builds a DAP_ResetTarget command
func (p *Protocol) EncodeResetTarget() []byte {
	return []byte{CmdResetTarget}
}

// DecodeResetTarget parses response
func (p *Protocol) DecodeResetTarget(resp []byte) error {
	return decodeStatus(resp, CmdResetTarget, "reset target")
}

// Transfer is one DP or AP register access inside DAP_Transfer.
type Transfer struct {
	AP    bool
	Read  bool
	Addr  uint8 // register offset, only bits [3:2] are sent
	Value uint32
}

// Request returns the transfer request byte.
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

// MaxTransfers returns how many transfers fit in one packet, assuming the
// worst case of every transfer carrying a word.
func (p *Protocol) MaxTransfers() int {
	n := (p.PacketSize - 3) / 5
	if n > 255 {
		n = 255
	}
	return n
}

// EncodeTransfer builds a DAP_Transfer command
func (p *Protocol) EncodeTransfer(dapIndex byte, transfers []Transfer) []byte {
	cmd := make([]byte, 0, 3+5*len(transfers))
	cmd = append(cmd, CmdTransfer, dapIndex, byte(len(transfers)))
	for _, t := range transfers {
		cmd = append(cmd, t.Request())
		if !t.Read {
			cmd = binary.LittleEndian.AppendUint32(cmd, t.Value)
		}
	}
	return cmd
}

// DecodeTransfer parses a DAP_Transfer response and returns the values of
// the read transfers in order. A short count or a bad ACK is reported as
// a *TransferError.
func (p *Protocol) DecodeTransfer(resp []byte, transfers []Transfer) ([]uint32, error) {
	if err := checkResponse(resp, CmdTransfer, 3); err != nil {
		return nil, err
	}
	count := int(resp[1])
	ack := resp[2]

	var reads []uint32
	off := 3
	for i := 0; i < count && i < len(transfers); i++ {
		if !transfers[i].Read {
			continue
		}
		if off+4 > len(resp) {
			return nil, fmt.Errorf("incomplete transfer data")
		}
		reads = append(reads, binary.LittleEndian.Uint32(resp[off:]))
		off += 4
	}

	if ack != AckOK || count != len(transfers) {
		return reads, &TransferError{Ack: ack, Index: count}
	}
	return reads, nil
}

// EncodeTransferBlock builds a DAP_TransferBlock command. For reads, count
// words are requested and data is ignored.
func (p *Protocol) EncodeTransferBlock(dapIndex byte, t Transfer, count int, data []uint32) []byte {
	cmd := make([]byte, 0, 5+4*len(data))
	cmd = append(cmd, CmdTransferBlock, dapIndex)
	cmd = binary.LittleEndian.AppendUint16(cmd, uint16(count))
	cmd = append(cmd, t.Request())
	if !t.Read {
		for _, v := range data[:count] {
			cmd = binary.LittleEndian.AppendUint32(cmd, v)
		}
	}
	return cmd
}

// DecodeTransferBlock parses a DAP_TransferBlock response.
func (p *Protocol) DecodeTransferBlock(resp []byte, t Transfer, count int) ([]uint32, error) {
	if err := checkResponse(resp, CmdTransferBlock, 4); err != nil {
		return nil, err
	}
	done := int(binary.LittleEndian.Uint16(resp[1:]))
	ack := resp[3]

	var reads []uint32
	if t.Read {
		if len(resp) < 4+4*done {
			return nil, fmt.Errorf("incomplete block data")
		}
		reads = make([]uint32, done)
		for i := range reads {
			reads[i] = binary.LittleEndian.Uint32(resp[4+4*i:])
		}
	}
	if ack != AckOK || done != count {
		return reads, &TransferError{Ack: ack, Index: done}
	}
	return reads, nil
}

// MaxBlockWords returns how many words one DAP_TransferBlock can carry.
func (p *Protocol) MaxBlockWords() int {
	return (p.PacketSize - 5) / 4
}
