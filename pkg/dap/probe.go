// Package dap talks to CMSIS-DAP debug probes over USB and performs SWD
// debug port and access port register transfers through them.
package dap

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Debug port register offsets
const (
	DPIDR      = 0x0 // read
	DPAbort    = 0x0 // write
	DPCtrlStat = 0x4
	DPSelect   = 0x8
	DPRDBuff   = 0xC
)

// swdSwitchSequence is a line reset, the JTAG-to-SWD select code 0xE79E,
// a second line reset and idle cycles.
var swdSwitchSequence = []byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0x9E, 0xE7,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0x00,
}

// ProbeInfo describes the attached probe.
type ProbeInfo struct {
	Vendor       string
	Product      string
	SerialNumber string
	Firmware     string
	Capabilities uint32
	PacketSize   int
}

// SupportsSWD reports the SWD capability bit.
func (i ProbeInfo) SupportsSWD() bool {
	return i.Capabilities&0x01 != 0
}

// Probe is a CMSIS-DAP probe driving an SWD target.
type Probe struct {
	transport Transport
	protocol  *Protocol

	info      ProbeInfo
	speedHz   int
	dpidr     uint32
	connected bool
	log       logrus.FieldLogger

	mu sync.Mutex // Protect concurrent access
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithSpeed sets the SWCLK frequency used on Connect.
func WithSpeed(hz int) ProbeOption {
	return func(p *Probe) { p.speedHz = hz }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) ProbeOption {
	return func(p *Probe) {
		if log != nil {
			p.log = log
		}
	}
}

// Open opens the USB probe vid:pid.
func Open(vid, pid uint16, opts ...ProbeOption) (*Probe, error) {
	transport, err := NewUSBTransport(vid, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to open USB device: %w", err)
	}
	p, err := NewProbe(transport, opts...)
	if err != nil {
		transport.Close()
		return nil, err
	}
	return p, nil
}

// NewProbe wraps an open transport and queries the probe information.
func NewProbe(t Transport, opts ...ProbeOption) (*Probe, error) {
	p := &Probe{
		transport: t,
		protocol:  NewProtocol(t.PacketSize()),
		speedHz:   1_000_000, // Default 1 MHz
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.queryInfo(); err != nil {
		return nil, fmt.Errorf("failed to query device info: %w", err)
	}
	return p, nil
}

// queryInfo retrieves device information from the probe
func (p *Probe) queryInfo() error {
	str := func(id byte) (string, error) {
		resp, err := p.transport.WriteRead(p.protocol.EncodeInfo(id))
		if err != nil {
			return "", err
		}
		return p.protocol.DecodeInfo(resp)
	}

	vendor, err := str(InfoVendorID)
	if err != nil {
		return err
	}
	// Optional strings; an empty answer is fine.
	product, _ := str(InfoProductID)
	serial, _ := str(InfoSerialNum)
	firmware, _ := str(InfoFirmwareVer)

	var caps uint32
	if resp, err := p.transport.WriteRead(p.protocol.EncodeInfo(InfoCapabilities)); err == nil {
		caps, _ = p.protocol.DecodeInfoUint(resp)
	}

	p.info = ProbeInfo{
		Vendor:       vendor,
		Product:      product,
		SerialNumber: serial,
		Firmware:     firmware,
		Capabilities: caps,
		PacketSize:   p.transport.PacketSize(),
	}
	return nil
}

// Info returns the probe information.
func (p *Probe) Info() ProbeInfo {
	return p.info
}

// DPIDR returns the debug port identification read on Connect.
func (p *Probe) DPIDR() uint32 {
	return p.dpidr
}

// Connect selects SWD, configures transfers, switches the target from
// JTAG to SWD and reads DPIDR.
func (p *Probe) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	resp, err := p.transport.WriteRead(p.protocol.EncodeConnect(PortSWD))
	if err != nil {
		return err
	}
	port, err := p.protocol.DecodeConnect(resp)
	if err != nil {
		return err
	}
	if port != PortSWD {
		return fmt.Errorf("failed to connect to SWD (got port %d)", port)
	}
	p.connected = true

	if err := p.setSpeed(p.speedHz); err != nil {
		return err
	}
	if err := p.command(p.protocol.EncodeTransferConfigure(0, 64, 0), p.protocol.DecodeTransferConfigure); err != nil {
		return err
	}
	if err := p.command(p.protocol.EncodeSWDConfigure(1, false), p.protocol.DecodeSWDConfigure); err != nil {
		return err
	}

	seq, err := p.protocol.EncodeSWJSequence(8*len(swdSwitchSequence), swdSwitchSequence)
	if err != nil {
		return err
	}
	if err := p.command(seq, p.protocol.DecodeSWJSequence); err != nil {
		return fmt.Errorf("SWD switch: %w", err)
	}

	// DPIDR must be the first read after a line reset.
	vals, err := p.transfer([]Transfer{{Read: true, Addr: DPIDR}})
	if err != nil {
		return fmt.Errorf("read DPIDR: %w", err)
	}
	p.dpidr = vals[0]

	if err := p.command(p.protocol.EncodeHostStatus(HostStatusConnect, true), p.protocol.DecodeHostStatus); err != nil {
		p.log.WithError(err).Debug("host status LED not supported")
	}

	p.log.WithField("dpidr", fmt.Sprintf("0x%08X", p.dpidr)).Debug("SWD connected")
	return nil
}

// SetSpeed sets the SWCLK frequency
func (p *Probe) SetSpeed(hz int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setSpeed(hz)
}

func (p *Probe) setSpeed(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("invalid speed %dHz", hz)
	}
	if err := p.command(p.protocol.EncodeSetClock(uint32(hz)), p.protocol.DecodeSetClock); err != nil {
		return fmt.Errorf("set speed failed: %w", err)
	}
	p.speedHz = hz
	return nil
}

// Transfer performs DP/AP register transfers, splitting them across as
// many packets as needed, and returns the read values in order.
func (p *Probe) Transfer(transfers []Transfer) ([]uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transfer(transfers)
}

func (p *Probe) transfer(transfers []Transfer) ([]uint32, error) {
	if !p.connected {
		return nil, ErrNotConnected
	}
	var reads []uint32
	limit := p.protocol.MaxTransfers()
	for start := 0; start < len(transfers); start += limit {
		end := start + limit
		if end > len(transfers) {
			end = len(transfers)
		}
		batch := transfers[start:end]
		resp, err := p.transport.WriteRead(p.protocol.EncodeTransfer(0, batch))
		if err != nil {
			return reads, err
		}
		vals, err := p.protocol.DecodeTransfer(resp, batch)
		reads = append(reads, vals...)
		if err != nil {
			if te, ok := err.(*TransferError); ok {
				te.Index += start
			}
			return reads, err
		}
	}
	return reads, nil
}

// ReadDP reads a debug port register.
func (p *Probe) ReadDP(addr uint8) (uint32, error) {
	return p.read(false, addr)
}

// WriteDP writes a debug port register.
func (p *Probe) WriteDP(addr uint8, v uint32) error {
	_, err := p.Transfer([]Transfer{{Addr: addr, Value: v}})
	return err
}

// ReadAP reads a register of the currently selected access port bank.
func (p *Probe) ReadAP(addr uint8) (uint32, error) {
	return p.read(true, addr)
}

// WriteAP writes a register of the currently selected access port bank.
func (p *Probe) WriteAP(addr uint8, v uint32) error {
	_, err := p.Transfer([]Transfer{{AP: true, Addr: addr, Value: v}})
	return err
}

func (p *Probe) read(ap bool, addr uint8) (uint32, error) {
	vals, err := p.Transfer([]Transfer{{AP: ap, Read: true, Addr: addr}})
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

// ReadAPBlock reads n words from the same AP register with
// DAP_TransferBlock.
func (p *Probe) ReadAPBlock(addr uint8, n int) ([]uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, ErrNotConnected
	}

	t := Transfer{AP: true, Read: true, Addr: addr}
	out := make([]uint32, 0, n)
	for len(out) < n {
		count := n - len(out)
		if limit := p.protocol.MaxBlockWords(); count > limit {
			count = limit
		}
		resp, err := p.transport.WriteRead(p.protocol.EncodeTransferBlock(0, t, count, nil))
		if err != nil {
			return out, err
		}
		vals, err := p.protocol.DecodeTransferBlock(resp, t, count)
		out = append(out, vals...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// WriteAPBlock writes data to the same AP register with
// DAP_TransferBlock.
func (p *Probe) WriteAPBlock(addr uint8, data []uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return ErrNotConnected
	}

	t := Transfer{AP: true, Addr: addr}
	for len(data) > 0 {
		count := len(data)
		if limit := p.protocol.MaxBlockWords(); count > limit {
			count = limit
		}
		resp, err := p.transport.WriteRead(p.protocol.EncodeTransferBlock(0, t, count, data))
		if err != nil {
			return err
		}
		if _, err := p.protocol.DecodeTransferBlock(resp, t, count); err != nil {
			return err
		}
		data = data[count:]
	}
	return nil
}

// ResetTarget pulses the hardware reset line.
func (p *Probe) ResetTarget() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.command(p.protocol.EncodeResetTarget(), p.protocol.DecodeResetTarget)
}

// Close disconnects and releases resources
func (p *Probe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		_ = p.command(p.protocol.EncodeHostStatus(HostStatusConnect, false), p.protocol.DecodeHostStatus)
		_ = p.command(p.protocol.EncodeDisconnect(), p.protocol.DecodeDisconnect)
		p.connected = false
	}

	return p.transport.Close()
}

func (p *Probe) command(cmd []byte, decode func([]byte) error) error {
	resp, err := p.transport.WriteRead(cmd)
	if err != nil {
		return err
	}
	return decode(resp)
}
