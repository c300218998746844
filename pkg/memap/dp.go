// Package memap layers ADIv5 debug port power-up and MEM-AP memory access
// on top of raw DP/AP register transfers.
package memap

import (
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/gdflash/pkg/dap"
	"github.com/OpenTraceLab/gdflash/pkg/timeout"
	"github.com/sirupsen/logrus"
)

// Port performs DP and AP register transfers. *dap.Probe implements it.
type Port interface {
	ReadDP(addr uint8) (uint32, error)
	WriteDP(addr uint8, v uint32) error
	ReadAP(addr uint8) (uint32, error)
	WriteAP(addr uint8, v uint32) error
	ReadAPBlock(addr uint8, n int) ([]uint32, error)
	WriteAPBlock(addr uint8, data []uint32) error
}

// CTRL/STAT bits
const (
	CtrlStickyErr  = 1 << 5
	CtrlCDbgPwrReq = 1 << 28
	CtrlCDbgPwrAck = 1 << 29
	CtrlCSysPwrReq = 1 << 30
	CtrlCSysPwrAck = 1 << 31
)

// ABORT bits
const (
	AbortDAPAbort   = 1 << 0
	AbortSTKCMPCLR  = 1 << 1
	AbortSTKERRCLR  = 1 << 2
	AbortWDERRCLR   = 1 << 3
	AbortORUNERRCLR = 1 << 4

	abortClearAll = AbortSTKCMPCLR | AbortSTKERRCLR | AbortWDERRCLR | AbortORUNERRCLR
)

// DefaultPowerUpTimeout bounds the wait for the power-up acknowledge bits.
const DefaultPowerUpTimeout = 100 * time.Millisecond

// ErrPowerUp is returned when the debug or system power domain never
// acknowledges the power-up request.
var ErrPowerUp = errors.New("memap: debug power-up not acknowledged")

// DebugPort owns the DP SELECT register and the power-up handshake.
type DebugPort struct {
	port         Port
	clock        timeout.Clock
	powerTimeout time.Duration
	log          logrus.FieldLogger

	sel      uint32
	selValid bool
}

// Option configures a DebugPort.
type Option func(*DebugPort)

// WithClock sets the clock used for the power-up wait.
func WithClock(clock timeout.Clock) Option {
	return func(dp *DebugPort) {
		if clock != nil {
			dp.clock = clock
		}
	}
}

// WithPowerUpTimeout bounds the wait for CDBGPWRUPACK and CSYSPWRUPACK.
func WithPowerUpTimeout(d time.Duration) Option {
	return func(dp *DebugPort) { dp.powerTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(dp *DebugPort) {
		if log != nil {
			dp.log = log
		}
	}
}

// NewDebugPort wraps port. Call Init before any AP access.
func NewDebugPort(port Port, opts ...Option) *DebugPort {
	dp := &DebugPort{
		port:         port,
		clock:        timeout.SystemClock{},
		powerTimeout: DefaultPowerUpTimeout,
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(dp)
	}
	return dp
}

// Init clears sticky errors and powers up the debug and system domains.
func (dp *DebugPort) Init() error {
	if err := dp.ClearErrors(); err != nil {
		return err
	}
	if err := dp.port.WriteDP(dap.DPCtrlStat, CtrlCDbgPwrReq|CtrlCSysPwrReq); err != nil {
		return fmt.Errorf("power-up request: %w", err)
	}

	const acks = CtrlCDbgPwrAck | CtrlCSysPwrAck
	to := timeout.New(dp.clock, dp.powerTimeout)
	for to.Check() {
		st, err := dp.port.ReadDP(dap.DPCtrlStat)
		if err != nil {
			return fmt.Errorf("read CTRL/STAT: %w", err)
		}
		if st&acks == acks {
			dp.selValid = false
			dp.log.Debug("debug port powered up")
			return nil
		}
		dp.clock.Sleep(time.Millisecond)
	}
	return ErrPowerUp
}

// ClearErrors writes ABORT to clear every sticky flag.
func (dp *DebugPort) ClearErrors() error {
	if err := dp.port.WriteDP(dap.DPAbort, abortClearAll); err != nil {
		return fmt.Errorf("clear sticky errors: %w", err)
	}
	return nil
}

// CtrlStat reads the CTRL/STAT register.
func (dp *DebugPort) CtrlStat() (uint32, error) {
	return dp.port.ReadDP(dap.DPCtrlStat)
}

// selectAP points SELECT at the bank holding reg of access port apsel.
// The last value written is cached.
func (dp *DebugPort) selectAP(apsel uint8, reg uint8) error {
	v := uint32(apsel)<<24 | uint32(reg&0xF0)
	if dp.selValid && dp.sel == v {
		return nil
	}
	if err := dp.port.WriteDP(dap.DPSelect, v); err != nil {
		dp.selValid = false
		return err
	}
	dp.sel = v
	dp.selValid = true
	return nil
}

// ReadAP reads register reg of access port apsel.
func (dp *DebugPort) ReadAP(apsel, reg uint8) (uint32, error) {
	if err := dp.selectAP(apsel, reg); err != nil {
		return 0, err
	}
	return dp.port.ReadAP(reg & 0x0C)
}

// WriteAP writes register reg of access port apsel.
func (dp *DebugPort) WriteAP(apsel, reg uint8, v uint32) error {
	if err := dp.selectAP(apsel, reg); err != nil {
		return err
	}
	return dp.port.WriteAP(reg&0x0C, v)
}

// ReadAPBlock reads n words from register reg of access port apsel.
func (dp *DebugPort) ReadAPBlock(apsel, reg uint8, n int) ([]uint32, error) {
	if err := dp.selectAP(apsel, reg); err != nil {
		return nil, err
	}
	return dp.port.ReadAPBlock(reg&0x0C, n)
}

// WriteAPBlock writes data to register reg of access port apsel.
func (dp *DebugPort) WriteAPBlock(apsel, reg uint8, data []uint32) error {
	if err := dp.selectAP(apsel, reg); err != nil {
		return err
	}
	return dp.port.WriteAPBlock(reg&0x0C, data)
}

// IDR reads the identification register of access port apsel.
func (dp *DebugPort) IDR(apsel uint8) (uint32, error) {
	return dp.ReadAP(apsel, APIDR)
}
