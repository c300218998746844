// Package cortexm controls an Armv6-M/Armv8-M core through the debug
// registers in its system control space: halt, resume, core register
// transfer and reset.
package cortexm

import (
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/gdflash/pkg/timeout"
)

// ErrTimeout is returned when the core does not reach the expected debug
// state in time.
var ErrTimeout = errors.New("cortexm: timeout")

// Memory is the 32-bit access the core debug registers need.
type Memory interface {
	Read32(addr uint32) (uint32, error)
	Write32(addr uint32, v uint32) error
}

// Core drives one Cortex-M core.
type Core struct {
	mem   Memory
	clock timeout.Clock

	regTimeout  time.Duration
	haltTimeout time.Duration
	interval    time.Duration
}

// Option configures a Core.
type Option func(*Core)

// WithClock sets the clock used for polling.
func WithClock(clock timeout.Clock) Option {
	return func(c *Core) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithRegisterTimeout bounds the wait for S_REGRDY.
func WithRegisterTimeout(d time.Duration) Option {
	return func(c *Core) { c.regTimeout = d }
}

// WithHaltTimeout bounds Halt and Reset.
func WithHaltTimeout(d time.Duration) Option {
	return func(c *Core) { c.haltTimeout = d }
}

// WithPollInterval sets the sleep between DHCSR reads in WaitHalt.
func WithPollInterval(d time.Duration) Option {
	return func(c *Core) { c.interval = d }
}

// New creates a Core on top of mem.
func New(mem Memory, opts ...Option) *Core {
	c := &Core{
		mem:         mem,
		clock:       timeout.SystemClock{},
		regTimeout:  100 * time.Millisecond,
		haltTimeout: time.Second,
		interval:    time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Halt requests a debug halt and waits for S_HALT.
func (c *Core) Halt() error {
	if err := c.mem.Write32(DHCSR, DBGKEY|CDebugEn|CHalt); err != nil {
		return fmt.Errorf("halt: %w", err)
	}
	return c.WaitHalt(c.haltTimeout)
}

// Resume clears C_HALT and lets the core run.
func (c *Core) Resume() error {
	if err := c.mem.Write32(DHCSR, DBGKEY|CDebugEn); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	return nil
}

// IsHalted reports S_HALT.
func (c *Core) IsHalted() (bool, error) {
	v, err := c.mem.Read32(DHCSR)
	if err != nil {
		return false, err
	}
	return v&SHalt != 0, nil
}

// WaitHalt polls DHCSR until the core halts or d elapses.
func (c *Core) WaitHalt(d time.Duration) error {
	return c.waitDHCSR(SHalt, d, c.interval)
}

// ReadRegister transfers a core register out through DCRDR. The core must
// be halted.
func (c *Core) ReadRegister(r Register) (uint32, error) {
	if err := c.mem.Write32(DCRSR, uint32(r)); err != nil {
		return 0, fmt.Errorf("select %s: %w", r, err)
	}
	if err := c.waitDHCSR(SRegRdy, c.regTimeout, 0); err != nil {
		return 0, fmt.Errorf("read %s: %w", r, err)
	}
	v, err := c.mem.Read32(DCRDR)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", r, err)
	}
	return v, nil
}

// WriteRegister transfers v into a core register. The core must be halted.
func (c *Core) WriteRegister(r Register, v uint32) error {
	if err := c.mem.Write32(DCRDR, v); err != nil {
		return fmt.Errorf("write %s: %w", r, err)
	}
	if err := c.mem.Write32(DCRSR, uint32(r)|DCRSRRegWnR); err != nil {
		return fmt.Errorf("write %s: %w", r, err)
	}
	if err := c.waitDHCSR(SRegRdy, c.regTimeout, 0); err != nil {
		return fmt.Errorf("write %s: %w", r, err)
	}
	return nil
}

// Reset issues a system reset request. With halt set, the core is caught
// by the reset vector catch and left halted.
func (c *Core) Reset(halt bool) error {
	demcr, err := c.mem.Read32(DEMCR)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if halt {
		if err := c.mem.Write32(DHCSR, DBGKEY|CDebugEn); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		if err := c.mem.Write32(DEMCR, demcr|DEMCRVCCoreReset); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	// The AP may fault while the reset is in progress; the request has
	// still been taken.
	_ = c.mem.Write32(AIRCR, AIRCRVectKey|AIRCRSysResetReq)

	if !halt {
		return nil
	}
	if err := c.WaitHalt(c.haltTimeout); err != nil {
		return fmt.Errorf("reset halt: %w", err)
	}
	if err := c.mem.Write32(DEMCR, demcr&^DEMCRVCCoreReset); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func (c *Core) waitDHCSR(mask uint32, d, interval time.Duration) error {
	to := timeout.New(c.clock, d)
	for to.Check() {
		v, err := c.mem.Read32(DHCSR)
		if err != nil {
			return err
		}
		if v&mask == mask {
			return nil
		}
		if interval > 0 {
			c.clock.Sleep(interval)
		}
	}
	return ErrTimeout
}
