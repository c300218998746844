// Package fmc drives the GD32E23x flash memory controller through its
// memory-mapped registers: unlock key sequences, option byte erase and
// program triggers, and bounded BUSY polling.
package fmc

import (
	"github.com/OpenTraceLab/gdflash/pkg/flashalgo"
	"github.com/OpenTraceLab/gdflash/pkg/timeout"
	"github.com/sirupsen/logrus"
)

// Eraser is the whole-device erase path used when the device is not read
// protected.
type Eraser interface {
	Erase(req flashalgo.EraseRequest) error
}

// Engine sequences FMC register writes. It keeps no state between calls;
// all mutable state lives in the device. Callers must serialise access to
// the target.
type Engine struct {
	mem    Memory
	regs   Registers
	eraser Eraser
	config Config
	log    logrus.FieldLogger
}

// New creates an Engine driving mem with the register layout regs. eraser
// may be nil when MassErase is only used on protected devices.
func New(mem Memory, regs Registers, eraser Eraser, opts ...Option) *Engine {
	if mem == nil {
		panic("fmc: memory cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	log := cfg.Logger
	if cfg.PartNumber != "" {
		log = log.WithField("part", cfg.PartNumber)
	}

	return &Engine{
		mem:    mem,
		regs:   regs,
		eraser: eraser,
		config: cfg,
		log:    log,
	}
}

// Registers returns the register layout the engine was built with.
func (e *Engine) Registers() Registers {
	return e.regs
}

// IsLocked reports whether option byte read protection is active.
func (e *Engine) IsLocked() (bool, error) {
	status, err := e.read32(e.regs.OptionStatus)
	if err != nil {
		return false, err
	}
	return status&OBSTATReadProtect != 0, nil
}

// UnlockFlash writes the key pair to FMC_KEY.
func (e *Engine) UnlockFlash() error {
	if err := e.write32(e.regs.Key, e.regs.Key1); err != nil {
		return err
	}
	return e.write32(e.regs.Key, e.regs.Key2)
}

// UnlockOptionBytes unlocks FMC_CTL and then sets OBWEN through FMC_OBKEY.
func (e *Engine) UnlockOptionBytes() error {
	if err := e.UnlockFlash(); err != nil {
		return err
	}
	if err := e.write32(e.regs.OptionKey, e.regs.Key1); err != nil {
		return err
	}
	return e.write32(e.regs.OptionKey, e.regs.Key2)
}

// EraseOptionBytes erases the option byte area and waits for completion.
// It returns ErrBusyTimeout if the controller stays busy past the
// deadline.
func (e *Engine) EraseOptionBytes() error {
	return e.eraseOptionBytes(nil)
}

func (e *Engine) eraseOptionBytes(step func(State)) error {
	if step == nil {
		step = func(State) {}
	}

	step(StateOptionEraseUnlocking)
	if err := e.UnlockOptionBytes(); err != nil {
		return err
	}

	step(StateOptionErasing)
	if err := e.write32(e.regs.Control, CTLOBER|CTLOBWEN); err != nil {
		return err
	}
	if err := e.write32(e.regs.Control, CTLOBER|CTLOBWEN|CTLSTART); err != nil {
		return err
	}

	step(StateOptionEraseBusyPoll)
	if err := e.waitIdle(); err != nil {
		if err == ErrBusyTimeout {
			e.log.Error("Option byte erase timeout")
		}
		return err
	}
	return nil
}

// MassErase erases the whole device. A read-protected device is recovered
// by erasing and reprogramming the option bytes with protection cleared
// and the USER byte preserved. Otherwise the chip eraser does the work.
//
// Failures on the protected path are returned as *UnrecoverableError.
func (e *Engine) MassErase() error {
	locked, err := e.IsLocked()
	if err != nil {
		return err
	}
	if !locked {
		if e.eraser == nil {
			return ErrNoEraser
		}
		return e.eraser.Erase(flashalgo.EraseRequest{
			Mode:  flashalgo.EraseModeChip,
			Quiet: true,
		})
	}
	return e.clearReadProtection()
}

func (e *Engine) clearReadProtection() error {
	state := StateLocked
	step := func(s State) {
		state = s
		e.log.WithField("state", s).Debug("mass erase")
		if e.config.StateHook != nil {
			e.config.StateHook(s)
		}
	}
	fatal := func(op string, err error) error {
		return &UnrecoverableError{Op: op, State: state, Err: err}
	}

	step(StateLocked)

	user, err := e.read16(e.regs.UserOption)
	if err != nil {
		return fatal("read user option", err)
	}

	if err := e.eraseOptionBytes(step); err != nil {
		if err == ErrBusyTimeout {
			step(StateOptionEraseTimeout)
		}
		e.log.Error("Option byte unlock fail")
		return fatal("option byte erase", err)
	}
	step(StateOptionEraseOk)

	step(StateProgramUnlocking)
	if err := e.UnlockOptionBytes(); err != nil {
		return fatal("option byte unlock", err)
	}
	if err := e.write32(e.regs.Control, CTLOBPG|CTLOBWEN); err != nil {
		return fatal("option byte program", err)
	}

	step(StateProgramWriting)
	if err := e.write16(e.regs.ReadProtect, e.regs.UnprotectValue); err != nil {
		return fatal("write read protection", err)
	}
	if err := e.write16(e.regs.UserOption, user); err != nil {
		return fatal("restore user option", err)
	}

	step(StateProgramBusyPoll)
	if err := e.waitIdle(); err != nil {
		if err == ErrBusyTimeout {
			step(StateProgramTimeout)
		}
		e.log.Error("Mass erase failed")
		return fatal("option byte program", err)
	}

	step(StateDone)
	return nil
}

// waitIdle polls FMC_STAT until BUSY clears or the deadline passes.
func (e *Engine) waitIdle() error {
	to := timeout.New(e.config.Clock, e.config.Timeout)
	for to.Check() {
		status, err := e.read32(e.regs.Status)
		if err != nil {
			return err
		}
		if status&STATBusy == 0 {
			return nil
		}
		e.config.Clock.Sleep(e.config.PollInterval)
	}
	return ErrBusyTimeout
}

func (e *Engine) read16(addr uint32) (uint16, error) {
	v, err := e.mem.Read16(addr)
	if err != nil {
		return 0, &AccessError{Op: "read16", Addr: addr, Err: err}
	}
	return v, nil
}

func (e *Engine) read32(addr uint32) (uint32, error) {
	v, err := e.mem.Read32(addr)
	if err != nil {
		return 0, &AccessError{Op: "read32", Addr: addr, Err: err}
	}
	return v, nil
}

func (e *Engine) write16(addr uint32, v uint16) error {
	if err := e.mem.Write16(addr, v); err != nil {
		return &AccessError{Op: "write16", Addr: addr, Err: err}
	}
	return nil
}

func (e *Engine) write32(addr uint32, v uint32) error {
	if err := e.mem.Write32(addr, v); err != nil {
		return &AccessError{Op: "write32", Addr: addr, Err: err}
	}
	return nil
}
