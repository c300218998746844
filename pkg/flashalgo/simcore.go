package flashalgo

import (
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/gdflash/pkg/cortexm"
)

// ErrCoreRunning is returned by SimCore for register access while running.
var ErrCoreRunning = errors.New("flashalgo: core is running")

// Call captures the register frame of one entry point invocation.
type Call struct {
	Entry      Entry
	Args       [4]uint32
	StaticBase uint32
	SP         uint32
	LR         uint32
	PC         uint32
	XPSR       uint32
}

// CallHook emulates an entry point. Its result lands in R0; a non-nil
// error is returned from WaitHalt as if the core never halted.
type CallHook func(c Call) (uint32, error)

// SimCore is an in-memory Core for tests and the simulator probe. It
// resolves the entry from PC using the descriptor it was built with and
// runs OnCall when the caller waits for the halt.
type SimCore struct {
	OnCall CallHook

	algo    Descriptor
	regs    [cortexm.RegisterCount]uint32
	halted  bool
	pending *Call
	calls   []Call
	halts   int
}

// NewSimCore builds a running core that knows the entry points of algo.
func NewSimCore(algo Descriptor) *SimCore {
	return &SimCore{algo: algo}
}

// Calls returns every call made so far.
func (s *SimCore) Calls() []Call {
	return append([]Call(nil), s.calls...)
}

// HaltCount reports how many times Halt was requested.
func (s *SimCore) HaltCount() int {
	return s.halts
}

// Halted reports whether the core is stopped in debug state.
func (s *SimCore) Halted() bool {
	return s.halted
}

func (s *SimCore) Halt() error {
	s.halts++
	s.halted = true
	s.pending = nil
	return nil
}

func (s *SimCore) ReadRegister(r cortexm.Register) (uint32, error) {
	if int(r) >= len(s.regs) {
		return 0, fmt.Errorf("flashalgo: no register %s", r)
	}
	if !s.halted {
		return 0, ErrCoreRunning
	}
	return s.regs[r], nil
}

func (s *SimCore) WriteRegister(r cortexm.Register, v uint32) error {
	if int(r) >= len(s.regs) {
		return fmt.Errorf("flashalgo: no register %s", r)
	}
	if !s.halted {
		return ErrCoreRunning
	}
	s.regs[r] = v
	return nil
}

func (s *SimCore) Resume() error {
	if !s.halted {
		return ErrCoreRunning
	}
	c := Call{
		Entry:      s.entryAt(s.regs[cortexm.PC]),
		StaticBase: s.regs[cortexm.R9],
		SP:         s.regs[cortexm.SP],
		LR:         s.regs[cortexm.LR],
		PC:         s.regs[cortexm.PC],
		XPSR:       s.regs[cortexm.XPSR],
	}
	copy(c.Args[:], s.regs[cortexm.R0:cortexm.R3+1])
	s.calls = append(s.calls, c)
	s.pending = &c
	s.halted = false
	return nil
}

func (s *SimCore) WaitHalt(timeout time.Duration) error {
	if s.halted {
		return nil
	}
	var result uint32
	if s.pending != nil && s.OnCall != nil {
		var err error
		if result, err = s.OnCall(*s.pending); err != nil {
			return err
		}
	}
	s.pending = nil
	s.regs[cortexm.R0] = result
	s.regs[cortexm.PC] = s.regs[cortexm.LR] &^ 1
	s.halted = true
	return nil
}

func (s *SimCore) entryAt(pc uint32) Entry {
	for _, e := range Entries {
		if s.algo.EntryAddress(e) == pc {
			return e
		}
	}
	return Entry(-1)
}
