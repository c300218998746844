package flashalgo

import (
	"fmt"
	"time"

	"github.com/OpenTraceLab/gdflash/pkg/cortexm"
	"github.com/sirupsen/logrus"
)

// Operation is the function code passed to Init and UnInit.
type Operation uint32

const (
	OpErase   Operation = 1
	OpProgram Operation = 2
	OpVerify  Operation = 3
)

func (o Operation) String() string {
	switch o {
	case OpErase:
		return "erase"
	case OpProgram:
		return "program"
	case OpVerify:
		return "verify"
	}
	return fmt.Sprintf("Operation(%d)", uint32(o))
}

// Memory is the word access the runner needs to place code and data in
// target RAM.
type Memory interface {
	Read32(addr uint32) (uint32, error)
	Write32(addr uint32, v uint32) error
	ReadBlock32(addr uint32, n int) ([]uint32, error)
	WriteBlock32(addr uint32, data []uint32) error
}

// Core is the subset of core control used to invoke an entry point.
type Core interface {
	Halt() error
	ReadRegister(r cortexm.Register) (uint32, error)
	WriteRegister(r cortexm.Register, v uint32) error
	Resume() error
	WaitHalt(timeout time.Duration) error
}

// Default call timeouts.
const (
	DefaultCallTimeout     = 5 * time.Second
	DefaultEraseAllTimeout = 30 * time.Second
)

type runnerConfig struct {
	callTimeout     time.Duration
	eraseAllTimeout time.Duration
	log             logrus.FieldLogger
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerConfig)

// WithCallTimeout bounds every call except EraseAll.
func WithCallTimeout(d time.Duration) RunnerOption {
	return func(c *runnerConfig) { c.callTimeout = d }
}

// WithEraseAllTimeout bounds EraseAll.
func WithEraseAllTimeout(d time.Duration) RunnerOption {
	return func(c *runnerConfig) { c.eraseAllTimeout = d }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(log logrus.FieldLogger) RunnerOption {
	return func(c *runnerConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// Runner loads a Descriptor into target RAM and calls its entry points.
// A Runner is not safe for concurrent use.
type Runner struct {
	algo   Descriptor
	mem    Memory
	core   Core
	cfg    runnerConfig
	loaded bool
}

// NewRunner validates algo and binds it to mem and core.
func NewRunner(algo Descriptor, mem Memory, core Core, opts ...RunnerOption) (*Runner, error) {
	if err := algo.Validate(); err != nil {
		return nil, err
	}
	cfg := runnerConfig{
		callTimeout:     DefaultCallTimeout,
		eraseAllTimeout: DefaultEraseAllTimeout,
		log:             logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runner{algo: algo.clone(), mem: mem, core: core, cfg: cfg}, nil
}

// Descriptor returns the algorithm the runner drives.
func (r *Runner) Descriptor() Descriptor {
	return r.algo.clone()
}

// Loaded reports whether Load has succeeded.
func (r *Runner) Loaded() bool {
	return r.loaded
}

// Load halts the core, writes the instructions to the load address and
// reads them back.
func (r *Runner) Load() error {
	r.loaded = false
	if err := r.core.Halt(); err != nil {
		return fmt.Errorf("load algorithm: %w", err)
	}

	base := r.algo.LoadAddress
	if err := r.mem.WriteBlock32(base, r.algo.Instructions); err != nil {
		return fmt.Errorf("load algorithm: %w", err)
	}
	got, err := r.mem.ReadBlock32(base, len(r.algo.Instructions))
	if err != nil {
		return fmt.Errorf("verify algorithm: %w", err)
	}
	for i, want := range r.algo.Instructions {
		if i >= len(got) || got[i] != want {
			var g uint32
			if i < len(got) {
				g = got[i]
			}
			return &VerifyError{Addr: base + uint32(4*i), Want: want, Got: g}
		}
	}

	r.loaded = true
	r.cfg.log.WithField("addr", fmt.Sprintf("0x%08X", base)).
		Debugf("Loaded flash algorithm (%d bytes)", 4*len(r.algo.Instructions))
	return nil
}

// Init prepares the routine for op on the flash at addr. clk is the core
// clock in Hz, or zero to let the routine assume its reset clock.
func (r *Runner) Init(addr, clk uint32, op Operation) error {
	return r.call(EntryInit, r.cfg.callTimeout, addr, clk, uint32(op))
}

// UnInit ends op.
func (r *Runner) UnInit(op Operation) error {
	return r.call(EntryUnInit, r.cfg.callTimeout, uint32(op))
}

// EraseAll erases the whole flash.
func (r *Runner) EraseAll() error {
	return r.call(EntryEraseAll, r.cfg.eraseAllTimeout)
}

// EraseSector erases the sector starting at addr.
func (r *Runner) EraseSector(addr uint32) error {
	return r.call(EntryEraseSector, r.cfg.callTimeout, addr)
}

// ProgramPage programs one page at addr from the single data buffer. data
// shorter than a page is padded with 0xFF.
func (r *Runner) ProgramPage(addr uint32, data []byte) error {
	if err := r.checkProgram(addr, len(data)); err != nil {
		return err
	}
	if err := r.mem.WriteBlock32(r.algo.BeginData, pageWords(data, r.algo.PageSize)); err != nil {
		return fmt.Errorf("write page buffer: %w", err)
	}
	return r.call(EntryProgramPage, r.cfg.callTimeout, addr, r.algo.PageSize, r.algo.BeginData)
}

// ProgramPages programs data starting at the page aligned addr. With two
// page buffers the next page is transferred while the previous one is
// being programmed.
func (r *Runner) ProgramPages(addr uint32, data []byte) error {
	if err := r.checkProgram(addr, 0); err != nil {
		return err
	}
	if !r.algo.DoubleBuffered() {
		for off := 0; off < len(data); off += int(r.algo.PageSize) {
			if err := r.ProgramPage(addr+uint32(off), chunk(data, off, r.algo.PageSize)); err != nil {
				return err
			}
		}
		return nil
	}

	pending := false
	var pendingAddr uint32
	for i, off := 0, 0; off < len(data); i, off = i+1, off+int(r.algo.PageSize) {
		buf := r.algo.PageBuffers[i%2]
		pageAddr := addr + uint32(off)

		if err := r.mem.WriteBlock32(buf, pageWords(chunk(data, off, r.algo.PageSize), r.algo.PageSize)); err != nil {
			return fmt.Errorf("write page buffer: %w", err)
		}
		if pending {
			if err := r.finish(EntryProgramPage, r.cfg.callTimeout, pendingAddr); err != nil {
				return err
			}
		}
		if err := r.start(EntryProgramPage, pageAddr, r.algo.PageSize, buf); err != nil {
			return err
		}
		pending, pendingAddr = true, pageAddr
	}
	if pending {
		return r.finish(EntryProgramPage, r.cfg.callTimeout, pendingAddr)
	}
	return nil
}

// Call invokes e with args and returns R0 without interpreting it.
func (r *Runner) Call(e Entry, timeout time.Duration, args ...uint32) (uint32, error) {
	if err := r.start(e, args...); err != nil {
		return 0, err
	}
	return r.wait(e, timeout)
}

func (r *Runner) call(e Entry, timeout time.Duration, args ...uint32) error {
	result, err := r.Call(e, timeout, args...)
	if err != nil {
		return err
	}
	var addr uint32
	if len(args) > 0 {
		addr = args[0]
	}
	return checkResult(e, addr, result)
}

type regWrite struct {
	reg cortexm.Register
	val uint32
}

// start sets up the call frame and lets the core run.
func (r *Runner) start(e Entry, args ...uint32) error {
	if !r.loaded {
		return ErrNotLoaded
	}
	if len(args) > 4 {
		return fmt.Errorf("%s: too many arguments (%d)", e, len(args))
	}

	frame := make([]regWrite, 0, 9)
	for i, a := range args {
		frame = append(frame, regWrite{cortexm.R0 + cortexm.Register(i), a})
	}
	frame = append(frame,
		regWrite{cortexm.R9, r.algo.StaticBase},
		regWrite{cortexm.SP, r.algo.BeginStack},
		regWrite{cortexm.LR, r.algo.BreakpointAddress()},
		regWrite{cortexm.PC, r.algo.EntryAddress(e)},
		regWrite{cortexm.XPSR, cortexm.XPSRThumb},
	)

	for _, f := range frame {
		if err := r.core.WriteRegister(f.reg, f.val); err != nil {
			return fmt.Errorf("%s: set %s: %w", e, f.reg, err)
		}
	}

	r.cfg.log.WithField("entry", e.String()).Debugf("call 0x%08X %X", r.algo.EntryAddress(e), args)
	if err := r.core.Resume(); err != nil {
		return fmt.Errorf("%s: %w", e, err)
	}
	return nil
}

func (r *Runner) wait(e Entry, timeout time.Duration) (uint32, error) {
	if err := r.core.WaitHalt(timeout); err != nil {
		return 0, fmt.Errorf("%s: %w", e, err)
	}
	result, err := r.core.ReadRegister(cortexm.R0)
	if err != nil {
		return 0, fmt.Errorf("%s: read result: %w", e, err)
	}
	return result, nil
}

func (r *Runner) finish(e Entry, timeout time.Duration, addr uint32) error {
	result, err := r.wait(e, timeout)
	if err != nil {
		return err
	}
	return checkResult(e, addr, result)
}

func checkResult(e Entry, addr, result uint32) error {
	if result != 0 {
		return &AlgoError{Entry: e, Addr: addr, Code: result}
	}
	return nil
}

func (r *Runner) checkProgram(addr uint32, n int) error {
	if (addr-r.algo.FlashStart)%r.algo.PageSize != 0 {
		return fmt.Errorf("0x%08X: %w", addr, ErrUnaligned)
	}
	if n > int(r.algo.PageSize) {
		return fmt.Errorf("page data is %d bytes, page size is %d", n, r.algo.PageSize)
	}
	return nil
}

func chunk(data []byte, off int, size uint32) []byte {
	end := off + int(size)
	if end > len(data) {
		end = len(data)
	}
	return data[off:end]
}

// pageWords packs data into little-endian words, padding a short page
// with erased bytes.
func pageWords(data []byte, size uint32) []uint32 {
	words := make([]uint32, (size+3)/4)
	for i := range words {
		var w uint32
		for b := 0; b < 4; b++ {
			v := byte(0xFF)
			if n := 4*i + b; n < len(data) {
				v = data[n]
			}
			w |= uint32(v) << (8 * b)
		}
		words[i] = w
	}
	return words
}
