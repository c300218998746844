// Package target binds a part definition to a live (or simulated) debug
// connection: option byte recovery through the FMC engine and flash
// erase/program through the part's flash algorithm.
package target

import (
	"fmt"
	"time"

	"github.com/OpenTraceLab/gdflash/pkg/flashalgo"
	"github.com/OpenTraceLab/gdflash/pkg/fmc"
	"github.com/OpenTraceLab/gdflash/pkg/timeout"
	"github.com/sirupsen/logrus"
)

// Memory is the bus access a Target needs.
type Memory interface {
	fmc.Memory
	ReadBlock32(addr uint32, n int) ([]uint32, error)
	WriteBlock32(addr uint32, data []uint32) error
}

// Core is the core control a Target needs to run the flash algorithm.
type Core = flashalgo.Core

type config struct {
	log        logrus.FieldLogger
	clock      timeout.Clock
	fmcTimeout time.Duration
	interval   time.Duration
	stateHook  fmc.StateHook
	runnerOpts []flashalgo.RunnerOption
}

// Option configures Open.
type Option func(*config)

// WithLogger sets the logger shared by the engine, runner and eraser.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock sets the clock the FMC engine polls with.
func WithClock(clock timeout.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithBusyTimeout overrides the FMC busy timeout and poll interval.
func WithBusyTimeout(d, interval time.Duration) Option {
	return func(c *config) {
		c.fmcTimeout = d
		c.interval = interval
	}
}

// WithStateHook observes the read protection recovery sequence.
func WithStateHook(hook fmc.StateHook) Option {
	return func(c *config) { c.stateHook = hook }
}

// WithRunnerOptions passes options through to the algorithm runner.
func WithRunnerOptions(opts ...flashalgo.RunnerOption) Option {
	return func(c *config) { c.runnerOpts = append(c.runnerOpts, opts...) }
}

// Target is an open session on one part.
type Target struct {
	def    *Definition
	mem    Memory
	engine *fmc.Engine
	runner *flashalgo.Runner
	eraser *flashalgo.Eraser
	log    logrus.FieldLogger
}

// Open wires def to mem and core. Nothing is written to the target until
// an operation is called.
func Open(def *Definition, mem Memory, core Core, opts ...Option) (*Target, error) {
	cfg := config{
		log:        logrus.StandardLogger(),
		fmcTimeout: fmc.DefaultTimeout,
		interval:   fmc.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log.WithField("part", def.PartNumber)

	runnerOpts := append([]flashalgo.RunnerOption{flashalgo.WithRunnerLogger(log)}, cfg.runnerOpts...)
	runner, err := flashalgo.NewRunner(def.Algo, mem, core, runnerOpts...)
	if err != nil {
		return nil, err
	}
	eraser := flashalgo.NewEraser(runner, log)

	fmcOpts := []fmc.Option{
		fmc.WithLogger(cfg.log),
		fmc.WithPartNumber(def.PartNumber),
		fmc.WithTimeout(cfg.fmcTimeout),
		fmc.WithPollInterval(cfg.interval),
	}
	if cfg.clock != nil {
		fmcOpts = append(fmcOpts, fmc.WithClock(cfg.clock))
	}
	if cfg.stateHook != nil {
		fmcOpts = append(fmcOpts, fmc.WithStateHook(cfg.stateHook))
	}

	return &Target{
		def:    def,
		mem:    mem,
		engine: fmc.New(mem, def.Registers, eraser, fmcOpts...),
		runner: runner,
		eraser: eraser,
		log:    log,
	}, nil
}

// Definition returns the part definition.
func (t *Target) Definition() *Definition {
	return t.def
}

// Memory returns the bus the target was opened with.
func (t *Target) Memory() Memory {
	return t.mem
}

// Engine exposes the FMC register engine.
func (t *Target) Engine() *fmc.Engine {
	return t.engine
}

// IsLocked reports whether read protection is active.
func (t *Target) IsLocked() (bool, error) {
	return t.engine.IsLocked()
}

// MassErase erases the whole device, clearing read protection if set.
func (t *Target) MassErase() error {
	return t.engine.MassErase()
}

// EraseSectors erases every sector overlapping [addr, addr+length).
func (t *Target) EraseSectors(addr, length uint32) error {
	sectors, err := t.sectorsFor(addr, length)
	if err != nil {
		return err
	}
	return t.eraser.Erase(flashalgo.EraseRequest{Mode: flashalgo.EraseModeSector, Sectors: sectors})
}

// Program erases the sectors covered by data and programs it at addr.
// Bytes between the start of the first page and addr are left erased.
func (t *Target) Program(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := t.EraseSectors(addr, uint32(len(data))); err != nil {
		return fmt.Errorf("erase: %w", err)
	}

	algo := t.def.Algo
	lead := (addr - algo.FlashStart) % algo.PageSize
	start := addr - lead
	if lead > 0 {
		padded := make([]byte, int(lead)+len(data))
		for i := range padded[:lead] {
			padded[i] = 0xFF
		}
		copy(padded[lead:], data)
		data = padded
	}

	began := time.Now()
	if err := t.runner.Init(start, 0, flashalgo.OpProgram); err != nil {
		return fmt.Errorf("program: %w", err)
	}
	err := t.runner.ProgramPages(start, data)
	if uerr := t.runner.UnInit(flashalgo.OpProgram); err == nil {
		err = uerr
	}
	if err != nil {
		return fmt.Errorf("program: %w", err)
	}

	t.log.WithField("addr", fmt.Sprintf("0x%08X", addr)).
		Infof("Programmed %d bytes in %s", len(data)-int(lead), time.Since(began).Round(time.Millisecond))
	return nil
}

func (t *Target) sectorsFor(addr, length uint32) ([]uint32, error) {
	flash := t.def.Flash()
	if length == 0 || !flash.Contains(addr, length) {
		return nil, fmt.Errorf("range 0x%08X+0x%X outside %s", addr, length, flash)
	}
	var out []uint32
	end := uint64(addr) + uint64(length)
	for a := uint64(addr); a < end; {
		s, ok := t.def.Algo.SectorAt(uint32(a))
		if !ok {
			return nil, fmt.Errorf("no sector at 0x%08X", a)
		}
		out = append(out, s.Addr)
		a = uint64(s.Addr) + uint64(s.Size)
	}
	return out, nil
}
