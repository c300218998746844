package regscript

import (
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/gdflash/pkg/timeout"
	"github.com/sirupsen/logrus"
)

// Memory is the target memory a script runs against.
type Memory interface {
	Read8(addr uint32) (uint8, error)
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)
	Write8(addr uint32, v uint8) error
	Write16(addr uint32, v uint16) error
	Write32(addr uint32, v uint32) error
}

// ErrPollTimeout is returned when a poll statement's condition never held.
var ErrPollTimeout = errors.New("regscript: poll timeout")

// StatementError reports the failing statement's line.
type StatementError struct {
	Line int
	Err  error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one read or poll.
type Result struct {
	Line  int
	Op    string
	Addr  uint32
	Width int
	Value uint32
}

func (r Result) String() string {
	digits := r.Width / 4
	return fmt.Sprintf("%s 0x%08X = 0x%0*X", r.Op, r.Addr, digits, r.Value)
}

// Executor runs scripts against a Memory.
type Executor struct {
	mem      Memory
	symbols  map[string]uint32
	clock    timeout.Clock
	interval time.Duration
	log      logrus.FieldLogger
}

// Option configures an Executor.
type Option func(*Executor)

// WithSymbols makes names usable as operands.
func WithSymbols(symbols map[string]uint32) Option {
	return func(e *Executor) {
		for k, v := range symbols {
			e.symbols[k] = v
		}
	}
}

// WithClock sets the clock used by poll and sleep.
func WithClock(clock timeout.Clock) Option {
	return func(e *Executor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithPollInterval sets the delay between poll reads.
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) { e.interval = d }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Executor) {
		if log != nil {
			e.log = log
		}
	}
}

// NewExecutor creates an executor over mem.
func NewExecutor(mem Memory, opts ...Option) *Executor {
	e := &Executor{
		mem:      mem,
		symbols:  make(map[string]uint32),
		clock:    timeout.SystemClock{},
		interval: 10 * time.Millisecond,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every statement in order and stops at the first error.
// Results holds one entry per read and poll that completed.
func (e *Executor) Run(s *Script) ([]Result, error) {
	var results []Result
	for _, st := range s.Statements {
		res, err := e.exec(st)
		if err != nil {
			return results, &StatementError{Line: st.Pos.Line, Err: err}
		}
		if res != nil {
			res.Line = st.Pos.Line
			results = append(results, *res)
		}
	}
	return results, nil
}

func (e *Executor) exec(st *Statement) (*Result, error) {
	switch {
	case st.Read != nil:
		addr, err := e.eval(st.Read.Addr)
		if err != nil {
			return nil, err
		}
		width := Width(st.Read.Op)
		v, err := e.read(width, addr)
		if err != nil {
			return nil, err
		}
		return &Result{Op: st.Read.Op, Addr: addr, Width: width, Value: v}, nil

	case st.Write != nil:
		addr, err := e.eval(st.Write.Addr)
		if err != nil {
			return nil, err
		}
		v, err := e.eval(st.Write.Value)
		if err != nil {
			return nil, err
		}
		e.log.WithFields(logrus.Fields{
			"addr":  fmt.Sprintf("0x%08X", addr),
			"value": fmt.Sprintf("0x%X", v),
		}).Debug(st.Write.Op)
		return nil, e.write(Width(st.Write.Op), addr, v)

	case st.Poll != nil:
		return e.poll(st.Poll)

	case st.Sleep != nil:
		ms, err := e.eval(st.Sleep.Duration)
		if err != nil {
			return nil, err
		}
		e.clock.Sleep(time.Duration(ms) * time.Millisecond)
		return nil, nil
	}
	return nil, fmt.Errorf("empty statement")
}

func (e *Executor) poll(p *Poll) (*Result, error) {
	var vals [4]uint32
	for i, x := range []*Expr{p.Addr, p.Mask, p.Value, p.Timeout} {
		v, err := e.eval(x)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	addr, mask, want, ms := vals[0], vals[1], vals[2], vals[3]

	to := timeout.New(e.clock, time.Duration(ms)*time.Millisecond)
	for to.Check() {
		v, err := e.mem.Read32(addr)
		if err != nil {
			return nil, err
		}
		if v&mask == want {
			return &Result{Op: "poll", Addr: addr, Width: 32, Value: v}, nil
		}
		e.clock.Sleep(e.interval)
	}
	return nil, ErrPollTimeout
}

func (e *Executor) eval(x *Expr) (uint32, error) {
	var v uint32
	for _, t := range x.Terms {
		switch {
		case t.Number != nil:
			v |= uint32(*t.Number)
		default:
			sym, ok := e.symbols[t.Symbol]
			if !ok {
				return 0, fmt.Errorf("%s: unknown symbol %q", t.Pos, t.Symbol)
			}
			v |= sym
		}
	}
	return v, nil
}

func (e *Executor) read(width int, addr uint32) (uint32, error) {
	switch width {
	case 8:
		v, err := e.mem.Read8(addr)
		return uint32(v), err
	case 16:
		v, err := e.mem.Read16(addr)
		return uint32(v), err
	}
	return e.mem.Read32(addr)
}

func (e *Executor) write(width int, addr, v uint32) error {
	switch width {
	case 8:
		if v > 0xFF {
			return fmt.Errorf("value 0x%X does not fit in 8 bits", v)
		}
		return e.mem.Write8(addr, uint8(v))
	case 16:
		if v > 0xFFFF {
			return fmt.Errorf("value 0x%X does not fit in 16 bits", v)
		}
		return e.mem.Write16(addr, uint16(v))
	}
	return e.mem.Write32(addr, v)
}
