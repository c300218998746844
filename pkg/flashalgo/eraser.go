package flashalgo

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// EraseMode selects what an Eraser erases.
type EraseMode int

const (
	// EraseModeChip erases the whole flash with the EraseAll entry point.
	EraseModeChip EraseMode = iota
	// EraseModeSector erases the sectors listed in the request.
	EraseModeSector
)

func (m EraseMode) String() string {
	switch m {
	case EraseModeChip:
		return "chip"
	case EraseModeSector:
		return "sector"
	}
	return fmt.Sprintf("EraseMode(%d)", int(m))
}

// EraseRequest describes one erase.
type EraseRequest struct {
	Mode EraseMode
	// Sectors holds addresses inside the sectors to erase, for
	// EraseModeSector. Each sector is erased once.
	Sectors []uint32
	// Quiet suppresses the completion log line.
	Quiet bool
}

// Eraser erases flash through a Runner, loading the algorithm on first use.
type Eraser struct {
	runner *Runner
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewEraser creates an Eraser. A nil log uses the standard logger.
func NewEraser(runner *Runner, log logrus.FieldLogger) *Eraser {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Eraser{runner: runner, log: log, now: time.Now}
}

// Erase performs req.
func (e *Eraser) Erase(req EraseRequest) error {
	if !e.runner.Loaded() {
		if err := e.runner.Load(); err != nil {
			return err
		}
	}
	algo := e.runner.algo
	start := e.now()

	switch req.Mode {
	case EraseModeChip:
		if err := e.run(algo.FlashStart, e.runner.EraseAll); err != nil {
			return err
		}
		if !req.Quiet {
			e.log.Infof("Erased chip in %s", e.now().Sub(start).Round(time.Millisecond))
		}
		return nil

	case EraseModeSector:
		sectors, err := e.resolve(req.Sectors)
		if err != nil {
			return err
		}
		if len(sectors) == 0 {
			return nil
		}
		var total uint32
		err = e.run(sectors[0].Addr, func() error {
			for _, s := range sectors {
				e.log.WithField("addr", fmt.Sprintf("0x%08X", s.Addr)).Debug("erase sector")
				if err := e.runner.EraseSector(s.Addr); err != nil {
					return err
				}
				total += s.Size
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !req.Quiet {
			e.log.Infof("Erased %d bytes (%d sectors) in %s", total, len(sectors), e.now().Sub(start).Round(time.Millisecond))
		}
		return nil
	}
	return fmt.Errorf("unsupported erase mode %s", req.Mode)
}

// run brackets fn with Init and UnInit for the erase operation. UnInit
// still runs when fn fails.
func (e *Eraser) run(addr uint32, fn func() error) error {
	if err := e.runner.Init(addr, 0, OpErase); err != nil {
		return err
	}
	err := fn()
	if uerr := e.runner.UnInit(OpErase); err == nil {
		err = uerr
	}
	return err
}

func (e *Eraser) resolve(addrs []uint32) ([]Sector, error) {
	seen := make(map[uint32]bool)
	var out []Sector
	for _, a := range addrs {
		s, ok := e.runner.algo.SectorAt(a)
		if !ok {
			return nil, fmt.Errorf("address 0x%08X is not in flash", a)
		}
		if seen[s.Addr] {
			continue
		}
		seen[s.Addr] = true
		out = append(out, s)
	}
	return out, nil
}
