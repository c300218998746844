package cmd

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/gdflash/pkg/cortexm"
	"github.com/OpenTraceLab/gdflash/pkg/dap"
	"github.com/OpenTraceLab/gdflash/pkg/memap"
	"github.com/OpenTraceLab/gdflash/pkg/target"
	log "github.com/sirupsen/logrus"
)

// session is an open probe connected to a target.
type session struct {
	probe  *dap.Probe
	ap     *memap.MemAP
	core   *cortexm.Core
	target *target.Target
	sim    *target.Simulator // nil on hardware
}

func lookupTarget() (*target.Definition, error) {
	def, ok := target.ByName(targetName)
	if !ok {
		return nil, fmt.Errorf("unknown target %q (known: %s)", targetName, strings.Join(target.Names(), ", "))
	}
	return def, nil
}

func createTransport(def *target.Definition) (dap.Transport, *target.Simulator, error) {
	switch probeType {
	case "simulator", "sim":
		sim := target.NewSimulator(def)
		sim.Device.SetReadProtected(simLocked)
		return dap.NewSimTransport(target.NewSimBus(sim)), sim, nil
	case "cmsisdap", "cmsis-dap":
		t, err := dap.NewUSBTransport(probeVID, probePID)
		if err != nil {
			return nil, nil, fmt.Errorf("open probe %04X:%04X: %w", probeVID, probePID, err)
		}
		return t, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown probe type %q (want cmsisdap or simulator)", probeType)
}

// openSession connects to the probe, powers up the debug port and opens
// the target with opts.
func openSession(opts ...target.Option) (*session, error) {
	def, err := lookupTarget()
	if err != nil {
		return nil, err
	}
	transport, sim, err := createTransport(def)
	if err != nil {
		return nil, err
	}
	logger := log.StandardLogger()

	probe, err := dap.NewProbe(transport, dap.WithSpeed(probeSpeed), dap.WithLogger(logger))
	if err != nil {
		transport.Close()
		return nil, err
	}
	s := &session{probe: probe, sim: sim}
	if err := s.connect(def, opts); err != nil {
		probe.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) connect(def *target.Definition, opts []target.Option) error {
	logger := log.StandardLogger()

	if err := s.probe.Connect(); err != nil {
		return fmt.Errorf("SWD connect: %w", err)
	}
	dp := memap.NewDebugPort(s.probe, memap.WithLogger(logger))
	if err := dp.Init(); err != nil {
		return fmt.Errorf("debug port init: %w", err)
	}
	s.ap = memap.New(dp, 0)
	s.core = cortexm.New(s.ap)

	opts = append([]target.Option{target.WithLogger(logger)}, opts...)
	tgt, err := target.Open(def, s.ap, s.core, opts...)
	if err != nil {
		return err
	}
	s.target = tgt
	return nil
}

// resetHalt resets the part and catches the core at the reset vector, so
// the flash algorithm starts from a quiet core.
func (s *session) resetHalt() error {
	if err := s.core.Reset(true); err != nil {
		return fmt.Errorf("reset and halt: %w", err)
	}
	return nil
}

func (s *session) Close() error {
	return s.probe.Close()
}
