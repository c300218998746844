package target

import (
	"github.com/OpenTraceLab/gdflash/pkg/flashalgo"
	"github.com/OpenTraceLab/gdflash/pkg/fmc"
)

// Algorithm result codes returned by the simulated routine.
const (
	simOK    = 0
	simFault = 1
)

// Simulator is an in-memory part: the FMC device model backs flash, RAM
// and the option bytes, and the simulated core carries out algorithm
// calls against that flash.
type Simulator struct {
	Device *fmc.SimDevice
	Core   *flashalgo.SimCore

	def *Definition
}

// NewSimulator builds a blank, unprotected part.
func NewSimulator(def *Definition) *Simulator {
	s := &Simulator{
		Device: fmc.NewSimDevice(def.Registers),
		Core:   flashalgo.NewSimCore(def.Algo),
		def:    def,
	}
	flash := def.Flash()
	s.Device.Fill(flash.Start, int(flash.Length), 0xFF)
	s.Device.BusyReads = 1
	s.Device.FlashStart = flash.Start
	s.Device.FlashSize = flash.Length
	s.Core.OnCall = s.execute
	return s
}

// Flash returns a copy of the whole flash contents.
func (s *Simulator) Flash() []byte {
	flash := s.def.Flash()
	return s.Device.PeekBytes(flash.Start, int(flash.Length))
}

func (s *Simulator) execute(c flashalgo.Call) (uint32, error) {
	algo := s.def.Algo
	flash := algo.Flash()

	switch c.Entry {
	case flashalgo.EntryInit, flashalgo.EntryUnInit:
		return simOK, nil

	case flashalgo.EntryEraseAll:
		if s.Device.ReadProtected() {
			return simFault, nil
		}
		s.Device.Fill(flash.Start, int(flash.Length), 0xFF)
		return simOK, nil

	case flashalgo.EntryEraseSector:
		sector, ok := algo.SectorAt(c.Args[0])
		if !ok || sector.Addr != c.Args[0] || s.Device.ReadProtected() {
			return simFault, nil
		}
		s.Device.Fill(sector.Addr, int(sector.Size), 0xFF)
		return simOK, nil

	case flashalgo.EntryProgramPage:
		addr, n, buf := c.Args[0], c.Args[1], c.Args[2]
		if !flash.Contains(addr, n) || s.Device.ReadProtected() {
			return simFault, nil
		}
		data := s.Device.PeekBytes(buf, int(n))
		cur := s.Device.PeekBytes(addr, int(n))
		for i := range cur {
			// Programming can only clear bits.
			cur[i] &= data[i]
		}
		s.Device.PokeBytes(addr, cur)
		return simOK, nil
	}
	return simFault, nil
}
