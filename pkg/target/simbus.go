package target

import (
	"github.com/OpenTraceLab/gdflash/pkg/cortexm"
)

// SimBus presents a Simulator as the system bus seen through a MEM-AP.
// Writes to the Cortex-M debug registers drive the simulated core; every
// other address reaches the device model. Algorithm calls complete
// instantly, so a DHCSR read after Resume always observes the halt.
type SimBus struct {
	sim *Simulator

	debugEn bool
	dcrdr   uint32
	demcr   uint32
}

// NewSimBus returns the system bus of sim.
func NewSimBus(sim *Simulator) *SimBus {
	return &SimBus{sim: sim}
}

func (b *SimBus) Read8(addr uint32) (uint8, error) {
	return b.sim.Device.Read8(addr)
}

func (b *SimBus) Read16(addr uint32) (uint16, error) {
	return b.sim.Device.Read16(addr)
}

func (b *SimBus) Write8(addr uint32, v uint8) error {
	return b.sim.Device.Write8(addr, v)
}

func (b *SimBus) Write16(addr uint32, v uint16) error {
	return b.sim.Device.Write16(addr, v)
}

func (b *SimBus) Read32(addr uint32) (uint32, error) {
	core := b.sim.Core
	switch addr {
	case cortexm.DHCSR:
		if !core.Halted() {
			if err := core.WaitHalt(0); err != nil {
				return 0, err
			}
		}
		v := uint32(cortexm.SRegRdy)
		if b.debugEn {
			v |= cortexm.CDebugEn
		}
		if core.Halted() {
			v |= cortexm.SHalt
		}
		return v, nil
	case cortexm.DCRDR:
		return b.dcrdr, nil
	case cortexm.DEMCR:
		return b.demcr, nil
	case cortexm.DCRSR:
		return 0, nil
	}
	return b.sim.Device.Read32(addr)
}

func (b *SimBus) Write32(addr uint32, v uint32) error {
	core := b.sim.Core
	switch addr {
	case cortexm.DHCSR:
		if v&0xFFFF0000 != cortexm.DBGKEY {
			return nil
		}
		b.debugEn = v&cortexm.CDebugEn != 0
		if v&cortexm.CHalt != 0 {
			return core.Halt()
		}
		if core.Halted() {
			return core.Resume()
		}
		return nil
	case cortexm.DCRSR:
		reg := cortexm.Register(v & 0x7F)
		if v&cortexm.DCRSRRegWnR != 0 {
			return core.WriteRegister(reg, b.dcrdr)
		}
		r, err := core.ReadRegister(reg)
		if err != nil {
			return err
		}
		b.dcrdr = r
		return nil
	case cortexm.DCRDR:
		b.dcrdr = v
		return nil
	case cortexm.DEMCR:
		b.demcr = v
		return nil
	case cortexm.AIRCR:
		if v&0xFFFF0000 == cortexm.AIRCRVectKey && v&cortexm.AIRCRSysResetReq != 0 &&
			b.demcr&cortexm.DEMCRVCCoreReset != 0 {
			return core.Halt()
		}
		return nil
	}
	return b.sim.Device.Write32(addr, v)
}
