package target

import (
	"bytes"
	"testing"

	"github.com/OpenTraceLab/gdflash/pkg/flashalgo"
	"github.com/OpenTraceLab/gdflash/pkg/fmc"
	"github.com/OpenTraceLab/gdflash/pkg/timeout"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func openSim(t *testing.T) (*Target, *Simulator, *logtest.Hook) {
	t.Helper()
	sim := NewSimulator(GD32E230G8)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	tgt, err := Open(GD32E230G8, sim.Device, sim.Core,
		WithLogger(logger),
		WithClock(timeout.NewFakeClock()),
		WithBusyTimeout(fmc.DefaultTimeout, fmc.DefaultPollInterval),
	)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return tgt, sim, hook
}

func callEntries(sim *Simulator) []flashalgo.Entry {
	var out []flashalgo.Entry
	for _, c := range sim.Core.Calls() {
		out = append(out, c.Entry)
	}
	return out
}

func TestProgram(t *testing.T) {
	tgt, sim, hook := openSim(t)

	data := make([]byte, 0x900)
	for i := range data {
		data[i] = byte(i * 7)
	}
	if err := tgt.Program(0x08000400, data); err != nil {
		t.Fatalf("Program failed: %v", err)
	}

	flash := sim.Flash()
	if !bytes.Equal(flash[0x400:0xD00], data) {
		t.Error("programmed data mismatch")
	}
	if !bytes.Equal(flash[:0x400], bytes.Repeat([]byte{0xFF}, 0x400)) {
		t.Error("flash before the image was touched")
	}
	if !bytes.Equal(flash[0xD00:0x1000], bytes.Repeat([]byte{0xFF}, 0x300)) {
		t.Error("tail of the last page not left erased")
	}

	var erased, programmed int
	for _, c := range sim.Core.Calls() {
		switch c.Entry {
		case flashalgo.EntryEraseSector:
			erased++
		case flashalgo.EntryProgramPage:
			programmed++
		}
	}
	if erased != 3 || programmed != 3 {
		t.Errorf("erased %d sectors and programmed %d pages, want 3 and 3", erased, programmed)
	}

	if entry := hook.LastEntry(); entry == nil || entry.Data["part"] != "GD32E230G8" {
		t.Errorf("last log entry = %+v", entry)
	}
}

func TestProgramReplacesOldContents(t *testing.T) {
	tgt, sim, _ := openSim(t)
	sim.Device.Fill(0x08000000, 0x400, 0x00)

	if err := tgt.Program(0x08000000, []byte{0xA5, 0x5A}); err != nil {
		t.Fatalf("Program failed: %v", err)
	}
	flash := sim.Flash()
	if flash[0] != 0xA5 || flash[1] != 0x5A || flash[2] != 0xFF {
		t.Errorf("flash = % X", flash[:4])
	}
}

func TestProgramUnalignedStart(t *testing.T) {
	tgt, sim, _ := openSim(t)

	if err := tgt.Program(0x08000810, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Program failed: %v", err)
	}
	flash := sim.Flash()
	if !bytes.Equal(flash[0x800:0x810], bytes.Repeat([]byte{0xFF}, 0x10)) {
		t.Error("lead-in bytes not erased")
	}
	if !bytes.Equal(flash[0x810:0x814], []byte{1, 2, 3, 4}) {
		t.Errorf("data = % X", flash[0x810:0x814])
	}
}

func TestProgramOutsideFlash(t *testing.T) {
	tgt, sim, _ := openSim(t)
	if err := tgt.Program(0x0800FF00, make([]byte, 0x200)); err == nil {
		t.Fatal("expected error")
	}
	if len(sim.Core.Calls()) != 0 {
		t.Error("algorithm called for an out of range image")
	}
}

func TestEraseSectors(t *testing.T) {
	tgt, sim, _ := openSim(t)
	sim.Device.Fill(0x08000000, 0x10000, 0x00)

	if err := tgt.EraseSectors(0x08000C00, 0x401); err != nil {
		t.Fatalf("EraseSectors failed: %v", err)
	}
	flash := sim.Flash()
	if !bytes.Equal(flash[0xC00:0x1400], bytes.Repeat([]byte{0xFF}, 0x800)) {
		t.Error("sectors not erased")
	}
	if flash[0xBFF] != 0 || flash[0x1400] != 0 {
		t.Error("neighbouring sectors erased")
	}
}

func TestMassEraseUnlocked(t *testing.T) {
	tgt, sim, hook := openSim(t)
	sim.Device.Fill(0x08000000, 0x10000, 0x12)

	if err := tgt.MassErase(); err != nil {
		t.Fatalf("MassErase failed: %v", err)
	}
	if !bytes.Equal(sim.Flash(), bytes.Repeat([]byte{0xFF}, 0x10000)) {
		t.Error("flash not erased")
	}

	got := callEntries(sim)
	want := []flashalgo.Entry{flashalgo.EntryInit, flashalgo.EntryEraseAll, flashalgo.EntryUnInit}
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("calls = %v, want %v", got, want)
	}

	regs := GD32E230G8.Registers
	for _, w := range sim.Device.Writes() {
		if w.Addr == regs.OptionKey || w.Addr == regs.Control || w.Addr == regs.ReadProtect {
			t.Errorf("unexpected option byte access %s", w)
		}
	}
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.InfoLevel {
			t.Errorf("chip erase completion should not be logged: %q", entry.Message)
		}
	}
}

func TestMassEraseLocked(t *testing.T) {
	sim := NewSimulator(GD32E230G8)
	var states []fmc.State
	tgt, err := Open(GD32E230G8, sim.Device, sim.Core,
		WithClock(timeout.NewFakeClock()),
		WithStateHook(func(s fmc.State) { states = append(states, s) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	regs := GD32E230G8.Registers
	sim.Device.Fill(0x08000000, 0x10000, 0x12)
	sim.Device.SetReadProtected(true)
	sim.Device.SetOptionHalfword(regs.UserOption, 0x8A75)

	locked, err := tgt.IsLocked()
	if err != nil || !locked {
		t.Fatalf("IsLocked = %v, %v; want true", locked, err)
	}

	if err := tgt.MassErase(); err != nil {
		t.Fatalf("MassErase failed: %v", err)
	}

	if locked, _ := tgt.IsLocked(); locked {
		t.Error("device still locked")
	}
	if got := sim.Device.OptionHalfword(regs.UserOption); got != 0x8A75 {
		t.Errorf("user option = 0x%04X, want 0x8A75", got)
	}
	if got := sim.Device.OptionHalfword(regs.ReadProtect); got != 0x5AA5 {
		t.Errorf("read protection = 0x%04X, want 0x5AA5", got)
	}
	if !bytes.Equal(sim.Flash(), bytes.Repeat([]byte{0xFF}, 0x10000)) {
		t.Error("flash not erased when protection was lifted")
	}
	if len(sim.Core.Calls()) != 0 {
		t.Error("flash algorithm must not run on a protected device")
	}
	if states[len(states)-1] != fmc.StateDone {
		t.Errorf("final state = %s", states[len(states)-1])
	}

	if err := tgt.Program(0x08000000, []byte{0x42}); err != nil {
		t.Fatalf("Program after unlock failed: %v", err)
	}
}

func TestOpenRejectsInvalidAlgorithm(t *testing.T) {
	def := *GD32E230G8
	def.Algo.Instructions = nil
	sim := NewSimulator(GD32E230G8)
	if _, err := Open(&def, sim.Device, sim.Core); err == nil {
		t.Fatal("expected error")
	}
}
