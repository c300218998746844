package target

import (
	"testing"

	"github.com/OpenTraceLab/gdflash/pkg/fmc"
)

func TestMemoryMapLookup(t *testing.T) {
	m := MustMemoryMap(
		RamRegion(0x20000000, 0x2000),
		FlashRegion(0x08000000, 0x10000, 0x400, true, nil),
	)

	tests := []struct {
		addr uint32
		kind RegionKind
		ok   bool
	}{
		{0x08000000, KindFlash, true},
		{0x0800FFFF, KindFlash, true},
		{0x08010000, 0, false},
		{0x20001FFF, KindRAM, true},
		{0x20002000, 0, false},
	}
	for _, tt := range tests {
		r, ok := m.RegionAt(tt.addr)
		if ok != tt.ok || (ok && r.Kind != tt.kind) {
			t.Errorf("RegionAt(0x%08X) = %v, %v", tt.addr, r, ok)
		}
	}

	if m.Regions()[0].Kind != KindFlash {
		t.Error("regions not sorted by address")
	}
	if !m.ContainsRange(0x0800FC00, 0x400) || m.ContainsRange(0x0800FC00, 0x401) {
		t.Error("ContainsRange wrong at the end of flash")
	}
	if boot, ok := m.BootMemory(); !ok || boot.Start != 0x08000000 {
		t.Error("BootMemory not found")
	}
}

func TestMemoryMapRejectsOverlap(t *testing.T) {
	_, err := NewMemoryMap(RamRegion(0x20000000, 0x2000), RamRegion(0x20001000, 0x100))
	if err == nil {
		t.Fatal("expected overlap error")
	}
	if _, err := NewMemoryMap(RamRegion(0x20000000, 0)); err == nil {
		t.Fatal("expected empty region error")
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Register(GD32E230G8)
}

func TestRegisterRejectsMismatchedFlash(t *testing.T) {
	def := &Definition{
		Name:       "broken",
		PartNumber: "BROKEN",
		MemoryMap: MustMemoryMap(
			FlashRegion(0x08000000, 0x8000, 0x400, true, nil),
			RamRegion(0x20000000, 0x2000),
		),
		Algo:      GD32E230G8.Algo,
		Registers: fmc.GD32E230Registers(),
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
		if _, ok := ByName("broken"); ok {
			t.Error("invalid definition was registered")
		}
	}()
	Register(def)
}

func TestNames(t *testing.T) {
	found := false
	for _, n := range Names() {
		if n == "gd32e230g8" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v", Names())
	}
}
