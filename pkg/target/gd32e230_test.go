package target

import (
	"testing"

	"github.com/OpenTraceLab/gdflash/pkg/flashalgo"
)

func TestGD32E230Registered(t *testing.T) {
	for _, name := range []string{"gd32e230g8", "GD32E230G8"} {
		def, ok := ByName(name)
		if !ok {
			t.Fatalf("ByName(%q) not found", name)
		}
		if def != GD32E230G8 {
			t.Errorf("ByName(%q) returned a different definition", name)
		}
	}
	if def, _ := ByName("gd32e230g8"); def.Vendor != "GigaDevice" {
		t.Errorf("Vendor = %q", def.Vendor)
	}
}

func TestGD32E230Algorithm(t *testing.T) {
	algo := GD32E230G8.Algo
	if err := algo.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(algo.Instructions) != 152 {
		t.Errorf("payload has %d words, want 152", len(algo.Instructions))
	}
	if algo.Instructions[0] != 0xE7FDBE00 {
		t.Errorf("first word = 0x%08X, want the BKPT trampoline", algo.Instructions[0])
	}
	if algo.StaticBase != 0x20000258 {
		t.Errorf("StaticBase = 0x%08X", algo.StaticBase)
	}

	entries := map[flashalgo.Entry]uint32{
		flashalgo.EntryInit:        0x20000005,
		flashalgo.EntryUnInit:      0x20000091,
		flashalgo.EntryProgramPage: 0x20000151,
		flashalgo.EntryEraseSector: 0x200000F5,
		flashalgo.EntryEraseAll:    0x200000AD,
	}
	for e, want := range entries {
		if got := algo.EntryAddress(e); got != want {
			t.Errorf("%s at 0x%08X, want 0x%08X", e, got, want)
		}
	}
}

func TestGD32E230SectorsCoverFlash(t *testing.T) {
	algo := GD32E230G8.Algo
	var total uint32
	for _, s := range algo.Sectors() {
		total += s.Size
	}
	if total != 0x10000 {
		t.Errorf("sectors cover 0x%X bytes, want 0x10000", total)
	}
}

func TestGD32E230BuffersInRAM(t *testing.T) {
	algo := GD32E230G8.Algo
	ram, ok := GD32E230G8.MemoryMap.RegionAt(0x20000000)
	if !ok || ram.Kind != KindRAM {
		t.Fatal("no RAM region at 0x20000000")
	}
	fp := algo.Footprint()
	for i, b := range algo.PageBuffers {
		if !ram.Contains(b, algo.PageSize) {
			t.Errorf("page buffer %d at 0x%08X outside RAM", i, b)
		}
		if b < uint32(fp.End()) && b+algo.PageSize > fp.Start {
			t.Errorf("page buffer %d overlaps the loaded code", i)
		}
	}
	if algo.PageSize%algo.MinProgramLength != 0 {
		t.Error("min program length does not divide page size")
	}
}

func TestGD32E230MemoryMap(t *testing.T) {
	regions := GD32E230G8.MemoryMap.Regions()
	if len(regions) != 2 {
		t.Fatalf("got %d regions", len(regions))
	}
	flash := regions[0]
	if flash.Kind != KindFlash || flash.Start != 0x08000000 || flash.Length != 0x10000 ||
		flash.BlockSize != 0x400 || !flash.IsBootMemory || flash.Algo == nil {
		t.Errorf("flash region = %+v", flash)
	}
	ram := regions[1]
	if ram.Kind != KindRAM || ram.Start != 0x20000000 || ram.Length != 0x2000 {
		t.Errorf("ram region = %+v", ram)
	}
}
