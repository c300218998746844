package deviceinfo

import "testing"

func TestLookup(t *testing.T) {
	info := Lookup(0x0BE12477)
	if info.Name != "SW-DP (DPv2)" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.Designer.Abbreviation != "ARM" {
		t.Errorf("Designer = %+v", info.Designer)
	}
	if info.DPIDR.Raw != 0x0BE12477 {
		t.Errorf("DPIDR not filled in: %+v", info.DPIDR)
	}
}

func TestLookupUnknown(t *testing.T) {
	info := Lookup(0x0AA00001)
	if info.Name != "Unknown debug port" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.DPIDR.PartNumber != 0xAA {
		t.Errorf("PartNumber = 0x%02X", info.DPIDR.PartNumber)
	}
}

func TestDatabasePopulated(t *testing.T) {
	if len(db) == 0 {
		t.Fatal("debug port database is empty; vendor tables were not compiled in")
	}
	for _, part := range []uint8{0xBA, 0xBB, 0xBC, 0xBD, 0xBE} {
		if _, ok := db[key{Designer: 0x23B, PartNumber: part}]; !ok {
			t.Errorf("no entry for ARM part 0x%02X", part)
		}
	}
}
