package idcode

import "testing"

func TestParseDPIDR(t *testing.T) {
	tests := []struct {
		name     string
		raw      uint32
		revision uint8
		part     uint8
		min      bool
		version  uint8
		designer uint16
	}{
		{"Cortex-M23 DPv2", 0x0BE12477, 0, 0xBE, true, 2, 0x23B},
		{"Cortex-M4 DPv1", 0x2BA01477, 2, 0xBA, false, 1, 0x23B},
		{"Cortex-M0 MINDP", 0x0BB11477, 0, 0xBB, true, 1, 0x23B},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ParseDPIDR(tt.raw)
			if d.Revision != tt.revision || d.PartNumber != tt.part || d.MinDP != tt.min ||
				d.Version != tt.version || d.Designer != tt.designer {
				t.Errorf("ParseDPIDR(0x%08X) = %+v", tt.raw, d)
			}
			if !d.Valid() {
				t.Errorf("0x%08X reported invalid", tt.raw)
			}
		})
	}
}

func TestDPIDRValid(t *testing.T) {
	for _, raw := range []uint32{0, 0xFFFFFFFF, 0x0BE12476} {
		if ParseDPIDR(raw).Valid() {
			t.Errorf("0x%08X reported valid", raw)
		}
	}
}

func TestDPIDRString(t *testing.T) {
	got := ParseDPIDR(0x0BE12477).String()
	if got != "DPv2 MINDP part 0xBE rev 0" {
		t.Errorf("String() = %q", got)
	}
}

func TestLookupManufacturer(t *testing.T) {
	m, ok := LookupManufacturer(0x23B)
	if !ok || m.Abbreviation != "ARM" {
		t.Errorf("LookupManufacturer(0x23B) = %+v, %v", m, ok)
	}
	m, ok = LookupManufacturer(0x7FF)
	if ok || m.Name != "Unknown (0x7FF)" {
		t.Errorf("LookupManufacturer(0x7FF) = %+v, %v", m, ok)
	}
}

func TestDesignerFromDPIDR(t *testing.T) {
	tests := []struct {
		raw  uint32
		want string
	}{
		{0x0BE12477, "ARM"}, // GD32E230 SW-DP
		{0x0BC12927, "RPi"}, // RP2040 multidrop SW-DP
		{0x0BA02041, "STM"},
	}

	for _, tt := range tests {
		d := ParseDPIDR(tt.raw)
		m, ok := LookupManufacturer(d.Designer)
		if !ok || m.Abbreviation != tt.want {
			t.Errorf("0x%08X: designer 0x%03X = %+v, want %s", tt.raw, d.Designer, m, tt.want)
		}
	}
}
