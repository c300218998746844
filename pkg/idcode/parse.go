package idcode

import "fmt"

// ParseDPIDR parses a raw 32-bit DPIDR into its component fields
func ParseDPIDR(raw uint32) DPIDR {
	return DPIDR{
		Raw:         raw,
		Revision:    uint8((raw >> 28) & 0xF),
		PartNumber:  uint8((raw >> 20) & 0xFF),
		MinDP:       raw&(1<<16) != 0,
		Version:     uint8((raw >> 12) & 0xF),
		Designer:    uint16((raw >> 1) & 0x7FF),
		HasDesigner: (raw & 0x1) == 0x1,
	}
}

// Valid reports whether the value looks like a DPIDR read from a live
// debug port. All-zero and all-one words come from a floating SWDIO line.
func (d DPIDR) Valid() bool {
	return d.HasDesigner && d.Raw != 0xFFFFFFFF && d.Version != 0
}

func (d DPIDR) String() string {
	kind := "DP"
	if d.MinDP {
		kind = "MINDP"
	}
	return fmt.Sprintf("DPv%d %s part 0x%02X rev %d", d.Version, kind, d.PartNumber, d.Revision)
}
