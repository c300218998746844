package idcode

// DPIDR represents a parsed ADIv5 debug port identification register
type DPIDR struct {
	Raw         uint32 // full DPIDR
	Revision    uint8  // [31:28]
	PartNumber  uint8  // [27:20]
	MinDP       bool   // [16] minimal debug port
	Version     uint8  // [15:12] DPv0..DPv3
	Designer    uint16 // [11:1] JEP106
	HasDesigner bool   // bit 0 == 1
}

// Manufacturer represents a JEP106 manufacturer entry
type Manufacturer struct {
	Code         uint16 // JEP106 code, continuation count in [10:7]
	Name         string // "ARM Ltd"
	Abbreviation string // "ARM"
}
