package target

import (
	"github.com/OpenTraceLab/gdflash/pkg/flashalgo"
	"github.com/OpenTraceLab/gdflash/pkg/fmc"
)

// gd32e230Algo programs the 64 KiB main flash of the GD32E230x8 from the
// bottom of SRAM.
var gd32e230Algo = flashalgo.Descriptor{
	LoadAddress:  0x20000000,
	Instructions: gd32e230Code,
	Entries: flashalgo.EntryPoints{
		Init:        0x005,
		UnInit:      0x091,
		ProgramPage: 0x151,
		EraseSector: 0x0F5,
		EraseAll:    0x0AD,
	},
	StaticBase:       0x20000000 + 0x004 + 0x254,
	BeginStack:       0x20001A60,
	EndStack:         0x20000A60,
	BeginData:        0x20000000 + 0x1000,
	PageSize:         0x400,
	PageBuffers:      []uint32{0x20000260, 0x20000660},
	MinProgramLength: 0x400,
	RO:               flashalgo.Segment{Start: 0x004, Size: 0x254},
	RW:               flashalgo.Segment{Start: 0x258, Size: 0x004},
	ZI:               flashalgo.Segment{Start: 0x25C, Size: 0x004},
	FlashStart:       0x08000000,
	FlashSize:        0x10000,
	SectorSizes:      []flashalgo.SectorRange{{Offset: 0x0, Size: 0x400}},
	RAM:              flashalgo.Region{Start: 0x20000000, Length: 0x2000},
}

// GD32E230G8 is the GigaDevice GD32E230G8 (Cortex-M23, 64 KiB flash,
// 8 KiB SRAM).
var GD32E230G8 = &Definition{
	Name:       "gd32e230g8",
	PartNumber: "GD32E230G8",
	Vendor:     "GigaDevice",
	MemoryMap: MustMemoryMap(
		FlashRegion(0x08000000, 0x10000, 0x400, true, &gd32e230Algo),
		RamRegion(0x20000000, 0x2000),
	),
	Algo:      gd32e230Algo,
	Registers: fmc.GD32E230Registers(),
}

func init() {
	Register(GD32E230G8)
}

// The first word is the BKPT every call returns to.
var gd32e230Code = []uint32{
	0xE7FDBE00, 0xB086B5B0, 0x460C4613, 0x90054605, 0x92039104, 0x49129805,
	0x49124008, 0x5050464A, 0xF2484811, 0x60010100, 0x49114810, 0x49116001,
	0x48116001, 0x21046800, 0x93024208, 0x95009401, 0xE7FFD10A, 0x490E480D,
	0x480E6001, 0x60012106, 0x490E480D, 0xE7FF6001, 0xB0062000, 0x46C0BDB0,
	0xFFFE0000, 0x00000004, 0x40022000, 0x40022004, 0x45670123, 0xCDEF89AB,
	0x4002201C, 0x40003000, 0x00005555, 0x40003004, 0x40003008, 0x00000FFF,
	0x4601B082, 0x48049001, 0x23806802, 0x6002431A, 0x91002000, 0x4770B002,
	0x40022010, 0x6801480D, 0x43112204, 0x68016001, 0x43112240, 0xE7FF6001,
	0x68004809, 0x42082101, 0xE7FFD004, 0x49084807, 0xE7F56001, 0x68014803,
	0x43912204, 0x20006001, 0x46C04770, 0x40022010, 0x4002200C, 0x40003000,
	0x0000AAAA, 0x4601B082, 0x48109001, 0x23026802, 0x6002431A, 0x4B0E9A01,
	0x6802601A, 0x431A2340, 0x91006002, 0x480BE7FF, 0x21016800, 0xD0044208,
	0x4809E7FF, 0x60014909, 0x4804E7F5, 0x22026801, 0x60014391, 0xB0022000,
	0x46C04770, 0x40022010, 0x40022014, 0x4002200C, 0x40003000, 0x0000AAAA,
	0xB08AB5B0, 0x460C4613, 0x90084605, 0x92069107, 0x90042000, 0x99079806,
	0x90031840, 0x7800A807, 0x28000740, 0x94019302, 0xD0079500, 0x9807E7FF,
	0x40082107, 0x1A082108, 0xE7FF9004, 0x90052000, 0x9805E7FF, 0x42889904,
	0xE7FFD20A, 0x1C419803, 0x21FF9103, 0xE7FF7001, 0x1C409805, 0xE7F09005,
	0x1DC09807, 0x43882107, 0x98089007, 0x464A4923, 0x22015851, 0x18890452,
	0xD2384288, 0xE7FFE7FF, 0x28009807, 0xE7FFD032, 0x6801481D, 0x43112201,
	0x98066001, 0x99086800, 0x98066008, 0x99086840, 0xE7FF6048, 0x68004817,
	0x42082101, 0xE7FFD001, 0x4813E7F8, 0x22016801, 0x60014391, 0x68004811,
	0x42082114, 0xE7FFD008, 0x6801480E, 0x43112214, 0x20016001, 0xE00D9009,
	0x30089808, 0x98069008, 0x90063008, 0x38089807, 0xE7C99007, 0x2000E7FF,
	0xE7FF9009, 0xB00A9809, 0x46C0BDB0, 0x00000004, 0x40022010, 0x4002200C,
	0x00000000, 0x00000000,
}
