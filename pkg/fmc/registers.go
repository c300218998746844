package fmc

// Control register (FMC_CTL) bits.
const (
	CTLOBPG  = 1 << 4 // option byte program
	CTLOBER  = 1 << 5 // option byte erase
	CTLSTART = 1 << 6 // start erase
	CTLOBWEN = 1 << 9 // option byte erase/program enable
)

// Status register (FMC_STAT) bits.
const (
	STATBusy = 1 << 0
)

// Option byte status register (FMC_OBSTAT) bits.
const (
	OBSTATReadProtect = 1 << 1
)

// Registers holds the addresses and key values of one flash memory
// controller instance. It is a plain value and is never mutated by the
// engine.
type Registers struct {
	Key          uint32 // FMC_KEY
	OptionKey    uint32 // FMC_OBKEY
	Status       uint32 // FMC_STAT
	Control      uint32 // FMC_CTL
	OptionStatus uint32 // FMC_OBSTAT

	// Option byte area.
	ReadProtect uint32 // SPC halfword
	UserOption  uint32 // USER halfword

	Key1 uint32
	Key2 uint32

	// UnprotectValue is written to ReadProtect to leave read protection off.
	UnprotectValue uint16
}

// GD32E230Registers returns the register layout of the GD32E23x FMC.
func GD32E230Registers() Registers {
	return Registers{
		Key:            0x40022004,
		OptionKey:      0x40022008,
		Status:         0x4002200C,
		Control:        0x40022010,
		OptionStatus:   0x4002201C,
		ReadProtect:    0x1FFFF800,
		UserOption:     0x1FFFF802,
		Key1:           0x45670123,
		Key2:           0xCDEF89AB,
		UnprotectValue: 0x5AA5,
	}
}

// Symbols names the registers, option byte addresses and key values for
// use in register scripts.
func (r Registers) Symbols() map[string]uint32 {
	return map[string]uint32{
		"FMC_KEY":    r.Key,
		"FMC_OBKEY":  r.OptionKey,
		"FMC_STAT":   r.Status,
		"FMC_CTL":    r.Control,
		"FMC_OBSTAT": r.OptionStatus,
		"OB_SPC":     r.ReadProtect,
		"OB_USER":    r.UserOption,
		"KEY1":       r.Key1,
		"KEY2":       r.Key2,
		"SPC_UNLOCK": uint32(r.UnprotectValue),
		"CTL_OBPG":   CTLOBPG,
		"CTL_OBER":   CTLOBER,
		"CTL_START":  CTLSTART,
		"CTL_OBWEN":  CTLOBWEN,
		"STAT_BUSY":  STATBusy,
		"OBSTAT_RP":  OBSTATReadProtect,
	}
}

// Memory is the target memory access the engine drives. Implementations
// perform a single bus access of the given width per call.
type Memory interface {
	Read8(addr uint32) (uint8, error)
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)
	Write8(addr uint32, v uint8) error
	Write16(addr uint32, v uint16) error
	Write32(addr uint32, v uint32) error
}
