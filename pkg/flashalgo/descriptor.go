// Package flashalgo describes a position-independent flash programming
// routine that runs from target RAM, and drives it through its call ABI.
package flashalgo

import (
	"encoding/binary"
	"fmt"
)

// Entry names one of the routine's exported functions.
type Entry int

const (
	EntryInit Entry = iota
	EntryUnInit
	EntryProgramPage
	EntryEraseSector
	EntryEraseAll
)

var entryNames = [...]string{
	EntryInit:        "Init",
	EntryUnInit:      "UnInit",
	EntryProgramPage: "ProgramPage",
	EntryEraseSector: "EraseSector",
	EntryEraseAll:    "EraseAll",
}

func (e Entry) String() string {
	if e >= 0 && int(e) < len(entryNames) {
		return entryNames[e]
	}
	return fmt.Sprintf("Entry(%d)", int(e))
}

// Entries lists every entry point in call order of a typical session.
var Entries = []Entry{EntryInit, EntryUnInit, EntryProgramPage, EntryEraseSector, EntryEraseAll}

// EntryPoints holds function offsets relative to the load address. The
// Thumb bit is part of the offset.
type EntryPoints struct {
	Init        uint32
	UnInit      uint32
	ProgramPage uint32
	EraseSector uint32
	EraseAll    uint32
}

// Segment is a section of the loaded image, relative to the load address.
type Segment struct {
	Start uint32
	Size  uint32
}

// SectorRange declares uniform sectors of Size bytes from Offset up to the
// next range or the end of flash.
type SectorRange struct {
	Offset uint32
	Size   uint32
}

// Sector is one erase unit.
type Sector struct {
	Addr uint32
	Size uint32
}

// Region is an address range.
type Region struct {
	Start  uint32
	Length uint32
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return uint64(r.Start) + uint64(r.Length)
}

// Contains reports whether [addr, addr+n) lies inside r.
func (r Region) Contains(addr uint32, n uint32) bool {
	return addr >= r.Start && uint64(addr)+uint64(n) <= r.End()
}

func (r Region) overlaps(o Region) bool {
	return uint64(r.Start) < o.End() && uint64(o.Start) < r.End()
}

// Descriptor is the static description of a flash algorithm. Treat it as
// an immutable value; Relocate returns a new one.
type Descriptor struct {
	LoadAddress  uint32
	Instructions []uint32
	Entries      EntryPoints

	StaticBase uint32
	BeginStack uint32 // initial SP, the top of the stack
	EndStack   uint32 // lowest stack address
	BeginData  uint32 // single page buffer

	PageSize         uint32
	PageBuffers      []uint32
	MinProgramLength uint32

	RO Segment
	RW Segment
	ZI Segment

	FlashStart  uint32
	FlashSize   uint32
	SectorSizes []SectorRange

	RAM Region
}

// Footprint is the RAM range occupied by the instructions.
func (d Descriptor) Footprint() Region {
	return Region{Start: d.LoadAddress, Length: uint32(4 * len(d.Instructions))}
}

// Flash returns the flash range the algorithm programs.
func (d Descriptor) Flash() Region {
	return Region{Start: d.FlashStart, Length: d.FlashSize}
}

// DoubleBuffered reports whether two page buffers are available.
func (d Descriptor) DoubleBuffered() bool {
	return len(d.PageBuffers) >= 2
}

// Offset returns the raw relative offset of e.
func (d Descriptor) Offset(e Entry) uint32 {
	switch e {
	case EntryInit:
		return d.Entries.Init
	case EntryUnInit:
		return d.Entries.UnInit
	case EntryProgramPage:
		return d.Entries.ProgramPage
	case EntryEraseSector:
		return d.Entries.EraseSector
	case EntryEraseAll:
		return d.Entries.EraseAll
	}
	panic(fmt.Sprintf("flashalgo: unknown entry %d", int(e)))
}

// EntryAddress returns the absolute call address of e, Thumb bit included.
func (d Descriptor) EntryAddress(e Entry) uint32 {
	return d.LoadAddress + d.Offset(e)
}

// BreakpointAddress is the return address given to every call. The first
// instruction word at the load address is a BKPT.
func (d Descriptor) BreakpointAddress() uint32 {
	return d.LoadAddress + 1
}

// Sectors expands the sector map into concrete sectors in address order.
// The map must be valid.
func (d Descriptor) Sectors() []Sector {
	var out []Sector
	for i, r := range d.SectorSizes {
		end := d.FlashSize
		if i+1 < len(d.SectorSizes) {
			end = d.SectorSizes[i+1].Offset
		}
		if r.Size == 0 {
			continue
		}
		for off := r.Offset; off+r.Size <= end; off += r.Size {
			out = append(out, Sector{Addr: d.FlashStart + off, Size: r.Size})
		}
	}
	return out
}

// SectorAt returns the sector containing addr.
func (d Descriptor) SectorAt(addr uint32) (Sector, bool) {
	if !d.Flash().Contains(addr, 1) {
		return Sector{}, false
	}
	off := addr - d.FlashStart
	for i := len(d.SectorSizes) - 1; i >= 0; i-- {
		r := d.SectorSizes[i]
		if off >= r.Offset && r.Size != 0 {
			start := r.Offset + (off-r.Offset)/r.Size*r.Size
			return Sector{Addr: d.FlashStart + start, Size: r.Size}, true
		}
	}
	return Sector{}, false
}

// Bytes returns the instructions as little-endian bytes.
func (d Descriptor) Bytes() []byte {
	out := make([]byte, 4*len(d.Instructions))
	for i, w := range d.Instructions {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

// Relocate returns a copy of d loaded at load instead. Every absolute RAM
// address moves by the same delta; entry offsets and the flash layout stay
// the same. The result is validated.
func (d Descriptor) Relocate(load uint32) (Descriptor, error) {
	delta := load - d.LoadAddress
	out := d.clone()
	out.LoadAddress = load
	out.StaticBase += delta
	out.BeginStack += delta
	out.EndStack += delta
	out.BeginData += delta
	for i := range out.PageBuffers {
		out.PageBuffers[i] += delta
	}
	if err := out.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("relocate to 0x%08X: %w", load, err)
	}
	return out, nil
}

func (d Descriptor) clone() Descriptor {
	d.Instructions = append([]uint32(nil), d.Instructions...)
	d.PageBuffers = append([]uint32(nil), d.PageBuffers...)
	d.SectorSizes = append([]SectorRange(nil), d.SectorSizes...)
	return d
}
