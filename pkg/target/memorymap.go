package target

import (
	"fmt"
	"sort"

	"github.com/OpenTraceLab/gdflash/pkg/flashalgo"
)

// RegionKind distinguishes memory types.
type RegionKind int

const (
	KindRAM RegionKind = iota
	KindFlash
)

func (k RegionKind) String() string {
	switch k {
	case KindRAM:
		return "ram"
	case KindFlash:
		return "flash"
	}
	return fmt.Sprintf("RegionKind(%d)", int(k))
}

// Region is one entry of a MemoryMap.
type Region struct {
	Kind   RegionKind
	Start  uint32
	Length uint32

	// Flash only.
	BlockSize    uint32
	IsBootMemory bool
	Algo         *flashalgo.Descriptor
}

// FlashRegion builds a flash region programmed by algo.
func FlashRegion(start, length, blockSize uint32, boot bool, algo *flashalgo.Descriptor) Region {
	return Region{
		Kind:         KindFlash,
		Start:        start,
		Length:       length,
		BlockSize:    blockSize,
		IsBootMemory: boot,
		Algo:         algo,
	}
}

// RamRegion builds a RAM region.
func RamRegion(start, length uint32) Region {
	return Region{Kind: KindRAM, Start: start, Length: length}
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return uint64(r.Start) + uint64(r.Length)
}

// Contains reports whether [addr, addr+n) lies inside r.
func (r Region) Contains(addr, n uint32) bool {
	return addr >= r.Start && uint64(addr)+uint64(n) <= r.End()
}

func (r Region) String() string {
	return fmt.Sprintf("%s 0x%08X-0x%08X", r.Kind, r.Start, r.End()-1)
}

// MemoryMap is an ordered, non-overlapping set of regions. It is not
// modified after construction.
type MemoryMap struct {
	regions []Region
}

// NewMemoryMap sorts regions by address and rejects overlaps and empty
// regions.
func NewMemoryMap(regions ...Region) (*MemoryMap, error) {
	sorted := append([]Region(nil), regions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i, r := range sorted {
		if r.Length == 0 {
			return nil, fmt.Errorf("memory map: empty region at 0x%08X", r.Start)
		}
		if i > 0 && uint64(r.Start) < sorted[i-1].End() {
			return nil, fmt.Errorf("memory map: %s overlaps %s", r, sorted[i-1])
		}
	}
	return &MemoryMap{regions: sorted}, nil
}

// MustMemoryMap is NewMemoryMap for static tables.
func MustMemoryMap(regions ...Region) *MemoryMap {
	m, err := NewMemoryMap(regions...)
	if err != nil {
		panic(err)
	}
	return m
}

// Regions returns the regions in address order.
func (m *MemoryMap) Regions() []Region {
	return append([]Region(nil), m.regions...)
}

// RegionAt returns the region containing addr.
func (m *MemoryMap) RegionAt(addr uint32) (Region, bool) {
	for _, r := range m.regions {
		if r.Contains(addr, 1) {
			return r, true
		}
	}
	return Region{}, false
}

// RegionsOfKind returns every region of kind k.
func (m *MemoryMap) RegionsOfKind(k RegionKind) []Region {
	var out []Region
	for _, r := range m.regions {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

// BootMemory returns the flash region the core boots from.
func (m *MemoryMap) BootMemory() (Region, bool) {
	for _, r := range m.regions {
		if r.Kind == KindFlash && r.IsBootMemory {
			return r, true
		}
	}
	return Region{}, false
}

// ContainsRange reports whether a single region holds [addr, addr+n).
func (m *MemoryMap) ContainsRange(addr, n uint32) bool {
	r, ok := m.RegionAt(addr)
	return ok && r.Contains(addr, n)
}
