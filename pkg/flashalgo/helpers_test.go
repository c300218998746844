package flashalgo

import "fmt"

// testDescriptor mirrors the layout of a small Cortex-M0 part: 152 words
// at the start of 8 KiB of RAM, two 1 KiB page buffers and 64 KiB of flash
// in 1 KiB sectors.
func testDescriptor() Descriptor {
	code := make([]uint32, 152)
	code[0] = 0xE7FDBE00
	for i := 1; i < len(code); i++ {
		code[i] = 0x10000000 | uint32(i)
	}
	return Descriptor{
		LoadAddress:  0x20000000,
		Instructions: code,
		Entries: EntryPoints{
			Init:        0x005,
			UnInit:      0x091,
			ProgramPage: 0x151,
			EraseSector: 0x0F5,
			EraseAll:    0x0AD,
		},
		StaticBase:       0x20000258,
		BeginStack:       0x20001A60,
		EndStack:         0x20000A60,
		BeginData:        0x20001000,
		PageSize:         0x400,
		PageBuffers:      []uint32{0x20000260, 0x20000660},
		MinProgramLength: 0x400,
		RO:               Segment{Start: 0x4, Size: 0x254},
		RW:               Segment{Start: 0x258, Size: 0x4},
		ZI:               Segment{Start: 0x25C, Size: 0x4},
		FlashStart:       0x08000000,
		FlashSize:        0x10000,
		SectorSizes:      []SectorRange{{Offset: 0, Size: 0x400}},
		RAM:              Region{Start: 0x20000000, Length: 0x2000},
	}
}

// ramMemory is word addressed target RAM that records block writes.
type ramMemory struct {
	words   map[uint32]uint32
	events  *[]string
	corrupt map[uint32]uint32
	failAt  uint32
}

func newRAMMemory(events *[]string) *ramMemory {
	return &ramMemory{words: make(map[uint32]uint32), events: events, corrupt: make(map[uint32]uint32)}
}

func (m *ramMemory) Read32(addr uint32) (uint32, error) {
	if v, ok := m.corrupt[addr]; ok {
		return v, nil
	}
	return m.words[addr], nil
}

func (m *ramMemory) Write32(addr uint32, v uint32) error {
	m.words[addr] = v
	return nil
}

func (m *ramMemory) ReadBlock32(addr uint32, n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		out[i], _ = m.Read32(addr + uint32(4*i))
	}
	return out, nil
}

func (m *ramMemory) WriteBlock32(addr uint32, data []uint32) error {
	if m.failAt != 0 && m.failAt == addr {
		return fmt.Errorf("write 0x%08X: fault", addr)
	}
	if m.events != nil {
		*m.events = append(*m.events, fmt.Sprintf("write %08X", addr))
	}
	for i, v := range data {
		m.words[addr+uint32(4*i)] = v
	}
	return nil
}

// bytes returns n bytes starting at addr.
func (m *ramMemory) bytes(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		a := addr + uint32(i)
		out[i] = byte(m.words[a&^3] >> (8 * (a & 3)))
	}
	return out
}
