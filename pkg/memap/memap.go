package memap

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/gdflash/pkg/dap"
)

// MEM-AP register offsets
const (
	APCSW  = 0x00
	APTAR  = 0x04
	APDRW  = 0x0C
	APBASE = 0xF8
	APIDR  = 0xFC
)

// CSW fields
const (
	CSWSize8      = 0x0
	CSWSize16     = 0x1
	CSWSize32     = 0x2
	CSWAddrIncOff = 0x00
	CSWAddrInc    = 0x10
	CSWDeviceEn   = 1 << 6
	CSWDbgSwEn    = 1 << 31
	// CSWDefault selects privileged data accesses with debug software
	// access enabled.
	CSWDefault = CSWDbgSwEn | 0x23000000
)

// tarWrap is the auto-increment boundary; TAR may not increment across it.
const tarWrap = 0x400

// ErrUnaligned is returned for an access not aligned to its size.
var ErrUnaligned = errors.New("memap: unaligned access")

// AccessError records the failing memory access.
type AccessError struct {
	Op   string
	Addr uint32
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s at 0x%08X: %v", e.Op, e.Addr, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// MemAP is a memory access port. It implements byte, halfword and word
// access plus word block transfers over the target's system bus.
type MemAP struct {
	dp    *DebugPort
	apsel uint8

	csw      uint32
	cswValid bool
}

// New returns the MEM-AP at index apsel behind dp.
func New(dp *DebugPort, apsel uint8) *MemAP {
	return &MemAP{dp: dp, apsel: apsel}
}

// IDR returns the access port identification register.
func (m *MemAP) IDR() (uint32, error) {
	return m.dp.IDR(m.apsel)
}

// Base returns the debug base address register.
func (m *MemAP) Base() (uint32, error) {
	return m.dp.ReadAP(m.apsel, APBASE)
}

func (m *MemAP) Read8(addr uint32) (uint8, error) {
	v, err := m.read(addr, CSWSize8, "read8")
	return uint8(v >> ((addr & 3) * 8)), err
}

func (m *MemAP) Read16(addr uint32) (uint16, error) {
	if addr&1 != 0 {
		return 0, &AccessError{Op: "read16", Addr: addr, Err: ErrUnaligned}
	}
	v, err := m.read(addr, CSWSize16, "read16")
	return uint16(v >> ((addr & 2) * 8)), err
}

func (m *MemAP) Read32(addr uint32) (uint32, error) {
	if addr&3 != 0 {
		return 0, &AccessError{Op: "read32", Addr: addr, Err: ErrUnaligned}
	}
	return m.read(addr, CSWSize32, "read32")
}

func (m *MemAP) Write8(addr uint32, v uint8) error {
	return m.write(addr, CSWSize8, uint32(v)<<((addr&3)*8), "write8")
}

func (m *MemAP) Write16(addr uint32, v uint16) error {
	if addr&1 != 0 {
		return &AccessError{Op: "write16", Addr: addr, Err: ErrUnaligned}
	}
	return m.write(addr, CSWSize16, uint32(v)<<((addr&2)*8), "write16")
}

func (m *MemAP) Write32(addr uint32, v uint32) error {
	if addr&3 != 0 {
		return &AccessError{Op: "write32", Addr: addr, Err: ErrUnaligned}
	}
	return m.write(addr, CSWSize32, v, "write32")
}

// ReadBlock32 reads n words starting at addr, splitting the transfer at
// each 1 KiB auto-increment boundary.
func (m *MemAP) ReadBlock32(addr uint32, n int) ([]uint32, error) {
	if addr&3 != 0 {
		return nil, &AccessError{Op: "read block", Addr: addr, Err: ErrUnaligned}
	}
	out := make([]uint32, 0, n)
	for len(out) < n {
		count := chunkWords(addr, n-len(out))
		if err := m.setup(addr, CSWSize32|CSWAddrInc); err != nil {
			return out, m.fail("read block", addr, err)
		}
		vals, err := m.dp.ReadAPBlock(m.apsel, APDRW, count)
		out = append(out, vals...)
		if err != nil {
			return out, m.fail("read block", addr, err)
		}
		addr += uint32(count * 4)
	}
	return out, nil
}

// WriteBlock32 writes data starting at addr, splitting the transfer at
// each 1 KiB auto-increment boundary.
func (m *MemAP) WriteBlock32(addr uint32, data []uint32) error {
	if addr&3 != 0 {
		return &AccessError{Op: "write block", Addr: addr, Err: ErrUnaligned}
	}
	for len(data) > 0 {
		count := chunkWords(addr, len(data))
		if err := m.setup(addr, CSWSize32|CSWAddrInc); err != nil {
			return m.fail("write block", addr, err)
		}
		if err := m.dp.WriteAPBlock(m.apsel, APDRW, data[:count]); err != nil {
			return m.fail("write block", addr, err)
		}
		data = data[count:]
		addr += uint32(count * 4)
	}
	return nil
}

func chunkWords(addr uint32, n int) int {
	room := int(tarWrap-addr%tarWrap) / 4
	if n < room {
		return n
	}
	return room
}

func (m *MemAP) read(addr uint32, size uint32, op string) (uint32, error) {
	if err := m.setup(addr, size|CSWAddrIncOff); err != nil {
		return 0, m.fail(op, addr, err)
	}
	v, err := m.dp.ReadAP(m.apsel, APDRW)
	if err != nil {
		return 0, m.fail(op, addr, err)
	}
	return v, nil
}

func (m *MemAP) write(addr uint32, size uint32, v uint32, op string) error {
	if err := m.setup(addr, size|CSWAddrIncOff); err != nil {
		return m.fail(op, addr, err)
	}
	if err := m.dp.WriteAP(m.apsel, APDRW, v); err != nil {
		return m.fail(op, addr, err)
	}
	return nil
}

// setup writes CSW when the mode changes and always writes TAR.
func (m *MemAP) setup(addr uint32, mode uint32) error {
	csw := CSWDefault | mode
	if !m.cswValid || m.csw != csw {
		if err := m.dp.WriteAP(m.apsel, APCSW, csw); err != nil {
			m.cswValid = false
			return err
		}
		m.csw = csw
		m.cswValid = true
	}
	return m.dp.WriteAP(m.apsel, APTAR, addr)
}

// fail clears sticky errors after a faulted transfer so the next access
// can proceed, and wraps err.
func (m *MemAP) fail(op string, addr uint32, err error) error {
	var te *dap.TransferError
	if errors.As(err, &te) && te.Fault() {
		if cerr := m.dp.ClearErrors(); cerr != nil {
			m.dp.log.WithError(cerr).Warn("failed to clear sticky error")
		}
	}
	return &AccessError{Op: op, Addr: addr, Err: err}
}
