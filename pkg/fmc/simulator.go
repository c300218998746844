package fmc

import (
	"fmt"
	"sync"
)

// Access records a single bus access seen by SimDevice.
type Access struct {
	Write bool
	Width int // 8, 16 or 32
	Addr  uint32
	Value uint32
}

func (a Access) String() string {
	op := "read"
	if a.Write {
		op = "write"
	}
	return fmt.Sprintf("%s%d 0x%08X=0x%X", op, a.Width, a.Addr, a.Value)
}

// AccessHook lets tests fail individual accesses.
type AccessHook func(a Access) error

// SimDevice is an in-memory model of a GD32E23x flash memory controller and
// its option byte area, backed by a sparse byte store for everything else.
// It records every access for inspection within tests.
type SimDevice struct {
	// BusyReads is the number of FMC_STAT reads that report BUSY after an
	// erase or program trigger.
	BusyReads int
	// StuckBusy keeps BUSY set forever.
	StuckBusy bool
	// OnAccess, when set, is consulted before every access.
	OnAccess AccessHook
	// FlashStart and FlashSize locate the main flash. It is erased when an
	// accepted option byte write lifts read protection.
	FlashStart uint32
	FlashSize  uint32

	regs Registers

	mu          sync.Mutex
	mem         map[uint32]byte
	option      [8]uint16
	ctl         uint32
	keyStage    int
	obKeyStage  int
	ctlUnlocked bool
	obUnlocked  bool
	busyLeft    int
	log         []Access
}

// NewSimDevice builds a device with the given register layout, unprotected
// option bytes and a default USER byte of 0xFF.
func NewSimDevice(regs Registers) *SimDevice {
	d := &SimDevice{
		BusyReads: 2,
		regs:      regs,
		mem:       make(map[uint32]byte),
	}
	for i := range d.option {
		d.option[i] = 0xFFFF
	}
	d.option[0] = regs.UnprotectValue
	d.option[1] = 0x00FF
	return d
}

// SetReadProtected sets or clears read protection in the option bytes.
func (d *SimDevice) SetReadProtected(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if on {
		d.option[0] = 0x00FF
	} else {
		d.option[0] = d.regs.UnprotectValue
	}
}

// ReadProtected reports whether the SPC byte enables protection.
func (d *SimDevice) ReadProtected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readProtected()
}

func (d *SimDevice) readProtected() bool {
	return byte(d.option[0]) != byte(d.regs.UnprotectValue)
}

// OptionHalfword returns the raw option byte halfword at addr.
func (d *SimDevice) OptionHalfword(addr uint32) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx, ok := d.optionIndex(addr); ok {
		return d.option[idx]
	}
	return 0
}

// SetOptionHalfword overwrites an option byte halfword directly.
func (d *SimDevice) SetOptionHalfword(addr uint32, v uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx, ok := d.optionIndex(addr); ok {
		d.option[idx] = v
	}
}

// Accesses returns a copy of the access log.
func (d *SimDevice) Accesses() []Access {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Access(nil), d.log...)
}

// Writes returns only the write accesses.
func (d *SimDevice) Writes() []Access {
	var out []Access
	for _, a := range d.Accesses() {
		if a.Write {
			out = append(out, a)
		}
	}
	return out
}

// ClearLog empties the access log.
func (d *SimDevice) ClearLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = nil
}

// PeekBytes reads backing memory without side effects or logging.
func (d *SimDevice) PeekBytes(addr uint32, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = d.mem[addr+uint32(i)]
	}
	return out
}

// PokeBytes writes backing memory without side effects or logging.
func (d *SimDevice) PokeBytes(addr uint32, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, b := range data {
		d.mem[addr+uint32(i)] = b
	}
}

// Fill sets n bytes of backing memory to b.
func (d *SimDevice) Fill(addr uint32, n int, b byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.mem[addr+uint32(i)] = b
	}
}

func (d *SimDevice) Read8(addr uint32) (uint8, error) {
	v, err := d.access(Access{Width: 8, Addr: addr})
	return uint8(v), err
}

func (d *SimDevice) Read16(addr uint32) (uint16, error) {
	v, err := d.access(Access{Width: 16, Addr: addr})
	return uint16(v), err
}

func (d *SimDevice) Read32(addr uint32) (uint32, error) {
	return d.access(Access{Width: 32, Addr: addr})
}

func (d *SimDevice) Write8(addr uint32, v uint8) error {
	_, err := d.access(Access{Write: true, Width: 8, Addr: addr, Value: uint32(v)})
	return err
}

func (d *SimDevice) Write16(addr uint32, v uint16) error {
	_, err := d.access(Access{Write: true, Width: 16, Addr: addr, Value: uint32(v)})
	return err
}

func (d *SimDevice) Write32(addr uint32, v uint32) error {
	_, err := d.access(Access{Write: true, Width: 32, Addr: addr, Value: v})
	return err
}

// ReadBlock32 reads n consecutive words starting at addr.
func (d *SimDevice) ReadBlock32(addr uint32, n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		v, err := d.Read32(addr + uint32(i*4))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WriteBlock32 writes consecutive words starting at addr.
func (d *SimDevice) WriteBlock32(addr uint32, data []uint32) error {
	for i, v := range data {
		if err := d.Write32(addr+uint32(i*4), v); err != nil {
			return err
		}
	}
	return nil
}

func (d *SimDevice) access(a Access) (uint32, error) {
	if d.OnAccess != nil {
		if err := d.OnAccess(a); err != nil {
			return 0, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if a.Write {
		d.write(a)
	} else {
		a.Value = d.read(a.Width, a.Addr)
	}
	d.log = append(d.log, a)
	return a.Value, nil
}

func (d *SimDevice) read(width int, addr uint32) uint32 {
	switch addr {
	case d.regs.Status:
		if d.StuckBusy {
			return STATBusy
		}
		if d.busyLeft > 0 {
			d.busyLeft--
			return STATBusy
		}
		return 0
	case d.regs.Control:
		return d.ctl
	case d.regs.OptionStatus:
		if d.readProtected() {
			return OBSTATReadProtect
		}
		return 0
	}

	if idx, ok := d.optionIndex(addr); ok {
		v := uint32(d.option[idx])
		if width == 32 && idx+1 < len(d.option) {
			v |= uint32(d.option[idx+1]) << 16
		}
		if width == 8 && addr&1 != 0 {
			v >>= 8
		}
		return v & widthMask(width)
	}

	var v uint32
	for i := 0; i < width/8; i++ {
		v |= uint32(d.mem[addr+uint32(i)]) << (8 * i)
	}
	return v
}

func (d *SimDevice) write(a Access) {
	switch a.Addr {
	case d.regs.Key:
		d.ctlUnlocked, d.keyStage = keyStep(d.keyStage, a.Value, d.regs, d.ctlUnlocked)
		return
	case d.regs.OptionKey:
		if !d.ctlUnlocked {
			d.obKeyStage = 0
			return
		}
		d.obUnlocked, d.obKeyStage = keyStep(d.obKeyStage, a.Value, d.regs, d.obUnlocked)
		return
	case d.regs.Control:
		if !d.ctlUnlocked {
			return
		}
		d.ctl = a.Value
		if a.Value&CTLSTART != 0 && a.Value&CTLOBER != 0 && a.Value&CTLOBWEN != 0 && d.obUnlocked {
			for i := range d.option {
				d.option[i] = 0xFFFF
			}
			d.busyLeft = d.BusyReads
		}
		return
	case d.regs.Status, d.regs.OptionStatus:
		return
	}

	if idx, ok := d.optionIndex(a.Addr); ok {
		if a.Width != 16 || d.ctl&CTLOBPG == 0 || d.ctl&CTLOBWEN == 0 || !d.obUnlocked {
			return
		}
		if idx == 0 && d.readProtected() && byte(a.Value) == byte(d.regs.UnprotectValue) {
			d.eraseMainFlash()
		}
		d.option[idx] = uint16(a.Value)
		d.busyLeft = d.BusyReads
		return
	}

	for i := 0; i < a.Width/8; i++ {
		d.mem[a.Addr+uint32(i)] = byte(a.Value >> (8 * i))
	}
}

func (d *SimDevice) eraseMainFlash() {
	for i := uint32(0); i < d.FlashSize; i++ {
		d.mem[d.FlashStart+i] = 0xFF
	}
}

func (d *SimDevice) optionIndex(addr uint32) (int, bool) {
	base := d.regs.ReadProtect
	if addr < base || addr >= base+uint32(2*len(d.option)) {
		return 0, false
	}
	return int(addr-base) / 2, true
}

// keyStep advances a two-word unlock sequence. A wrong key restarts it.
func keyStep(stage int, v uint32, regs Registers, unlocked bool) (bool, int) {
	switch {
	case v == regs.Key1:
		return unlocked, 1
	case stage == 1 && v == regs.Key2:
		return true, 0
	default:
		return unlocked, 0
	}
}

func widthMask(width int) uint32 {
	if width >= 32 {
		return 0xFFFFFFFF
	}
	return 1<<uint(width) - 1
}
