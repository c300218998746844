package flashalgo

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/OpenTraceLab/gdflash/pkg/cortexm"
)

func newTestRunner(t *testing.T, d Descriptor, events *[]string) (*Runner, *ramMemory, *SimCore) {
	t.Helper()
	mem := newRAMMemory(events)
	core := NewSimCore(d)
	r, err := NewRunner(d, mem, core)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r, mem, core
}

func TestNewRunnerRejectsInvalid(t *testing.T) {
	d := testDescriptor()
	d.Instructions = nil
	if _, err := NewRunner(d, newRAMMemory(nil), NewSimCore(d)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadWritesAndVerifies(t *testing.T) {
	d := testDescriptor()
	r, mem, core := newTestRunner(t, d, nil)

	if err := r.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !r.Loaded() {
		t.Error("Loaded() = false after Load")
	}
	if core.HaltCount() != 1 {
		t.Errorf("halts = %d, want 1", core.HaltCount())
	}
	if !bytes.Equal(mem.bytes(d.LoadAddress, 4*len(d.Instructions)), d.Bytes()) {
		t.Error("RAM does not hold the payload")
	}
}

func TestLoadVerifyMismatch(t *testing.T) {
	d := testDescriptor()
	r, mem, _ := newTestRunner(t, d, nil)
	mem.corrupt[0x20000010] = 0xDEADBEEF

	err := r.Load()
	var verr *VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("Load error = %v, want *VerifyError", err)
	}
	if verr.Addr != 0x20000010 || verr.Got != 0xDEADBEEF || verr.Want != d.Instructions[4] {
		t.Errorf("VerifyError = %+v", verr)
	}
	if r.Loaded() {
		t.Error("Loaded() = true after failed verify")
	}
}

func TestCallBeforeLoad(t *testing.T) {
	r, _, _ := newTestRunner(t, testDescriptor(), nil)
	if err := r.EraseAll(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("EraseAll error = %v, want ErrNotLoaded", err)
	}
}

func TestEntryPointCallFrame(t *testing.T) {
	d := testDescriptor()
	tests := []struct {
		entry Entry
		call  func(r *Runner) error
		args  []uint32
	}{
		{EntryInit, func(r *Runner) error { return r.Init(0x08000000, 8_000_000, OpProgram) }, []uint32{0x08000000, 8_000_000, 2}},
		{EntryUnInit, func(r *Runner) error { return r.UnInit(OpErase) }, []uint32{1}},
		{EntryEraseAll, func(r *Runner) error { return r.EraseAll() }, nil},
		{EntryEraseSector, func(r *Runner) error { return r.EraseSector(0x08000C00) }, []uint32{0x08000C00}},
		{EntryProgramPage, func(r *Runner) error { return r.ProgramPage(0x08000400, []byte{1, 2, 3}) }, []uint32{0x08000400, 0x400, 0x20001000}},
	}

	for _, tt := range tests {
		t.Run(tt.entry.String(), func(t *testing.T) {
			r, _, core := newTestRunner(t, d, nil)
			if err := r.Load(); err != nil {
				t.Fatal(err)
			}
			if err := tt.call(r); err != nil {
				t.Fatalf("call failed: %v", err)
			}

			calls := core.Calls()
			if len(calls) != 1 {
				t.Fatalf("got %d calls, want 1", len(calls))
			}
			c := calls[0]
			if c.Entry != tt.entry {
				t.Errorf("entry = %s, want %s", c.Entry, tt.entry)
			}
			if c.PC != d.EntryAddress(tt.entry) {
				t.Errorf("PC = 0x%08X, want 0x%08X", c.PC, d.EntryAddress(tt.entry))
			}
			if c.StaticBase != 0x20000258 {
				t.Errorf("R9 = 0x%08X", c.StaticBase)
			}
			if c.SP != 0x20001A60 {
				t.Errorf("SP = 0x%08X", c.SP)
			}
			if c.LR != 0x20000001 {
				t.Errorf("LR = 0x%08X", c.LR)
			}
			if c.XPSR&cortexm.XPSRThumb == 0 {
				t.Errorf("XPSR = 0x%08X, Thumb bit clear", c.XPSR)
			}
			for i, want := range tt.args {
				if c.Args[i] != want {
					t.Errorf("R%d = 0x%X, want 0x%X", i, c.Args[i], want)
				}
			}
		})
	}
}

func TestNonZeroResult(t *testing.T) {
	d := testDescriptor()
	r, _, core := newTestRunner(t, d, nil)
	core.OnCall = func(c Call) (uint32, error) {
		if c.Entry == EntryEraseSector {
			return 1, nil
		}
		return 0, nil
	}
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}

	err := r.EraseSector(0x08001000)
	var aerr *AlgoError
	if !errors.As(err, &aerr) {
		t.Fatalf("EraseSector error = %v, want *AlgoError", err)
	}
	if aerr.Entry != EntryEraseSector || aerr.Code != 1 || aerr.Addr != 0x08001000 {
		t.Errorf("AlgoError = %+v", aerr)
	}

	v, err := r.Call(EntryEraseSector, time.Second, 0x08001000)
	if err != nil || v != 1 {
		t.Errorf("Call = %d, %v; want raw result 1", v, err)
	}
}

func TestWaitHaltFailure(t *testing.T) {
	d := testDescriptor()
	r, _, core := newTestRunner(t, d, nil)
	hang := errors.New("core did not halt")
	core.OnCall = func(Call) (uint32, error) { return 0, hang }
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}
	if err := r.EraseAll(); !errors.Is(err, hang) {
		t.Fatalf("EraseAll error = %v, want %v", err, hang)
	}
}

func TestProgramPagesDoubleBuffered(t *testing.T) {
	d := testDescriptor()
	var events []string
	r, mem, core := newTestRunner(t, d, &events)

	programmed := make(map[uint32][]byte)
	core.OnCall = func(c Call) (uint32, error) {
		if c.Entry == EntryProgramPage {
			events = append(events, fmt.Sprintf("done %08X", c.Args[0]))
			programmed[c.Args[0]] = mem.bytes(c.Args[2], int(c.Args[1]))
		}
		return 0, nil
	}
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}
	events = nil

	data := make([]byte, 3*0x400+0x10)
	for i := range data {
		data[i] = byte(i / 0x400)
	}
	if err := r.ProgramPages(0x08000800, data); err != nil {
		t.Fatalf("ProgramPages failed: %v", err)
	}

	want := []string{
		"write 20000260",
		"write 20000660", "done 08000800",
		"write 20000260", "done 08000C00",
		"write 20000660", "done 08001000",
		"done 08001400",
	}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Fatalf("events = %v\nwant     %v", events, want)
	}

	var buffers []uint32
	for _, c := range core.Calls() {
		buffers = append(buffers, c.Args[2])
	}
	if fmt.Sprintf("%X", buffers) != "[20000260 20000660 20000260 20000660]" {
		t.Errorf("buffers = %X", buffers)
	}

	for page := 0; page < 3; page++ {
		got := programmed[0x08000800+uint32(page)*0x400]
		if !bytes.Equal(got, bytes.Repeat([]byte{byte(page)}, 0x400)) {
			t.Errorf("page %d programmed with wrong data", page)
		}
	}
	last := programmed[0x08001400]
	if !bytes.Equal(last[:0x10], bytes.Repeat([]byte{3}, 0x10)) {
		t.Error("tail page data wrong")
	}
	if !bytes.Equal(last[0x10:], bytes.Repeat([]byte{0xFF}, 0x3F0)) {
		t.Error("tail page not padded with 0xFF")
	}
}

func TestProgramPagesSingleBuffer(t *testing.T) {
	d := testDescriptor()
	d.PageBuffers = nil
	r, _, core := newTestRunner(t, d, nil)
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}

	if err := r.ProgramPages(0x08000000, make([]byte, 0x800)); err != nil {
		t.Fatalf("ProgramPages failed: %v", err)
	}
	calls := core.Calls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	for _, c := range calls {
		if c.Args[2] != d.BeginData {
			t.Errorf("buffer = 0x%08X, want BeginData", c.Args[2])
		}
	}
}

func TestProgramPagesStopsOnError(t *testing.T) {
	d := testDescriptor()
	r, _, core := newTestRunner(t, d, nil)
	core.OnCall = func(c Call) (uint32, error) {
		if c.Args[0] == 0x08000400 {
			return 5, nil
		}
		return 0, nil
	}
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}

	err := r.ProgramPages(0x08000000, make([]byte, 4*0x400))
	var aerr *AlgoError
	if !errors.As(err, &aerr) || aerr.Addr != 0x08000400 || aerr.Code != 5 {
		t.Fatalf("error = %v, want AlgoError for 0x08000400", err)
	}
	// Page 2 is already in its buffer but never started.
	if n := len(core.Calls()); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestProgramUnaligned(t *testing.T) {
	r, _, _ := newTestRunner(t, testDescriptor(), nil)
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}
	if err := r.ProgramPages(0x08000010, []byte{1}); !errors.Is(err, ErrUnaligned) {
		t.Errorf("ProgramPages error = %v, want ErrUnaligned", err)
	}
	if err := r.ProgramPage(0x08000000, make([]byte, 0x401)); err == nil {
		t.Error("expected error for oversized page")
	}
}
