package cortexm

import "fmt"

// Register selects a core register through DCRSR.REGSEL.
type Register uint8

const (
	R0 Register = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP // current stack pointer
	LR
	PC // debug return address
	XPSR
	MSP
	PSP

	RegisterCount = int(PSP) + 1
)

var registerNames = map[Register]string{
	R0: "r0", R1: "r1", R2: "r2", R3: "r3",
	R4: "r4", R5: "r5", R6: "r6", R7: "r7",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11", R12: "r12",
	SP: "sp", LR: "lr", PC: "pc", XPSR: "xpsr", MSP: "msp", PSP: "psp",
}

func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Register(%d)", r)
}

// System control space debug registers.
const (
	DHCSR = 0xE000EDF0
	DCRSR = 0xE000EDF4
	DCRDR = 0xE000EDF8
	DEMCR = 0xE000EDFC
	AIRCR = 0xE000ED0C
)

// DHCSR bits.
const (
	DBGKEY    = 0xA05F << 16
	CDebugEn  = 1 << 0
	CHalt     = 1 << 1
	CStep     = 1 << 2
	CMaskInts = 1 << 3
	SRegRdy   = 1 << 16
	SHalt     = 1 << 17
	SResetSt  = 1 << 25
)

// DCRSR bits.
const (
	DCRSRRegWnR = 1 << 16
)

// DEMCR bits.
const (
	DEMCRVCCoreReset = 1 << 0
)

// AIRCR bits.
const (
	AIRCRVectKey     = 0x05FA << 16
	AIRCRSysResetReq = 1 << 2
)

// XPSRThumb is the T bit, required for any code to execute on M profile.
const XPSRThumb = 1 << 24
