package deviceinfo

import "github.com/OpenTraceLab/gdflash/pkg/idcode"

// DeviceInfo describes the debug port behind a DPIDR value
type DeviceInfo struct {
	// Key fields
	DPIDR    idcode.DPIDR
	Designer idcode.Manufacturer

	// Human-friendly
	Name        string // "SW-DP (MINDP)"
	Description string // "Cortex-M23/M33 debug port"

	// Cores known to ship with this debug port
	Cores []string
}
