package deviceinfo

// ARM debug port entries
func init() {
	const arm = 0x23B // ARM Ltd JEP106 code

	register(key{Designer: arm, PartNumber: 0xBA}, DeviceInfo{
		Name:        "SW-DP",
		Description: "ARMv7-M serial wire debug port",
		Cores:       []string{"Cortex-M3", "Cortex-M4"},
	})

	register(key{Designer: arm, PartNumber: 0xBB}, DeviceInfo{
		Name:        "SW-DP (MINDP)",
		Description: "ARMv6-M minimal debug port",
		Cores:       []string{"Cortex-M0"},
	})

	register(key{Designer: arm, PartNumber: 0xBC}, DeviceInfo{
		Name:        "SW-DP (MINDP)",
		Description: "ARMv6-M minimal debug port",
		Cores:       []string{"Cortex-M0+"},
	})

	register(key{Designer: arm, PartNumber: 0xBD}, DeviceInfo{
		Name:        "SW-DP",
		Description: "ARMv7-M debug port",
		Cores:       []string{"Cortex-M7"},
	})

	register(key{Designer: arm, PartNumber: 0xBE}, DeviceInfo{
		Name:        "SW-DP (DPv2)",
		Description: "ARMv8-M debug port",
		Cores:       []string{"Cortex-M23", "Cortex-M33"},
	})
}
