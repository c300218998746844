package deviceinfo

import "github.com/OpenTraceLab/gdflash/pkg/idcode"

// key is used for debug port database lookups
type key struct {
	Designer   uint16
	PartNumber uint8
}

// db is the in-memory debug port database
var db = make(map[key]DeviceInfo)

// register adds a debug port entry to the database
func register(k key, info DeviceInfo) {
	db[k] = info
}

// Lookup returns debug port information for a given DPIDR.
// Falls back to generic info if the port is not in the database.
func Lookup(raw uint32) DeviceInfo {
	id := idcode.ParseDPIDR(raw)
	m, _ := idcode.LookupManufacturer(id.Designer)

	k := key{Designer: id.Designer, PartNumber: id.PartNumber}
	if info, ok := db[k]; ok {
		info.DPIDR = id
		info.Designer = m
		return info
	}

	return DeviceInfo{
		DPIDR:       id,
		Designer:    m,
		Name:        "Unknown debug port",
		Description: "No entry in debug port database",
	}
}
