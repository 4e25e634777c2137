package deviceinfo

import (
	"fmt"

	"github.com/OpenTraceLab/seracc/pkg/idcode"
)

// db is the in-memory device database keyed by DEV_ID
var db = make(map[uint16]DeviceInfo)

// register adds a device entry to the database
func register(devID uint16, info DeviceInfo) {
	info.Known = true
	db[devID] = info
}

// Lookup returns device information for a raw DBGMCU_IDCODE value.
// Falls back to generic info if the part is not in the database.
func Lookup(raw uint32) DeviceInfo {
	id := idcode.ParseDBGMCU(raw)
	info, ok := db[id.DeviceCode]
	if !ok {
		return DeviceInfo{
			ID:          id,
			Name:        fmt.Sprintf("Unknown device 0x%03X", id.DeviceCode),
			Description: "No entry in device database",
			Revision:    fmt.Sprintf("0x%04X", id.Revision),
		}
	}
	info.ID = id
	if letter, ok := info.revLetters[id.Revision]; ok {
		info.Revision = letter
	} else {
		info.Revision = fmt.Sprintf("0x%04X", id.Revision)
	}
	return info
}

// Supported returns the DEV_IDs that resolve to a known part.
func Supported() []uint16 {
	out := make([]uint16, 0, len(db))
	for id := range db {
		out = append(out, id)
	}
	return out
}
