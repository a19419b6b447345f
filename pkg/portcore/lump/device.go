package lump

import "time"

// MaxExtMode is the highest selectable mode index on a Powered Up device
// (LUMP_MAX_EXT_MODE).
const MaxExtMode = 15

// maxRxBuf is the largest a single message can be: header + 32 payload +
// checksum, plus one safety byte.
const maxRxBuf = 1 + 32 + 1 + 1

// Device is the synced-link model for one attached LUMP device: it
// holds everything learned during the sync handshake plus the live
// receive state.
type Device struct {
	TypeID       uint8
	NumModes     int
	NumViewModes int
	CurrentMode  uint8
	TargetBaud   uint32
	FwVersion    uint32
	HwVersion    uint32

	Modes []ModeDescriptor

	Power PowerPolicy

	// cache holds the most recently decoded Data payload per mode index.
	cache map[uint8][]byte

	LastKeepaliveTx time.Time
	LastMsgRx       time.Time
}

// NewDevice returns an empty device model, ready to be filled in by the
// sync handshake.
func NewDevice() *Device {
	return &Device{cache: make(map[uint8][]byte)}
}

// ModeByNumber looks up a mode's descriptor, or (ModeDescriptor{}, false)
// if the device never declared it.
func (d *Device) ModeByNumber(n uint8) (ModeDescriptor, bool) {
	for _, m := range d.Modes {
		if m.Number == n {
			return m, true
		}
	}
	return ModeDescriptor{}, false
}

// StoreData overwrites the cached payload for mode: only the most
// recent Data(mode) message is retained.
func (d *Device) StoreData(mode uint8, payload []byte) {
	buf := append([]byte(nil), payload...)
	d.cache[mode] = buf
}

// LatestData returns the most recently received payload for mode, or nil
// if none has arrived yet.
func (d *Device) LatestData(mode uint8) []byte {
	return d.cache[mode]
}

// Synced reports whether the device passed the post-sync invariant:
// type_id != 0 and num_modes >= 1.
func (d *Device) Synced() bool {
	return d.TypeID != 0 && d.NumModes >= 1
}
