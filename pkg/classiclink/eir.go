// Package classiclink implements the Classic Bluetooth SDP/RFCOMM
// transport driver (SPEC_FULL.md §4.6): SPP framing over an RFCOMM
// connection handed off by BlueZ, SDP service records, EIR construction,
// and NoInputNoOutput pairing. Grounded on
// _examples/original_source/src/agt/bt_classic/adapter.py.
package classiclink

import (
	"encoding/hex"
	"strings"
)

// gadgetUUIDHexLE is the 16-byte gadget service UUID
// (6088d2b3-983a-4eed-9f94-5ad1256816b7), byte-reversed as the original's
// _create_eir embeds it (little-endian complete-128-bit-UUID AD field).
const gadgetUUIDHexLE = "B7166825D15A949FED4E3A98B3D28860"

// BuildEIR constructs the Extended Inquiry Response payload advertised
// during Classic inquiry scan: local name, complete 128-bit service UUID,
// and manufacturer-specific data carrying vendor/product id and the fixed
// Amazon SIG/gadget markers, byte-exactly per
// bt_classic/adapter.py's _create_eir.
func BuildEIR(friendlyName, vendorIDHex, productIDHex string) ([]byte, error) {
	var b []byte

	nameBytes := []byte(friendlyName)
	b = append(b, byte(1+len(nameBytes)), 0x09)
	b = append(b, nameBytes...)

	uuidBytes, err := hex.DecodeString(gadgetUUIDHexLE)
	if err != nil {
		return nil, err
	}
	b = append(b, 0x11, 0x06)
	b = append(b, uuidBytes...)

	vendor, err := hex.DecodeString(strings.TrimPrefix(vendorIDHex, "0x"))
	if err != nil {
		return nil, err
	}
	product, err := hex.DecodeString(strings.TrimPrefix(productIDHex, "0x"))
	if err != nil {
		return nil, err
	}
	tail, err := hex.DecodeString("7101101515fe")
	if err != nil {
		return nil, err
	}
	mfgData := append(append(append([]byte{}, vendor...), product...), tail...)
	b = append(b, byte(1+len(mfgData)), 0xFF)
	b = append(b, mfgData...)

	b = append(b, 0x00)
	return b, nil
}
