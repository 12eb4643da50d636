package classiclink

import (
	"encoding/hex"
	"testing"
)

func TestBuildEIR(t *testing.T) {
	eir, err := BuildEIR("Lamp", "0101", "0001")
	if err != nil {
		t.Fatal(err)
	}

	// Length, 0x09 (complete local name), "Lamp".
	if eir[0] != byte(1+len("Lamp")) || eir[1] != 0x09 {
		t.Fatalf("name field header got %x %x", eir[0], eir[1])
	}
	if string(eir[2:2+len("Lamp")]) != "Lamp" {
		t.Fatalf("name got %q", eir[2:2+len("Lamp")])
	}

	off := 2 + len("Lamp")
	if eir[off] != 0x11 || eir[off+1] != 0x06 {
		t.Fatalf("uuid field header got %x %x", eir[off], eir[off+1])
	}
	uuid := hex.EncodeToString(eir[off+2 : off+2+16])
	if uuid != "b7166825d15a949fed4e3a98b3d28860" {
		t.Fatalf("uuid got %s", uuid)
	}

	off += 2 + 16
	if eir[off] != 0x0b || eir[off+1] != 0xff {
		t.Fatalf("manufacturer field header got %x %x", eir[off], eir[off+1])
	}
	// vendor(2) + product(2) + fixed Amazon SIG/gadget tail(6) = 10 bytes.
	mfg := hex.EncodeToString(eir[off+2 : off+2+10])
	if mfg != "010100017101101515fe" {
		t.Fatalf("manufacturer data got %s", mfg)
	}

	if eir[len(eir)-1] != 0x00 {
		t.Fatalf("expected trailing 0x00 terminator")
	}
}

func TestBuildEIRInvalidVendorID(t *testing.T) {
	if _, err := BuildEIR("Lamp", "not-hex", "0001"); err == nil {
		t.Fatal("expected error for non-hex vendor id")
	}
}
