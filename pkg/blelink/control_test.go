package blelink

import (
	"testing"

	"github.com/commatea/agt-go/pkg/wire"
)

func newTestHandler() *ControlHandler {
	return NewControlHandler("AGTaabbccddeeff", "Living Room Lamp", "A1B2C3D4E5F6G7")
}

func TestControlHandlerDeviceInformation(t *testing.T) {
	h := newTestHandler()
	resp, err := h.Handle([]byte{CmdGetDeviceInformation})
	if err != nil {
		t.Fatal(err)
	}

	r := wire.NewReader(resp)
	cmd, _ := r.ReadUint8()
	if cmd != CmdGetDeviceInformation {
		t.Fatalf("got cmd %d", cmd)
	}
	serial, _ := r.ReadString()
	name, _ := r.ReadString()
	n, _ := r.ReadUint8()
	var transports []string
	for i := 0; i < int(n); i++ {
		v, _ := r.ReadString()
		transports = append(transports, v)
	}
	devType, _ := r.ReadString()

	if serial != "AGTaabbccddeeff" || name != "Living Room Lamp" || devType != "A1B2C3D4E5F6G7" {
		t.Fatalf("got serial=%q name=%q type=%q", serial, name, devType)
	}
	if len(transports) != 1 || transports[0] != "BLUETOOTH_LOW_ENERGY" {
		t.Fatalf("got transports %v", transports)
	}
}

func TestControlHandlerDeviceFeatures(t *testing.T) {
	h := newTestHandler()
	resp, err := h.Handle([]byte{CmdGetDeviceFeatures})
	if err != nil {
		t.Fatal(err)
	}

	r := wire.NewReader(resp)
	cmd, _ := r.ReadUint8()
	features, _ := r.ReadUint8()
	attrs, _ := r.ReadUint32()
	if cmd != CmdGetDeviceFeatures || features != 0x01 || attrs != 0 {
		t.Fatalf("got cmd=%d features=0x%02x attrs=%d", cmd, features, attrs)
	}
}

func TestControlHandlerUnknownCommandIgnored(t *testing.T) {
	h := newTestHandler()
	resp, err := h.Handle([]byte{0xFF})
	if err != nil {
		t.Fatal(err)
	}
	if resp != nil {
		t.Fatalf("expected nil response, got %v", resp)
	}
}
