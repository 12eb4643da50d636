package config

import (
	"path/filepath"
	"testing"
)

func TestLoadStateMissingFileIsNotAnError(t *testing.T) {
	s, err := LoadState(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if s.TransportMode != "" || s.EchoBluetoothAddress != nil {
		t.Fatalf("LoadState on missing file = %+v, want zero value", s)
	}
}

func TestSaveStateThenLoadStateRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	addr := "AA:BB:CC:DD:EE:FF"
	want := &State{TransportMode: TransportBLE, EchoBluetoothAddress: &addr}

	if err := SaveState(path, want); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	got, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got.TransportMode != want.TransportMode {
		t.Fatalf("TransportMode = %q, want %q", got.TransportMode, want.TransportMode)
	}
	if got.EchoBluetoothAddress == nil || *got.EchoBluetoothAddress != addr {
		t.Fatalf("EchoBluetoothAddress = %v, want %q", got.EchoBluetoothAddress, addr)
	}
}

func TestSaveStateOverwritesPreviousContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	first := "11:11:11:11:11:11"
	if err := SaveState(path, &State{TransportMode: TransportBLE, EchoBluetoothAddress: &first}); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if err := SaveState(path, &State{TransportMode: TransportClassic, EchoBluetoothAddress: nil}); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	got, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got.TransportMode != TransportClassic {
		t.Fatalf("TransportMode = %q, want %q after overwrite", got.TransportMode, TransportClassic)
	}
	if got.EchoBluetoothAddress != nil {
		t.Fatalf("EchoBluetoothAddress = %v, want nil after overwrite", got.EchoBluetoothAddress)
	}
}
