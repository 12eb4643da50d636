package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Transport mode literals for State.TransportMode (SPEC_FULL.md §6).
const (
	TransportBLE     = "BLE"
	TransportClassic = "BT"
)

// State is the small persistent JSON document tracking transport mode and
// the paired hub's address (SPEC_FULL.md §6, I5). Grounded on
// alexa_gadget.py's _read_transport_mode/_read_peer_device_bt_address/
// _write_peer_device_bt_address, with the original's plain
// open(...).write() replaced by an atomic temp-file-plus-rename per §6
// (the original's non-atomicity is a deviation, noted in DESIGN.md).
type State struct {
	TransportMode        string  `json:"transportMode"`
	EchoBluetoothAddress *string `json:"echoBluetoothAddress"`
}

// LoadState reads the persistent state document at path. A missing file is
// not an error at this layer — callers (pkg/gadget) decide whether an
// absent transport mode is fatal, per SPEC_FULL.md §4.7's "fail if absent".
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveState atomically overwrites the state document at path: write to a
// temp file in the same directory, then rename over the destination.
func SaveState(path string, s *State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".agt-state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
