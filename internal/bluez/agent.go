package bluez

import (
	"github.com/godbus/dbus/v5"

	"github.com/commatea/agt-go/pkg/logger"
)

const (
	agentPath       = dbus.ObjectPath("/commatea/agt/agent")
	agentInterface  = "org.bluez.Agent1"
	ioCapability    = "NoInputNoOutput"
	agentManagerObj = dbus.ObjectPath("/org/bluez")
)

// PairingAgent implements org.bluez.Agent1 with NoInputNoOutput semantics:
// every confirmation/authorization request is accepted immediately and the
// requesting device is marked trusted, grounded on
// bt_classic/adapter.py's BTClassicAdapter (a dbus.service.Object acting as
// its own agent).
type PairingAgent struct {
	conn *Conn
}

// RegisterPairingAgent exports a PairingAgent on the bus and registers it
// with BlueZ's AgentManager1 as the default agent.
func RegisterPairingAgent(conn *Conn) (*PairingAgent, error) {
	a := &PairingAgent{conn: conn}
	if err := conn.bus.Export(a, agentPath, agentInterface); err != nil {
		return nil, err
	}
	mgr := conn.bus.Object(busName, agentManagerObj)
	if call := mgr.Call("org.bluez.AgentManager1.RegisterAgent", 0, agentPath, ioCapability); call.Err != nil {
		return nil, call.Err
	}
	if call := mgr.Call("org.bluez.AgentManager1.RequestDefaultAgent", 0, agentPath); call.Err != nil {
		return nil, call.Err
	}
	return a, nil
}

// Unregister removes the agent from BlueZ's agent manager.
func (a *PairingAgent) Unregister() error {
	mgr := a.conn.bus.Object(busName, agentManagerObj)
	return mgr.Call("org.bluez.AgentManager1.UnregisterAgent", 0, agentPath).Err
}

func (a *PairingAgent) trust(device dbus.ObjectPath) {
	obj := a.conn.bus.Object(busName, device)
	call := obj.Call("org.freedesktop.DBus.Properties.Set", 0,
		"org.bluez.Device1", "Trusted", dbus.MakeVariant(true))
	if call.Err != nil {
		logger.Global().Warn("bluez: failed to trust device", "device", device, "err", call.Err)
	}
}

// RequestConfirmation auto-confirms any numeric comparison request.
func (a *PairingAgent) RequestConfirmation(device dbus.ObjectPath, passkey uint32) *dbus.Error {
	logger.Global().Debug("bluez: auto-confirming pairing", "device", device)
	a.trust(device)
	return nil
}

// RequestAuthorization auto-authorizes a pairing request with no passkey
// exchange at all.
func (a *PairingAgent) RequestAuthorization(device dbus.ObjectPath) *dbus.Error {
	logger.Global().Debug("bluez: auto-authorizing pairing", "device", device)
	a.trust(device)
	return nil
}

// AuthorizeService auto-authorizes any service/profile connection from an
// already-bonded device.
func (a *PairingAgent) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	a.trust(device)
	return nil
}

// RequestPinCode, RequestPasskey, DisplayPinCode and DisplayPasskey are
// unreachable under NoInputNoOutput; BlueZ never calls them for this
// capability, but the Agent1 interface requires them to be exported.

func (a *PairingAgent) RequestPinCode(device dbus.ObjectPath) (string, *dbus.Error) {
	return "", dbus.NewError("org.bluez.Error.Rejected", []any{"pin code entry not supported"})
}

func (a *PairingAgent) RequestPasskey(device dbus.ObjectPath) (uint32, *dbus.Error) {
	return 0, dbus.NewError("org.bluez.Error.Rejected", []any{"passkey entry not supported"})
}

func (a *PairingAgent) DisplayPinCode(device dbus.ObjectPath, pincode string) *dbus.Error {
	return nil
}

func (a *PairingAgent) DisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	return nil
}

// Cancel is called when BlueZ aborts an in-progress pairing request.
func (a *PairingAgent) Cancel() *dbus.Error {
	logger.Global().Debug("bluez: pairing request canceled")
	return nil
}

// Release is called when the agent is unregistered.
func (a *PairingAgent) Release() *dbus.Error { return nil }
