package bluez

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Adapter wraps a single org.bluez.Adapter1 object and the pairing/bond
// operations SPEC_FULL.md's base transport operations need, grounded on
// base_adapter.py's BaseAdapter.
type Adapter struct {
	conn *Conn
	path dbus.ObjectPath
}

// OpenDefaultAdapter resolves and wraps the host's default BlueZ adapter.
func OpenDefaultAdapter(conn *Conn) (*Adapter, error) {
	path, err := conn.DefaultAdapterPath()
	if err != nil {
		return nil, err
	}
	return &Adapter{conn: conn, path: path}, nil
}

// Path returns the adapter's D-Bus object path.
func (a *Adapter) Path() dbus.ObjectPath { return a.path }

// Address returns the adapter's own Bluetooth device address, used to
// derive the default endpoint_id/friendly_name (SPEC_FULL.md §3).
func (a *Adapter) Address() (string, error) {
	var v dbus.Variant
	if err := a.conn.object(a.path).Call("org.freedesktop.DBus.Properties.Get", 0,
		"org.bluez.Adapter1", "Address").Store(&v); err != nil {
		return "", fmt.Errorf("bluez: get Address: %w", err)
	}
	addr, _ := v.Value().(string)
	return addr, nil
}

func (a *Adapter) setProperty(iface, name string, value any) error {
	return a.conn.object(a.path).Call("org.freedesktop.DBus.Properties.Set", 0,
		iface, name, dbus.MakeVariant(value)).Err
}

// SetPowered enables or disables the radio.
func (a *Adapter) SetPowered(on bool) error {
	return a.setProperty("org.bluez.Adapter1", "Powered", on)
}

// SetDiscoverable toggles Classic/LE discoverability.
func (a *Adapter) SetDiscoverable(on bool) error {
	return a.setProperty("org.bluez.Adapter1", "Discoverable", on)
}

// SetPairable toggles whether the adapter accepts new pairing requests.
func (a *Adapter) SetPairable(on bool) error {
	return a.setProperty("org.bluez.Adapter1", "Pairable", on)
}

// SetAlias sets the name advertised to scanning/inquiring peers.
func (a *Adapter) SetAlias(name string) error {
	return a.setProperty("org.bluez.Adapter1", "Alias", name)
}

// IsPairedTo reports whether bdAddr has a bonded Device1 object and BlueZ
// considers it Paired (SPEC_FULL.md §4.7 is_paired()).
func (a *Adapter) IsPairedTo(bdAddr string) (bool, error) {
	path, found, err := a.conn.devicePathForAddress(bdAddr)
	if err != nil || !found {
		return false, err
	}
	var v dbus.Variant
	if err := a.conn.object(path).Call("org.freedesktop.DBus.Properties.Get", 0,
		"org.bluez.Device1", "Paired").Store(&v); err != nil {
		return false, fmt.Errorf("bluez: get Paired: %w", err)
	}
	paired, _ := v.Value().(bool)
	return paired, nil
}

// Unpair removes any bond BlueZ holds for bdAddr. A no-op if the device was
// never seen, matching base_adapter.py's unpair().
func (a *Adapter) Unpair(bdAddr string) error {
	path, found, err := a.conn.devicePathForAddress(bdAddr)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return a.conn.object(a.path).Call("org.bluez.Adapter1.RemoveDevice", 0, path).Err
}
