// Package bluez wraps the parts of BlueZ's D-Bus API this toolkit needs
// directly: adapter power/pairing state, the pairing agent, LE advertising,
// and RFCOMM profile registration. Everything here is a thin, typed layer
// over github.com/godbus/dbus/v5 grounded on
// _examples/arnnvv-bluetalk/bluez/{bluez.go,adapter.go} and the BlueZ
// operations _examples/original_source/src/agt/base_adapter.py and
// bt_classic/adapter.py perform through Python's dbus bindings.
package bluez

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	busName       = "org.bluez"
	rootPath      = dbus.ObjectPath("/")
	adapterPrefix = "/org/bluez/"
)

// Conn is a thin handle on the system bus connection used for every BlueZ
// call this package makes.
type Conn struct {
	bus *dbus.Conn
}

// Dial connects to the system bus. BlueZ is only reachable there.
func Dial() (*Conn, error) {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: connect system bus: %w", err)
	}
	return &Conn{bus: bus}, nil
}

// Close releases the underlying bus connection.
func (c *Conn) Close() error { return c.bus.Close() }

func (c *Conn) object(path dbus.ObjectPath) dbus.BusObject {
	return c.bus.Object(busName, path)
}

// managedObjects returns BlueZ's full object tree, keyed by path then
// interface name then property name.
func (c *Conn) managedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	var out map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := c.object(rootPath).Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&out)
	if err != nil {
		return nil, fmt.Errorf("bluez: GetManagedObjects: %w", err)
	}
	return out, nil
}

// DefaultAdapterPath returns the object path of the first adapter BlueZ
// reports (e.g. /org/bluez/hci0). Only single-adapter hosts are supported.
func (c *Conn) DefaultAdapterPath() (dbus.ObjectPath, error) {
	objs, err := c.managedObjects()
	if err != nil {
		return "", err
	}
	for path, ifaces := range objs {
		if _, ok := ifaces["org.bluez.Adapter1"]; ok && strings.HasPrefix(string(path), adapterPrefix) {
			return path, nil
		}
	}
	return "", fmt.Errorf("bluez: no adapter found")
}

// devicePathForAddress finds the Device1 object path bonded to bdAddr, if
// any device with that address has been seen by BlueZ at all.
func (c *Conn) devicePathForAddress(bdAddr string) (dbus.ObjectPath, bool, error) {
	objs, err := c.managedObjects()
	if err != nil {
		return "", false, err
	}
	for path, ifaces := range objs {
		dev, ok := ifaces["org.bluez.Device1"]
		if !ok {
			continue
		}
		if addr, _ := dev["Address"].Value().(string); strings.EqualFold(addr, bdAddr) {
			return path, true, nil
		}
	}
	return "", false, nil
}

// addrFromDevicePath extracts the MAC from .../dev_AA_BB_CC_DD_EE_FF.
func addrFromDevicePath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/")
	if i < 0 {
		return ""
	}
	s = s[i+1:]
	if !strings.HasPrefix(s, "dev_") {
		return ""
	}
	return strings.ReplaceAll(s[len("dev_"):], "_", ":")
}
