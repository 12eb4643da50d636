package bluez

import (
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"

	"github.com/commatea/agt-go/pkg/logger"
)

const profileManagerIface = "org.bluez.ProfileManager1"

// sdpRecordXML renders the SDP record XML templates from
// bt_classic/adapter.py's _create_service_records, parameterized by the
// profile UUID and RFCOMM channel.
func sdpRecordXML(serviceUUID string, channel int) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" ?>
<record>
  <attribute id="0x0001">
    <sequence><uuid value="%s" /></sequence>
  </attribute>
  <attribute id="0x0004">
    <sequence>
      <sequence><uuid value="0x0100" /></sequence>
      <sequence><uuid value="0x0003" /><uint8 value="0x%02x" /></sequence>
    </sequence>
  </attribute>
  <attribute id="0x0005">
    <sequence><uuid value="0x1002" /></sequence>
  </attribute>
  <attribute id="0x0009">
    <sequence><sequence><uuid value="%s" /><uint16 value="0x0102" /></sequence></sequence>
  </attribute>
  <attribute id="0x0100"><text value="RFC SERVER" /></attribute>
</record>`, serviceUUID, channel, serviceUUID)
}

// gadgetRecordXML is the primary, channel-less gadget identity record.
func gadgetRecordXML(gadgetUUID string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" ?>
<record>
  <attribute id="0x0001">
    <sequence><uuid value="%s" /></sequence>
  </attribute>
  <attribute id="0x0004">
    <sequence>
      <sequence><uuid value="0x0100" /><uint16 value="0x0001" /></sequence>
      <sequence><uuid value="0x0001" /></sequence>
    </sequence>
  </attribute>
  <attribute id="0x0100"><text value="gadget" /></attribute>
</record>`, gadgetUUID)
}

// NewConnectionFunc receives the accepted RFCOMM connection as a raw file
// descriptor wrapped into an *os.File, ready for net.FileConn.
type NewConnectionFunc func(device dbus.ObjectPath, fd *os.File)

// rfcommProfile is the exported org.bluez.Profile1 object backing a
// registered RFCOMM service.
type rfcommProfile struct {
	onConn NewConnectionFunc
}

func (p *rfcommProfile) Release() *dbus.Error { return nil }

func (p *rfcommProfile) NewConnection(device dbus.ObjectPath, fd dbus.UnixFD, opts map[string]dbus.Variant) *dbus.Error {
	f := os.NewFile(uintptr(fd), "rfcomm-"+string(device))
	if f == nil {
		return dbus.NewError("org.bluez.Error.Failed", []any{"invalid file descriptor"})
	}
	logger.Global().Info("bluez: RFCOMM connection accepted", "device", device)
	if p.onConn != nil {
		p.onConn(device, f)
	}
	return nil
}

func (p *rfcommProfile) RequestDisconnection(device dbus.ObjectPath) *dbus.Error {
	logger.Global().Info("bluez: RFCOMM disconnection requested", "device", device)
	return nil
}

// RFCOMMServer registers the gadget identity record plus an SPP-style
// record advertising an RFCOMM channel, and exports a Profile1 object that
// hands accepted connections to onConn, grounded on
// bt_classic/adapter.py's _create_service_records and the RegisterProfile
// Unix-fd handoff BlueZ uses for RFCOMM (idiomatic Go alternative to a raw
// AF_BLUETOOTH socket).
type RFCOMMServer struct {
	conn         *Conn
	profilePath  dbus.ObjectPath
	gadgetPath   dbus.ObjectPath
}

// NewRFCOMMServer registers the SDP records and the connection-accepting
// Profile1 object for channel on conn.
func NewRFCOMMServer(conn *Conn, gadgetUUID, sppUUID string, channel int, onConn NewConnectionFunc) (*RFCOMMServer, error) {
	s := &RFCOMMServer{
		conn:        conn,
		profilePath: dbus.ObjectPath("/commatea/agt/profile/spp"),
		gadgetPath:  dbus.ObjectPath("/commatea/agt/profile/gadget"),
	}

	prof := &rfcommProfile{onConn: onConn}
	if err := conn.bus.Export(prof, s.profilePath, "org.bluez.Profile1"); err != nil {
		return nil, err
	}

	mgr := conn.bus.Object(busName, rootPath)
	sppOpts := map[string]dbus.Variant{
		"Role":                  dbus.MakeVariant("server"),
		"RequireAuthentication": dbus.MakeVariant(false),
		"RequireAuthorization":  dbus.MakeVariant(false),
		"Channel":               dbus.MakeVariant(uint16(channel)),
		"ServiceRecord":         dbus.MakeVariant(sdpRecordXML(sppUUID, channel)),
	}
	if call := mgr.Call(profileManagerIface+".RegisterProfile", 0, s.profilePath, sppUUID, sppOpts); call.Err != nil {
		return nil, call.Err
	}

	gadgetOpts := map[string]dbus.Variant{
		"Role":          dbus.MakeVariant("server"),
		"ServiceRecord": dbus.MakeVariant(gadgetRecordXML(gadgetUUID)),
	}
	if call := mgr.Call(profileManagerIface+".RegisterProfile", 0, s.gadgetPath, gadgetUUID, gadgetOpts); call.Err != nil {
		return nil, call.Err
	}

	return s, nil
}

// Close unregisters both profiles.
func (s *RFCOMMServer) Close() error {
	mgr := s.conn.bus.Object(busName, rootPath)
	mgr.Call(profileManagerIface+".UnregisterProfile", 0, s.gadgetPath)
	return mgr.Call(profileManagerIface+".UnregisterProfile", 0, s.profilePath).Err
}
