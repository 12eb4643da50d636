package gadget

import (
	"github.com/commatea/agt-go/pkg/blelink"
	"github.com/commatea/agt-go/pkg/classiclink"
)

// link is the transport-agnostic surface the core drives, satisfied by a
// thin wrapper around either pkg/blelink.Transport or
// pkg/classiclink.Transport. SPEC_FULL.md §4.7 instantiates "the matching
// transport driver" at startup; this interface is what lets the rest of the
// core stay driver-agnostic, mirroring how the original's AlexaGadget talks
// to self._bluetooth without caring whether it is a BluetoothAdapter or a
// BluetoothLEAdapter.
type link interface {
	Start() error
	Close() error

	// AdvertisePairing/AdvertiseReconnect/StopAdvertising implement
	// set_discoverable()/reconnect()'s advertising side for both drivers;
	// Classic Bluetooth has no separate pairing/reconnect advertisement
	// payload, so both calls collapse to the same SetDiscoverable(true).
	AdvertisePairing(friendlyName string) error
	AdvertiseReconnect(friendlyName string) error
	StopAdvertising() error

	Send(payload []byte) error
	IsPairedTo(addr string) (bool, error)
	Unpair(addr string) error
	Disconnect()

	setCallbacks(onConnected func(string), onDisconnected func(), onPayload func([]byte))
}

// bleLink adapts *blelink.Transport to link.
type bleLink struct {
	t *blelink.Transport
}

func newBLELink(t *blelink.Transport) *bleLink { return &bleLink{t: t} }

func (l *bleLink) Start() error { return l.t.Start() }
func (l *bleLink) Close() error { return l.t.Close() }

func (l *bleLink) AdvertisePairing(friendlyName string) error {
	return l.t.AdvertisePairing(friendlyName)
}
func (l *bleLink) AdvertiseReconnect(friendlyName string) error {
	return l.t.AdvertiseReconnect(friendlyName)
}
func (l *bleLink) StopAdvertising() error { return l.t.StopAdvertising() }

func (l *bleLink) Send(payload []byte) error          { return l.t.SendAlexaEvent(payload) }
func (l *bleLink) IsPairedTo(addr string) (bool, error) { return l.t.IsPairedTo(addr) }
func (l *bleLink) Unpair(addr string) error            { return l.t.Unpair(addr) }
func (l *bleLink) Disconnect()                         { l.t.Disconnect() }

func (l *bleLink) setCallbacks(onConnected func(string), onDisconnected func(), onPayload func([]byte)) {
	l.t.OnConnected = onConnected
	l.t.OnDisconnected = onDisconnected
	l.t.OnAlexaPayload = onPayload
}

// classicLink adapts *classiclink.Transport to link. Classic Bluetooth has
// no distinct pairing-vs-reconnect advertisement payload (SPEC_FULL.md
// §4.6's EIR is the same regardless of which state triggered
// set_discoverable), so AdvertisePairing and AdvertiseReconnect both just
// assert discoverable on.
type classicLink struct {
	t *classiclink.Transport
}

func newClassicLink(t *classiclink.Transport) *classicLink { return &classicLink{t: t} }

func (l *classicLink) Start() error { return l.t.Start() }
func (l *classicLink) Close() error { return l.t.Close() }

func (l *classicLink) AdvertisePairing(_ string) error   { return l.t.SetDiscoverable(true) }
func (l *classicLink) AdvertiseReconnect(_ string) error { return l.t.SetDiscoverable(true) }
func (l *classicLink) StopAdvertising() error            { return l.t.SetDiscoverable(false) }

func (l *classicLink) Send(payload []byte) error          { return l.t.Send(payload) }
func (l *classicLink) IsPairedTo(addr string) (bool, error) { return l.t.IsPairedTo(addr) }
func (l *classicLink) Unpair(addr string) error            { return l.t.Unpair(addr) }
func (l *classicLink) Disconnect()                         { l.t.Disconnect() }

func (l *classicLink) setCallbacks(onConnected func(string), onDisconnected func(), onPayload func([]byte)) {
	l.t.OnConnected = onConnected
	l.t.OnDisconnected = onDisconnected
	l.t.OnPayload = onPayload
}
