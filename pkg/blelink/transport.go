package blelink

import (
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"tinygo.org/x/bluetooth"

	"github.com/commatea/agt-go/internal/bluez"
	"github.com/commatea/agt-go/pkg/agterrors"
	"github.com/commatea/agt-go/pkg/logger"
	"github.com/commatea/agt-go/pkg/metrics"
)

const metricsTransportLabel = "ble"

// GATT service/characteristic UUIDs (SPEC_FULL.md §4.5).
const (
	ServiceUUID = "0000fe03-0000-1000-8000-00805f9b34fb"
	TXCharUUID  = "f04eb177-3005-43a7-ac61-a390ddf83076"
	RXCharUUID  = "2beea05b-1879-4bb4-8a2f-72641f82420b"

	serviceData16 = "03FE" // little-endian 16-bit UUID used in advertising
)

// pairingServiceData and reconnectServiceData are the application portion
// of the advertising service-data block, past BlueZ's own length/type/UUID
// framing (SPEC_FULL.md §4.5).
var (
	pairingServiceData   = append([]byte{0x71, 0x01, 0x00, 0xFF}, make([]byte, 15)...)
	reconnectServiceData = append([]byte{0x71, 0x01, 0x00, 0xFF}, make([]byte, 19)...)
)

const advertisementIntervalMS = 20

// Transport is the BLE GATT peripheral driver: it exposes the gadget
// service, routes inbound writes through the packetizer and control
// handler, and notifies outbound packets on RX. Grounded on
// _examples/arnnvv-bluetalk/host_peripheral.go's peripheral-mode use of
// tinygo.org/x/bluetooth, wired to SPEC_FULL.md §4.3-§4.5's protocol
// instead of bluetalk's chat payloads.
type Transport struct {
	mu sync.Mutex

	adapter      *bluetooth.Adapter
	rxChar       bluetooth.Characteristic
	bluezAdapter *bluez.Adapter
	connected    *bluetooth.Device

	adv *bluez.Advertiser

	fragmenter  *Fragmenter
	reassembler *Reassembler
	control     *ControlHandler
	mtu         int

	// OnConnected/OnDisconnected mirror the lifecycle callbacks the gadget
	// core subscribes to (SPEC_FULL.md §4.7's state machine).
	OnConnected    func(peerAddr string)
	OnDisconnected func()

	// OnAlexaPayload is invoked with a fully reassembled ALEXA-stream
	// payload.
	OnAlexaPayload func(payload []byte)

	versionPacketSent bool
}

// NewTransport builds a Transport that answers CONTROL-stream queries with
// the given device identity and fragments/reassembles at mtu bytes.
func NewTransport(endpointID, friendlyName, amazonDeviceType string, mtu int) *Transport {
	return &Transport{
		fragmenter:  NewFragmenter(),
		reassembler: NewReassembler(),
		control:     NewControlHandler(endpointID, friendlyName, amazonDeviceType),
		mtu:         mtu,
	}
}

// Start enables the adapter, publishes the GATT service, and wires the
// BlueZ advertisement manager for AD-level control the tinygo API does not
// expose directly.
func (t *Transport) Start() error {
	t.adapter = bluetooth.DefaultAdapter
	if err := t.adapter.Enable(); err != nil {
		return agterrors.New(agterrors.KindTransport, "blelink.Transport.Start", err)
	}
	t.adapter.SetConnectHandler(t.handleConnect)

	serviceUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return agterrors.New(agterrors.KindConfig, "blelink.Transport.Start", err)
	}
	txUUID, err := bluetooth.ParseUUID(TXCharUUID)
	if err != nil {
		return agterrors.New(agterrors.KindConfig, "blelink.Transport.Start", err)
	}
	rxUUID, err := bluetooth.ParseUUID(RXCharUUID)
	if err != nil {
		return agterrors.New(agterrors.KindConfig, "blelink.Transport.Start", err)
	}

	var txHandle bluetooth.Characteristic
	err = t.adapter.AddService(&bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &txHandle,
				UUID:   txUUID,
				Flags:  bluetooth.CharacteristicWriteEncryptedPermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					t.handleInbound(value)
				},
			},
			{
				Handle: &t.rxChar,
				UUID:   rxUUID,
				Flags:  bluetooth.CharacteristicReadEncryptedPermission | bluetooth.CharacteristicNotifyPermission,
			},
		},
	})
	if err != nil {
		return agterrors.New(agterrors.KindTransport, "blelink.Transport.Start", err)
	}

	conn, err := bluez.Dial()
	if err != nil {
		return agterrors.New(agterrors.KindTransport, "blelink.Transport.Start", err)
	}
	adapterPath, err := conn.DefaultAdapterPath()
	if err != nil {
		return agterrors.New(agterrors.KindTransport, "blelink.Transport.Start", err)
	}
	t.adv = bluez.NewAdvertiser(conn, adapterPath)
	bluezAdapter, err := bluez.OpenDefaultAdapter(conn)
	if err != nil {
		return agterrors.New(agterrors.KindTransport, "blelink.Transport.Start", err)
	}
	t.bluezAdapter = bluezAdapter
	return nil
}

// IsPairedTo reports whether bdAddr is bonded. BLE bonding (like Classic) is
// tracked by BlueZ's Device1 objects regardless of which GATT stack
// established the connection.
func (t *Transport) IsPairedTo(bdAddr string) (bool, error) {
	return t.bluezAdapter.IsPairedTo(bdAddr)
}

// Unpair removes the bond for bdAddr.
func (t *Transport) Unpair(bdAddr string) error {
	return t.bluezAdapter.Unpair(bdAddr)
}

// Disconnect tears down the current link without unpairing.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	dev := t.connected
	t.mu.Unlock()
	if dev != nil {
		dev.Disconnect()
	}
}

// Close halts advertising. The tinygo peripheral adapter has no explicit
// "disable" call once enabled.
func (t *Transport) Close() error {
	return t.StopAdvertising()
}

func (t *Transport) handleConnect(device bluetooth.Device, connected bool) {
	if connected {
		t.mu.Lock()
		t.versionPacketSent = false
		d := device
		t.connected = &d
		t.mu.Unlock()

		t.adv.Stop()
		if t.OnConnected != nil {
			t.OnConnected(device.Address.String())
		}
		// The tinygo peripheral GATT server does not expose a CCC-write
		// (notifications-enabled) callback directly; approximate "shortly
		// after the hub enables notifications" with the connect event.
		go func() {
			time.Sleep(time.Second)
			t.emitProtocolVersionPacket()
		}()
		return
	}
	t.mu.Lock()
	t.connected = nil
	t.mu.Unlock()
	if t.OnDisconnected != nil {
		t.OnDisconnected()
	}
}

func (t *Transport) emitProtocolVersionPacket() {
	t.mu.Lock()
	if t.versionPacketSent {
		t.mu.Unlock()
		return
	}
	t.versionPacketSent = true
	t.mu.Unlock()

	if _, err := t.rxChar.Write(ProtocolVersionPacket); err != nil {
		logger.Global().Warn("blelink: failed to emit protocol version packet", "err", err)
	}
}

// handleInbound feeds a raw TX write through reassembly, dispatches
// control-stream queries, acks completed transactions, and forwards
// completed ALEXA-stream payloads to OnAlexaPayload.
func (t *Transport) handleInbound(value []byte) {
	res, ok, err := t.reassembler.Feed(value)
	if err != nil {
		metrics.IncChecksumFailure(metricsTransportLabel)
		metrics.IncPacket(metricsTransportLabel, metrics.DirectionInbound, metrics.StatusFailed)
		logger.Global().Warn("blelink: dropping malformed packet", "bytes", logger.FormatBytes(value), "err", err)
		if len(value) > 0 {
			t.reassembler.ClearStream(value[0] >> 4)
		}
		return
	}
	if !ok {
		return
	}
	metrics.IncPacket(metricsTransportLabel, metrics.DirectionInbound, metrics.StatusSuccess)

	if res.AckBit {
		if _, err := t.rxChar.Write(BuildAck(res.StreamID, res.TransactionID)); err != nil {
			logger.Global().Warn("blelink: failed to write ack", "err", err)
		}
	}

	switch {
	case res.IsControl || res.StreamID == StreamControl:
		resp, err := t.control.Handle(res.Payload)
		if err != nil {
			logger.Global().Warn("blelink: control handler error", "err", err)
			return
		}
		if resp != nil {
			t.sendOnStream(resp, StreamControl)
		}
	case res.StreamID == StreamAlexa:
		if t.OnAlexaPayload != nil {
			t.OnAlexaPayload(res.Payload)
		}
	default:
		logger.Global().Debug("blelink: ignoring unsupported stream", "stream_id", res.StreamID)
	}
}

// SendAlexaEvent fragments payload and notifies it on the RX characteristic
// over the ALEXA stream.
func (t *Transport) SendAlexaEvent(payload []byte) error {
	return t.sendOnStream(payload, StreamAlexa)
}

func (t *Transport) sendOnStream(payload []byte, streamID byte) error {
	packets, err := t.fragmenter.Fragment(payload, streamID, t.mtu)
	if err != nil {
		return err
	}
	for _, p := range packets {
		if _, err := t.rxChar.Write(p); err != nil {
			metrics.IncPacket(metricsTransportLabel, metrics.DirectionOutbound, metrics.StatusFailed)
			return agterrors.New(agterrors.KindTransport, "blelink.Transport.sendOnStream", err)
		}
	}
	metrics.IncPacket(metricsTransportLabel, metrics.DirectionOutbound, metrics.StatusSuccess)
	return nil
}

// AdvertisePairing starts the pairing advertisement (SPEC_FULL.md §4.5).
func (t *Transport) AdvertisePairing(friendlyName string) error {
	return t.startAdvertisement("/commatea/agt/adv/pairing", friendlyName, pairingServiceData)
}

// AdvertiseReconnect starts the reconnect advertisement.
func (t *Transport) AdvertiseReconnect(friendlyName string) error {
	return t.startAdvertisement("/commatea/agt/adv/reconnect", friendlyName, reconnectServiceData)
}

func (t *Transport) startAdvertisement(path, friendlyName string, serviceData []byte) error {
	if t.adv == nil {
		return agterrors.Newf(agterrors.KindTransport, "blelink.Transport.startAdvertisement", "transport not started")
	}
	spec := bluez.AdvertisementSpec{
		LocalName:     friendlyName,
		ServiceUUID16: serviceData16,
		ServiceData:   serviceData,
		MinIntervalMS: advertisementIntervalMS,
		MaxIntervalMS: advertisementIntervalMS,
	}
	if err := t.adv.Start(dbus.ObjectPath(path), spec); err != nil {
		return agterrors.New(agterrors.KindTransport, "blelink.Transport.startAdvertisement", err)
	}
	return nil
}

// StopAdvertising halts any in-progress advertisement.
func (t *Transport) StopAdvertising() error {
	if t.adv == nil {
		return nil
	}
	return t.adv.Stop()
}
