package classiclink

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/commatea/agt-go/internal/bluez"
	"github.com/commatea/agt-go/pkg/agterrors"
	"github.com/commatea/agt-go/pkg/logger"
	"github.com/commatea/agt-go/pkg/metrics"
	"github.com/commatea/agt-go/pkg/spp"
)

// hciDevice is the controller index configured via hciconfig. Like the
// Python reference, this toolkit only ever drives the first adapter.
const hciDevice = "hci0"

const metricsTransportLabel = "bt"

var errNotConnected = errors.New("no Classic Bluetooth peer connected")

const (
	// GadgetServiceUUID identifies the primary gadget SDP record.
	GadgetServiceUUID = "6088d2b3-983a-4eed-9f94-5ad1256816b7"
	// SPPServiceUUID is the standard Serial Port Profile UUID.
	SPPServiceUUID = "00001101-0000-1000-8000-00805f9b34fb"
	// RFCOMMChannel is the fixed channel this driver listens on.
	RFCOMMChannel = 4
)

// Transport is the Classic Bluetooth SPP transport driver: it registers
// SDP records and a NoInputNoOutput pairing agent, accepts one RFCOMM
// connection at a time via BlueZ's Profile1 handoff, and frames/deframes
// traffic through pkg/spp. Grounded on
// _examples/original_source/src/agt/bt_classic/adapter.py's
// BluetoothAdapter/_RFCOMMServer, with the original's select-based polling
// loop replaced by a single per-connection reader goroutine — the
// idiomatic Go expression of "read whenever data is available" once BlueZ
// hands over an already-connected fd instead of a raw listening socket.
type Transport struct {
	mu sync.Mutex

	conn      *bluez.Conn
	adapter   *bluez.Adapter
	agent     *bluez.PairingAgent
	rfcomm    *bluez.RFCOMMServer
	netConn   net.Conn
	peerAddr  string

	enc *spp.Encoder
	dec *spp.Decoder

	friendlyName string
	vendorIDHex  string
	productIDHex string

	OnConnected    func(peerAddr string)
	OnDisconnected func()
	OnPayload      func(payload []byte)
}

// NewTransport builds a driver that will answer SPP-framed traffic with
// OnPayload callbacks once a peer connects.
func NewTransport(friendlyName, vendorIDHex, productIDHex string) *Transport {
	t := &Transport{
		friendlyName: friendlyName,
		vendorIDHex:  vendorIDHex,
		productIDHex: productIDHex,
		enc:          spp.NewEncoder(),
	}
	t.dec = spp.NewDecoder(t.deliverPayload)
	t.dec.OnChecksumError = t.onChecksumError
	return t
}

func (t *Transport) deliverPayload(payload []byte) {
	metrics.IncPacket(metricsTransportLabel, metrics.DirectionInbound, metrics.StatusSuccess)
	if t.OnPayload != nil {
		t.OnPayload(payload)
	}
}

func (t *Transport) onChecksumError() {
	metrics.IncChecksumFailure(metricsTransportLabel)
	metrics.IncPacket(metricsTransportLabel, metrics.DirectionInbound, metrics.StatusFailed)
}

// Start connects to BlueZ, registers the pairing agent and SDP records,
// and begins accepting RFCOMM connections.
func (t *Transport) Start() error {
	conn, err := bluez.Dial()
	if err != nil {
		return agterrors.New(agterrors.KindTransport, "classiclink.Transport.Start", err)
	}
	t.conn = conn

	adapter, err := bluez.OpenDefaultAdapter(conn)
	if err != nil {
		return agterrors.New(agterrors.KindTransport, "classiclink.Transport.Start", err)
	}
	t.adapter = adapter

	agent, err := bluez.RegisterPairingAgent(conn)
	if err != nil {
		return agterrors.New(agterrors.KindTransport, "classiclink.Transport.Start", err)
	}
	t.agent = agent

	rfcomm, err := bluez.NewRFCOMMServer(conn, GadgetServiceUUID, SPPServiceUUID, RFCOMMChannel, t.handleNewConnection)
	if err != nil {
		return agterrors.New(agterrors.KindTransport, "classiclink.Transport.Start", err)
	}
	t.rfcomm = rfcomm
	return nil
}

func (t *Transport) handleNewConnection(device dbus.ObjectPath, fd *os.File) {
	nc, err := net.FileConn(fd)
	if err != nil {
		logger.Global().Warn("classiclink: failed to wrap RFCOMM fd", "err", err)
		return
	}

	t.mu.Lock()
	if t.netConn != nil {
		t.netConn.Close()
	}
	t.netConn = nc
	// Report the MAC (…/dev_AA_BB_CC_DD_EE_FF -> AA:BB:CC:DD:EE:FF), the form
	// IsPairedTo and Unpair look up.
	addr := string(device)
	if i := strings.LastIndex(addr, "/dev_"); i >= 0 {
		addr = strings.ReplaceAll(addr[i+len("/dev_"):], "_", ":")
	}
	t.peerAddr = addr
	t.mu.Unlock()

	if t.OnConnected != nil {
		t.OnConnected(t.peerAddr)
	}
	go t.readLoop(nc)
}

func (t *Transport) readLoop(nc net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := nc.Read(buf)
		if n > 0 {
			t.dec.FeedAll(buf[:n])
		}
		if err != nil {
			t.mu.Lock()
			if t.netConn == nc {
				t.netConn = nil
			}
			t.mu.Unlock()
			if t.OnDisconnected != nil {
				t.OnDisconnected()
			}
			return
		}
	}
}

// Send frames payload as an SPP packet and writes it to the current
// connection. Returns NotSupported if no peer is connected.
func (t *Transport) Send(payload []byte) error {
	t.mu.Lock()
	nc := t.netConn
	t.mu.Unlock()
	if nc == nil {
		metrics.IncPacket(metricsTransportLabel, metrics.DirectionOutbound, metrics.StatusFailed)
		return agterrors.New(agterrors.KindNotSupported, "classiclink.Transport.Send", errNotConnected)
	}
	framed := t.enc.Encode(payload)
	_, err := nc.Write(framed)
	if err != nil {
		metrics.IncPacket(metricsTransportLabel, metrics.DirectionOutbound, metrics.StatusFailed)
		return agterrors.New(agterrors.KindTransport, "classiclink.Transport.Send", err)
	}
	metrics.IncPacket(metricsTransportLabel, metrics.DirectionOutbound, metrics.StatusSuccess)
	return nil
}

// SetDiscoverable configures inbound-pairing mode: host name, EIR,
// page+inquiry scan, and Pairable/Discoverable properties
// (SPEC_FULL.md §4.7 set_discoverable). EIR isn't settable over the
// Device1/Adapter1 D-Bus API BlueZ exposes, so it's installed the same way
// as the original's start_inbound_pairing_mode: shelling out to hciconfig
// (bt_classic/adapter.py's _hciconfig).
func (t *Transport) SetDiscoverable(on bool) error {
	if !on {
		if err := runHciconfig(hciDevice, "noscan"); err != nil {
			return err
		}
		if err := t.adapter.SetDiscoverable(false); err != nil {
			return agterrors.New(agterrors.KindTransport, "classiclink.Transport.SetDiscoverable", err)
		}
		return t.adapter.SetPairable(false)
	}

	eir, err := BuildEIR(t.friendlyName, t.vendorIDHex, t.productIDHex)
	if err != nil {
		return agterrors.New(agterrors.KindConfig, "classiclink.Transport.SetDiscoverable", err)
	}
	eirHex := hex.EncodeToString(eir)
	logger.Global().Debug("classiclink: installing EIR", "eir", eirHex)

	if err := runHciconfig(hciDevice, "reset"); err != nil {
		return err
	}
	if err := runHciconfig(hciDevice, "name", t.friendlyName); err != nil {
		return err
	}
	// inqmode 2 means inquiry responses carry the EIR set by inqdata.
	if err := runHciconfig(hciDevice, "inqmode", "2"); err != nil {
		return err
	}
	if err := runHciconfig(hciDevice, "inqdata", eirHex); err != nil {
		return err
	}
	// piscan: page scan and inquiry scan both on, so the controller is both
	// connectable and discoverable at the HCI level.
	if err := runHciconfig(hciDevice, "piscan"); err != nil {
		return err
	}

	if err := t.adapter.SetAlias(t.friendlyName); err != nil {
		return agterrors.New(agterrors.KindTransport, "classiclink.Transport.SetDiscoverable", err)
	}
	if err := t.adapter.SetPairable(true); err != nil {
		return agterrors.New(agterrors.KindTransport, "classiclink.Transport.SetDiscoverable", err)
	}
	return t.adapter.SetDiscoverable(true)
}

// runHciconfig shells out to hciconfig to drive controller-level settings
// (EIR, inquiry mode, scan state) that BlueZ's D-Bus API doesn't expose.
// Assumes the host Bluetooth stack and hciconfig binary are already usable,
// per spec.md §1; this is runtime control, not the OS package provisioning
// that's out of scope.
func runHciconfig(args ...string) error {
	out, err := exec.Command("hciconfig", args...).CombinedOutput()
	if err != nil {
		return agterrors.New(agterrors.KindTransport, "classiclink.runHciconfig",
			fmt.Errorf("hciconfig %v: %w: %s", args, err, out))
	}
	return nil
}

// IsPairedTo reports whether bdAddr is bonded.
func (t *Transport) IsPairedTo(bdAddr string) (bool, error) {
	return t.adapter.IsPairedTo(bdAddr)
}

// Unpair removes the bond for bdAddr.
func (t *Transport) Unpair(bdAddr string) error {
	return t.adapter.Unpair(bdAddr)
}

// Disconnect tears down the current connection without unpairing.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.netConn != nil {
		t.netConn.Close()
		t.netConn = nil
	}
}

// Close unregisters SDP records and the pairing agent.
func (t *Transport) Close() error {
	t.Disconnect()
	if t.rfcomm != nil {
		t.rfcomm.Close()
	}
	if t.agent != nil {
		t.agent.Unregister()
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}
