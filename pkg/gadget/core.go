// Package gadget implements the gadget core (SPEC_FULL.md §4.7): the
// lifecycle state machine, reconnect backoff worker, directive dispatch,
// and discovery-response construction shared by both Bluetooth transport
// drivers. Grounded on
// _examples/original_source/src/agt/alexa_gadget.py's AlexaGadget for
// semantics, and on the teacher's pkg/core/gateway.go (receive-loop shape,
// state enum, mutex-guarded stats) for Go structure. Per SPEC_FULL.md §9's
// "single-threaded cooperative core" design note, all protocol-state
// transitions are decided by one loop goroutine fed by an event channel
// from the transport driver's callbacks and a reconnect ticker, rather
// than the original's polling thread layered over a callback-driven main
// loop.
package gadget

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commatea/agt-go/internal/bluez"
	"github.com/commatea/agt-go/pkg/agterrors"
	"github.com/commatea/agt-go/pkg/blelink"
	"github.com/commatea/agt-go/pkg/classiclink"
	"github.com/commatea/agt-go/pkg/codec"
	"github.com/commatea/agt-go/pkg/config"
	"github.com/commatea/agt-go/pkg/logger"
	"github.com/commatea/agt-go/pkg/metrics"
)

const (
	placeholderAmazonID = "YOUR_GADGET_AMAZON_ID"
	placeholderSecret   = "YOUR_GADGET_SECRET"
	reservedVendorID    = "0000"
	defaultVendorID     = "FFFF"
	defaultProductID    = "0000"
	defaultMTU          = 244

	reconnectTickInterval = 100 * time.Millisecond
	reconnectFastInterval = 10 * time.Second
	reconnectSlowInterval = 60 * time.Second
	reconnectFastAttempts = 30
)

// DirectiveHandler processes one decoded, recognized directive.
type DirectiveHandler func(d *codec.Directive)

func dispatchKey(namespace, name string) string { return namespace + "\x00" + name }

type eventKind int

const (
	evEnterPairAdv eventKind = iota
	evEnterReconnectAdv
	evConnected
	evDisconnected
	evPayload
	evReconnectTick
	evReconnectNow
	evDisconnectManual
	evClear
	evStop
)

type event struct {
	kind    eventKind
	addr    string
	payload []byte
	result  chan error
}

// Core is the transport-agnostic gadget lifecycle and protocol engine.
type Core struct {
	settings     config.GadgetSettings
	capabilities []config.Capability
	statePath    string

	endpointID     string
	friendlyName   string
	amazonID       string
	deviceToken    string
	transportLabel string

	l link

	mu               sync.Mutex
	state            State
	peerAddr         string
	persistent       config.State
	reconnectAttempt int
	reconnectNext    *time.Time

	handlers map[string]DirectiveHandler

	events  chan event
	stopCh  chan struct{}
	stopped chan struct{}

	// OnConnected/OnDisconnected are application hooks mirroring
	// AlexaGadget.on_connected/on_disconnected.
	OnConnected    func(peerAddr string)
	OnDisconnected func(peerAddr string)
}

// New loads the per-gadget configuration and persistent state at
// gadgetConfigPath/statePath and builds the matching transport driver
// (SPEC_FULL.md §4.7's initialization). mtu <= 0 uses the default BLE MTU.
func New(gadgetConfigPath, statePath string, mtu int) (*Core, error) {
	gc, err := config.LoadGadgetConfig(gadgetConfigPath)
	if err != nil {
		return nil, agterrors.New(agterrors.KindConfig, "gadget.New", err)
	}

	st, err := config.LoadState(statePath)
	if err != nil {
		return nil, agterrors.New(agterrors.KindConfig, "gadget.New", err)
	}
	if st.TransportMode == "" {
		return nil, agterrors.Newf(agterrors.KindConfig, "gadget.New",
			"transport mode is not configured for the gadget; run setup first")
	}

	amazonID := gc.Settings.AmazonID
	if amazonID == "" || amazonID == placeholderAmazonID {
		return nil, agterrors.Newf(agterrors.KindConfig, "gadget.New",
			"amazonId is not configured in %s", gadgetConfigPath)
	}
	secret := gc.Settings.GadgetSecret
	if secret == "" || secret == placeholderSecret {
		return nil, agterrors.Newf(agterrors.KindConfig, "gadget.New",
			"alexaGadgetSecret is not configured in %s", gadgetConfigPath)
	}

	vendorID := gc.Settings.VendorID
	switch vendorID {
	case "":
		vendorID = defaultVendorID
	case reservedVendorID:
		return nil, agterrors.Newf(agterrors.KindConfig, "gadget.New",
			"%s is an invalid vendor id; use %s as a default, or your actual vendor id", reservedVendorID, defaultVendorID)
	}
	productID := gc.Settings.ProductID
	if productID == "" {
		productID = defaultProductID
	}

	radioAddress, err := fetchAdapterAddress()
	if err != nil {
		return nil, agterrors.New(agterrors.KindTransport, "gadget.New", err)
	}

	endpointID := gc.Settings.EndpointID
	if endpointID == "" {
		endpointID = truncate("AGT"+radioAddress, 16)
	}
	friendlyName := gc.Settings.FriendlyName
	if friendlyName == "" {
		friendlyName = "Gadget" + lastN(endpointID, 3)
	}

	if mtu <= 0 {
		mtu = defaultMTU
	}

	var lk link
	switch st.TransportMode {
	case config.TransportBLE:
		lk = newBLELink(blelink.NewTransport(endpointID, friendlyName, amazonID, mtu))
	case config.TransportClassic:
		lk = newClassicLink(classiclink.NewTransport(friendlyName, vendorID, productID))
	default:
		return nil, agterrors.Newf(agterrors.KindConfig, "gadget.New", "unknown transport mode %q", st.TransportMode)
	}

	peerAddr := ""
	if st.EchoBluetoothAddress != nil {
		peerAddr = *st.EchoBluetoothAddress
	}

	c := &Core{
		settings:       gc.Settings,
		capabilities:   gc.Capabilities,
		statePath:      statePath,
		endpointID:     endpointID,
		friendlyName:   friendlyName,
		amazonID:       amazonID,
		deviceToken:    deriveDeviceToken(endpointID, secret),
		transportLabel: transportMetricsLabel(st.TransportMode),
		l:              lk,
		peerAddr:       peerAddr,
		persistent:     *st,
		handlers:       map[string]DirectiveHandler{},
		events:         make(chan event, 64),
		stopCh:         make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	lk.setCallbacks(c.onLinkConnected, c.onLinkDisconnected, c.onLinkPayload)
	go c.runLoop()
	return c, nil
}

func transportMetricsLabel(mode string) string {
	switch mode {
	case config.TransportBLE:
		return "ble"
	case config.TransportClassic:
		return "bt"
	default:
		return mode
	}
}

func fetchAdapterAddress() (string, error) {
	conn, err := bluez.Dial()
	if err != nil {
		return "", err
	}
	defer conn.Close()
	adapter, err := bluez.OpenDefaultAdapter(conn)
	if err != nil {
		return "", err
	}
	return adapter.Address()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// EndpointID returns the gadget's endpoint id.
func (c *Core) EndpointID() string { return c.endpointID }

// FriendlyName returns the gadget's friendly name.
func (c *Core) FriendlyName() string { return c.friendlyName }

// RegisterHandler installs h for the given (namespace, name) directive.
// Registration happens at gadget-construction time, before Start; Core
// never derives a handler identity from runtime bytes, it only looks one
// up in this table (SPEC_FULL.md §9).
func (c *Core) RegisterHandler(namespace, name string, h DirectiveHandler) {
	c.handlers[dispatchKey(namespace, name)] = h
}

// Start starts the transport driver and reconnect worker, then, if
// advertise is true, emits the pairing or reconnect advertisement depending
// on whether a bond already exists (SPEC_FULL.md §4.7 state table, Idle
// row). Passing advertise=false leaves the gadget in StateIdle, listening
// but silent, until SetDiscoverable or Reconnect is called explicitly — the
// engine config's transport.advertisingEnabled knob. The event loop itself
// is already running from New, so Status/etc. work before Start too.
//
// Unpairing (Clear) needs the transport's BlueZ adapter handle, which only
// exists once Start has dialed it, so a "clear before pairing" start asks
// for it here via clearFirst rather than the caller invoking Clear first.
func (c *Core) Start(clearFirst, advertise bool) error {
	if err := c.l.Start(); err != nil {
		return agterrors.New(agterrors.KindTransport, "gadget.Core.Start", err)
	}
	go c.reconnectTicker()

	if clearFirst {
		if err := c.Clear(); err != nil {
			return err
		}
	}

	if !advertise {
		return nil
	}

	paired, err := c.IsPaired()
	if err != nil {
		logger.Global().Warn("gadget: failed to query paired state at startup", "err", err)
	}
	if paired {
		c.events <- event{kind: evEnterReconnectAdv}
	} else {
		c.events <- event{kind: evEnterPairAdv}
	}
	return nil
}

// Stop halts the reconnect worker and event loop and stops advertising.
func (c *Core) Stop() {
	close(c.stopCh)
	c.events <- event{kind: evStop}
	<-c.stopped
}

// IsPaired reports whether this gadget has a stored hub address and the
// host stack considers it bonded (SPEC_FULL.md §4.7 is_paired()).
func (c *Core) IsPaired() (bool, error) {
	c.mu.Lock()
	addr := c.peerAddr
	c.mu.Unlock()
	if addr == "" {
		return false, nil
	}
	return c.l.IsPairedTo(addr)
}

// SetDiscoverable forwards to the transport driver (SPEC_FULL.md §4.7
// set_discoverable).
func (c *Core) SetDiscoverable(on bool) error {
	if on {
		return c.l.AdvertisePairing(c.friendlyName)
	}
	return c.l.StopAdvertising()
}

// SendEvent encodes e, wraps it in a Message, and passes it to the
// transport. If e.Header.MessageID is empty it is filled with a generated
// uuid, matching the teacher's pkg/core/gateway.go Message.ID generation.
func (c *Core) SendEvent(e *codec.Event) error {
	if e.Header.MessageID == "" {
		e.Header.MessageID = uuid.NewString()
	}
	payload, err := codec.EncodeEvent(e)
	if err != nil {
		return agterrors.New(agterrors.KindDecode, "gadget.Core.SendEvent", err)
	}
	msg := codec.EncodeMessage(&codec.Message{Payload: payload})
	if err := c.l.Send(msg); err != nil {
		return agterrors.New(agterrors.KindTransport, "gadget.Core.SendEvent", err)
	}
	return nil
}

// SendCustomEvent builds an Event with an application-chosen (namespace,
// name) header and a JSON payload, then sends it (SPEC_FULL.md §4.7
// send_custom_event).
func (c *Core) SendCustomEvent(namespace, name string, jsonPayload []byte) error {
	return c.SendEvent(codec.NewCustomEvent(namespace, name, uuid.NewString(), jsonPayload))
}

// Reconnect forces an immediate reconnect attempt (SPEC_FULL.md §4.7
// reconnect()).
func (c *Core) Reconnect() {
	c.events <- event{kind: evReconnectNow}
}

// Disconnect tears down the current link without unpairing and suspends
// automatic reconnect until the next Reconnect call (SPEC_FULL.md §4.7
// disconnect()).
func (c *Core) Disconnect() {
	c.events <- event{kind: evDisconnectManual}
}

// Clear removes the bond to the currently paired hub (if any) and clears
// the persisted address (SPEC_FULL.md §4.7 state table, "any -> clear()").
func (c *Core) Clear() error {
	result := make(chan error, 1)
	c.events <- event{kind: evClear, result: result}
	return <-result
}

// Status reports the current lifecycle state and peer address, for
// operator/CLI introspection.
func (c *Core) Status() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.peerAddr
}

func (c *Core) onLinkConnected(addr string) {
	c.events <- event{kind: evConnected, addr: addr}
}

func (c *Core) onLinkDisconnected() {
	c.events <- event{kind: evDisconnected}
}

func (c *Core) onLinkPayload(data []byte) {
	c.events <- event{kind: evPayload, payload: data}
}

func (c *Core) reconnectTicker() {
	t := time.NewTicker(reconnectTickInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			select {
			case c.events <- event{kind: evReconnectTick}:
			default:
				// event loop is behind; drop this tick rather than block
				// the ticker goroutine indefinitely.
			}
		case <-c.stopCh:
			return
		}
	}
}

func (c *Core) runLoop() {
	defer close(c.stopped)
	for {
		ev := <-c.events
		if c.handleEvent(ev) {
			return
		}
	}
}

func (c *Core) handleEvent(ev event) (stop bool) {
	switch ev.kind {
	case evEnterPairAdv:
		c.setState(StateAdvertisingPair)
		if err := c.l.AdvertisePairing(c.friendlyName); err != nil {
			logger.Global().Warn("gadget: failed to start pairing advertisement", "err", err)
		}

	case evEnterReconnectAdv:
		c.setState(StateAdvertisingReconnect)
		c.resetReconnectStatus(time.Now())

	case evConnected:
		c.handleConnected(ev.addr)

	case evDisconnected:
		c.handleDisconnected()

	case evPayload:
		c.handlePayload(ev.payload)

	case evReconnectTick:
		c.handleReconnectTick()

	case evReconnectNow:
		c.resetReconnectStatus(time.Now())
		if s, _ := c.Status(); s != StateConnected {
			c.setState(StateAdvertisingReconnect)
		}

	case evDisconnectManual:
		c.mu.Lock()
		c.reconnectNext = nil
		c.mu.Unlock()
		c.setState(StateDisconnectedManual)
		c.l.Disconnect()
		if err := c.l.StopAdvertising(); err != nil {
			logger.Global().Warn("gadget: failed to stop advertising on disconnect", "err", err)
		}

	case evClear:
		err := c.handleClear()
		if ev.result != nil {
			ev.result <- err
		}

	case evStop:
		if err := c.l.StopAdvertising(); err != nil {
			logger.Global().Warn("gadget: failed to stop advertising", "err", err)
		}
		return true
	}
	return false
}

func (c *Core) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	metrics.SetConnectionState(int(s))
}

func (c *Core) resetReconnectStatus(now time.Time) {
	c.mu.Lock()
	c.reconnectAttempt = 0
	c.reconnectNext = &now
	c.mu.Unlock()
}

func (c *Core) handleConnected(addr string) {
	c.mu.Lock()
	c.state = StateConnected
	now := time.Now()
	c.reconnectAttempt = 0
	c.reconnectNext = &now
	changed := addr != c.peerAddr
	c.peerAddr = addr
	c.mu.Unlock()
	metrics.SetConnectionState(int(StateConnected))

	if err := c.l.StopAdvertising(); err != nil {
		logger.Global().Warn("gadget: failed to stop advertising on connect", "err", err)
	}
	if changed {
		c.persistPeerAddr(addr)
	}
	logger.Global().Info("gadget: connected", "peer", addr)
	c.dispatchLifecycleCallback(func() {
		if c.OnConnected != nil {
			c.OnConnected(addr)
		}
	})
}

func (c *Core) handleDisconnected() {
	c.mu.Lock()
	addr := c.peerAddr
	manual := c.state == StateDisconnectedManual
	c.mu.Unlock()

	logger.Global().Info("gadget: disconnected", "peer", addr)
	c.dispatchLifecycleCallback(func() {
		if c.OnDisconnected != nil {
			c.OnDisconnected(addr)
		}
	})

	if manual {
		return
	}
	c.setState(StateAdvertisingReconnect)
	c.resetReconnectStatus(time.Now())
	if err := c.l.AdvertiseReconnect(c.friendlyName); err != nil {
		logger.Global().Warn("gadget: failed to start reconnect advertisement", "err", err)
	}
}

// handleReconnectTick advances the backoff (SPEC_FULL.md §5 / scenario 6):
// attempt_count<30 -> next = now+10s; else next = now+60s, reset to 0 on
// success (handled in handleConnected), suppressed entirely while
// reconnectNext is nil (manual disconnect).
func (c *Core) handleReconnectTick() {
	c.mu.Lock()
	if c.state == StateConnected || c.reconnectNext == nil {
		c.mu.Unlock()
		return
	}
	due := !time.Now().Before(*c.reconnectNext)
	if !due {
		c.mu.Unlock()
		return
	}
	attempt := c.reconnectAttempt
	now := time.Now()
	var next time.Time
	if attempt < reconnectFastAttempts {
		next = now.Add(reconnectFastInterval)
	} else {
		next = now.Add(reconnectSlowInterval)
	}
	c.reconnectAttempt = attempt + 1
	c.reconnectNext = &next
	peer := c.peerAddr
	c.mu.Unlock()

	logger.Global().Info("gadget: attempting reconnect", "peer", peer, "attempt", attempt+1)
	metrics.IncReconnectAttempt(c.transportLabel)
	c.setState(StateAdvertisingReconnect)
	if err := c.l.AdvertiseReconnect(c.friendlyName); err != nil {
		logger.Global().Warn("gadget: reconnect advertisement failed", "err", err)
	}
}

func (c *Core) handleClear() error {
	c.mu.Lock()
	addr := c.peerAddr
	c.mu.Unlock()

	if addr != "" {
		if err := c.l.Unpair(addr); err != nil {
			logger.Global().Warn("gadget: unpair failed during clear", "peer", addr, "err", err)
		}
	}

	c.mu.Lock()
	c.peerAddr = ""
	c.reconnectNext = nil
	c.persistent.EchoBluetoothAddress = nil
	st := c.persistent
	c.state = StateIdle
	c.mu.Unlock()
	metrics.SetConnectionState(int(StateIdle))

	if err := config.SaveState(c.statePath, &st); err != nil {
		return agterrors.New(agterrors.KindConfig, "gadget.Core.Clear", err)
	}
	return nil
}

func (c *Core) persistPeerAddr(addr string) {
	c.mu.Lock()
	a := addr
	c.persistent.EchoBluetoothAddress = &a
	st := c.persistent
	c.mu.Unlock()

	if err := config.SaveState(c.statePath, &st); err != nil {
		logger.Global().Warn("gadget: failed to persist peer address", "peer", addr, "err", err)
	}
}

// handlePayload decodes one inbound Message/Directive and dispatches it.
// A malformed envelope is logged and dropped (SPEC_FULL.md §7); the
// Discover directive always builds a discovery response internally, all
// others go through the registered handler table.
func (c *Core) handlePayload(raw []byte) {
	msg := codec.DecodeMessage(raw)
	d, err := codec.DecodeDirective(msg.Payload)
	if err != nil {
		logger.Global().Warn("gadget: dropping malformed directive", "err", err)
		return
	}

	if d.Header.Namespace == "Alexa.Discovery" && d.Header.Name == "Discover" {
		c.sendDiscoverResponse()
		return
	}

	h, ok := c.handlers[dispatchKey(d.Header.Namespace, d.Header.Name)]
	if !ok {
		return
	}
	c.safeDispatch(h, d)
}

func (c *Core) safeDispatch(h DirectiveHandler, d *codec.Directive) {
	defer func() {
		if r := recover(); r != nil {
			logger.Global().Error("gadget: panic in directive handler",
				"namespace", d.Header.Namespace, "name", d.Header.Name,
				"recover", r, "stack", string(debug.Stack()))
		}
	}()
	h(d)
}

func (c *Core) dispatchLifecycleCallback(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Global().Error("gadget: panic in lifecycle callback", "recover", r, "stack", string(debug.Stack()))
		}
	}()
	f()
}

// sendDiscoverResponse builds and sends the DiscoverResponseEvent for the
// configured endpoint and capabilities (SPEC_FULL.md §8 scenario 1),
// grounded on alexa_gadget.py's on_alexa_discovery_discover.
func (c *Core) sendDiscoverResponse() {
	caps := make([]codec.Capability, 0, len(c.capabilities))
	for _, cp := range c.capabilities {
		caps = append(caps, codec.Capability{
			Interface:      cp.Interface,
			Version:        cp.Version,
			SupportedTypes: cp.SupportedTypes,
		})
	}
	ev := &codec.Event{
		Header: codec.Header{Namespace: "Alexa.Discovery", Name: "Discover.Response"},
		Variant: codec.DiscoverResponseEvent{
			EndpointID:   c.endpointID,
			DeviceToken:  c.deviceToken,
			Capabilities: caps,
		},
	}
	if err := c.SendEvent(ev); err != nil {
		logger.Global().Warn("gadget: failed to send discovery response", "err", err)
	}
}
