package gadget

import (
	"sync"
	"testing"
	"time"

	"github.com/commatea/agt-go/pkg/codec"
	"github.com/commatea/agt-go/pkg/config"
)

// fakeLink is an in-memory link implementation for exercising Core's
// lifecycle and dispatch logic without a real Bluetooth stack.
type fakeLink struct {
	mu sync.Mutex

	started             bool
	pairingAdvertised   int
	reconnectAdvertised int
	advertisingStopped  int
	disconnectedCalls   int
	unpaired            []string
	paired              map[string]bool

	sent [][]byte

	onConnected    func(string)
	onDisconnected func()
	onPayload      func([]byte)
}

func newFakeLink() *fakeLink {
	return &fakeLink{paired: map[string]bool{}}
}

func (f *fakeLink) Start() error { f.started = true; return nil }
func (f *fakeLink) Close() error { return nil }

func (f *fakeLink) AdvertisePairing(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairingAdvertised++
	return nil
}

func (f *fakeLink) AdvertiseReconnect(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnectAdvertised++
	return nil
}

func (f *fakeLink) StopAdvertising() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advertisingStopped++
	return nil
}

func (f *fakeLink) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeLink) IsPairedTo(addr string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paired[addr], nil
}

func (f *fakeLink) Unpair(addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unpaired = append(f.unpaired, addr)
	delete(f.paired, addr)
	return nil
}

func (f *fakeLink) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectedCalls++
}

func (f *fakeLink) setCallbacks(onConnected func(string), onDisconnected func(), onPayload func([]byte)) {
	f.onConnected = onConnected
	f.onDisconnected = onDisconnected
	f.onPayload = onPayload
}

func (f *fakeLink) reconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnectAdvertised
}

func newTestCore(t *testing.T, fl *fakeLink) *Core {
	t.Helper()
	c := &Core{
		settings: config.GadgetSettings{EndpointID: "AGTDEADBEEF0000"},
		capabilities: []config.Capability{
			{Interface: "Alert", Version: "1.1", SupportedTypes: []string{"ALERT"}},
		},
		statePath:    t.TempDir() + "/state.json",
		endpointID:   "AGTDEADBEEF0000",
		friendlyName: "GadgetEEF",
		amazonID:     "amzn1.test",
		deviceToken:  deriveDeviceToken("AGTDEADBEEF0000", "supersecret"),
		l:            fl,
		handlers:     map[string]DirectiveHandler{},
		events:       make(chan event, 64),
		stopCh:       make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	fl.setCallbacks(c.onLinkConnected, c.onLinkDisconnected, c.onLinkPayload)
	go c.runLoop()
	t.Cleanup(func() {
		c.events <- event{kind: evStop}
		<-c.stopped
	})
	return c
}

// drain gives the event loop goroutine a chance to process everything
// queued so far. The loop is a single serial consumer, so a short sleep
// after enqueuing is sufficient for these tests' assertions.
func drain(c *Core) {
	time.Sleep(20 * time.Millisecond)
}

func TestHandleConnectedPersistsNewPeerAndFiresCallback(t *testing.T) {
	fl := newFakeLink()
	c := newTestCore(t, fl)

	var gotAddr string
	c.OnConnected = func(addr string) { gotAddr = addr }

	c.events <- event{kind: evConnected, addr: "AA:BB:CC:DD:EE:FF"}
	drain(c)

	state, peer := c.Status()
	if state != StateConnected {
		t.Fatalf("state = %v, want Connected", state)
	}
	if peer != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("peer = %q", peer)
	}
	if gotAddr != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("OnConnected not fired with expected address, got %q", gotAddr)
	}

	saved, err := config.LoadState(c.statePath)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if saved.EchoBluetoothAddress == nil || *saved.EchoBluetoothAddress != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("persisted address = %v, want AA:BB:CC:DD:EE:FF", saved.EchoBluetoothAddress)
	}
}

func TestDisconnectReAdvertisesReconnectUnlessManual(t *testing.T) {
	fl := newFakeLink()
	c := newTestCore(t, fl)

	c.events <- event{kind: evConnected, addr: "11:22:33:44:55:66"}
	drain(c)
	c.events <- event{kind: evDisconnected}
	drain(c)

	state, _ := c.Status()
	if state != StateAdvertisingReconnect {
		t.Fatalf("state = %v, want AdvertisingReconnect after unexpected disconnect", state)
	}
	if fl.reconnectCount() == 0 {
		t.Fatalf("expected reconnect advertisement to be (re)started")
	}
}

func TestManualDisconnectSuppressesReconnect(t *testing.T) {
	fl := newFakeLink()
	c := newTestCore(t, fl)

	c.events <- event{kind: evConnected, addr: "11:22:33:44:55:66"}
	drain(c)

	before := fl.reconnectCount()
	c.Disconnect()
	drain(c)

	state, _ := c.Status()
	if state != StateDisconnectedManual {
		t.Fatalf("state = %v, want DisconnectedManual", state)
	}

	// Advance the backoff clock artificially by forcing a tick: since
	// reconnectNext was cleared, ticks must not advertise.
	c.events <- event{kind: evReconnectTick}
	drain(c)
	if fl.reconnectCount() != before {
		t.Fatalf("reconnect advertisement fired after manual disconnect, want suppressed")
	}
}

func TestReconnectBackoffAdvancesPastThirtyAttempts(t *testing.T) {
	fl := newFakeLink()
	c := newTestCore(t, fl)

	c.mu.Lock()
	c.state = StateAdvertisingReconnect
	past := time.Now().Add(-time.Second)
	c.reconnectNext = &past
	c.reconnectAttempt = 30
	c.mu.Unlock()

	c.events <- event{kind: evReconnectTick}
	drain(c)

	c.mu.Lock()
	attempt := c.reconnectAttempt
	next := *c.reconnectNext
	c.mu.Unlock()

	if attempt != 31 {
		t.Fatalf("attempt = %d, want 31", attempt)
	}
	if d := time.Until(next); d < 55*time.Second || d > 65*time.Second {
		t.Fatalf("next retry interval = %v, want ~60s once attempt count reaches 30", d)
	}
}

func TestClearUnpairsAndResetsState(t *testing.T) {
	fl := newFakeLink()
	fl.paired["11:22:33:44:55:66"] = true
	c := newTestCore(t, fl)

	c.events <- event{kind: evConnected, addr: "11:22:33:44:55:66"}
	drain(c)

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	state, peer := c.Status()
	if state != StateIdle || peer != "" {
		t.Fatalf("state/peer after Clear = %v/%q, want Idle/empty", state, peer)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if len(fl.unpaired) != 1 || fl.unpaired[0] != "11:22:33:44:55:66" {
		t.Fatalf("Unpair not called with expected address: %v", fl.unpaired)
	}
}

func TestDiscoverDirectiveSendsDiscoverResponse(t *testing.T) {
	fl := newFakeLink()
	c := newTestCore(t, fl)

	d := &codec.Directive{Header: codec.Header{Namespace: "Alexa.Discovery", Name: "Discover", MessageID: "m1"}}
	payload, err := codec.EncodeDirective(d)
	if err != nil {
		t.Fatalf("EncodeDirective: %v", err)
	}
	msg := codec.EncodeMessage(&codec.Message{Payload: payload})

	fl.onPayload(msg)
	drain(c)

	fl.mu.Lock()
	n := len(fl.sent)
	var last []byte
	if n > 0 {
		last = fl.sent[n-1]
	}
	fl.mu.Unlock()
	if n == 0 {
		t.Fatalf("no event sent in response to Discover directive")
	}

	respMsg := codec.DecodeMessage(last)
	ev, err := codec.DecodeEvent(respMsg.Payload)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	resp, ok := ev.Variant.(codec.DiscoverResponseEvent)
	if !ok {
		t.Fatalf("variant = %T, want DiscoverResponseEvent", ev.Variant)
	}
	if resp.EndpointID != c.endpointID {
		t.Fatalf("EndpointID = %q, want %q", resp.EndpointID, c.endpointID)
	}
	if resp.DeviceToken != c.deviceToken {
		t.Fatalf("DeviceToken = %q, want %q", resp.DeviceToken, c.deviceToken)
	}
	if len(resp.Capabilities) != 1 || resp.Capabilities[0].Interface != "Alert" {
		t.Fatalf("Capabilities = %+v", resp.Capabilities)
	}
}

func TestRegisteredDirectiveHandlerDispatchedAndPanicsIsolated(t *testing.T) {
	fl := newFakeLink()
	c := newTestCore(t, fl)

	called := make(chan struct{}, 1)
	c.RegisterHandler("Alerts", "SetAlert", func(d *codec.Directive) {
		called <- struct{}{}
		panic("boom")
	})

	d := &codec.Directive{
		Header:  codec.Header{Namespace: "Alerts", Name: "SetAlert", MessageID: "m1"},
		Variant: codec.SetAlertDirective{Alert: codec.Alert{Token: "t1"}},
	}
	payload, err := codec.EncodeDirective(d)
	if err != nil {
		t.Fatalf("EncodeDirective: %v", err)
	}
	msg := codec.EncodeMessage(&codec.Message{Payload: payload})

	fl.onPayload(msg)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("registered handler was not invoked")
	}

	// The panic inside the handler must not have crashed the event loop:
	// a subsequent request/reply event (Clear) still gets processed.
	if err := c.Clear(); err != nil {
		t.Fatalf("event loop did not process an event after the handler panic: %v", err)
	}
}

func TestUnrecognizedDirectiveIsDroppedSilently(t *testing.T) {
	fl := newFakeLink()
	c := newTestCore(t, fl)

	d := &codec.Directive{Header: codec.Header{Namespace: "Nonexistent", Name: "Whatever", MessageID: "m1"}}
	payload, err := codec.EncodeDirective(d)
	if err != nil {
		t.Fatalf("EncodeDirective: %v", err)
	}
	msg := codec.EncodeMessage(&codec.Message{Payload: payload})

	fl.onPayload(msg)
	drain(c)

	fl.mu.Lock()
	n := len(fl.sent)
	fl.mu.Unlock()
	if n != 0 {
		t.Fatalf("sent %d events for an unrecognized directive, want 0", n)
	}
}
