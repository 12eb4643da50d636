package codec

import (
	"fmt"

	"github.com/commatea/agt-go/pkg/wire"
)

// Event is a typed message from accessory to hub; same envelope shape as
// Directive (SPEC_FULL.md §3).
type Event struct {
	Header  Header
	Variant Variant
	Raw     []byte
}

// EncodeEvent serializes e's header followed by its typed payload, or raw
// bytes for a custom (application-built) event.
func EncodeEvent(e *Event) ([]byte, error) {
	w := &wire.Writer{}
	if err := e.Header.encode(w); err != nil {
		return nil, decodeErr("codec.EncodeEvent", err)
	}
	if e.Variant != nil {
		if err := e.Variant.encodePayload(w); err != nil {
			return nil, decodeErr("codec.EncodeEvent", err)
		}
	} else {
		w.WriteRest(e.Raw)
	}
	return w.Bytes(), nil
}

// DecodeEvent parses payload bytes into an Event. Used by tests and by any
// hub-emulating tooling; the gadget core itself only ever encodes events.
func DecodeEvent(payload []byte) (*Event, error) {
	r := wire.NewReader(payload)
	h, err := decodeHeader(r)
	if err != nil {
		return nil, decodeErr("codec.DecodeEvent", fmt.Errorf("header: %w", err))
	}
	e := &Event{Header: h}
	if fn, ok := lookup(h.Namespace, h.Name); ok {
		v, err := fn(r)
		if err != nil {
			return nil, decodeErr("codec.DecodeEvent", fmt.Errorf("payload: %w", err))
		}
		e.Variant = v
		return e, nil
	}
	e.Raw = r.Rest()
	return e, nil
}

// NewCustomEvent builds an Event with an application-chosen (namespace,
// name) header and a raw (typically JSON-encoded) payload, per
// SPEC_FULL.md §4.7 send_custom_event.
func NewCustomEvent(namespace, name, messageID string, jsonPayload []byte) *Event {
	return &Event{
		Header: Header{Namespace: namespace, Name: name, MessageID: messageID},
		Raw:    jsonPayload,
	}
}
