// Package codec implements the Message/Directive/Event envelope encoding
// (SPEC_FULL.md §3, §4.1): a schema-driven binary format hand-rolled the
// way the teacher encodes its own wire protocols (pkg/protocol/modbus in
// the teacher repo), not via a general-purpose serialization library.
package codec

import "github.com/commatea/agt-go/pkg/agterrors"

// Message is the top-level envelope: a single payload field. Directives and
// events are each serialized first, then wrapped in a Message whose payload
// is those bytes — so at this layer Message is a transparent pass-through,
// modeled as its own type to mirror the external schema exactly.
type Message struct {
	Payload []byte
}

// EncodeMessage returns the wire bytes for m.
func EncodeMessage(m *Message) []byte {
	return append([]byte(nil), m.Payload...)
}

// DecodeMessage wraps raw bytes into a Message. It never fails: any byte
// sequence is a valid Message payload at this layer.
func DecodeMessage(b []byte) *Message {
	return &Message{Payload: append([]byte(nil), b...)}
}

// DecodeError is returned by Decode* functions when the envelope does not
// parse as the expected schema.
func decodeErr(op string, err error) error {
	return agterrors.New(agterrors.KindDecode, op, err)
}
