package codec

import (
	"fmt"

	"github.com/commatea/agt-go/pkg/wire"
)

// Directive is a typed message from hub to accessory (SPEC_FULL.md §3).
// Variant is set for any predeclared, recognized (namespace, name) pair;
// otherwise Raw carries the undecoded payload bytes and Variant is nil.
type Directive struct {
	Header  Header
	Variant Variant
	Raw     []byte
}

// EncodeDirective serializes d's header followed by its typed payload (or
// raw bytes, for a generic directive built by hand).
func EncodeDirective(d *Directive) ([]byte, error) {
	w := &wire.Writer{}
	if err := d.Header.encode(w); err != nil {
		return nil, decodeErr("codec.EncodeDirective", err)
	}
	if d.Variant != nil {
		if err := d.Variant.encodePayload(w); err != nil {
			return nil, decodeErr("codec.EncodeDirective", err)
		}
	} else {
		w.WriteRest(d.Raw)
	}
	return w.Bytes(), nil
}

// DecodeDirective parses payload bytes into a Directive. An unrecognized
// (namespace, name) pair yields a generic Directive carrying raw payload
// bytes rather than failing — only a malformed envelope (header truncated)
// returns a DecodeError, per SPEC_FULL.md §4.1.
func DecodeDirective(payload []byte) (*Directive, error) {
	r := wire.NewReader(payload)
	h, err := decodeHeader(r)
	if err != nil {
		return nil, decodeErr("codec.DecodeDirective", fmt.Errorf("header: %w", err))
	}
	d := &Directive{Header: h}
	if fn, ok := lookup(h.Namespace, h.Name); ok {
		v, err := fn(r)
		if err != nil {
			return nil, decodeErr("codec.DecodeDirective", fmt.Errorf("payload: %w", err))
		}
		d.Variant = v
		return d, nil
	}
	d.Raw = r.Rest()
	return d, nil
}
