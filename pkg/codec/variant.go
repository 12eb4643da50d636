package codec

import "github.com/commatea/agt-go/pkg/wire"

// Variant is a typed directive or event payload that knows how to encode
// itself and which (namespace, name) it is registered under.
type Variant interface {
	Namespace() string
	Name() string
	encodePayload(w *wire.Writer) error
}

type decodeFunc func(r *wire.Reader) (Variant, error)

var registry = map[string]decodeFunc{}

// register adds a variant's decoder to the lookup table. Called only from
// package-level init() functions in variants_*.go — a fixed registration
// table populated at package-construction time, per SPEC_FULL.md §9.
func register(namespace, name string, fn decodeFunc) {
	registry[key(namespace, name)] = fn
}

func lookup(namespace, name string) (decodeFunc, bool) {
	fn, ok := registry[key(namespace, name)]
	return fn, ok
}
