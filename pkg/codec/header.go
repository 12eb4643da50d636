package codec

import "github.com/commatea/agt-go/pkg/wire"

// Header carries the namespace/name routing key and a per-message
// correlation id, present on every Directive and Event (SPEC_FULL.md §3).
type Header struct {
	Namespace string
	Name      string
	MessageID string
}

func (h Header) encode(w *wire.Writer) error {
	if err := w.WriteString(h.Namespace); err != nil {
		return err
	}
	if err := w.WriteString(h.Name); err != nil {
		return err
	}
	return w.WriteString(h.MessageID)
}

func decodeHeader(r *wire.Reader) (Header, error) {
	var h Header
	var err error
	if h.Namespace, err = r.ReadString(); err != nil {
		return h, err
	}
	if h.Name, err = r.ReadString(); err != nil {
		return h, err
	}
	if h.MessageID, err = r.ReadString(); err != nil {
		return h, err
	}
	return h, nil
}

// key is the registration-table lookup key for a (namespace, name) pair.
// Built once at init() time for each predeclared variant — never
// synthesized at dispatch time from arbitrary runtime strings (SPEC_FULL.md
// §9: "never by runtime name synthesis" applies to handler dispatch in
// pkg/gadget; this key is a fixed literal per registered variant).
func key(namespace, name string) string { return namespace + "\x00" + name }
