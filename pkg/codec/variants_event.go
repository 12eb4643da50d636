package codec

import "github.com/commatea/agt-go/pkg/wire"

func init() {
	register("Alexa.Discovery", "Discover.Response", decodeDiscoverResponseEvent)
}

// Capability is one entry of a DiscoverResponseEvent, mirroring a single
// [GadgetCapabilities] line from the per-gadget configuration file
// (SPEC_FULL.md §6): an interface name, its version, and an optional list
// of supported sub-types.
type Capability struct {
	Interface      string
	Version        string
	SupportedTypes []string
}

// DiscoverResponseEvent is the only event produced internally by the core
// (SPEC_FULL.md §3), sent in response to an Alexa.Discovery/Discover
// directive.
type DiscoverResponseEvent struct {
	EndpointID   string
	DeviceToken  string
	Capabilities []Capability
}

func (DiscoverResponseEvent) Namespace() string { return "Alexa.Discovery" }
func (DiscoverResponseEvent) Name() string       { return "Discover.Response" }

func (e DiscoverResponseEvent) encodePayload(w *wire.Writer) error {
	if err := w.WriteString(e.EndpointID); err != nil {
		return err
	}
	if err := w.WriteString(e.DeviceToken); err != nil {
		return err
	}
	w.WriteUint8(uint8(len(e.Capabilities)))
	for _, c := range e.Capabilities {
		if err := w.WriteString(c.Interface); err != nil {
			return err
		}
		if err := w.WriteString(c.Version); err != nil {
			return err
		}
		w.WriteUint8(uint8(len(c.SupportedTypes)))
		for _, t := range c.SupportedTypes {
			if err := w.WriteString(t); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeDiscoverResponseEvent(r *wire.Reader) (Variant, error) {
	endpointID, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	token, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	caps := make([]Capability, 0, n)
	for i := 0; i < int(n); i++ {
		iface, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		version, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		tn, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		var types []string
		if tn > 0 {
			types = make([]string, 0, tn)
		}
		for j := 0; j < int(tn); j++ {
			t, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			types = append(types, t)
		}
		caps = append(caps, Capability{Interface: iface, Version: version, SupportedTypes: types})
	}
	return DiscoverResponseEvent{EndpointID: endpointID, DeviceToken: token, Capabilities: caps}, nil
}
