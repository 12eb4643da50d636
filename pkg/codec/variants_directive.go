package codec

import "github.com/commatea/agt-go/pkg/wire"

func init() {
	register("Alexa.Discovery", "Discover", decodeDiscoverDirective)
	register("Custom.NamedState", "StateUpdate", decodeStateUpdateDirective)
	register("Custom.Indicator", "SetIndicator", decodeSetIndicatorDirective)
	register("Custom.Indicator", "ClearIndicator", decodeClearIndicatorDirective)
	register("Alexa.Speechmarks", "Speechmarks", decodeSpeechmarksDirective)
	register("Custom.Tempo", "SetTempo", decodeTempoDirective)
	register("Alerts", "SetAlert", decodeSetAlertDirective)
	register("Alerts", "DeleteAlert", decodeDeleteAlertDirective)
}

// DiscoverDirective carries no payload fields beyond the header; its
// presence is what the gadget core matches on to build a discovery
// response (SPEC_FULL.md §4.7).
type DiscoverDirective struct{}

func (DiscoverDirective) Namespace() string                   { return "Alexa.Discovery" }
func (DiscoverDirective) Name() string                        { return "Discover" }
func (DiscoverDirective) encodePayload(w *wire.Writer) error   { return nil }
func decodeDiscoverDirective(r *wire.Reader) (Variant, error)  { return DiscoverDirective{}, nil }

// NamedState is one (name, value) pair of a StateUpdateDirective.
type NamedState struct {
	Name  string
	Value string
}

// StateUpdateDirective reports a set of named state values to the
// accessory (e.g. media-player playback state).
type StateUpdateDirective struct {
	States []NamedState
}

func (StateUpdateDirective) Namespace() string { return "Custom.NamedState" }
func (StateUpdateDirective) Name() string       { return "StateUpdate" }

func (d StateUpdateDirective) encodePayload(w *wire.Writer) error {
	w.WriteUint8(uint8(len(d.States)))
	for _, s := range d.States {
		if err := w.WriteString(s.Name); err != nil {
			return err
		}
		if err := w.WriteString(s.Value); err != nil {
			return err
		}
	}
	return nil
}

func decodeStateUpdateDirective(r *wire.Reader) (Variant, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	states := make([]NamedState, 0, n)
	for i := 0; i < int(n); i++ {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		value, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		states = append(states, NamedState{Name: name, Value: value})
	}
	return StateUpdateDirective{States: states}, nil
}

// SetIndicatorDirective drives a generic indicator (commonly an RGB LED)
// on the accessory; Type distinguishes indicator kind, Value is an
// opaque application-defined encoding (e.g. packed RGB).
type SetIndicatorDirective struct {
	Type  string
	Value uint32
}

func (SetIndicatorDirective) Namespace() string { return "Custom.Indicator" }
func (SetIndicatorDirective) Name() string       { return "SetIndicator" }

func (d SetIndicatorDirective) encodePayload(w *wire.Writer) error {
	if err := w.WriteString(d.Type); err != nil {
		return err
	}
	w.WriteUint32(d.Value)
	return nil
}

func decodeSetIndicatorDirective(r *wire.Reader) (Variant, error) {
	t, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	v, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return SetIndicatorDirective{Type: t, Value: v}, nil
}

// ClearIndicatorDirective turns off a previously-set indicator.
type ClearIndicatorDirective struct {
	Type string
}

func (ClearIndicatorDirective) Namespace() string { return "Custom.Indicator" }
func (ClearIndicatorDirective) Name() string       { return "ClearIndicator" }

func (d ClearIndicatorDirective) encodePayload(w *wire.Writer) error {
	return w.WriteString(d.Type)
}

func decodeClearIndicatorDirective(r *wire.Reader) (Variant, error) {
	t, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return ClearIndicatorDirective{Type: t}, nil
}

// Speechmark is one timed marker within a spoken response (word boundary,
// viseme, sentence boundary, ...).
type Speechmark struct {
	Type      string
	Value     string
	TimeMs    uint32
}

// SpeechmarksDirective streams speech timing markers alongside TTS audio.
type SpeechmarksDirective struct {
	Marks []Speechmark
}

func (SpeechmarksDirective) Namespace() string { return "Alexa.Speechmarks" }
func (SpeechmarksDirective) Name() string       { return "Speechmarks" }

func (d SpeechmarksDirective) encodePayload(w *wire.Writer) error {
	w.WriteUint8(uint8(len(d.Marks)))
	for _, m := range d.Marks {
		if err := w.WriteString(m.Type); err != nil {
			return err
		}
		if err := w.WriteString(m.Value); err != nil {
			return err
		}
		w.WriteUint32(m.TimeMs)
	}
	return nil
}

func decodeSpeechmarksDirective(r *wire.Reader) (Variant, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	marks := make([]Speechmark, 0, n)
	for i := 0; i < int(n); i++ {
		typ, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		val, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		ts, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		marks = append(marks, Speechmark{Type: typ, Value: val, TimeMs: ts})
	}
	return SpeechmarksDirective{Marks: marks}, nil
}

// TempoDirective sets a beats-per-minute value the accessory can use to
// synchronize an animation to music playback.
type TempoDirective struct {
	BeatsPerMinute uint32
}

func (TempoDirective) Namespace() string { return "Custom.Tempo" }
func (TempoDirective) Name() string       { return "SetTempo" }

func (d TempoDirective) encodePayload(w *wire.Writer) error {
	w.WriteUint32(d.BeatsPerMinute)
	return nil
}

func decodeTempoDirective(r *wire.Reader) (Variant, error) {
	bpm, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return TempoDirective{BeatsPerMinute: bpm}, nil
}

// Alert identifies a scheduled alert (timer or alarm) by opaque token.
type Alert struct {
	Token         string
	ScheduledTime string
	Type          string
}

// SetAlertDirective schedules an alert on the accessory.
type SetAlertDirective struct {
	Alert Alert
}

func (SetAlertDirective) Namespace() string { return "Alerts" }
func (SetAlertDirective) Name() string       { return "SetAlert" }

func (d SetAlertDirective) encodePayload(w *wire.Writer) error {
	if err := w.WriteString(d.Alert.Token); err != nil {
		return err
	}
	if err := w.WriteString(d.Alert.ScheduledTime); err != nil {
		return err
	}
	return w.WriteString(d.Alert.Type)
}

func decodeSetAlertDirective(r *wire.Reader) (Variant, error) {
	token, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	scheduled, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	typ, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return SetAlertDirective{Alert: Alert{Token: token, ScheduledTime: scheduled, Type: typ}}, nil
}

// DeleteAlertDirective cancels a previously scheduled alert.
type DeleteAlertDirective struct {
	Token string
}

func (DeleteAlertDirective) Namespace() string { return "Alerts" }
func (DeleteAlertDirective) Name() string       { return "DeleteAlert" }

func (d DeleteAlertDirective) encodePayload(w *wire.Writer) error {
	return w.WriteString(d.Token)
}

func decodeDeleteAlertDirective(r *wire.Reader) (Variant, error) {
	token, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return DeleteAlertDirective{Token: token}, nil
}
