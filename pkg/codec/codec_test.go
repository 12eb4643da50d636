package codec

import (
	"reflect"
	"testing"
)

// P4: decode(encode(V(F))) == V(F) for every predeclared directive variant.
func TestDirectiveRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		d    *Directive
	}{
		{"discover", &Directive{
			Header:  Header{Namespace: "Alexa.Discovery", Name: "Discover", MessageID: "m1"},
			Variant: DiscoverDirective{},
		}},
		{"state-update", &Directive{
			Header: Header{Namespace: "Custom.NamedState", Name: "StateUpdate", MessageID: "m2"},
			Variant: StateUpdateDirective{States: []NamedState{
				{Name: "power", Value: "on"},
				{Name: "volume", Value: "7"},
			}},
		}},
		{"set-indicator", &Directive{
			Header:  Header{Namespace: "Custom.Indicator", Name: "SetIndicator", MessageID: "m3"},
			Variant: SetIndicatorDirective{Type: "rgb", Value: 0x00FF00},
		}},
		{"clear-indicator", &Directive{
			Header:  Header{Namespace: "Custom.Indicator", Name: "ClearIndicator", MessageID: "m4"},
			Variant: ClearIndicatorDirective{Type: "rgb"},
		}},
		{"speechmarks", &Directive{
			Header: Header{Namespace: "Alexa.Speechmarks", Name: "Speechmarks", MessageID: "m5"},
			Variant: SpeechmarksDirective{Marks: []Speechmark{
				{Type: "word", Value: "hello", TimeMs: 120},
			}},
		}},
		{"tempo", &Directive{
			Header:  Header{Namespace: "Custom.Tempo", Name: "SetTempo", MessageID: "m6"},
			Variant: TempoDirective{BeatsPerMinute: 128},
		}},
		{"set-alert", &Directive{
			Header:  Header{Namespace: "Alerts", Name: "SetAlert", MessageID: "m7"},
			Variant: SetAlertDirective{Alert: Alert{Token: "t1", ScheduledTime: "2026-08-01T09:00:00Z", Type: "ALARM"}},
		}},
		{"delete-alert", &Directive{
			Header:  Header{Namespace: "Alerts", Name: "DeleteAlert", MessageID: "m8"},
			Variant: DeleteAlertDirective{Token: "t1"},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := EncodeDirective(tc.d)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			decoded, err := DecodeDirective(encoded)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if decoded.Header != tc.d.Header {
				t.Fatalf("header mismatch: got %+v want %+v", decoded.Header, tc.d.Header)
			}
			if !reflect.DeepEqual(decoded.Variant, tc.d.Variant) {
				t.Fatalf("variant mismatch: got %#v want %#v", decoded.Variant, tc.d.Variant)
			}
		})
	}
}

func TestUnknownDirectiveIsGeneric(t *testing.T) {
	d := &Directive{
		Header: Header{Namespace: "Some.Unknown", Name: "Thing", MessageID: "m9"},
		Raw:    []byte{1, 2, 3},
	}
	encoded, err := EncodeDirective(d)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeDirective(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Variant != nil {
		t.Fatalf("expected nil variant, got %#v", decoded.Variant)
	}
	if string(decoded.Raw) != "\x01\x02\x03" {
		t.Fatalf("raw mismatch: %v", decoded.Raw)
	}
}

func TestMalformedDirectiveHeaderIsDecodeError(t *testing.T) {
	_, err := DecodeDirective([]byte{0xFF})
	if err == nil {
		t.Fatal("expected decode error on truncated header")
	}
}

func TestDiscoverResponseEventRoundTrip(t *testing.T) {
	e := &Event{
		Header: Header{Namespace: "Alexa.Discovery", Name: "Discover.Response", MessageID: "r1"},
		Variant: DiscoverResponseEvent{
			EndpointID:  "AGTaabbccddeeff",
			DeviceToken: "abc123",
			Capabilities: []Capability{
				{Interface: "Alexa.Discovery", Version: "1.0"},
				{Interface: "Custom.Indicator", Version: "1.0", SupportedTypes: []string{"rgb", "mono"}},
			},
		},
	}
	encoded, err := EncodeEvent(e)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeEvent(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded.Variant, e.Variant) {
		t.Fatalf("mismatch: got %#v want %#v", decoded.Variant, e.Variant)
	}
}

func TestMessageIsTransparent(t *testing.T) {
	payload := []byte{9, 9, 9}
	m := DecodeMessage(EncodeMessage(&Message{Payload: payload}))
	if !reflect.DeepEqual(m.Payload, payload) {
		t.Fatalf("got %v want %v", m.Payload, payload)
	}
}
