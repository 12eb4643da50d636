package spp

import (
	"bytes"
	"testing"
)

func decodeOne(t *testing.T, framed []byte) []byte {
	t.Helper()
	var got []byte
	var n int
	dec := NewDecoder(func(payload []byte) {
		got = payload
		n++
	})
	dec.FeedAll(framed)
	if n != 1 {
		t.Fatalf("expected exactly one packet, got %d", n)
	}
	return got
}

// P2: decode(encode(P)) == P for any payload, including reserved bytes.
func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01, 0x02, 0x03},
		{0xF0, 0xF1, 0xF2},               // all reserved bytes
		bytes.Repeat([]byte{0xF2}, 8),     // all ESC
		[]byte("hello world"),
		{0x00, 0xFF, 0xF0, 0x7F, 0xF1, 0xF2, 0x80},
	}
	for _, payload := range cases {
		enc := NewEncoder()
		framed := enc.Encode(payload)
		got := decodeOne(t, framed)
		if !bytes.Equal(got, payload) {
			t.Fatalf("payload %v: got %v", payload, got)
		}
	}
}

// P3: flipping any single non-control byte inside a framed packet causes
// the decoder to drop it.
func TestChecksumRejection(t *testing.T) {
	enc := NewEncoder()
	payload := []byte{0x10, 0x20, 0x30, 0x40}
	framed := enc.Encode(payload)

	for i := range framed {
		b := framed[i]
		if b == stx || b == etx || b == esc {
			continue
		}
		mutated := append([]byte(nil), framed...)
		mutated[i] ^= 0x01
		var delivered bool
		dec := NewDecoder(func(payload []byte) { delivered = true })
		dec.FeedAll(mutated)
		if delivered {
			t.Fatalf("flipping byte %d (0x%02x) should have been rejected", i, b)
		}
	}
}

func TestAllReservedPayloadRoundTrips(t *testing.T) {
	enc := NewEncoder()
	payload := bytes.Repeat([]byte{0xF0, 0xF1, 0xF2}, 4)
	framed := enc.Encode(payload)
	got := decodeOne(t, framed)
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %v want %v", got, payload)
	}
}

func TestSequenceSkipsReservedAndIsPerInstance(t *testing.T) {
	enc := NewEncoder()
	enc.nextSeq = 0xEF
	var seqs []byte
	for i := 0; i < 4; i++ {
		seqs = append(seqs, enc.takeSeq())
	}
	want := []byte{0xEF, 0xF3, 0xF4, 0xF5}
	if !bytes.Equal(seqs, want) {
		t.Fatalf("got %v want %v", seqs, want)
	}

	other := NewEncoder()
	if other.nextSeq != 0 {
		t.Fatalf("a fresh instance must not share state: nextSeq=%d", other.nextSeq)
	}
}

func TestTruncatedPacketDropped(t *testing.T) {
	var delivered bool
	dec := NewDecoder(func(payload []byte) { delivered = true })
	dec.FeedAll([]byte{stx, commandID, errorID, 0x01, 0x00, 0x00}) // no ETX
	if delivered {
		t.Fatal("incomplete packet should not be delivered")
	}
}

func TestNewPacketAbandonsInFlightOne(t *testing.T) {
	enc := NewEncoder()
	p1 := enc.Encode([]byte{1, 2, 3})
	p2 := enc.Encode([]byte{4, 5, 6})

	var delivered [][]byte
	dec := NewDecoder(func(payload []byte) {
		delivered = append(delivered, append([]byte(nil), payload...))
	})
	// feed p1 without its final ETX, then a fresh STX from p2: the
	// in-progress p1 bytes must be abandoned, not delivered.
	dec.FeedAll(p1[:len(p1)-1])
	dec.FeedAll(p2)

	if len(delivered) != 1 || !bytes.Equal(delivered[0], []byte{4, 5, 6}) {
		t.Fatalf("got %v", delivered)
	}
}
