package blelink

import (
	"bytes"
	"testing"
)

// P1: reassemble(fragment(P, stream, mtu)) == P for any payload/mtu.
func TestFragmentReassembleRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
		mtu     int
	}{
		{"empty", nil, 244},
		{"small", []byte("hello"), 244},
		{"exact-capacity", bytes.Repeat([]byte{0xAB}, 244-headerOverhead), 244},
		{"multi-packet", bytes.Repeat([]byte{1, 2, 3, 4}, 150), 244}, // 600 bytes
		{"small-mtu-many-fragments", bytes.Repeat([]byte{0xCD}, 600), 20},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFragmenter()
			packets, err := f.Fragment(tc.payload, StreamAlexa, tc.mtu)
			if err != nil {
				t.Fatalf("Fragment: %v", err)
			}

			asm := NewReassembler()
			var final Reassembled
			var gotFinal bool
			for _, p := range packets {
				res, ok, err := asm.Feed(p)
				if err != nil {
					t.Fatalf("Feed: %v", err)
				}
				if ok {
					if gotFinal {
						t.Fatalf("more than one complete delivery")
					}
					final, gotFinal = res, true
				}
			}
			if !gotFinal {
				t.Fatal("transaction never completed")
			}
			if !bytes.Equal(final.Payload, tc.payload) {
				t.Fatalf("got %v want %v", final.Payload, tc.payload)
			}
			if final.StreamID != StreamAlexa {
				t.Fatalf("stream id got %d", final.StreamID)
			}
		})
	}
}

// Boundary: payload sized exactly MTU-7 produces exactly one FIRST packet.
func TestExactCapacityProducesSinglePacket(t *testing.T) {
	f := NewFragmenter()
	mtu := 244
	payload := bytes.Repeat([]byte{0x42}, mtu-headerOverhead)
	packets, err := f.Fragment(payload, StreamAlexa, mtu)
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}
	h, _, err := decodeHeader(packets[0])
	if err != nil {
		t.Fatal(err)
	}
	if h.TxType != TxFirst {
		t.Fatalf("expected FIRST, got %v", h.TxType)
	}
}

// scenario 4: 600-byte payload at MTU 244 fragments into FIRST/CONTINUATION/LAST
// sharing one transaction_id, with sequence numbers 0,1,2.
func TestFragmentationScenario(t *testing.T) {
	f := NewFragmenter()
	payload := bytes.Repeat([]byte{0x01}, 600)
	packets, err := f.Fragment(payload, StreamAlexa, 244)
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(packets))
	}

	wantTypes := []TxType{TxFirst, TxContinuation, TxLast}
	var txID byte
	for i, p := range packets {
		h, _, err := decodeHeader(p)
		if err != nil {
			t.Fatal(err)
		}
		if h.TxType != wantTypes[i] {
			t.Fatalf("packet %d: got tx_type %v want %v", i, h.TxType, wantTypes[i])
		}
		if h.SequenceNo != byte(i) {
			t.Fatalf("packet %d: got seq %d want %d", i, h.SequenceNo, i)
		}
		if i == 0 {
			txID = h.TransactionID
			if h.TotalLength != 600 {
				t.Fatalf("FIRST packet total_length got %d want 600", h.TotalLength)
			}
		} else if h.TransactionID != txID {
			t.Fatalf("packet %d: transaction_id changed mid-transaction", i)
		}
	}
}

// P5: transaction_id is monotonic mod 16 across successive Fragment calls.
func TestTransactionIDMonotonicModuloSixteen(t *testing.T) {
	f := NewFragmenter()
	var ids []byte
	for i := 0; i < 20; i++ {
		packets, err := f.Fragment([]byte{byte(i)}, StreamAlexa, 244)
		if err != nil {
			t.Fatal(err)
		}
		h, _, err := decodeHeader(packets[0])
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, h.TransactionID)
	}
	for i, id := range ids {
		if id != byte(i%16) {
			t.Fatalf("transaction %d: got id %d want %d", i, id, i%16)
		}
	}
}

// Boundary: a FIRST packet arriving while a stream's buffer is non-empty
// discards the old buffer and starts fresh.
func TestFirstPacketDiscardsStaleBuffer(t *testing.T) {
	f := NewFragmenter()
	stale, err := f.Fragment(bytes.Repeat([]byte{0xEE}, 600), StreamAlexa, 244)
	if err != nil {
		t.Fatal(err)
	}
	// Multi-packet, so the fresh FIRST packet goes into the stream's buffer
	// rather than being delivered on its own.
	freshPayload := bytes.Repeat([]byte("restarted"), 30)
	fresh, err := f.Fragment(freshPayload, StreamAlexa, 244)
	if err != nil {
		t.Fatal(err)
	}

	asm := NewReassembler()
	// feed only the FIRST+CONTINUATION of the stale transaction (leave it
	// incomplete), then the fresh transaction's packets.
	if _, _, err := asm.Feed(stale[0]); err != nil {
		t.Fatal(err)
	}
	if _, _, err := asm.Feed(stale[1]); err != nil {
		t.Fatal(err)
	}

	var final Reassembled
	var gotFinal bool
	for _, p := range fresh {
		res, ok, err := asm.Feed(p)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			final, gotFinal = res, true
		}
	}
	if !gotFinal {
		t.Fatal("fresh transaction never completed")
	}
	if !bytes.Equal(final.Payload, freshPayload) {
		t.Fatalf("got %q, stale buffer leaked into delivery", final.Payload)
	}
}

// Boundary: a LAST packet arriving with no prior buffer delivers just its
// own payload.
func TestLastWithEmptyBufferDeliversOwnPayload(t *testing.T) {
	h := Header{StreamID: StreamAlexa, TransactionID: 1, SequenceNo: 2, TxType: TxLast}
	payload := []byte("orphan")
	packet := append(encodeHeader(h, len(payload)), payload...)

	asm := NewReassembler()
	res, ok, err := asm.Feed(packet)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected immediate delivery")
	}
	if string(res.Payload) != "orphan" {
		t.Fatalf("got %q", res.Payload)
	}
}

// scenario 5: ack generation.
func TestBuildAck(t *testing.T) {
	ack := BuildAck(StreamAlexa, 3)
	h, _, err := decodeHeader(ack)
	if err != nil {
		t.Fatal(err)
	}
	if h.TxType != TxControl || !h.AckBit {
		t.Fatalf("got tx_type=%v ack=%v", h.TxType, h.AckBit)
	}
	if h.StreamID != StreamAlexa || h.TransactionID != 3 {
		t.Fatalf("got stream=%d tx_id=%d", h.StreamID, h.TransactionID)
	}
	// After the 2-byte header: reserved 0x00, length 0x02, then 01 00.
	payload := ack[2:]
	if !bytes.Equal(payload, []byte{0x00, 0x02, 0x01, 0x00}) {
		t.Fatalf("got payload %v want [00 02 01 00]", payload)
	}
}

func TestControlPacketDeliveredIsolated(t *testing.T) {
	h := Header{StreamID: StreamControl, TransactionID: 0, TxType: TxControl, AckBit: true}
	body := []byte{CmdGetDeviceFeatures}
	packet := append(encodeHeader(h, len(body)), body...)

	asm := NewReassembler()
	res, ok, err := asm.Feed(packet)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !res.IsControl {
		t.Fatal("expected an isolated control delivery")
	}
	if !bytes.Equal(res.Payload, body) {
		t.Fatalf("got %v", res.Payload)
	}
}
