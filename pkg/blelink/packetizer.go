package blelink

import (
	"sync"

	"github.com/commatea/agt-go/pkg/agterrors"
)

// headerOverhead is the worst-case BLE packet header size (FIRST packet,
// length-extended), used so every fragment is guaranteed to fit MTU.
const headerOverhead = 7

// Fragmenter splits outbound payloads into MTU-sized BLE packets. Its
// transaction-id counter is per-instance, incremented once per Fragment
// call (SPEC_FULL.md §4.3).
type Fragmenter struct {
	mu       sync.Mutex
	nextTxID byte
}

// NewFragmenter returns a Fragmenter with transaction_id starting at 0.
func NewFragmenter() *Fragmenter {
	return &Fragmenter{}
}

// Fragment splits payload into wire-ready BLE packets for streamID, sized
// to fit mtu bytes each.
func (f *Fragmenter) Fragment(payload []byte, streamID byte, mtu int) ([][]byte, error) {
	capacity := mtu - headerOverhead
	if capacity <= 0 {
		return nil, agterrors.Newf(agterrors.KindConfig, "blelink.Fragment", "MTU %d leaves no room for payload after a %d-byte header", mtu, headerOverhead)
	}

	total := len(payload)
	n := total / capacity
	if total%capacity != 0 || n == 0 {
		n++
	}

	txID := f.takeTxID()
	packets := make([][]byte, 0, n)

	for i := 0; i < n; i++ {
		start := i * capacity
		end := start + capacity
		if end > total {
			end = total
		}
		chunk := payload[start:end]

		var txType TxType
		switch {
		case i == 0:
			txType = TxFirst
		case i == n-1:
			txType = TxLast
		default:
			txType = TxContinuation
		}

		h := Header{
			StreamID:      streamID,
			TransactionID: txID,
			SequenceNo:    byte(i % 16),
			TxType:        txType,
			LengthExt:     len(chunk) > 255,
		}
		if txType == TxFirst {
			h.TotalLength = uint16(total)
		}

		packet := append(encodeHeader(h, len(chunk)), chunk...)
		packets = append(packets, packet)
	}
	return packets, nil
}

func (f *Fragmenter) takeTxID() byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextTxID
	f.nextTxID = (f.nextTxID + 1) & 0x0F
	return id
}

// Reassembled is a fully reassembled transaction or an isolated control
// packet, delivered by Reassembler.Feed.
type Reassembled struct {
	StreamID      byte
	TransactionID byte
	AckBit        bool
	IsControl     bool
	Payload       []byte
}

// Reassembler reassembles multi-packet BLE transactions per stream_id
// (SPEC_FULL.md §4.3 "Reassembly"). Touched only by the transport
// driver's single inbound callback; no internal locking is required.
type Reassembler struct {
	buffers map[byte][]byte
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{buffers: make(map[byte][]byte)}
}

// Feed parses one incoming BLE packet and advances reassembly state for
// its stream. ok is false while a multi-packet transaction is still
// in-flight.
func (r *Reassembler) Feed(packet []byte) (result Reassembled, ok bool, err error) {
	h, off, err := decodeHeader(packet)
	if err != nil {
		return Reassembled{}, false, err
	}
	frag := packet[off : off+h.fragLen]

	switch h.TxType {
	case TxControl:
		return Reassembled{
			StreamID:      h.StreamID,
			TransactionID: h.TransactionID,
			AckBit:        h.AckBit,
			IsControl:     true,
			Payload:       append([]byte(nil), frag...),
		}, true, nil

	case TxFirst:
		if int(h.TotalLength) == len(frag) {
			// single-packet transaction: delivered directly, buffer untouched.
			return Reassembled{
				StreamID:      h.StreamID,
				TransactionID: h.TransactionID,
				AckBit:        h.AckBit,
				Payload:       append([]byte(nil), frag...),
			}, true, nil
		}
		// a FIRST packet for a multi-packet transaction always restarts the
		// buffer, even if one was already in flight (the hub has restarted).
		buf := make([]byte, len(frag), int(h.TotalLength))
		copy(buf, frag)
		r.buffers[h.StreamID] = buf
		return Reassembled{}, false, nil

	case TxContinuation:
		r.buffers[h.StreamID] = append(r.buffers[h.StreamID], frag...)
		return Reassembled{}, false, nil

	case TxLast:
		full := append(r.buffers[h.StreamID], frag...)
		delete(r.buffers, h.StreamID)
		return Reassembled{
			StreamID:      h.StreamID,
			TransactionID: h.TransactionID,
			AckBit:        h.AckBit,
			Payload:       full,
		}, true, nil
	}

	return Reassembled{}, false, agterrors.Newf(agterrors.KindProtocol, "blelink.Feed", "unknown tx_type %d", h.TxType)
}

// ClearStream drops any in-flight reassembly buffer for streamID. The
// transport calls it when a packet on that stream fails to parse.
func (r *Reassembler) ClearStream(streamID byte) {
	delete(r.buffers, streamID)
}
