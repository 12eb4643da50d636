// Package blelink implements the BLE packetization/reassembly layer
// (SPEC_FULL.md §4.3–§4.5): fragmenting arbitrary payloads across an
// MTU-sized GATT characteristic, multiplexing logical streams, tagging
// transactions with sequence numbers, acknowledging transport, and serving
// the in-band control stream and GATT transport driver. Grounded on
// _examples/original_source/src/agt/ble/protocol.py's Packetizer and
// adapted into the packet-reader shape of the teacher's
// pkg/protocol/modbus/rtu.go.
package blelink

import (
	"errors"

	"github.com/commatea/agt-go/pkg/agterrors"
)

var errTruncated = errors.New("truncated BLE packet header")

// Stream ids, fixed by the protocol (SPEC_FULL.md §3).
const (
	StreamControl byte = 0
	StreamOTA     byte = 2
	StreamAlexa   byte = 6
)

// TxType is the 2-bit transaction-type field of header byte 2.
type TxType byte

const (
	TxFirst        TxType = 0
	TxContinuation TxType = 1
	TxLast         TxType = 2
	TxControl      TxType = 3
)

// Header is the logical content of a BLE packet's 2-to-7 byte header.
type Header struct {
	StreamID      byte
	TransactionID byte
	SequenceNo    byte
	TxType        TxType
	AckBit        bool
	LengthExt     bool
	TotalLength   uint16 // only meaningful when TxType == TxFirst

	fragLen int // length of the fragment following the header, set by decodeHeader
}

// encodeHeader renders h followed by the per-packet length field, per
// SPEC_FULL.md §4.3's "Header encoding". payloadLen is the length of the
// fragment that follows on the wire.
func encodeHeader(h Header, payloadLen int) []byte {
	b1 := (h.StreamID << 4) | (h.TransactionID & 0x0F)

	var ack, lenExt byte
	if h.AckBit {
		ack = 1
	}
	if h.LengthExt {
		lenExt = 1
	}
	b2 := (h.SequenceNo << 4) | ((byte(h.TxType) & 0x03) << 2) | (ack << 1) | lenExt

	out := make([]byte, 0, 7)
	out = append(out, b1, b2)
	if h.TxType == TxFirst {
		out = append(out, 0x00, byte(h.TotalLength>>8), byte(h.TotalLength))
	}
	if h.LengthExt {
		out = append(out, byte(payloadLen>>8), byte(payloadLen))
	} else {
		out = append(out, byte(payloadLen))
	}
	return out
}

// decodeHeader parses a packet's header and returns it along with the
// offset of the first fragment byte.
func decodeHeader(data []byte) (Header, int, error) {
	if len(data) < 2 {
		return Header{}, 0, agterrors.New(agterrors.KindProtocol, "blelink.decodeHeader", errTruncated)
	}
	b1, b2 := data[0], data[1]

	h := Header{
		StreamID:      b1 >> 4,
		TransactionID: b1 & 0x0F,
		SequenceNo:    b2 >> 4,
		TxType:        TxType((b2 >> 2) & 0x03),
		AckBit:        (b2>>1)&0x01 == 1,
		LengthExt:     b2&0x01 == 1,
	}

	off := 2
	if h.TxType == TxFirst {
		if len(data) < off+3 {
			return Header{}, 0, agterrors.New(agterrors.KindProtocol, "blelink.decodeHeader", errTruncated)
		}
		h.TotalLength = uint16(data[off+1])<<8 | uint16(data[off+2])
		off += 3
	}

	var fragLen int
	if h.LengthExt {
		if len(data) < off+2 {
			return Header{}, 0, agterrors.New(agterrors.KindProtocol, "blelink.decodeHeader", errTruncated)
		}
		fragLen = int(data[off])<<8 | int(data[off+1])
		off += 2
	} else {
		if len(data) < off+1 {
			return Header{}, 0, agterrors.New(agterrors.KindProtocol, "blelink.decodeHeader", errTruncated)
		}
		fragLen = int(data[off])
		off += 1
	}

	if len(data) < off+fragLen {
		return Header{}, 0, agterrors.New(agterrors.KindProtocol, "blelink.decodeHeader", errTruncated)
	}
	h.fragLen = fragLen
	return h, off, nil
}
