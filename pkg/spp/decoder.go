package spp

import "github.com/commatea/agt-go/pkg/logger"

type state int

const (
	stateFindSTX state = iota
	stateCmd
	stateErr
	stateSeq
	stateData
)

// Decoder is the byte-at-a-time SPP decode state machine (SPEC_FULL.md
// §4.2): FIND_STX → CMD → ERR → SEQ (escaped) → DATA (escaped). Malformed
// packets are dropped silently; the decoder never returns an error to its
// caller, matching "the framer has no retransmission".
type Decoder struct {
	state   state
	cmd     byte
	errID   byte
	seq     byte
	data    []byte
	escaped bool

	// OnPacket is invoked with the validated, unescaped payload once a
	// complete, checksum-valid packet has been received. It must not be
	// nil before Feed is called.
	OnPacket func(payload []byte)

	// OnChecksumError, if set, is invoked whenever a packet is dropped for
	// being too short or failing its checksum.
	OnChecksumError func()
}

// NewDecoder returns a Decoder in the FIND_STX state.
func NewDecoder(onPacket func(payload []byte)) *Decoder {
	return &Decoder{state: stateFindSTX, OnPacket: onPacket}
}

// Feed processes one incoming byte.
func (d *Decoder) Feed(b byte) {
	if d.escaped {
		d.escaped = false
		literal := b ^ esc
		switch d.state {
		case stateSeq:
			d.seq = literal
			d.state = stateData
			d.data = d.data[:0]
		case stateData:
			d.data = append(d.data, literal)
		}
		return
	}

	if b == stx {
		d.state = stateCmd
		d.data = nil
		return
	}

	switch d.state {
	case stateFindSTX:
		// junk outside a packet; discard.
	case stateCmd:
		d.cmd = b
		d.state = stateErr
	case stateErr:
		d.errID = b
		d.state = stateSeq
	case stateSeq:
		if b == esc {
			d.escaped = true
			return
		}
		d.seq = b
		d.state = stateData
		d.data = d.data[:0]
	case stateData:
		if b == esc {
			d.escaped = true
			return
		}
		if b == etx {
			d.closePacket()
			d.state = stateFindSTX
			return
		}
		d.data = append(d.data, b)
	}
}

// FeedAll feeds a whole byte slice through the state machine.
func (d *Decoder) FeedAll(b []byte) {
	for _, c := range b {
		d.Feed(c)
	}
}

func (d *Decoder) closePacket() {
	if len(d.data) < 2 {
		logger.Global().Warn("spp: packet too short for checksum, dropping", "len", len(d.data))
		if d.OnChecksumError != nil {
			d.OnChecksumError()
		}
		return
	}
	payload := d.data[:len(d.data)-2]
	want := uint16(d.data[len(d.data)-2])<<8 | uint16(d.data[len(d.data)-1])
	got := checksum(d.cmd, d.errID, payload)
	if got != want {
		logger.Global().Warn("spp: checksum mismatch, dropping packet",
			"want", want, "got", got, "bytes", logger.FormatBytes(d.data))
		if d.OnChecksumError != nil {
			d.OnChecksumError()
		}
		return
	}
	if d.OnPacket != nil {
		d.OnPacket(append([]byte(nil), payload...))
	}
}
