package spp

import "sync"

// Encoder frames outbound payloads. Its sequence-id counter is per-instance
// (SPEC_FULL.md §9 Open Question (a): the Python source's module-global
// counter is treated as an implementation oversight, not a requirement).
type Encoder struct {
	mu      sync.Mutex
	nextSeq byte
}

// NewEncoder returns a framer with its sequence counter starting at 0.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode frames payload as STX || CMD || ERR || seq || escape(payload ||
// checksum) || ETX (SPEC_FULL.md §4.2).
func (e *Encoder) Encode(payload []byte) []byte {
	seq := e.takeSeq()

	sum := checksum(commandID, errorID, payload)
	body := make([]byte, 0, len(payload)+2)
	body = append(body, payload...)
	body = append(body, byte(sum>>8), byte(sum))
	escapedBody := escapeBytes(body)

	out := make([]byte, 0, 5+len(escapedBody))
	out = append(out, stx, commandID, errorID)
	out = append(out, escapeByte(seq)...)
	out = append(out, escapedBody...)
	out = append(out, etx)
	return out
}

func (e *Encoder) takeSeq() byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq := e.nextSeq
	e.advance()
	return seq
}

// advance moves nextSeq to the following non-reserved value, wrapping mod
// 256, per SPEC_FULL.md I4.
func (e *Encoder) advance() {
	e.nextSeq++
	for isReserved(e.nextSeq) {
		e.nextSeq++
	}
}
