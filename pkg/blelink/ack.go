package blelink

// ack message type and error code bytes (SPEC_FULL.md §4.3 "Acknowledgment").
const (
	ackMsgType   byte = 0x01
	ackErrorCode byte = 0x00
)

// BuildAck synthesizes the fixed 6-byte control-type acknowledgment packet
// written back to the hub on receipt of any data packet with ack_bit==1.
// Unlike a generic packet, the ack always carries a reserved byte and a
// single-byte length (value 2) regardless of tx_type, matching the
// reference encoder's create_ack_message rather than the general FIRST-only
// header rule.
func BuildAck(streamID, transactionID byte) []byte {
	b1 := (streamID << 4) | (transactionID & 0x0F)
	b2 := (byte(TxControl) << 2) | (0x01 << 1) // ack_bit = 1, length_ext = 0
	return []byte{b1, b2, 0x00, 0x02, ackMsgType, ackErrorCode}
}
