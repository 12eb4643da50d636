package blelink

// ProtocolVersionPacket is the fixed 20-byte gadget→hub handshake sent on
// RX once notifications are enabled (SPEC_FULL.md §4.5): protocol id
// 0xFE03, major/minor version, MTU size, MAX_TRANSACTIONAL_SIZE (0x1388 =
// 5000, advertised only — fragmentation sizing uses the negotiated MTU,
// per SPEC_FULL.md Open Question c), then 12 reserved zero bytes.
var ProtocolVersionPacket = []byte{
	0xFE, 0x03, 0x03, 0x00, 0x02, 0x00, 0x13, 0x88,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}
