package gadget

import (
	"crypto/sha256"
	"encoding/hex"
)

// deriveDeviceToken computes the device token (SPEC_FULL.md P6):
// lowercase hex of sha256(endpoint_id_utf8 || secret_utf8). Grounded
// byte-exactly on alexa_gadget.py's _generate_token, which concatenates the
// two UTF-8 byte strings before hashing rather than hashing them
// separately.
func deriveDeviceToken(endpointID, secret string) string {
	sum := sha256.Sum256([]byte(endpointID + secret))
	return hex.EncodeToString(sum[:])
}
