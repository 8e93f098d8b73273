package funding

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// VerifySignature reports whether the hex-encoded HMAC-SHA512 signature matches
// the raw payload under any of the provided secrets. Accepting more than one
// secret lets webhooks signed with a previous key verify during rotation.
func VerifySignature(payload []byte, signature string, secrets ...[]byte) bool {
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	for _, secret := range secrets {
		if len(secret) == 0 {
			continue
		}
		mac := hmac.New(sha512.New, secret)
		mac.Write(payload)
		if hmac.Equal(provided, mac.Sum(nil)) {
			return true
		}
	}
	return false
}
