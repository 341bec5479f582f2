package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerificationKeyBits is the size of the random key a value verification
// hash is computed under.
const VerificationKeyBits = 256

// ValueVerificationHash returns hex(HMAC-SHA256(key, value)).
func ValueVerificationHash(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHashedValue reports whether hash was produced by ValueVerificationHash
// for the same key and value. The comparison is constant time.
func VerifyHashedValue(key []byte, value string, hash string) bool {
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return hmac.Equal(mac.Sum(nil), want)
}
