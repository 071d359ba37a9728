package imgcrypt

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Digest returns the hex-encoded SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyDigest checks data against a hex-encoded SHA-256 digest. Upper-case
// hex and surrounding whitespace are tolerated.
func VerifyDigest(data []byte, expectedHex string) error {
	expectedHex = strings.ToLower(strings.TrimSpace(expectedHex))
	expected, err := hex.DecodeString(expectedHex)
	if err != nil || len(expected) != sha256.Size {
		return &Error{Kind: KindIntegrityMismatch, Expected: expectedHex, Actual: Digest(data), Msg: "expected digest is not 64 hex characters"}
	}
	sum := sha256.Sum256(data)
	if subtle.ConstantTimeCompare(sum[:], expected) != 1 {
		return &Error{Kind: KindIntegrityMismatch, Expected: expectedHex, Actual: hex.EncodeToString(sum[:])}
	}
	return nil
}
