package imgcrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100000
	SaltSize      = 16
)

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func createHash(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, kdfIterations, 32, sha256.New)
}

// unitInterval maps 8 key bytes onto the open interval (0, 1). Only 52 bits
// are kept so that u+0.5 stays exact and the top value is 1-2^-53, not 1.
func unitInterval(b []byte) float64 {
	u := binary.BigEndian.Uint64(b) >> 12
	return (float64(u) + 0.5) / (1 << 52)
}

// chaoticR maps 8 key bytes onto [ChaoticRMin, ChaoticRMax).
func chaoticR(b []byte) float64 {
	r := ChaoticRMin + (ChaoticRMax-ChaoticRMin)*(unitInterval(b)-0.5/(1<<52))
	if r >= ChaoticRMax {
		r = math.Nextafter(ChaoticRMax, 0)
	}
	return r
}

// DeriveParams turns a passphrase into keystream and permutation parameters.
// x0 lands in (0, 1) and r in [3.57, 4.0), so the result is always inside the
// chaotic range. The round count is left to the caller.
func DeriveParams(passphrase string, salt []byte, iterations uint32) (Params, error) {
	if passphrase == "" {
		return Params{}, errors.New("passphrase must not be empty")
	}
	if len(salt) == 0 {
		return Params{}, errors.New("salt must not be empty")
	}
	key := createHash(passphrase, salt)
	return Params{
		Iterations: iterations,
		A:          int64(1 + key[16]%31),
		B:          int64(1 + key[17]%31),
		X0:         unitInterval(key[0:8]),
		R:          chaoticR(key[8:16]),
	}, nil
}
