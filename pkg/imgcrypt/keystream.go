package imgcrypt

import (
	"fmt"
	"math"
)

const (
	burnInIterations = 100
	keystreamScale   = 255.999999

	// Bounds of the logistic map's chaotic regime.
	ChaoticRMin = 3.57
	ChaoticRMax = 4.0
)

// InChaoticRange reports whether (x0, r) lies in the range where the logistic
// map behaves chaotically. Parameters outside it still work, with a weaker
// keystream.
func InChaoticRange(x0, r float64) bool {
	return x0 > 0 && x0 < 1 && r >= ChaoticRMin && r <= ChaoticRMax
}

// Keystream iterates x <- r*x*(1-x) from x0, discards the burn-in, and
// quantizes the next n values to bytes. The same (x0, r, n) always yields the
// same bytes.
func Keystream(x0, r float64, n int) ([]byte, error) {
	x := x0
	for i := 0; i < burnInIterations; i++ {
		x = r * x * (1 - x)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, &Error{
				Kind: KindNumericalInstability,
				Msg:  fmt.Sprintf("non-finite value during burn-in iteration %d (x0=%v, r=%v)", i, x0, r),
			}
		}
	}

	out := make([]byte, n)
	for i := range out {
		x = r * x * (1 - x)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, &Error{
				Kind:      KindNumericalInstability,
				Needed:    n,
				Available: i,
				Msg:       fmt.Sprintf("non-finite value at keystream byte %d (x0=%v, r=%v)", i, x0, r),
			}
		}
		out[i] = quantize(x)
	}
	return out, nil
}

// quantize maps a value in [0, 1) onto a byte. Values that escaped the unit
// interval saturate instead of wrapping.
func quantize(x float64) byte {
	v := math.Floor(x * keystreamScale)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v)
}

// XORKeystream XORs the keystream for (x0, r) into every byte of buf, in
// place. Applying it twice with the same parameters restores the input.
func XORKeystream(buf *Buffer, x0, r float64) (*Buffer, error) {
	ks, err := Keystream(x0, r, len(buf.Pix))
	if err != nil {
		return nil, err
	}
	for i := range buf.Pix {
		buf.Pix[i] ^= ks[i]
	}
	return buf, nil
}
