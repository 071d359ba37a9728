package imgcrypt

func getBitUint8(num uint8, index int) uint8 {
	mask := uint8(1 << index)
	if num&mask == 0 {
		return 0
	}
	return 1
}

func setBitUint8(num uint8, index int) uint8 {
	mask := uint8(1 << index)
	return num | mask
}

func clearBitUint8(num uint8, index int) uint8 {
	mask := uint8(^(1 << index))
	return num & mask
}

// payloadBit returns bit i of data counting from the most significant bit of data[0].
func payloadBit(data []byte, i int) uint8 {
	return getBitUint8(data[i/8], 7-i%8)
}

// floorMod is a mod n with the sign of n, so the residue is never negative for n > 0.
func floorMod(a, n int64) int64 {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

// mulMod computes a*b mod n for residues already reduced into [0, n).
func mulMod(a, b, n int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	// n fits in 32 bits for any addressable image side, so a*b cannot overflow.
	if n <= 1<<31 {
		return a * b % n
	}
	var r int64
	for b > 0 {
		if b&1 == 1 {
			r = (r + a) % n
		}
		a = (a * 2) % n
		b >>= 1
	}
	return r
}
