package imgcrypt

// Arnold cat map over a square N×N buffer.
//
// The forward matrix [[1, b], [a, ab+1]] has determinant 1, so its integer
// inverse [[ab+1, -b], [-a, 1]] undoes it exactly modulo N.

type catMatrix struct {
	m00, m01, m10, m11 int64
}

func forwardMatrix(a, b, n int64) catMatrix {
	ra, rb := floorMod(a, n), floorMod(b, n)
	return catMatrix{
		m00: 1 % n,
		m01: rb,
		m10: ra,
		m11: floorMod(mulMod(ra, rb, n)+1, n),
	}
}

func inverseMatrix(a, b, n int64) catMatrix {
	ra, rb := floorMod(a, n), floorMod(b, n)
	return catMatrix{
		m00: floorMod(mulMod(ra, rb, n)+1, n),
		m01: floorMod(-rb, n),
		m10: floorMod(-ra, n),
		m11: 1 % n,
	}
}

// destinations maps every source pixel index to its destination pixel index
// under one application of m.
func (m catMatrix) destinations(n int) []int {
	nn := int64(n)
	dst := make([]int, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			xi, yi := int64(x), int64(y)
			nx := (mulMod(m.m00, xi, nn) + mulMod(m.m01, yi, nn)) % nn
			ny := (mulMod(m.m10, xi, nn) + mulMod(m.m11, yi, nn)) % nn
			dst[y*n+x] = int(ny)*n + int(nx)
		}
	}
	return dst
}

func checkSquare(buf *Buffer) error {
	if buf.Width != buf.Height || buf.Width <= 0 {
		return &Error{Kind: KindDimensionMismatch, Width: buf.Width, Height: buf.Height}
	}
	return buf.Validate()
}

// Permute applies iterations rounds of the cat map with coefficients a, b.
// Every round writes into a freshly allocated buffer; the input is never
// modified. With zero iterations the input is returned as is.
func Permute(buf *Buffer, a, b int64, iterations uint32) (*Buffer, error) {
	if err := checkSquare(buf); err != nil {
		return nil, err
	}
	return applyRounds(buf, forwardMatrix(a, b, int64(buf.Width)), iterations), nil
}

// InversePermute undoes Permute with the same coefficients and round count.
func InversePermute(buf *Buffer, a, b int64, iterations uint32) (*Buffer, error) {
	if err := checkSquare(buf); err != nil {
		return nil, err
	}
	return applyRounds(buf, inverseMatrix(a, b, int64(buf.Width)), iterations), nil
}

func applyRounds(buf *Buffer, m catMatrix, iterations uint32) *Buffer {
	if iterations == 0 {
		return buf
	}
	n := buf.Width
	c := buf.Channels
	dst := m.destinations(n)

	current := buf
	for round := uint32(0); round < iterations; round++ {
		next := NewBuffer(n, n, c)
		for src, d := range dst {
			copy(next.Pix[d*c:(d+1)*c], current.Pix[src*c:(src+1)*c])
		}
		current = next
	}
	return current
}
