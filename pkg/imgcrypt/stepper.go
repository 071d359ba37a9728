package imgcrypt

import "errors"

var errCursorExhausted = errors.New("more steps taken than channel values in the carrier")

// rasterStepper walks the channel values of a buffer in raster order
// (row-major, channel-minor), one payload bit per channel value.
type rasterStepper struct {
	x       int
	y       int
	channel int
	pos     int
	buf     *Buffer
}

func makeRasterStepper(buf *Buffer) *rasterStepper {
	return &rasterStepper{buf: buf}
}

func (s *rasterStepper) exhausted() bool {
	return s.y >= s.buf.Height
}

func (s *rasterStepper) step() {
	s.pos++
	s.channel++
	if s.channel >= s.buf.Channels {
		s.channel = 0
		s.x++
		if s.x >= s.buf.Width {
			s.x = 0
			s.y++
		}
	}
}

func (s *rasterStepper) offset() int {
	return s.buf.pixOffset(s.x, s.y) + s.channel
}

// writeBit replaces the least significant bit of the current channel value.
func (s *rasterStepper) writeBit(bit uint8) error {
	if s.exhausted() {
		return errCursorExhausted
	}
	i := s.offset()
	if bit == 0 {
		s.buf.Pix[i] = clearBitUint8(s.buf.Pix[i], 0)
	} else {
		s.buf.Pix[i] = setBitUint8(s.buf.Pix[i], 0)
	}
	s.step()
	return nil
}

func (s *rasterStepper) readBit() (uint8, error) {
	if s.exhausted() {
		return 0, errCursorExhausted
	}
	bit := getBitUint8(s.buf.Pix[s.offset()], 0)
	s.step()
	return bit, nil
}

// readBytes reads n bytes, most significant bit first.
func (s *rasterStepper) readBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n*8; i++ {
		bit, err := s.readBit()
		if err != nil {
			return nil, err
		}
		if bit != 0 {
			out[i/8] = setBitUint8(out[i/8], 7-i%8)
		}
	}
	return out, nil
}
