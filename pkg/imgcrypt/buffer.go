package imgcrypt

import "fmt"

// Buffer is a row-major, channel-minor pixel grid. A stage that receives a
// Buffer owns it; it may mutate it in place and must hand back the buffer the
// next stage should use.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// Shape is the (height, width, channels) triple carried in metadata and in the
// artifact header.
type Shape struct {
	Height   int
	Width    int
	Channels int
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

// Len is the number of bytes a buffer of this shape occupies.
func (s Shape) Len() int {
	return s.Height * s.Width * s.Channels
}

// NewBuffer allocates a zeroed buffer.
func NewBuffer(width, height, channels int) *Buffer {
	return &Buffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// BufferFromShape wraps pix as a buffer of the given shape after checking its length.
func BufferFromShape(s Shape, pix []byte) (*Buffer, error) {
	b := &Buffer{Width: s.Width, Height: s.Height, Channels: s.Channels, Pix: pix}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Buffer) Shape() Shape {
	return Shape{Height: b.Height, Width: b.Width, Channels: b.Channels}
}

// Validate checks the channel count and that Pix matches the declared dimensions.
func (b *Buffer) Validate() error {
	if b.Channels != 1 && b.Channels != 3 {
		return &Error{Kind: KindUnsupportedColor, Msg: fmt.Sprintf("%d channels (must be 1 or 3)", b.Channels)}
	}
	if b.Width < 0 || b.Height < 0 {
		return &Error{Kind: KindShapeInconsistency, Width: b.Width, Height: b.Height, Msg: "negative dimensions"}
	}
	if len(b.Pix) != b.Width*b.Height*b.Channels {
		return &Error{
			Kind:     KindShapeInconsistency,
			Width:    b.Width,
			Height:   b.Height,
			Expected: fmt.Sprintf("%d bytes", b.Width*b.Height*b.Channels),
			Actual:   fmt.Sprintf("%d bytes", len(b.Pix)),
		}
	}
	return nil
}

func (b *Buffer) Clone() *Buffer {
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Channels: b.Channels, Pix: pix}
}

// pixOffset returns the index of the first channel of pixel (x, y).
func (b *Buffer) pixOffset(x, y int) int {
	return (y*b.Width + x) * b.Channels
}

// Crop copies the width×height window whose top-left corner is (left, top).
func (b *Buffer) Crop(left, top, width, height int) (*Buffer, error) {
	if left < 0 || top < 0 || width < 0 || height < 0 || left+width > b.Width || top+height > b.Height {
		return nil, &Error{
			Kind:     KindShapeInconsistency,
			Width:    b.Width,
			Height:   b.Height,
			Expected: fmt.Sprintf("window %dx%d at (%d,%d) inside %dx%d", width, height, left, top, b.Width, b.Height),
			Actual:   "window out of bounds",
		}
	}
	out := NewBuffer(width, height, b.Channels)
	rowLen := width * b.Channels
	for y := 0; y < height; y++ {
		src := b.pixOffset(left, top+y)
		copy(out.Pix[y*rowLen:(y+1)*rowLen], b.Pix[src:src+rowLen])
	}
	return out, nil
}
