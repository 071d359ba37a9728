// Package imgprep turns image files into the square pixel buffers the
// encryption pipeline consumes, and turns decrypted buffers back into images.
package imgprep

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/gift"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/mintnchocochip/Image-Compression-and-Encryption-Pipeline/pkg/imgcrypt"
)

// Options controls how an image is prepared.
type Options struct {
	Grayscale bool
	// MaxSide downscales the image so its longer side is at most MaxSide
	// pixels. Zero keeps the original size.
	MaxSide int
	// MinSide pads the square carrier up to at least MinSide pixels so that
	// small images still have room for the embedded metadata.
	MinSide int
}

// Load decodes the image at path. The format name is returned as reported by
// the registered decoder (png, jpeg, gif, bmp, tiff).
func Load(path string) (image.Image, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	return Decode(file)
}

func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// Prepare converts img to 1 or 3 channels, optionally downscales it, and pads
// it with black to a centred square.
func Prepare(img image.Image, opts Options) (imgcrypt.Prepared, error) {
	if opts.MaxSide < 0 || opts.MinSide < 0 {
		return imgcrypt.Prepared{}, errors.New("side limits cannot be negative")
	}
	if opts.MaxSide > 0 && opts.MinSide > opts.MaxSide {
		return imgcrypt.Prepared{}, fmt.Errorf("min side %d exceeds max side %d", opts.MinSide, opts.MaxSide)
	}
	img = downscale(img, opts.MaxSide)

	buf := ToBuffer(img, opts.Grayscale)
	if buf.Width == 0 || buf.Height == 0 {
		return imgcrypt.Prepared{}, fmt.Errorf("image has no pixels (%dx%d)", buf.Width, buf.Height)
	}

	padded := PadSquare(buf, opts.MinSide)
	return imgcrypt.Prepared{
		Buffer:         padded,
		OriginalWidth:  buf.Width,
		OriginalHeight: buf.Height,
		Padded:         padded != buf,
		Grayscale:      opts.Grayscale,
	}, nil
}

func downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	if maxSide == 0 || (b.Dx() <= maxSide && b.Dy() <= maxSide) {
		return img
	}
	var g *gift.GIFT
	if b.Dx() >= b.Dy() {
		g = gift.New(gift.Resize(maxSide, 0, gift.LanczosResampling))
	} else {
		g = gift.New(gift.Resize(0, maxSide, gift.LanczosResampling))
	}
	dst := image.NewNRGBA(g.Bounds(b))
	g.Draw(dst, img)
	return dst
}

// ToBuffer copies img into a buffer without padding. Grayscale images get one
// channel; colour images get three, with any transparency blended over white.
func ToBuffer(img image.Image, grayscale bool) *imgcrypt.Buffer {
	if grayscale {
		g := gift.New(gift.Grayscale())
		gray := image.NewGray(g.Bounds(img.Bounds()))
		g.Draw(gray, img)

		w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
		buf := imgcrypt.NewBuffer(w, h, 1)
		for y := 0; y < h; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
			copy(buf.Pix[y*w:(y+1)*w], row)
		}
		return buf
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	buf := imgcrypt.NewBuffer(w, h, 3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			r, g, bl := blendOnWhite(c)
			buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2] = r, g, bl
			i += 3
		}
	}
	return buf
}

func blendOnWhite(c color.NRGBA) (uint8, uint8, uint8) {
	switch c.A {
	case 255:
		return c.R, c.G, c.B
	case 0:
		return 255, 255, 255
	}
	alpha := float64(c.A) / 255
	blend := func(v uint8) uint8 {
		return uint8(float64(v)*alpha + 255*(1-alpha))
	}
	return blend(c.R), blend(c.G), blend(c.B)
}

// PadSquare centres buf on a black square canvas whose side is the longer of
// its dimensions, or minSide if that is larger. A buffer that already fits is
// returned unchanged.
func PadSquare(buf *imgcrypt.Buffer, minSide int) *imgcrypt.Buffer {
	side := max(buf.Width, buf.Height, minSide)
	if buf.Width == side && buf.Height == side {
		return buf
	}
	left := (side - buf.Width) / 2
	top := (side - buf.Height) / 2

	out := imgcrypt.NewBuffer(side, side, buf.Channels)
	rowLen := buf.Width * buf.Channels
	for y := 0; y < buf.Height; y++ {
		dst := ((top+y)*side + left) * buf.Channels
		copy(out.Pix[dst:dst+rowLen], buf.Pix[y*rowLen:(y+1)*rowLen])
	}
	return out
}

// ToImage wraps a decrypted buffer as an image.Gray or an opaque image.NRGBA.
func ToImage(buf *imgcrypt.Buffer) (image.Image, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, buf.Width, buf.Height)
	switch buf.Channels {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, buf.Pix)
		return img, nil
	default:
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(buf.Pix); i, j = i+3, j+4 {
			img.Pix[j] = buf.Pix[i]
			img.Pix[j+1] = buf.Pix[i+1]
			img.Pix[j+2] = buf.Pix[i+2]
			img.Pix[j+3] = 255
		}
		return img, nil
	}
}

// FormatFromPath picks an output format from the file extension, defaulting
// to png.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".bmp":
		return "bmp"
	case ".tif", ".tiff":
		return "tiff"
	case ".gif":
		return "gif"
	}
	return "png"
}

// Encode writes img in the named format.
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "gif":
		return gif.Encode(w, img, nil)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// Save writes img to path in the format implied by its extension.
func Save(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(file, img, FormatFromPath(path)); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
