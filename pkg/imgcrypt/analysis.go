package imgcrypt

import (
	"image"
	"image/color"
	"math"
)

// AnalysisResult holds metrics about the comparison between two buffers.
type AnalysisResult struct {
	MSE      float64 // Mean Squared Error per channel value
	PSNR     float64 // Peak Signal-to-Noise Ratio (dB), +Inf for identical buffers
	EntropyA float64 // Shannon entropy of the first buffer (bits per byte)
	EntropyB float64
	SSIM     float64 // mean structural similarity, 1 for identical buffers
	Changed  int // channel values that differ
	MaxDelta int // largest absolute per-value difference
}

// Analyze compares two buffers of equal shape.
func Analyze(a, b *Buffer) (*AnalysisResult, error) {
	if a.Shape() != b.Shape() || len(a.Pix) != len(b.Pix) {
		return nil, &Error{Kind: KindShapeInconsistency, Expected: a.Shape().String(), Actual: b.Shape().String()}
	}

	res := &AnalysisResult{EntropyA: Entropy(a), EntropyB: Entropy(b)}
	var sumSquaredError float64
	for i := range a.Pix {
		diff := int(a.Pix[i]) - int(b.Pix[i])
		if diff != 0 {
			res.Changed++
		}
		if diff < 0 {
			diff = -diff
		}
		if diff > res.MaxDelta {
			res.MaxDelta = diff
		}
		sumSquaredError += float64(diff * diff)
	}

	if len(a.Pix) > 0 {
		res.MSE = sumSquaredError / float64(len(a.Pix))
	}
	res.PSNR = 10 * math.Log10((255*255)/res.MSE)

	ssim, err := SSIM(a, b)
	if err != nil {
		return nil, err
	}
	res.SSIM = ssim
	return res, nil
}

const ssimWindow = 7

// SSIM is the structural similarity of two buffers of equal shape: the mean,
// over every channel and every window that fits inside the image, of
//
//	(2·μa·μb + C1)(2·σab + C2) / ((μa² + μb² + C1)(σa² + σb² + C2))
//
// with C1 = (0.01·255)², C2 = (0.03·255)² and sample (co)variances. The window
// is 7 pixels square, shrunk to the smaller side of small images and kept odd.
// Images under 3 pixels a side score 0.
func SSIM(a, b *Buffer) (float64, error) {
	if a.Shape() != b.Shape() || len(a.Pix) != len(b.Pix) {
		return 0, &Error{Kind: KindShapeInconsistency, Expected: a.Shape().String(), Actual: b.Shape().String()}
	}
	win := min(ssimWindow, a.Width, a.Height)
	if win%2 == 0 {
		win--
	}
	if win < 3 {
		return 0, nil
	}

	const (
		c1 = (0.01 * 255) * (0.01 * 255)
		c2 = (0.03 * 255) * (0.03 * 255)
	)
	n := float64(win * win)
	covNorm := n / (n - 1)

	// Summed-area table of a, b, a², b², ab; row and column 0 stay zero.
	stride := a.Width + 1
	sums := make([][5]int64, (a.Height+1)*stride)
	windowSum := func(x, y, k int) float64 {
		return float64(sums[(y+win)*stride+x+win][k] - sums[y*stride+x+win][k] -
			sums[(y+win)*stride+x][k] + sums[y*stride+x][k])
	}

	var total float64
	var count int
	for c := 0; c < a.Channels; c++ {
		for y := 0; y < a.Height; y++ {
			var row [5]int64
			for x := 0; x < a.Width; x++ {
				off := a.pixOffset(x, y) + c
				va, vb := int64(a.Pix[off]), int64(b.Pix[off])
				row[0] += va
				row[1] += vb
				row[2] += va * va
				row[3] += vb * vb
				row[4] += va * vb
				above := sums[y*stride+x+1]
				cell := &sums[(y+1)*stride+x+1]
				for k := range cell {
					cell[k] = above[k] + row[k]
				}
			}
		}

		for y := 0; y+win <= a.Height; y++ {
			for x := 0; x+win <= a.Width; x++ {
				ma, mb := windowSum(x, y, 0)/n, windowSum(x, y, 1)/n
				va := covNorm * (windowSum(x, y, 2)/n - ma*ma)
				vb := covNorm * (windowSum(x, y, 3)/n - mb*mb)
				vab := covNorm * (windowSum(x, y, 4)/n - ma*mb)
				total += ((2*ma*mb + c1) * (2*vab + c2)) / ((ma*ma + mb*mb + c1) * (va + vb + c2))
				count++
			}
		}
	}
	return total / float64(count), nil
}

// Entropy is the Shannon entropy of the byte histogram of buf.
func Entropy(buf *Buffer) float64 {
	if len(buf.Pix) == 0 {
		return 0
	}
	var hist [256]int
	for _, v := range buf.Pix {
		hist[v]++
	}
	n := float64(len(buf.Pix))
	var h float64
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}

// Heatmap renders the per-pixel difference between two buffers of equal
// shape. Black means unchanged; changed pixels shade from green to red.
func Heatmap(a, b *Buffer) (*image.NRGBA, error) {
	if a.Shape() != b.Shape() {
		return nil, &Error{Kind: KindShapeInconsistency, Expected: a.Shape().String(), Actual: b.Shape().String()}
	}
	heatmap := image.NewNRGBA(image.Rect(0, 0, a.Width, a.Height))
	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			off := a.pixOffset(x, y)
			var diffSum float64
			for c := 0; c < a.Channels; c++ {
				diffSum += math.Abs(float64(a.Pix[off+c]) - float64(b.Pix[off+c]))
			}
			if diffSum == 0 {
				heatmap.SetNRGBA(x, y, color.NRGBA{A: 255})
				continue
			}
			// A difference of 1 becomes 50 brightness.
			intensity := uint8(math.Min(255, diffSum*50))
			heatmap.SetNRGBA(x, y, color.NRGBA{R: intensity, G: 255 - intensity, A: 255})
		}
	}
	return heatmap, nil
}
