package imgcrypt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Metadata is everything a decryptor needs to undo a run. It travels inside
// the encrypted carrier, serialized as compact JSON.
type Metadata struct {
	EncryptedBy string           `json:"encrypted_by"`
	Description string           `json:"description"`
	Timestamp   string           `json:"timestamp"`
	Params      EncryptionParams `json:"encryption_params"`
}

// EncryptionParams holds the cipher parameters and the shapes at each point
// of the run. Shapes are [height, width] or [height, width, channels].
type EncryptionParams struct {
	ACMIterations         uint32    `json:"acm_iterations"`
	ACMA                  int64     `json:"acm_a"`
	ACMB                  int64     `json:"acm_b"`
	LogisticX0            float64   `json:"logistic_x0"`
	LogisticR             float64   `json:"logistic_r"`
	OriginalShapeUnpadded [2]uint32 `json:"original_shape_unpadded"`
	OriginalShapePadded   [3]uint32 `json:"original_shape_padded"`
	Grayscale             bool      `json:"grayscale"`
	Padded                bool      `json:"padded"`
	PreStegShape          [3]uint32 `json:"pre_steg_shape"`
}

// Cipher returns the permutation and keystream parameters.
func (p EncryptionParams) Cipher() Params {
	return Params{
		Iterations: p.ACMIterations,
		A:          p.ACMA,
		B:          p.ACMB,
		X0:         p.LogisticX0,
		R:          p.LogisticR,
	}
}

func (p EncryptionParams) PaddedShape() Shape {
	return shape3(p.OriginalShapePadded)
}

func (p EncryptionParams) PreSteg() Shape {
	return shape3(p.PreStegShape)
}

// Unpadded returns the original width and height.
func (p EncryptionParams) Unpadded() (width, height int) {
	return int(p.OriginalShapeUnpadded[1]), int(p.OriginalShapeUnpadded[0])
}

// Validate checks that the recovered shapes describe a run this package could
// have produced.
func (p EncryptionParams) Validate() error {
	padded := p.PaddedShape()
	if padded.Channels != 1 && padded.Channels != 3 {
		return &Error{Kind: KindUnsupportedColor, Msg: fmt.Sprintf("metadata declares %d channels", padded.Channels)}
	}
	if padded != p.PreSteg() {
		return &Error{Kind: KindShapeInconsistency, Expected: padded.String(), Actual: p.PreSteg().String(), Msg: "padded and pre-steg shapes differ"}
	}
	w, h := p.Unpadded()
	if w == 0 || h == 0 || w > padded.Width || h > padded.Height {
		return &Error{
			Kind:     KindShapeInconsistency,
			Expected: fmt.Sprintf("original within %dx%d", padded.Width, padded.Height),
			Actual:   fmt.Sprintf("%dx%d", w, h),
		}
	}
	return nil
}

func shape3(s [3]uint32) Shape {
	return Shape{Height: int(s[0]), Width: int(s[1]), Channels: int(s[2])}
}

func shapeArray(s Shape) [3]uint32 {
	return [3]uint32{uint32(s.Height), uint32(s.Width), uint32(s.Channels)}
}

// MarshalMetadata serializes m to compact JSON.
func MarshalMetadata(m Metadata) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, &Error{Kind: KindMalformedMetadata, Err: err}
	}
	return data, nil
}

// ParseMetadata decodes the JSON form produced by MarshalMetadata.
func ParseMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if !utf8.Valid(data) {
		return m, &Error{Kind: KindMalformedMetadata, Msg: "payload is not valid UTF-8"}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return Metadata{}, &Error{Kind: KindMalformedMetadata, Err: err}
	}
	if dec.More() {
		return Metadata{}, &Error{Kind: KindMalformedMetadata, Msg: "trailing data after metadata object"}
	}
	return m, nil
}
