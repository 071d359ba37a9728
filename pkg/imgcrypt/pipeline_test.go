package imgcrypt

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingObserver struct {
	started  []Stage
	finished []Stage
	failed   Stage
}

func (r *recordingObserver) StageStarted(stage Stage) {
	r.started = append(r.started, stage)
}

func (r *recordingObserver) StageFinished(stage Stage, _ time.Duration, err error) {
	r.finished = append(r.finished, stage)
	if err != nil {
		r.failed = stage
	}
}

func newTestPipeline(opts ...Option) *Pipeline {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	base := []Option{
		WithLogger(zerolog.New(io.Discard)),
		WithClock(func() time.Time { return fixed }),
	}
	return New(append(base, opts...)...)
}

func TestEndToEndAllZeroGrayscale(t *testing.T) {
	// A 4x4 image padded onto a 64x64 carrier, the smallest grayscale
	// square with room for the metadata.
	prep := Prepared{
		Buffer:         NewBuffer(64, 64, 1),
		OriginalWidth:  4,
		OriginalHeight: 4,
		Padded:         true,
		Grayscale:      true,
	}
	params := Params{Iterations: 2, A: 1, B: 1, X0: 0.3141592653589793, R: 3.9999999}

	p := newTestPipeline()
	sealed, err := p.Encrypt(prep, params)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if sealed.Digest != Digest(sealed.Artifact) {
		t.Error("sealed digest does not match the artifact")
	}
	if sealed.Metadata.Timestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("timestamp = %q", sealed.Metadata.Timestamp)
	}

	opened, err := p.Decrypt(sealed.Artifact, sealed.Digest)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if opened.Buffer.Width != 4 || opened.Buffer.Height != 4 || opened.Buffer.Channels != 1 {
		t.Fatalf("decrypted shape %v; want 4x4x1", opened.Buffer.Shape())
	}
	if !bytes.Equal(opened.Buffer.Pix, make([]byte, 16)) {
		t.Errorf("decrypted pixels = %v; want all zero", opened.Buffer.Pix)
	}
	if got := opened.Metadata.Params.Cipher(); got != params {
		t.Errorf("recovered params %+v; want %+v", got, params)
	}
	if opened.Metadata != sealed.Metadata {
		t.Errorf("recovered metadata %+v; want %+v", opened.Metadata, sealed.Metadata)
	}
}

func TestEncryptTinyCarrierFails(t *testing.T) {
	prep := Prepared{Buffer: NewBuffer(4, 4, 1), OriginalWidth: 4, OriginalHeight: 4, Grayscale: true}
	obs := &recordingObserver{}

	_, err := newTestPipeline(WithObserver(obs)).Encrypt(prep, DefaultParams())
	if !errors.Is(err, ErrInsufficientCapacity) {
		t.Fatalf("error = %v; want insufficient capacity", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Stage != StageEmbed || e.Available != 16 {
		t.Errorf("error = %+v; want stage embed with 16 bits available", err)
	}
	if slices.Contains(obs.started, StageCompress) {
		t.Error("compression ran after a failed embed")
	}
}

func TestEndToEndExact(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))

	tests := []struct {
		name     string
		codec    Codec
		channels int
		params   Params
	}{
		{"zlib rgb", CodecZlib, 3, DefaultParams()},
		{"zstd rgb", CodecZstd, 3, Params{Iterations: 5, A: -2, B: 9, X0: 0.7, R: 3.91}},
		{"zlib gray", CodecZlib, 1, Params{Iterations: 1, A: 3, B: 5, X0: 0.123, R: 3.99}},
		{"out of chaotic range", CodecZstd, 3, Params{Iterations: 3, A: 1, B: 2, X0: 0.5, R: 2.5}},
		{"no rounds", CodecZlib, 3, Params{Iterations: 0, A: 1, B: 1, X0: 0.6, R: 3.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := randomBuffer(rng, 64, 64, tt.channels)
			want := buf.Clone()
			prep := Prepared{Buffer: buf, OriginalWidth: 64, OriginalHeight: 64, Grayscale: tt.channels == 1}

			p := newTestPipeline(WithCodec(tt.codec, DefaultCompressionLevel))
			sealed, err := p.Encrypt(prep, tt.params)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if sealed.Header.Codec != tt.codec {
				t.Errorf("header codec = %v; want %v", sealed.Header.Codec, tt.codec)
			}

			opened, err := p.Decrypt(sealed.Artifact, sealed.Digest)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if !bytes.Equal(opened.Buffer.Pix, want.Pix) {
				t.Error("decrypted buffer differs from the original")
			}
		})
	}
}

func TestEndToEndPadded(t *testing.T) {
	rng := rand.New(rand.NewSource(77))
	carrier := randomBuffer(rng, 48, 48, 3)
	want, err := carrier.Crop(9, 14, 30, 20)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	prep := Prepared{Buffer: carrier, OriginalWidth: 30, OriginalHeight: 20, Padded: true}

	p := newTestPipeline()
	sealed, err := p.Encrypt(prep, DefaultParams())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	opened, err := p.Decrypt(sealed.Artifact, sealed.Digest)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if opened.Buffer.Shape() != want.Shape() {
		t.Fatalf("decrypted shape %v; want %v", opened.Buffer.Shape(), want.Shape())
	}
	if !bytes.Equal(opened.Buffer.Pix, want.Pix) {
		t.Error("unpadded buffer differs from the original window")
	}
}

func TestDecryptIntegrityFailureShortCircuits(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	prep := Prepared{Buffer: randomBuffer(rng, 40, 40, 3), OriginalWidth: 40, OriginalHeight: 40}

	sealed, err := newTestPipeline().Encrypt(prep, DefaultParams())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	for _, pos := range []int{0, ArtifactHeaderSize, len(sealed.Artifact) / 2, len(sealed.Artifact) - 1} {
		tampered := append([]byte(nil), sealed.Artifact...)
		tampered[pos] ^= 0x01

		obs := &recordingObserver{}
		_, err := newTestPipeline(WithObserver(obs)).Decrypt(tampered, sealed.Digest)
		if !errors.Is(err, ErrIntegrityMismatch) {
			t.Fatalf("byte %d: error = %v; want integrity mismatch", pos, err)
		}
		var e *Error
		if !errors.As(err, &e) || e.Stage != StageVerifyIntegrity {
			t.Errorf("byte %d: failed at %v; want verify integrity", pos, e.Stage)
		}
		if want := []Stage{StageLoad, StageVerifyIntegrity}; !slices.Equal(obs.started, want) {
			t.Errorf("byte %d: stages run %v; want %v", pos, obs.started, want)
		}
	}

	if _, err := newTestPipeline().Decrypt(sealed.Artifact, "not-a-digest"); !errors.Is(err, ErrIntegrityMismatch) {
		t.Errorf("garbage digest error = %v; want integrity mismatch", err)
	}
	if _, err := newTestPipeline().Decrypt(nil, sealed.Digest); !errors.Is(err, ErrMalformedArtifact) {
		t.Errorf("empty artifact error = %v; want malformed artifact", err)
	}
}

func TestDecryptTruncatedArtifact(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	prep := Prepared{Buffer: randomBuffer(rng, 40, 40, 3), OriginalWidth: 40, OriginalHeight: 40}
	sealed, err := newTestPipeline().Encrypt(prep, DefaultParams())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// A digest computed over the truncated file gets past the integrity check.
	truncated := sealed.Artifact[:len(sealed.Artifact)/2]
	_, err = newTestPipeline().Decrypt(truncated, Digest(truncated))
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error = %v; want *Error", err)
	}
	if e.Stage != StageDecompress && e.Stage != StageResolveShape {
		t.Errorf("truncated artifact failed at %v; want decompress or resolve shape", e.Stage)
	}
}

func TestObserverSeesEveryStage(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	prep := Prepared{Buffer: randomBuffer(rng, 40, 40, 3), OriginalWidth: 40, OriginalHeight: 40}

	obs := &recordingObserver{}
	p := newTestPipeline(WithObserver(Observers(obs, NopObserver{})))
	sealed, err := p.Encrypt(prep, DefaultParams())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if !slices.Equal(obs.started, EncryptStages) || !slices.Equal(obs.finished, EncryptStages) {
		t.Errorf("encrypt stages = %v / %v; want %v", obs.started, obs.finished, EncryptStages)
	}

	obs.started, obs.finished = nil, nil
	if _, err := p.Decrypt(sealed.Artifact, sealed.Digest); err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !slices.Equal(obs.started, DecryptStages) || !slices.Equal(obs.finished, DecryptStages) {
		t.Errorf("decrypt stages = %v / %v; want %v", obs.started, obs.finished, DecryptStages)
	}
	if obs.failed != StageNone {
		t.Errorf("stage %v reported a failure", obs.failed)
	}
}

func TestEncryptRejectsBadPreparation(t *testing.T) {
	tests := []struct {
		name string
		prep Prepared
		want error
	}{
		{"no buffer", Prepared{OriginalWidth: 1, OriginalHeight: 1}, ErrShapeInconsistency},
		{"non-square", Prepared{Buffer: NewBuffer(4, 5, 1), OriginalWidth: 4, OriginalHeight: 5}, ErrDimensionMismatch},
		{"original larger than carrier", Prepared{Buffer: NewBuffer(8, 8, 3), OriginalWidth: 9, OriginalHeight: 8}, ErrShapeInconsistency},
		{"grayscale flag on rgb", Prepared{Buffer: NewBuffer(8, 8, 3), OriginalWidth: 8, OriginalHeight: 8, Grayscale: true}, ErrUnsupportedColor},
		{"carrier too large", Prepared{
			Buffer:        &Buffer{Width: MaxCarrierSide + 1, Height: MaxCarrierSide + 1, Channels: 1},
			OriginalWidth: 1, OriginalHeight: 1,
		}, ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestPipeline().Encrypt(tt.prep, DefaultParams())
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v; want %v", err, tt.want)
			}
			var e *Error
			if errors.As(err, &e) && e.Stage != StagePreprocessed {
				t.Errorf("failed at %v; want preprocess", e.Stage)
			}
		})
	}
}

func TestEncryptNumericalInstability(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	prep := Prepared{Buffer: randomBuffer(rng, 40, 40, 3), OriginalWidth: 40, OriginalHeight: 40}
	params := DefaultParams()
	params.R = 5

	_, err := newTestPipeline().Encrypt(prep, params)
	var e *Error
	if !errors.Is(err, ErrNumericalInstability) || !errors.As(err, &e) || e.Stage != StageStreamCipher {
		t.Errorf("error = %v; want numerical instability at stream cipher", err)
	}
}

func TestInspect(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	prep := Prepared{Buffer: randomBuffer(rng, 40, 40, 3), OriginalWidth: 40, OriginalHeight: 40}
	p := newTestPipeline(WithIdentity("test-tool", "inspect me"))
	sealed, err := p.Encrypt(prep, DefaultParams())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	info, err := p.Inspect(sealed.Artifact, "")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Verified {
		t.Error("Inspect without a digest should not report verification")
	}
	if info.Metadata.EncryptedBy != "test-tool" || info.Metadata.Description != "inspect me" {
		t.Errorf("metadata identity = %q / %q", info.Metadata.EncryptedBy, info.Metadata.Description)
	}
	if info.Header != sealed.Header || info.CompressedSize != len(sealed.Artifact)-ArtifactHeaderSize {
		t.Errorf("inspection %+v does not match sealed header %+v", info, sealed.Header)
	}

	info, err = p.Inspect(sealed.Artifact, sealed.Digest)
	if err != nil || !info.Verified {
		t.Errorf("Inspect with digest = %+v, %v; want verified", info, err)
	}
	if _, err := p.Inspect(sealed.Artifact, Digest([]byte("other"))); !errors.Is(err, ErrIntegrityMismatch) {
		t.Errorf("Inspect with wrong digest error = %v; want integrity mismatch", err)
	}

	// Without a digest the header is all that stands between a forged shape
	// and an unbounded decompression.
	forged := append([]byte(nil), sealed.Artifact...)
	copy(forged[6:14], []byte{0, 0, 0xFF, 0xFF, 0, 0, 0xFF, 0xFF})
	_, err = p.Inspect(forged, "")
	var e *Error
	if !errors.Is(err, ErrMalformedArtifact) || !errors.As(err, &e) || e.Stage != StageDecompress {
		t.Errorf("Inspect of forged header error = %v; want malformed artifact at decompress", err)
	}
}

func TestUnpad(t *testing.T) {
	buf := NewBuffer(5, 5, 1)
	for i := range buf.Pix {
		buf.Pix[i] = byte(i)
	}

	// Not padded: returned unchanged.
	out, err := Unpad(buf, EncryptionParams{OriginalShapeUnpadded: [2]uint32{3, 5}})
	if err != nil || out != buf {
		t.Errorf("Unpad without padding = %v, %v; want the input", out, err)
	}

	// 5 wide by 3 high, centred: rows 1..3.
	out, err = Unpad(buf, EncryptionParams{Padded: true, OriginalShapeUnpadded: [2]uint32{3, 5}})
	if err != nil {
		t.Fatalf("Unpad failed: %v", err)
	}
	if !bytes.Equal(out.Pix, buf.Pix[5:20]) {
		t.Errorf("Unpad = %v; want %v", out.Pix, buf.Pix[5:20])
	}

	if _, err := Unpad(buf, EncryptionParams{Padded: true}); !errors.Is(err, ErrShapeInconsistency) {
		t.Errorf("Unpad to 0x0 error = %v; want shape inconsistency", err)
	}
	if _, err := Unpad(buf, EncryptionParams{Padded: true, OriginalShapeUnpadded: [2]uint32{6, 5}}); !errors.Is(err, ErrShapeInconsistency) {
		t.Errorf("oversized unpad error = %v; want shape inconsistency", err)
	}
}

func TestRequiredCapacity(t *testing.T) {
	p := newTestPipeline()
	tiny := Prepared{Buffer: NewBuffer(4, 4, 1), OriginalWidth: 4, OriginalHeight: 4, Grayscale: true}

	need, err := p.RequiredCapacity(tiny, DefaultParams())
	if err != nil {
		t.Fatalf("RequiredCapacity failed: %v", err)
	}
	_, err = p.Encrypt(tiny, DefaultParams())
	var e *Error
	if !errors.As(err, &e) || e.Needed != need {
		t.Errorf("Encrypt error = %v; want %d bits needed", err, need)
	}

	rng := rand.New(rand.NewSource(14))
	prep := Prepared{Buffer: randomBuffer(rng, 40, 40, 3), OriginalWidth: 40, OriginalHeight: 40}
	need, err = p.RequiredCapacity(prep, DefaultParams())
	if err != nil {
		t.Fatalf("RequiredCapacity failed: %v", err)
	}
	sealed, err := p.Encrypt(prep, DefaultParams())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if sealed.Header.Displaced*8 != need {
		t.Errorf("embedded %d bits; RequiredCapacity said %d", sealed.Header.Displaced*8, need)
	}

	if _, err := p.RequiredCapacity(Prepared{Buffer: NewBuffer(3, 4, 1), OriginalWidth: 3, OriginalHeight: 4}, DefaultParams()); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("non-square error = %v; want dimension mismatch", err)
	}
}
