package imgcrypt

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Version is recorded in the metadata of every artifact.
const Version = "0.1.0"

// Params are the keying parameters of the permutation and stream stages.
type Params struct {
	Iterations uint32
	A          int64
	B          int64
	X0         float64
	R          float64
}

// DefaultParams returns the parameters used when the caller supplies none.
func DefaultParams() Params {
	return Params{
		Iterations: 10,
		A:          1,
		B:          1,
		X0:         0.3141592653589793,
		R:          3.9999999,
	}
}

// Prepared is the square carrier handed over by the image preparation step,
// together with what that step did to it.
type Prepared struct {
	Buffer         *Buffer
	OriginalWidth  int
	OriginalHeight int
	Padded         bool
	Grayscale      bool
}

// Sealed is the outcome of a successful encryption run.
type Sealed struct {
	Artifact []byte
	Digest   string
	Header   ArtifactHeader
	Metadata Metadata
}

// Opened is the outcome of a successful decryption run.
type Opened struct {
	Buffer   *Buffer
	Header   ArtifactHeader
	Metadata Metadata
}

// Inspection is what can be learned about an artifact without decrypting it.
type Inspection struct {
	Header         ArtifactHeader
	Metadata       Metadata
	CompressedSize int
	Verified       bool
}

type Pipeline struct {
	codec       Codec
	level       int
	tool        string
	description string
	logger      zerolog.Logger
	observer    Observer
	now         func() time.Time
}

type Option func(*Pipeline)

func WithCodec(codec Codec, level int) Option {
	return func(p *Pipeline) {
		p.codec = codec
		p.level = level
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(p *Pipeline) { p.observer = observer }
}

// WithClock overrides the time source for the metadata timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIdentity overrides the tool identity and description written to metadata.
func WithIdentity(tool, description string) Option {
	return func(p *Pipeline) {
		p.tool = tool
		p.description = description
	}
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		codec:    CodecZlib,
		level:    DefaultCompressionLevel,
		tool:     "imgcrypt v" + Version,
		logger:   zerolog.Nop(),
		observer: NopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.description == "" {
		p.description = "Encrypted with ACM, AES S-Box, Logistic Map, LSB metadata, " + p.codec.String()
	}
	return p
}

func (p *Pipeline) run(stage Stage, fn func() error) error {
	p.observer.StageStarted(stage)
	start := time.Now()
	err := fn()
	if err != nil {
		err = atStage(err, stage)
	}
	p.observer.StageFinished(stage, time.Since(start), err)
	return err
}

func checkPrepared(prep Prepared) error {
	if prep.Buffer == nil {
		return &Error{Kind: KindShapeInconsistency, Msg: "no buffer"}
	}
	if prep.Buffer.Width > MaxCarrierSide || prep.Buffer.Height > MaxCarrierSide {
		return &Error{
			Kind:   KindDimensionMismatch,
			Width:  prep.Buffer.Width,
			Height: prep.Buffer.Height,
			Msg:    fmt.Sprintf("carrier exceeds %d pixels a side", MaxCarrierSide),
		}
	}
	if err := checkSquare(prep.Buffer); err != nil {
		return err
	}
	if prep.OriginalWidth <= 0 || prep.OriginalHeight <= 0 ||
		prep.OriginalWidth > prep.Buffer.Width || prep.OriginalHeight > prep.Buffer.Height {
		return &Error{
			Kind:     KindShapeInconsistency,
			Width:    prep.Buffer.Width,
			Height:   prep.Buffer.Height,
			Expected: fmt.Sprintf("original size within %dx%d", prep.Buffer.Width, prep.Buffer.Height),
			Actual:   fmt.Sprintf("%dx%d", prep.OriginalWidth, prep.OriginalHeight),
		}
	}
	if prep.Grayscale && prep.Buffer.Channels != 1 {
		return &Error{Kind: KindUnsupportedColor, Msg: fmt.Sprintf("grayscale flag set on a %d channel buffer", prep.Buffer.Channels)}
	}
	return nil
}

// Encrypt takes ownership of prep.Buffer and runs it through permutation,
// substitution, the keystream, metadata embedding, compression and hashing.
func (p *Pipeline) Encrypt(prep Prepared, params Params) (*Sealed, error) {
	var (
		buf    = prep.Buffer
		meta   Metadata
		sealed = &Sealed{}
		err    error
	)

	if err = p.run(StagePreprocessed, func() error { return checkPrepared(prep) }); err != nil {
		return nil, err
	}
	if !InChaoticRange(params.X0, params.R) {
		p.logger.Warn().Float64("x0", params.X0).Float64("r", params.R).Msg("Logistic map parameters outside the chaotic range; keystream may be weak")
	}
	p.logger.Debug().
		Int("width", buf.Width).Int("height", buf.Height).Int("channels", buf.Channels).
		Int("originalWidth", prep.OriginalWidth).Int("originalHeight", prep.OriginalHeight).
		Bool("padded", prep.Padded).Msg("Carrier prepared")

	if err = p.run(StagePermute, func() error {
		buf, err = Permute(buf, params.A, params.B, params.Iterations)
		return err
	}); err != nil {
		return nil, err
	}

	if err = p.run(StageSubstitute, func() error {
		buf = Substitute(buf)
		return nil
	}); err != nil {
		return nil, err
	}

	if err = p.run(StageStreamCipher, func() error {
		buf, err = XORKeystream(buf, params.X0, params.R)
		return err
	}); err != nil {
		return nil, err
	}

	meta = p.metadata(prep, params, buf.Shape())

	var displaced []byte
	if err = p.run(StageEmbed, func() error {
		payload, err := MarshalMetadata(meta)
		if err != nil {
			return err
		}
		if displaced, err = SaveLSBs(buf, 4+len(payload)); err != nil {
			return err
		}
		buf, err = EmbedPayload(buf, payload)
		return err
	}); err != nil {
		return nil, err
	}
	p.logger.Debug().Int("bits", len(displaced)*8).Int("available", Capacity(buf.Shape())).Msg("Embedded metadata")

	if err = p.run(StageCompress, func() error {
		sealed.Artifact, sealed.Header, err = sealArtifact(buf, displaced, p.codec, p.level)
		return err
	}); err != nil {
		return nil, err
	}
	p.logger.Debug().Int("raw", len(buf.Pix)+len(displaced)).Int("compressed", len(sealed.Artifact)).Str("codec", p.codec.String()).Msg("Compressed carrier")

	_ = p.run(StageHash, func() error {
		sealed.Digest = Digest(sealed.Artifact)
		return nil
	})

	sealed.Metadata = meta
	return sealed, nil
}

func (p *Pipeline) metadata(prep Prepared, params Params, preSteg Shape) Metadata {
	return Metadata{
		EncryptedBy: p.tool,
		Description: p.description,
		Timestamp:   p.now().Format(time.RFC3339),
		Params: EncryptionParams{
			ACMIterations:         params.Iterations,
			ACMA:                  params.A,
			ACMB:                  params.B,
			LogisticX0:            params.X0,
			LogisticR:             params.R,
			OriginalShapeUnpadded: [2]uint32{uint32(prep.OriginalHeight), uint32(prep.OriginalWidth)},
			OriginalShapePadded:   shapeArray(prep.Buffer.Shape()),
			Grayscale:             prep.Grayscale,
			Padded:                prep.Padded,
			PreStegShape:          shapeArray(preSteg),
		},
	}
}

// RequiredCapacity returns the carrier bits Encrypt would need to embed the
// metadata for prep and params, without running any stage.
func (p *Pipeline) RequiredCapacity(prep Prepared, params Params) (int, error) {
	if err := checkPrepared(prep); err != nil {
		return 0, err
	}
	payload, err := MarshalMetadata(p.metadata(prep, params, prep.Buffer.Shape()))
	if err != nil {
		return 0, err
	}
	return RequiredBits(len(payload)), nil
}

// openCarrier runs the decryption stages up to and including metadata
// extraction. It also returns the displaced LSB bytes stored after the
// carrier. Without verify the integrity check is skipped; only Inspect does that.
func (p *Pipeline) openCarrier(artifact []byte, digest string, verify bool) (*Buffer, []byte, ArtifactHeader, Metadata, error) {
	var (
		header    ArtifactHeader
		payload   []byte
		raw       []byte
		buf       *Buffer
		displaced []byte
		meta      Metadata
		err       error
	)

	if err = p.run(StageLoad, func() error {
		if len(artifact) == 0 {
			return &Error{Kind: KindMalformedArtifact, Msg: "empty artifact"}
		}
		return nil
	}); err != nil {
		return nil, nil, header, meta, err
	}

	if verify {
		if err = p.run(StageVerifyIntegrity, func() error { return VerifyDigest(artifact, digest) }); err != nil {
			return nil, nil, header, meta, err
		}
	}

	if err = p.run(StageDecompress, func() error {
		header, payload, err = ParseArtifactHeader(artifact)
		if err != nil {
			return err
		}
		raw, err = decompressBytes(header.Codec, payload, header.streamLen())
		return err
	}); err != nil {
		return nil, nil, header, meta, err
	}
	p.logger.Debug().Str("shape", header.Shape.String()).Str("codec", header.Codec.String()).Int("bytes", len(raw)).Msg("Decompressed carrier")

	if err = p.run(StageResolveShape, func() error {
		buf, displaced, err = splitStream(header, raw)
		return err
	}); err != nil {
		return nil, nil, header, meta, err
	}

	if err = p.run(StageExtract, func() error {
		embedded, err := ExtractPayload(buf)
		if err != nil {
			return err
		}
		if RequiredBits(len(embedded)) != len(displaced)*8 {
			return &Error{
				Kind:     KindMalformedArtifact,
				Expected: fmt.Sprintf("%d displaced bytes", 4+len(embedded)),
				Actual:   fmt.Sprintf("%d", len(displaced)),
				Msg:      "displaced LSB count does not match the embedded payload",
			}
		}
		if meta, err = ParseMetadata(embedded); err != nil {
			return err
		}
		if err = meta.Params.Validate(); err != nil {
			return err
		}
		if meta.Params.PreSteg() != header.Shape {
			return &Error{Kind: KindShapeInconsistency, Expected: meta.Params.PreSteg().String(), Actual: header.Shape.String(), Msg: "metadata and artifact header disagree"}
		}
		return nil
	}); err != nil {
		return nil, nil, header, meta, err
	}
	return buf, displaced, header, meta, nil
}

// Decrypt verifies artifact against digest and reverses every stage using the
// parameters recovered from the carrier. The LSBs overwritten by embedding
// are put back first, so the result is bit-exact. It stops at the first failure.
func (p *Pipeline) Decrypt(artifact []byte, digest string) (*Opened, error) {
	buf, displaced, header, meta, err := p.openCarrier(artifact, digest, true)
	if err != nil {
		return nil, err
	}

	if err = p.run(StageRestore, func() error {
		buf, err = RestoreLSBs(buf, displaced)
		return err
	}); err != nil {
		return nil, err
	}
	params := meta.Params.Cipher()
	p.logger.Debug().
		Uint32("iterations", params.Iterations).Int64("a", params.A).Int64("b", params.B).
		Float64("x0", params.X0).Float64("r", params.R).Msg("Recovered parameters")

	if err = p.run(StageStreamDecrypt, func() error {
		buf, err = XORKeystream(buf, params.X0, params.R)
		return err
	}); err != nil {
		return nil, err
	}

	if err = p.run(StageUnsubstitute, func() error {
		buf = InverseSubstitute(buf)
		return nil
	}); err != nil {
		return nil, err
	}

	if err = p.run(StageUnpermute, func() error {
		buf, err = InversePermute(buf, params.A, params.B, params.Iterations)
		return err
	}); err != nil {
		return nil, err
	}

	if err = p.run(StageUnpad, func() error {
		buf, err = Unpad(buf, meta.Params)
		return err
	}); err != nil {
		return nil, err
	}

	return &Opened{Buffer: buf, Header: header, Metadata: meta}, nil
}

// Inspect reads the header and embedded metadata without decrypting. With an
// empty digest the integrity check is skipped and Verified is false.
func (p *Pipeline) Inspect(artifact []byte, digest string) (*Inspection, error) {
	verify := digest != ""
	_, _, header, meta, err := p.openCarrier(artifact, digest, verify)
	if err != nil {
		return nil, err
	}
	return &Inspection{
		Header:         header,
		Metadata:       meta,
		CompressedSize: len(artifact) - ArtifactHeaderSize,
		Verified:       verify,
	}, nil
}

// Unpad crops buf back to the pre-padding extent recorded in params. Padding
// was centred, so the offsets are (padded - original) / 2 on each axis.
func Unpad(buf *Buffer, params EncryptionParams) (*Buffer, error) {
	if !params.Padded {
		return buf, nil
	}
	w, h := params.Unpadded()
	if w == buf.Width && h == buf.Height {
		return buf, nil
	}
	if w <= 0 || h <= 0 || w > buf.Width || h > buf.Height {
		return nil, &Error{
			Kind:     KindShapeInconsistency,
			Width:    buf.Width,
			Height:   buf.Height,
			Expected: fmt.Sprintf("original within %dx%d", buf.Width, buf.Height),
			Actual:   fmt.Sprintf("%dx%d", w, h),
		}
	}
	left := (buf.Width - w) / 2
	top := (buf.Height - h) / 2
	return buf.Crop(left, top, w, h)
}
