package imgcrypt

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Artifact layout:
//
//	offset size field
//	0      4    magic "ICEP"
//	4      1    format version
//	5      1    codec id
//	6      4    height, big-endian
//	10     4    width, big-endian
//	14     1    channels
//	15     4    displaced LSB byte count, big-endian
//	19     ...  compressed stream: carrier bytes, then displaced LSB bytes
//
// The header is stored uncompressed so the carrier shape is known before the
// metadata inside the carrier can be read. The displaced bytes are the carrier
// LSBs that embedding overwrote, packed most significant bit first; putting
// them back after extraction makes decryption exact.
const (
	artifactVersion    = 1
	ArtifactHeaderSize = 19

	// MaxCarrierSide bounds the carrier side an artifact may declare, which
	// bounds how far decompression can expand before the digest is checked.
	MaxCarrierSide = 8192
)

var artifactMagic = []byte("ICEP")

// ArtifactHeader is the fixed-layout prefix of a persisted artifact.
type ArtifactHeader struct {
	Version   uint8
	Codec     Codec
	Shape     Shape
	Displaced int
}

// streamLen is the decompressed size the header promises.
func (h ArtifactHeader) streamLen() int {
	return h.Shape.Len() + h.Displaced
}

func (h ArtifactHeader) marshal() []byte {
	b := make([]byte, ArtifactHeaderSize)
	copy(b[0:4], artifactMagic)
	b[4] = h.Version
	b[5] = byte(h.Codec)
	binary.BigEndian.PutUint32(b[6:10], uint32(h.Shape.Height))
	binary.BigEndian.PutUint32(b[10:14], uint32(h.Shape.Width))
	b[14] = byte(h.Shape.Channels)
	binary.BigEndian.PutUint32(b[15:19], uint32(h.Displaced))
	return b
}

// ParseArtifactHeader reads the header at the start of artifact and returns it
// with the compressed payload that follows.
func ParseArtifactHeader(artifact []byte) (ArtifactHeader, []byte, error) {
	if len(artifact) < ArtifactHeaderSize {
		return ArtifactHeader{}, nil, &Error{
			Kind:   KindMalformedArtifact,
			Needed: ArtifactHeaderSize, Available: len(artifact),
			Msg: fmt.Sprintf("%d bytes is shorter than the %d byte header", len(artifact), ArtifactHeaderSize),
		}
	}
	if !bytes.Equal(artifact[0:4], artifactMagic) {
		return ArtifactHeader{}, nil, &Error{Kind: KindMalformedArtifact, Msg: "bad magic"}
	}
	h := ArtifactHeader{
		Version: artifact[4],
		Codec:   Codec(artifact[5]),
		Shape: Shape{
			Height:   int(binary.BigEndian.Uint32(artifact[6:10])),
			Width:    int(binary.BigEndian.Uint32(artifact[10:14])),
			Channels: int(artifact[14]),
		},
		Displaced: int(binary.BigEndian.Uint32(artifact[15:19])),
	}
	if h.Version != artifactVersion {
		return ArtifactHeader{}, nil, &Error{Kind: KindMalformedArtifact, Msg: fmt.Sprintf("unsupported format version %d", h.Version)}
	}
	if h.Codec != CodecZlib && h.Codec != CodecZstd {
		return ArtifactHeader{}, nil, &Error{Kind: KindMalformedArtifact, Msg: "unknown codec " + h.Codec.String()}
	}
	if h.Shape.Channels != 1 && h.Shape.Channels != 3 {
		return ArtifactHeader{}, nil, &Error{Kind: KindUnsupportedColor, Msg: fmt.Sprintf("header declares %d channels", h.Shape.Channels)}
	}
	if h.Shape.Height != h.Shape.Width || h.Shape.Height == 0 || h.Shape.Height > MaxCarrierSide {
		return ArtifactHeader{}, nil, &Error{
			Kind:     KindMalformedArtifact,
			Expected: fmt.Sprintf("square carrier of 1 to %d pixels a side", MaxCarrierSide),
			Actual:   h.Shape.String(),
		}
	}
	if uint64(h.Displaced)*8 > uint64(Capacity(h.Shape)) {
		return ArtifactHeader{}, nil, &Error{
			Kind:   KindMalformedArtifact,
			Needed: h.Displaced * 8, Available: Capacity(h.Shape),
			Msg: "displaced LSB count exceeds the carrier",
		}
	}
	return h, artifact[ArtifactHeaderSize:], nil
}

// sealArtifact compresses the carrier followed by the displaced LSB bytes and
// prefixes the result with its header.
func sealArtifact(buf *Buffer, displaced []byte, codec Codec, level int) ([]byte, ArtifactHeader, error) {
	stream := make([]byte, 0, len(buf.Pix)+len(displaced))
	stream = append(stream, buf.Pix...)
	stream = append(stream, displaced...)
	compressed, err := compressBytes(codec, level, stream)
	if err != nil {
		return nil, ArtifactHeader{}, err
	}
	header := ArtifactHeader{Version: artifactVersion, Codec: codec, Shape: buf.Shape(), Displaced: len(displaced)}
	out := make([]byte, 0, ArtifactHeaderSize+len(compressed))
	out = append(out, header.marshal()...)
	return append(out, compressed...), header, nil
}

// splitStream separates decompressed bytes into the carrier and the displaced
// LSB bytes.
func splitStream(h ArtifactHeader, raw []byte) (*Buffer, []byte, error) {
	if len(raw) != h.streamLen() {
		return nil, nil, &Error{
			Kind:     KindShapeInconsistency,
			Width:    h.Shape.Width,
			Height:   h.Shape.Height,
			Expected: fmt.Sprintf("%d bytes for %s plus %d displaced", h.streamLen(), h.Shape, h.Displaced),
			Actual:   fmt.Sprintf("%d bytes", len(raw)),
		}
	}
	n := h.Shape.Len()
	buf, err := BufferFromShape(h.Shape, raw[:n:n])
	if err != nil {
		return nil, nil, err
	}
	return buf, raw[n:], nil
}
