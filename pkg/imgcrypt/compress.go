package imgcrypt

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Codec identifies the compressor applied to the carrier bytes. Its value is
// written into the artifact header.
type Codec uint8

const (
	CodecZlib Codec = 0
	CodecZstd Codec = 1
)

// DefaultCompressionLevel is the zlib level used when none is configured.
const DefaultCompressionLevel = 7

func (c Codec) String() string {
	switch c {
	case CodecZlib:
		return "zlib"
	case CodecZstd:
		return "zstd"
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// ParseCodec accepts "zlib" or "zstd".
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(s) {
	case "zlib", "":
		return CodecZlib, nil
	case "zstd":
		return CodecZstd, nil
	}
	return 0, fmt.Errorf("unknown codec %q (want zlib or zstd)", s)
}

// compressBytes compresses data with codec at level. The level follows zlib's
// 1-9 scale; zstd maps it onto its own encoder levels.
func compressBytes(codec Codec, level int, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch codec {
	case CodecZlib:
		w, err := zlib.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, &Error{Kind: KindCompression, Err: err}
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, &Error{Kind: KindCompression, Err: err}
		}
		if err := w.Close(); err != nil {
			return nil, &Error{Kind: KindCompression, Err: err}
		}
	case CodecZstd:
		enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, &Error{Kind: KindCompression, Err: err}
		}
		if _, err := enc.Write(data); err != nil {
			enc.Close()
			return nil, &Error{Kind: KindCompression, Err: err}
		}
		if err := enc.Close(); err != nil {
			return nil, &Error{Kind: KindCompression, Err: err}
		}
	default:
		return nil, &Error{Kind: KindCompression, Msg: "unknown codec " + codec.String()}
	}
	return buf.Bytes(), nil
}

// decompressBytes reverses compressBytes. limit caps the output size so a
// hostile stream cannot expand past the shape the header promised; reading
// one byte beyond it is reported as a shape inconsistency by the caller.
func decompressBytes(codec Codec, data []byte, limit int) ([]byte, error) {
	var r io.Reader
	switch codec {
	case CodecZlib:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, &Error{Kind: KindCompression, Err: err}
		}
		defer zr.Close()
		r = zr
	case CodecZstd:
		d, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, &Error{Kind: KindCompression, Err: err}
		}
		defer d.Close()
		r = d
	default:
		return nil, &Error{Kind: KindCompression, Msg: "unknown codec " + codec.String()}
	}

	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, &Error{Kind: KindCompression, Err: err}
	}
	return out, nil
}
