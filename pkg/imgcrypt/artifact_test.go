package imgcrypt

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestSealArtifactRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	buf := randomBuffer(rng, 6, 6, 3)
	displaced := []byte{1, 2, 3, 4, 5}

	for _, codec := range []Codec{CodecZlib, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			artifact, hdr, err := sealArtifact(buf, displaced, codec, DefaultCompressionLevel)
			if err != nil {
				t.Fatalf("sealArtifact failed: %v", err)
			}
			if !bytes.Equal(artifact[:4], []byte("ICEP")) {
				t.Errorf("artifact starts with %q; want ICEP", artifact[:4])
			}

			parsed, payload, err := ParseArtifactHeader(artifact)
			if err != nil {
				t.Fatalf("ParseArtifactHeader failed: %v", err)
			}
			if parsed != hdr {
				t.Errorf("parsed header %+v; want %+v", parsed, hdr)
			}
			want := ArtifactHeader{Version: 1, Codec: codec, Shape: Shape{Height: 6, Width: 6, Channels: 3}, Displaced: 5}
			if parsed != want {
				t.Errorf("header %+v; want %+v", parsed, want)
			}

			raw, err := decompressBytes(parsed.Codec, payload, parsed.streamLen())
			if err != nil {
				t.Fatalf("decompressBytes failed: %v", err)
			}
			gotBuf, gotDisplaced, err := splitStream(parsed, raw)
			if err != nil {
				t.Fatalf("splitStream failed: %v", err)
			}
			if !bytes.Equal(gotBuf.Pix, buf.Pix) || !bytes.Equal(gotDisplaced, displaced) {
				t.Error("stream did not survive the round trip")
			}
		})
	}
}

func TestParseArtifactHeaderErrors(t *testing.T) {
	valid := ArtifactHeader{Version: 1, Codec: CodecZlib, Shape: Shape{Height: 8, Width: 8, Channels: 1}, Displaced: 8}.marshal()
	if _, _, err := ParseArtifactHeader(valid); err != nil {
		t.Fatalf("valid header rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"short", func(b []byte) []byte { return b[:10] }, ErrMalformedArtifact},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrMalformedArtifact},
		{"bad version", func(b []byte) []byte { b[4] = 9; return b }, ErrMalformedArtifact},
		{"bad codec", func(b []byte) []byte { b[5] = 7; return b }, ErrMalformedArtifact},
		{"bad channels", func(b []byte) []byte { b[14] = 4; return b }, ErrUnsupportedColor},
		{"displaced overflow", func(b []byte) []byte { b[18] = 9; return b }, ErrMalformedArtifact},
		{"not square", func(b []byte) []byte { b[13] = 9; return b }, ErrMalformedArtifact},
		{"empty carrier", func(b []byte) []byte { b[9], b[13] = 0, 0; return b }, ErrMalformedArtifact},
		// 65535x65535x3 would decompress to nearly 13 GB.
		{"oversized carrier", func(b []byte) []byte {
			b[8], b[9], b[12], b[13], b[14] = 0xFF, 0xFF, 0xFF, 0xFF, 3
			return b
		}, ErrMalformedArtifact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), valid...)
			if _, _, err := ParseArtifactHeader(tt.mutate(b)); !errors.Is(err, tt.want) {
				t.Errorf("error = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestSplitStreamLengthMismatch(t *testing.T) {
	hdr := ArtifactHeader{Version: 1, Shape: Shape{Height: 2, Width: 2, Channels: 1}, Displaced: 0}
	if _, _, err := splitStream(hdr, make([]byte, 5)); !errors.Is(err, ErrShapeInconsistency) {
		t.Errorf("error = %v; want shape inconsistency", err)
	}
	if _, _, err := splitStream(hdr, make([]byte, 3)); !errors.Is(err, ErrShapeInconsistency) {
		t.Errorf("error = %v; want shape inconsistency", err)
	}
}

func TestCompressBytes(t *testing.T) {
	data := bytes.Repeat([]byte("carrier"), 500)
	for _, codec := range []Codec{CodecZlib, CodecZstd} {
		for _, level := range []int{1, DefaultCompressionLevel, 9} {
			compressed, err := compressBytes(codec, level, data)
			if err != nil {
				t.Fatalf("%s level %d: compress failed: %v", codec, level, err)
			}
			if len(compressed) >= len(data) {
				t.Errorf("%s level %d: %d bytes did not shrink", codec, level, len(compressed))
			}
			out, err := decompressBytes(codec, compressed, len(data))
			if err != nil {
				t.Fatalf("%s level %d: decompress failed: %v", codec, level, err)
			}
			if !bytes.Equal(out, data) {
				t.Errorf("%s level %d: round trip mismatch", codec, level)
			}

			// The limit stops one byte past what the header promised.
			capped, err := decompressBytes(codec, compressed, 100)
			if err != nil {
				t.Fatalf("%s level %d: capped decompress failed: %v", codec, level, err)
			}
			if len(capped) != 101 {
				t.Errorf("%s level %d: capped output is %d bytes; want 101", codec, level, len(capped))
			}
		}
	}

	if _, err := decompressBytes(CodecZlib, []byte("garbage"), 10); !errors.Is(err, ErrCompression) {
		t.Errorf("garbage zlib error = %v; want compression", err)
	}
	if _, err := compressBytes(Codec(9), 1, data); !errors.Is(err, ErrCompression) {
		t.Errorf("unknown codec error = %v; want compression", err)
	}
}

func TestParseCodec(t *testing.T) {
	for in, want := range map[string]Codec{"zlib": CodecZlib, "ZSTD": CodecZstd, "": CodecZlib} {
		got, err := ParseCodec(in)
		if err != nil || got != want {
			t.Errorf("ParseCodec(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseCodec("lz4"); err == nil {
		t.Error("ParseCodec(lz4) should fail")
	}
}
