package imgcrypt

import (
	"encoding/binary"
	"math"
)

// lengthHeaderBits is the size of the big-endian payload length prefix.
const lengthHeaderBits = 32

// Capacity is the number of payload bits a carrier of shape s can hold: one
// per channel value.
func Capacity(s Shape) int {
	if s.Width <= 0 || s.Height <= 0 || s.Channels <= 0 {
		return 0
	}
	return s.Len()
}

// RequiredBits is the carrier capacity needed for a payload of n bytes,
// length header included.
func RequiredBits(n int) int {
	return (4 + n) * 8
}

// EmbedPayload writes a 4-byte big-endian length followed by payload into the
// least significant bit of each channel value of buf, in raster order, most
// significant payload bit first. buf is modified in place and returned.
func EmbedPayload(buf *Buffer, payload []byte) (*Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, &Error{Kind: KindInsufficientCapacity, Needed: len(payload), Available: math.MaxUint32, Msg: "payload exceeds the 32-bit length header"}
	}
	required := RequiredBits(len(payload))
	available := Capacity(buf.Shape())
	if required > available {
		return nil, &Error{Kind: KindInsufficientCapacity, Needed: required, Available: available}
	}

	full := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(full[:4], uint32(len(payload)))
	copy(full[4:], payload)

	stepper := makeRasterStepper(buf)
	for i := 0; i < required; i++ {
		if err := stepper.writeBit(payloadBit(full, i)); err != nil {
			return nil, &Error{Kind: KindInsufficientCapacity, Needed: required, Available: i, Err: err}
		}
	}
	return buf, nil
}

// ExtractPayload reads back what EmbedPayload wrote. The declared length is
// checked against the carrier before any payload bit is read.
func ExtractPayload(buf *Buffer) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	available := Capacity(buf.Shape())
	if available < lengthHeaderBits {
		return nil, &Error{Kind: KindInsufficientCapacity, Needed: lengthHeaderBits, Available: available}
	}

	stepper := makeRasterStepper(buf)
	header, err := stepper.readBytes(4)
	if err != nil {
		return nil, &Error{Kind: KindInvalidLength, Available: available, Err: err}
	}
	length := binary.BigEndian.Uint32(header)

	if length == 0 || uint64(lengthHeaderBits)+uint64(length)*8 > uint64(available) {
		return nil, &Error{Kind: KindInvalidLength, Needed: int(length), Available: available}
	}

	payload, err := stepper.readBytes(int(length))
	if err != nil {
		return nil, &Error{Kind: KindInvalidLength, Needed: int(length), Available: available, Err: err}
	}
	return payload, nil
}

// EmbedMetadata serializes m and embeds it into buf, in place.
func EmbedMetadata(buf *Buffer, m Metadata) (*Buffer, error) {
	payload, err := MarshalMetadata(m)
	if err != nil {
		return nil, err
	}
	return EmbedPayload(buf, payload)
}

// ExtractMetadata recovers the metadata embedded by EmbedMetadata.
func ExtractMetadata(buf *Buffer) (Metadata, error) {
	payload, err := ExtractPayload(buf)
	if err != nil {
		return Metadata{}, err
	}
	return ParseMetadata(payload)
}

// SaveLSBs returns the least significant bits of the first n*8 channel values
// of buf, packed most significant bit first. These are the bits an n byte
// embedding (length header included) will overwrite.
func SaveLSBs(buf *Buffer, n int) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	available := Capacity(buf.Shape())
	if n < 0 || n*8 > available {
		return nil, &Error{Kind: KindInsufficientCapacity, Needed: n * 8, Available: available}
	}
	return makeRasterStepper(buf).readBytes(n)
}

// RestoreLSBs writes bits saved by SaveLSBs back into buf, in place.
func RestoreLSBs(buf *Buffer, saved []byte) (*Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	available := Capacity(buf.Shape())
	if len(saved)*8 > available {
		return nil, &Error{Kind: KindInsufficientCapacity, Needed: len(saved) * 8, Available: available}
	}
	stepper := makeRasterStepper(buf)
	for i := 0; i < len(saved)*8; i++ {
		if err := stepper.writeBit(payloadBit(saved, i)); err != nil {
			return nil, &Error{Kind: KindInsufficientCapacity, Needed: len(saved) * 8, Available: i, Err: err}
		}
	}
	return buf, nil
}
