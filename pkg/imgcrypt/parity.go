package imgcrypt

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// Reed-Solomon configuration for the parity sidecar.
const (
	DefaultParityDataShards = 10
	DefaultParityShards     = 3

	paritySidecarVersion = 1
	parityHeaderSize     = 19
)

var parityMagic = []byte("ICPR")

// Parity sidecar layout:
//
//	offset size field
//	0      4    magic "ICPR"
//	4      1    version
//	5      1    data shards
//	6      1    parity shards
//	7      8    artifact length, big-endian
//	15     4    shard size, big-endian
//	19     32*n SHA-256 of every shard, data shards first
//	...         parity shards
//
// A per-shard digest tells Repair which shards are damaged, which is what the
// erasure decoder needs.

// ParityInfo describes a parity sidecar.
type ParityInfo struct {
	DataShards     int
	ParityShards   int
	ArtifactLength int
	ShardSize      int
}

// BuildParity computes a parity sidecar for artifact.
func BuildParity(artifact []byte, dataShards, parityShards int) ([]byte, error) {
	if len(artifact) == 0 {
		return nil, &Error{Kind: KindParity, Msg: "empty artifact"}
	}
	if dataShards < 1 || parityShards < 1 || dataShards+parityShards > 255 {
		return nil, &Error{Kind: KindParity, Msg: fmt.Sprintf("invalid shard counts %d+%d", dataShards, parityShards)}
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, &Error{Kind: KindParity, Err: err}
	}

	// Split may reuse the input's spare capacity, so hand it a copy.
	data := make([]byte, len(artifact))
	copy(data, artifact)
	shards, err := enc.Split(data)
	if err != nil {
		return nil, &Error{Kind: KindParity, Err: err}
	}
	if err := enc.Encode(shards); err != nil {
		return nil, &Error{Kind: KindParity, Err: err}
	}

	shardSize := len(shards[0])
	var out bytes.Buffer
	out.Write(parityMagic)
	out.WriteByte(paritySidecarVersion)
	out.WriteByte(byte(dataShards))
	out.WriteByte(byte(parityShards))
	binary.Write(&out, binary.BigEndian, uint64(len(artifact)))
	binary.Write(&out, binary.BigEndian, uint32(shardSize))
	for _, shard := range shards {
		sum := sha256.Sum256(shard)
		out.Write(sum[:])
	}
	for _, shard := range shards[dataShards:] {
		out.Write(shard)
	}
	return out.Bytes(), nil
}

func parseParity(sidecar []byte) (ParityInfo, [][32]byte, [][]byte, error) {
	var info ParityInfo
	if len(sidecar) < parityHeaderSize || !bytes.Equal(sidecar[:4], parityMagic) {
		return info, nil, nil, &Error{Kind: KindParity, Msg: "not a parity sidecar"}
	}
	if sidecar[4] != paritySidecarVersion {
		return info, nil, nil, &Error{Kind: KindParity, Msg: fmt.Sprintf("unsupported sidecar version %d", sidecar[4])}
	}
	info.DataShards = int(sidecar[5])
	info.ParityShards = int(sidecar[6])
	length := binary.BigEndian.Uint64(sidecar[7:15])
	info.ShardSize = int(binary.BigEndian.Uint32(sidecar[15:19]))

	total := info.DataShards + info.ParityShards
	if info.DataShards < 1 || info.ParityShards < 1 || info.ShardSize < 1 ||
		length > uint64(info.DataShards)*uint64(info.ShardSize) {
		return info, nil, nil, &Error{Kind: KindParity, Msg: "inconsistent sidecar header"}
	}
	info.ArtifactLength = int(length)

	want := parityHeaderSize + total*sha256.Size + info.ParityShards*info.ShardSize
	if len(sidecar) != want {
		return info, nil, nil, &Error{Kind: KindParity, Needed: want, Available: len(sidecar), Msg: "sidecar has the wrong size"}
	}

	digests := make([][32]byte, total)
	off := parityHeaderSize
	for i := range digests {
		copy(digests[i][:], sidecar[off:off+sha256.Size])
		off += sha256.Size
	}
	parity := make([][]byte, info.ParityShards)
	for i := range parity {
		parity[i] = sidecar[off : off+info.ShardSize]
		off += info.ShardSize
	}
	return info, digests, parity, nil
}

// InspectParity returns the header of a parity sidecar.
func InspectParity(sidecar []byte) (ParityInfo, error) {
	info, _, _, err := parseParity(sidecar)
	return info, err
}

// RepairArtifact rebuilds artifact from its parity sidecar. It returns the
// repaired bytes and how many shards had to be reconstructed. A truncated or
// extended artifact is treated as damage in the affected shards.
func RepairArtifact(artifact, sidecar []byte) ([]byte, int, error) {
	info, digests, parity, err := parseParity(sidecar)
	if err != nil {
		return nil, 0, err
	}
	enc, err := reedsolomon.New(info.DataShards, info.ParityShards)
	if err != nil {
		return nil, 0, &Error{Kind: KindParity, Err: err}
	}

	padded := make([]byte, info.DataShards*info.ShardSize)
	copy(padded, artifact[:min(len(artifact), info.ArtifactLength)])

	shards := make([][]byte, info.DataShards+info.ParityShards)
	for i := 0; i < info.DataShards; i++ {
		shards[i] = padded[i*info.ShardSize : (i+1)*info.ShardSize]
	}
	for i, p := range parity {
		shard := make([]byte, len(p))
		copy(shard, p)
		shards[info.DataShards+i] = shard
	}

	damaged := 0
	for i, shard := range shards {
		if sha256.Sum256(shard) != digests[i] {
			shards[i] = nil
			damaged++
		}
	}
	if damaged > info.ParityShards {
		return nil, damaged, &Error{Kind: KindParity, Needed: damaged, Available: info.ParityShards, Msg: fmt.Sprintf("%d damaged shards exceed %d parity shards", damaged, info.ParityShards)}
	}
	if damaged > 0 {
		if err := enc.Reconstruct(shards); err != nil {
			return nil, damaged, &Error{Kind: KindParity, Err: err}
		}
	}

	var out bytes.Buffer
	if err := enc.Join(&out, shards, info.ArtifactLength); err != nil {
		return nil, damaged, &Error{Kind: KindParity, Err: err}
	}
	return out.Bytes(), damaged, nil
}
