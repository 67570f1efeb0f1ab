// Package identifier maps a coin's bit-triple to its display identifier.
//
// The identifier is base58 over a fixed 11-byte record:
//
//	[version:1][b1:2][b2:2][b3:2][checksum:4]
//
// where ranks are big-endian and the checksum is the first four bytes of
// SHA3-256 over the preceding seven bytes. The record length is fixed and
// the version byte is non-zero, so distinct triples always produce distinct
// strings.
package identifier

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"github.com/punchamoorthee/coinmarket/internal/domain"
)

const (
	version      = 0x42
	payloadSize  = 7
	checksumSize = 4
	recordSize   = payloadSize + checksumSize

	// MaxRank is the largest rank representable in the encoding.
	MaxRank = 1<<16 - 1
)

var (
	ErrMalformed = errors.New("malformed identifier")
	ErrChecksum  = errors.New("identifier checksum mismatch")
)

// Encode returns the identifier for t. Ranks must lie in [0, MaxRank].
func Encode(t domain.Triple) string {
	record := make([]byte, recordSize)
	record[0] = version
	binary.BigEndian.PutUint16(record[1:3], uint16(t.B1))
	binary.BigEndian.PutUint16(record[3:5], uint16(t.B2))
	binary.BigEndian.PutUint16(record[5:7], uint16(t.B3))
	copy(record[payloadSize:], checksum(record[:payloadSize]))
	return base58.Encode(record)
}

// Decode recovers the triple from an identifier produced by Encode.
func Decode(s string) (domain.Triple, error) {
	record, err := base58.Decode(s)
	if err != nil || len(record) != recordSize || record[0] != version {
		return domain.Triple{}, ErrMalformed
	}
	if !bytes.Equal(record[payloadSize:], checksum(record[:payloadSize])) {
		return domain.Triple{}, ErrChecksum
	}
	return domain.Triple{
		B1: int(binary.BigEndian.Uint16(record[1:3])),
		B2: int(binary.BigEndian.Uint16(record[3:5])),
		B3: int(binary.BigEndian.Uint16(record[5:7])),
	}, nil
}

func checksum(payload []byte) []byte {
	digest := sha3.Sum256(payload)
	return digest[:checksumSize]
}
