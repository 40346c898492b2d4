// Package keyfile decodes the binary key files written by macOS 10.15.4 and
// later for offline finding devices.
package keyfile

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/denysvitali/haystack-go/keys"
)

const (
	headerSize    = 32
	unknownSize   = 32
	publicSkip    = 86
	fullKeySize   = 85
	recordSize    = unknownSize + 1 + fullKeySize
	flagPublic    = 0x00
	flagKeyPair   = 0x01
	zeroesOffset  = 15
	zeroesSize    = 16
	minHeaderSize = zeroesOffset + zeroesSize
)

var magic = []byte("KEY")

var (
	ErrWrongMagic  = errors.New("wrong magic bytes")
	ErrWrongFormat = errors.New("unsupported key file format")
)

// Decode returns the private keys found in a key file. Records holding only
// a public key are skipped.
func Decode(data []byte) ([]keys.PrivateKey, error) {
	if len(data) < minHeaderSize || !bytes.Equal(data[:len(magic)], magic) {
		return nil, ErrWrongMagic
	}
	if !bytes.Equal(data[zeroesOffset:zeroesOffset+zeroesSize], make([]byte, zeroesSize)) {
		return nil, ErrWrongFormat
	}

	var out []keys.PrivateKey
	for i := headerSize; i+recordSize <= len(data); {
		i += unknownSize
		switch data[i] {
		case flagPublic:
			i += publicSkip
			continue
		case flagKeyPair:
			i++
		default:
			return nil, fmt.Errorf("%w: record flag %#02x at offset %d", ErrWrongFormat, data[i], i)
		}
		priv, err := keys.ParsePrivateKey(data[i : i+fullKeySize])
		if err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", i, err)
		}
		out = append(out, priv)
		i += fullKeySize
	}
	return out, nil
}
