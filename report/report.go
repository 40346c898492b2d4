// Package report parses and decrypts encrypted location reports.
//
// A report is laid out as
//
//	timestamp(4) confidence(1) ephemeral key(57) ciphertext(10) tag(16)
//
// Newer reports carry one extra byte at offset 5 which is dropped before
// parsing. The symmetric key is SHA256(ECDH(priv, ephemeral) || 00000001 ||
// ephemeral); its first 16 bytes key AES-128-GCM and the remaining 16 bytes
// are the nonce.
package report

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/haystack-go/keys"
)

var logger = logrus.StandardLogger().WithField("pkg", "report")

const (
	// Size is the length of a report in the canonical layout.
	Size = 88
	// extendedSize is the length of the newer layout with an extra byte at offset 5.
	extendedSize = Size + 1

	ephemeralOffset  = 5
	ephemeralKeySize = keys.UncompressedSize
	ciphertextOffset = ephemeralOffset + ephemeralKeySize
	ciphertextSize   = 10
	tagOffset        = ciphertextOffset + ciphertextSize
	tagSize          = 16

	// coreDataTsDiff is the offset between the Unix epoch and 2001-01-01.
	coreDataTsDiff = 978307200
)

var (
	ErrMalformedReport = errors.New("malformed report")
	ErrAuthentication  = errors.New("report authentication failed")
	ErrNoKey           = errors.New("no key for report")
)

// Encrypted is a parsed, still encrypted report.
type Encrypted struct {
	Timestamp    time.Time
	Confidence   uint8
	EphemeralKey []byte
	Ciphertext   []byte
	Tag          []byte
}

// Parse splits a report blob into its fields.
func Parse(blob []byte) (*Encrypted, error) {
	switch len(blob) {
	case Size:
	case extendedSize:
		logger.Tracef("extended report layout, dropping byte 5 (%#02x)", blob[5])
		normalized := make([]byte, 0, Size)
		normalized = append(normalized, blob[:5]...)
		blob = append(normalized, blob[6:]...)
	default:
		return nil, fmt.Errorf("%w: length %d", ErrMalformedReport, len(blob))
	}
	logger.Tracef("payload_start\t0x%s", hex.EncodeToString(blob[0:10]))

	ephemeral := blob[ephemeralOffset:ciphertextOffset]
	if ephemeral[0] != 0x04 {
		return nil, fmt.Errorf("%w: ephemeral key prefix %#02x", ErrMalformedReport, ephemeral[0])
	}

	ts := binary.BigEndian.Uint32(blob[0:4])
	return &Encrypted{
		Timestamp:    time.Unix(int64(ts)+coreDataTsDiff, 0).UTC(),
		Confidence:   blob[4],
		EphemeralKey: append([]byte(nil), ephemeral...),
		Ciphertext:   append([]byte(nil), blob[ciphertextOffset:tagOffset]...),
		Tag:          append([]byte(nil), blob[tagOffset:]...),
	}, nil
}

// Marshal returns the canonical 88-byte encoding.
func (e *Encrypted) Marshal() ([]byte, error) {
	ts, err := coreDataSeconds(e.Timestamp)
	if err != nil {
		return nil, err
	}
	if len(e.EphemeralKey) != ephemeralKeySize || len(e.Ciphertext) != ciphertextSize || len(e.Tag) != tagSize {
		return nil, fmt.Errorf("%w: unexpected field sizes", ErrMalformedReport)
	}
	out := make([]byte, 5, Size)
	binary.BigEndian.PutUint32(out[0:4], ts)
	out[4] = e.Confidence
	out = append(out, e.EphemeralKey...)
	out = append(out, e.Ciphertext...)
	out = append(out, e.Tag...)
	return out, nil
}

// Decrypt recovers the location carried by e using the private key of the
// interval the report was uploaded for.
func Decrypt(e *Encrypted, priv keys.PrivateKey) (*Location, error) {
	ephemeral, err := keys.ParsePublicKey(e.EphemeralKey)
	if err != nil {
		return nil, fmt.Errorf("unable to parse ephemeral key: %w", err)
	}
	shared, err := keys.SharedSecret(priv, ephemeral)
	if err != nil {
		return nil, fmt.Errorf("unable to derive shared secret: %w", err)
	}

	aead, nonce, err := newAEAD(shared, e.EphemeralKey)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(e.Ciphertext)+len(e.Tag))
	sealed = append(sealed, e.Ciphertext...)
	sealed = append(sealed, e.Tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	loc, err := decodeLocation(plaintext)
	if err != nil {
		return nil, err
	}
	loc.Time = e.Timestamp
	loc.Confidence = int(e.Confidence)
	logger.Tracef("location\t\t\t%s", loc)
	return loc, nil
}

// DecryptBlob parses and decrypts a raw report.
func DecryptBlob(blob []byte, priv keys.PrivateKey) (*Location, error) {
	e, err := Parse(blob)
	if err != nil {
		return nil, err
	}
	return Decrypt(e, priv)
}

func newAEAD(shared, ephemeralKey []byte) (cipher.AEAD, []byte, error) {
	symmetricKey := keys.X963KDF(shared, ephemeralKey, 32)
	block, err := aes.NewCipher(symmetricKey[:16])
	if err != nil {
		return nil, nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, 16)
	if err != nil {
		return nil, nil, err
	}
	return aead, symmetricKey[16:], nil
}

func coreDataSeconds(t time.Time) (uint32, error) {
	s := t.Unix() - coreDataTsDiff
	if s < 0 || s > int64(^uint32(0)) {
		return 0, fmt.Errorf("timestamp %s out of range", t)
	}
	return uint32(s), nil
}
