package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/denysvitali/haystack-go/keys"
)

// Seal builds a report the way a finder does: a fresh ephemeral key pair,
// ECDH with the advertised key and AES-GCM over the encoded location.
// rand may be nil to use crypto/rand.
func Seal(pub keys.PublicKey, loc Location, rand io.Reader) (*Encrypted, error) {
	if loc.Confidence < 0 || loc.Confidence > math.MaxUint8 {
		return nil, fmt.Errorf("confidence %d out of range", loc.Confidence)
	}
	if _, err := coreDataSeconds(loc.Time); err != nil {
		return nil, err
	}
	plaintext, err := encodeLocation(loc)
	if err != nil {
		return nil, err
	}

	ephemeral, err := keys.GeneratePrivateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("unable to generate ephemeral key: %w", err)
	}
	ephemeralKey := ephemeral.PublicKey().Uncompressed()
	shared, err := keys.SharedSecret(ephemeral, pub)
	if err != nil {
		return nil, fmt.Errorf("unable to derive shared secret: %w", err)
	}
	aead, nonce, err := newAEAD(shared, ephemeralKey)
	if err != nil {
		return nil, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)

	return &Encrypted{
		Timestamp:    time.Unix(loc.Time.Unix(), 0).UTC(),
		Confidence:   uint8(loc.Confidence),
		EphemeralKey: ephemeralKey,
		Ciphertext:   sealed[:len(plaintext)],
		Tag:          sealed[len(plaintext):],
	}, nil
}
