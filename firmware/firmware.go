// Package firmware writes accessory keys into prebuilt firmware images by
// replacing the placeholders compiled into them.
package firmware

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/haystack-go/keys"
	"github.com/denysvitali/haystack-go/rotation"
)

var logger = logrus.StandardLogger().WithField("pkg", "firmware")

var (
	// PublicKeyPattern marks the advertised key in static firmwares.
	PublicKeyPattern = []byte("OFFLINEFINDINGPUBLICKEYHERE!")
	// SymmetricKeyPattern marks the rotation seed in rotating firmwares. The
	// placeholder is NUL terminated so the full 32-byte seed fits.
	SymmetricKeyPattern = []byte("OFFLINEFINDINGSYMMETRICKEYHERE!")
	// UncompressedKeyPattern marks the master public key in rotating firmwares.
	UncompressedKeyPattern = []byte("OFFLINEFINDINGUNCOMPRESSEDPUBLICKEYHERE!AAAAAAAAAAAAAAAAA")
	// updateIntervalPattern is the default update interval, 60 bytes after
	// the master public key.
	updateIntervalPattern = []byte{0x37, 0x33, 0x33, 0x31}
)

const updateIntervalOffset = 60

var (
	ErrLengthMismatch  = errors.New("pattern and key lengths differ")
	ErrPatternNotFound = errors.New("pattern not found")
)

// Patch returns a copy of image with every occurrence of pattern replaced by
// key. Occurrences are searched in the unmodified image.
func Patch(image, pattern, key []byte) ([]byte, error) {
	if len(pattern) != len(key) {
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(pattern), len(key))
	}
	if len(pattern) == 0 {
		return nil, fmt.Errorf("%w: empty pattern", ErrPatternNotFound)
	}
	patched := bytes.Clone(image)
	found := 0
	for i := 0; i+len(pattern) <= len(image); i++ {
		if bytes.Equal(image[i:i+len(pattern)], pattern) {
			copy(patched[i:], key)
			found++
		}
	}
	if found == 0 {
		return nil, ErrPatternNotFound
	}
	logger.Debugf("patched %d occurrence(s) of %q", found, pattern)
	return patched, nil
}

// PatchStatic writes the advertised key of pub into a static firmware.
func PatchStatic(image []byte, pub keys.PublicKey) ([]byte, error) {
	adv := pub.AdvertisedKey()
	return Patch(image, PublicKeyPattern, adv[:])
}

// PatchRotating writes the master public key, the rotation seed and the
// update interval into a rotating firmware.
func PatchRotating(image []byte, m rotation.Master, updateInterval uint32) ([]byte, error) {
	if updateInterval == 0 || updateInterval == ^uint32(0) {
		return nil, fmt.Errorf("update interval %d out of range", updateInterval)
	}
	seed := m.Seed
	patched, err := patchFirst(image, SymmetricKeyPattern, seed[:])
	if err != nil {
		return nil, fmt.Errorf("symmetric key: %w", err)
	}
	pkAt := bytes.Index(patched, UncompressedKeyPattern)
	if pkAt < 0 {
		return nil, fmt.Errorf("public key: %w", ErrPatternNotFound)
	}
	copy(patched[pkAt:], m.Private.PublicKey().Uncompressed())

	keyEnd := pkAt + len(UncompressedKeyPattern)
	ivAt := bytes.Index(patched[keyEnd:], updateIntervalPattern)
	if ivAt < 0 {
		return nil, fmt.Errorf("update interval: %w", ErrPatternNotFound)
	}
	ivAt += keyEnd
	if ivAt-pkAt != updateIntervalOffset {
		return nil, fmt.Errorf("update interval found %d bytes after the public key, expected %d", ivAt-pkAt, updateIntervalOffset)
	}
	binary.LittleEndian.PutUint32(patched[ivAt:], updateInterval)
	return patched, nil
}

func patchFirst(image, pattern, key []byte) ([]byte, error) {
	at := bytes.Index(image, pattern)
	if at < 0 {
		return nil, ErrPatternNotFound
	}
	if at+len(key) > len(image) {
		return nil, fmt.Errorf("%w: image truncated after pattern", ErrLengthMismatch)
	}
	patched := bytes.Clone(image)
	copy(patched[at:], key)
	return patched, nil
}
