// Package keys implements the P-224 key operations used by offline finding:
// key generation, public key derivation, ECDH and the diversification of a
// private key from a shared secret.
package keys

import (
	"bytes"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
)

const (
	// PrivateKeySize is the length of an exported private key scalar.
	PrivateKeySize = 28
	// AdvertisedKeySize is the length of the X-coordinate broadcast by accessories.
	AdvertisedKeySize = 28
	// CompressedSize is the length of a SEC1 compressed public key.
	CompressedSize = 1 + AdvertisedKeySize
	// UncompressedSize is the length of a SEC1 uncompressed public key.
	UncompressedSize = 1 + 2*AdvertisedKeySize
	// fullKeySize is the 04||X||Y||d representation exported by key stores.
	fullKeySize = UncompressedSize + PrivateKeySize
)

var (
	ErrKeyGeneration = errors.New("key generation failed")
	ErrInvalidPoint  = errors.New("invalid curve point")
	ErrInvalidScalar = errors.New("invalid private key scalar")
)

var curve = elliptic.P224()

// Curve returns the curve all keys live on.
func Curve() elliptic.Curve {
	return curve
}

// PrivateKey is a big-endian P-224 scalar in [1, n-1].
type PrivateKey [PrivateKeySize]byte

// GeneratePrivateKey draws a uniformly distributed scalar from r, or from
// crypto/rand when r is nil.
func GeneratePrivateKey(r io.Reader) (PrivateKey, error) {
	if r == nil {
		r = rand.Reader
	}
	// 64 extra bits keep the modular bias negligible (FIPS 186-4 B.4.1).
	buf := make([]byte, PrivateKeySize+8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return PrivateKey{}, fmt.Errorf("%w: %w", ErrKeyGeneration, err)
	}
	return privateKeyFromInt(reduceNonZero(buf)), nil
}

// ParsePrivateKey accepts either the raw 28-byte scalar or the 85-byte
// 04||X||Y||d form. In the latter case the embedded public key must match d.
func ParsePrivateKey(b []byte) (PrivateKey, error) {
	switch len(b) {
	case PrivateKeySize:
		var p PrivateKey
		copy(p[:], b)
		if !p.Valid() {
			return PrivateKey{}, ErrInvalidScalar
		}
		return p, nil
	case fullKeySize:
		p, err := ParsePrivateKey(b[UncompressedSize:])
		if err != nil {
			return PrivateKey{}, err
		}
		if !bytes.Equal(p.PublicKey().Uncompressed(), b[:UncompressedSize]) {
			return PrivateKey{}, fmt.Errorf("%w: embedded public key does not match", ErrInvalidScalar)
		}
		return p, nil
	default:
		return PrivateKey{}, fmt.Errorf("%w: unexpected length %d", ErrInvalidScalar, len(b))
	}
}

// ParsePrivateKeyBase64 decodes a standard base64 private key.
func ParsePrivateKeyBase64(s string) (PrivateKey, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("unable to decode private key: %w", err)
	}
	return ParsePrivateKey(b)
}

// Valid reports whether p is a scalar in [1, n-1].
func (p PrivateKey) Valid() bool {
	d := p.scalar()
	return d.Sign() > 0 && d.Cmp(curve.Params().N) < 0
}

// Bytes returns a copy of the 28-byte scalar.
func (p PrivateKey) Bytes() []byte {
	return bytes.Clone(p[:])
}

func (p PrivateKey) String() string {
	return base64.StdEncoding.EncodeToString(p[:])
}

// PublicKey multiplies the base point by p.
func (p PrivateKey) PublicKey() PublicKey {
	x, y := curve.ScalarBaseMult(p[:])
	return PublicKey{x: x, y: y}
}

func (p PrivateKey) scalar() *big.Int {
	return new(big.Int).SetBytes(p[:])
}

func privateKeyFromInt(d *big.Int) PrivateKey {
	var p PrivateKey
	d.FillBytes(p[:])
	return p
}

// reduceNonZero maps b into [1, n-1].
func reduceNonZero(b []byte) *big.Int {
	nMinusOne := new(big.Int).Sub(curve.Params().N, big.NewInt(1))
	k := new(big.Int).SetBytes(b)
	k.Mod(k, nMinusOne)
	return k.Add(k, big.NewInt(1))
}

// PublicKey is a point on P-224.
type PublicKey struct {
	x, y *big.Int
}

// ParsePublicKey accepts a 57-byte uncompressed, a 29-byte compressed or a
// 28-byte advertised key. Advertised keys carry no parity, the even point is
// chosen; both points share the X-coordinate that ECDH yields.
func ParsePublicKey(b []byte) (PublicKey, error) {
	var x, y *big.Int
	switch len(b) {
	case UncompressedSize:
		x, y = elliptic.Unmarshal(curve, b)
	case CompressedSize:
		x, y = elliptic.UnmarshalCompressed(curve, b)
	case AdvertisedKeySize:
		x, y = elliptic.UnmarshalCompressed(curve, append([]byte{0x02}, b...))
	default:
		return PublicKey{}, fmt.Errorf("%w: unexpected length %d", ErrInvalidPoint, len(b))
	}
	if x == nil || y == nil {
		return PublicKey{}, ErrInvalidPoint
	}
	return PublicKey{x: x, y: y}, nil
}

// Valid reports whether k is a point on the curve other than the identity.
func (k PublicKey) Valid() bool {
	if k.x == nil || k.y == nil {
		return false
	}
	if k.x.Sign() == 0 && k.y.Sign() == 0 {
		return false
	}
	return curve.IsOnCurve(k.x, k.y)
}

// Compressed returns the 29-byte SEC1 compressed encoding.
func (k PublicKey) Compressed() []byte {
	return elliptic.MarshalCompressed(curve, k.x, k.y)
}

// Uncompressed returns the 57-byte SEC1 uncompressed encoding.
func (k PublicKey) Uncompressed() []byte {
	return elliptic.Marshal(curve, k.x, k.y)
}

// AdvertisedKey returns the 28-byte X-coordinate, the key material an
// accessory broadcasts. The zero PublicKey yields all zero bytes.
func (k PublicKey) AdvertisedKey() [AdvertisedKeySize]byte {
	var out [AdvertisedKeySize]byte
	if k.x == nil {
		return out
	}
	k.x.FillBytes(out[:])
	return out
}

func (k PublicKey) Equal(o PublicKey) bool {
	if k.x == nil || o.x == nil {
		return k.x == nil && o.x == nil
	}
	return k.x.Cmp(o.x) == 0 && k.y.Cmp(o.y) == 0
}

func (k PublicKey) String() string {
	if k.x == nil {
		return "<nil>"
	}
	adv := k.AdvertisedKey()
	return base64.StdEncoding.EncodeToString(adv[:])
}
