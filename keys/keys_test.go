package keys

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	baseX = "b70e0cbd6bb4bf7f321390b94a03c1d356c21122343280d6115c1d21"
	baseY = "bd376388b5f723fb4c22dfe6cd4375a05a07476444d5819985007e34"
	twoGX = "706a46dc76dcb76798e60e6d89474788d16dc18032d268fd1a704fa6"
	twoGY = "1c2b76a7bc25e7702a704fa986892849fca629487acf3709d2e4e8bb"
)

func scalar(i int64) PrivateKey {
	return privateKeyFromInt(big.NewInt(i))
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy source unavailable")
}

func TestPublicKeyKnownAnswer(t *testing.T) {
	pub := scalar(1).PublicKey()
	require.Equal(t, "04"+baseX+baseY, hex.EncodeToString(pub.Uncompressed()))
	require.Equal(t, "02"+baseX, hex.EncodeToString(pub.Compressed()))

	adv := pub.AdvertisedKey()
	require.Equal(t, baseX, hex.EncodeToString(adv[:]))

	pub2 := scalar(2).PublicKey()
	require.Equal(t, "04"+twoGX+twoGY, hex.EncodeToString(pub2.Uncompressed()))
	// 2G has an odd Y-coordinate.
	require.Equal(t, "03"+twoGX, hex.EncodeToString(pub2.Compressed()))
}

func TestPublicKeyIsStable(t *testing.T) {
	priv, err := GeneratePrivateKey(nil)
	require.NoError(t, err)
	first := priv.PublicKey()
	for i := 0; i < 5; i++ {
		require.True(t, first.Equal(priv.PublicKey()))
	}
	require.True(t, first.Valid())
}

func TestGeneratePrivateKey(t *testing.T) {
	a, err := GeneratePrivateKey(nil)
	require.NoError(t, err)
	b, err := GeneratePrivateKey(nil)
	require.NoError(t, err)
	require.True(t, a.Valid())
	require.NotEqual(t, a, b)
	require.NotEqual(t, PrivateKey{}, a)

	// A deterministic reader gives a deterministic key.
	seed := bytes.Repeat([]byte{0x42}, 36)
	c, err := GeneratePrivateKey(bytes.NewReader(seed))
	require.NoError(t, err)
	d, err := GeneratePrivateKey(bytes.NewReader(seed))
	require.NoError(t, err)
	require.Equal(t, c, d)
}

func TestGeneratePrivateKeyEntropyFailure(t *testing.T) {
	_, err := GeneratePrivateKey(failingReader{})
	require.ErrorIs(t, err, ErrKeyGeneration)

	_, err = GeneratePrivateKey(bytes.NewReader(make([]byte, 10)))
	require.ErrorIs(t, err, ErrKeyGeneration)
}

func TestParsePrivateKey(t *testing.T) {
	priv, err := GeneratePrivateKey(nil)
	require.NoError(t, err)

	parsed, err := ParsePrivateKey(priv.Bytes())
	require.NoError(t, err)
	require.Equal(t, priv, parsed)

	parsed, err = ParsePrivateKeyBase64(priv.String())
	require.NoError(t, err)
	require.Equal(t, priv, parsed)

	full := append(priv.PublicKey().Uncompressed(), priv.Bytes()...)
	parsed, err = ParsePrivateKey(full)
	require.NoError(t, err)
	require.Equal(t, priv, parsed)

	other := scalar(7).PublicKey().Uncompressed()
	_, err = ParsePrivateKey(append(other, priv.Bytes()...))
	require.ErrorIs(t, err, ErrInvalidScalar)

	_, err = ParsePrivateKey(make([]byte, PrivateKeySize))
	require.ErrorIs(t, err, ErrInvalidScalar)

	_, err = ParsePrivateKey(bytes.Repeat([]byte{0xff}, PrivateKeySize))
	require.ErrorIs(t, err, ErrInvalidScalar)

	_, err = ParsePrivateKey([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidScalar)
}

func TestParsePublicKey(t *testing.T) {
	priv, err := GeneratePrivateKey(nil)
	require.NoError(t, err)
	pub := priv.PublicKey()

	fromUncompressed, err := ParsePublicKey(pub.Uncompressed())
	require.NoError(t, err)
	require.True(t, pub.Equal(fromUncompressed))

	fromCompressed, err := ParsePublicKey(pub.Compressed())
	require.NoError(t, err)
	require.True(t, pub.Equal(fromCompressed))

	adv := pub.AdvertisedKey()
	fromAdvertised, err := ParsePublicKey(adv[:])
	require.NoError(t, err)
	require.Equal(t, adv, fromAdvertised.AdvertisedKey())

	offCurve := pub.Uncompressed()
	offCurve[len(offCurve)-1] ^= 0x01
	_, err = ParsePublicKey(offCurve)
	require.ErrorIs(t, err, ErrInvalidPoint)

	_, err = ParsePublicKey(make([]byte, 12))
	require.ErrorIs(t, err, ErrInvalidPoint)
}

func TestSharedSecretSymmetry(t *testing.T) {
	for i := 0; i < 8; i++ {
		p1, err := GeneratePrivateKey(nil)
		require.NoError(t, err)
		p2, err := GeneratePrivateKey(nil)
		require.NoError(t, err)

		s1, err := SharedSecret(p1, p2.PublicKey())
		require.NoError(t, err)
		s2, err := SharedSecret(p2, p1.PublicKey())
		require.NoError(t, err)
		require.Len(t, s1, SharedSecretSize)
		require.Equal(t, s1, s2)
	}
}

func TestSharedSecretKnownAnswer(t *testing.T) {
	// 1 * 2G = 2G
	s, err := SharedSecret(scalar(1), scalar(2).PublicKey())
	require.NoError(t, err)
	require.Equal(t, twoGX, hex.EncodeToString(s))

	// The advertised form (parity dropped) yields the same secret.
	adv, err := ParsePublicKey(mustHex(t, twoGX))
	require.NoError(t, err)
	s, err = SharedSecret(scalar(1), adv)
	require.NoError(t, err)
	require.Equal(t, twoGX, hex.EncodeToString(s))
}

func TestSharedSecretRejectsInvalidPoints(t *testing.T) {
	priv, err := GeneratePrivateKey(nil)
	require.NoError(t, err)

	_, err = SharedSecret(priv, PublicKey{})
	require.ErrorIs(t, err, ErrInvalidPoint)

	_, err = SharedSecret(priv, PublicKey{x: big.NewInt(1), y: big.NewInt(1)})
	require.ErrorIs(t, err, ErrInvalidPoint)

	_, err = SharedSecret(PrivateKey{}, priv.PublicKey())
	require.ErrorIs(t, err, ErrInvalidScalar)
}

func TestX963KDF(t *testing.T) {
	out := X963KDF([]byte("abc"), []byte("update"), 32)
	require.Equal(t, "c4d6a92396172b489e7f39a8f03d9332a8c5bda3aa8c3f069d6986f4b7108c64", hex.EncodeToString(out))

	long := X963KDF([]byte("abc"), []byte("update"), 72)
	require.Len(t, long, 72)
	require.Equal(t, out, long[:32])
}

func TestDerivePrivateKey(t *testing.T) {
	base, err := GeneratePrivateKey(nil)
	require.NoError(t, err)
	secret := bytes.Repeat([]byte{0x11}, 32)

	a := DerivePrivateKey(secret, base)
	b := DerivePrivateKey(secret, base)
	require.Equal(t, a, b)
	require.True(t, a.Valid())
	require.NotEqual(t, base, a)

	c := DerivePrivateKey(bytes.Repeat([]byte{0x12}, 32), base)
	require.NotEqual(t, a, c)
}

func TestDerivePublicKeyMatchesPrivate(t *testing.T) {
	base, err := GeneratePrivateKey(nil)
	require.NoError(t, err)
	secret := bytes.Repeat([]byte{0x5a}, 32)

	pub, err := DerivePublicKey(secret, base.PublicKey())
	require.NoError(t, err)
	require.True(t, DerivePrivateKey(secret, base).PublicKey().Equal(pub))

	_, err = DerivePublicKey(secret, PublicKey{})
	require.ErrorIs(t, err, ErrInvalidPoint)
}

func TestDerivePublicKeyKnownScalar(t *testing.T) {
	base := scalar(12345)
	for _, secret := range [][]byte{[]byte("seed one"), bytes.Repeat([]byte{0xff}, 32)} {
		pub, err := DerivePublicKey(secret, base.PublicKey())
		require.NoError(t, err)
		require.True(t, pub.Equal(DerivePrivateKey(secret, base).PublicKey()))
	}

	_, err := DerivePublicKey([]byte("x"), PublicKey{})
	require.ErrorIs(t, err, ErrInvalidPoint)
}

func TestAdvertisedKeyZeroValue(t *testing.T) {
	var k PublicKey
	require.NotPanics(t, func() {
		require.Equal(t, [AdvertisedKeySize]byte{}, k.AdvertisedKey())
	})
	require.False(t, k.Valid())
	require.Equal(t, "<nil>", k.String())
}
