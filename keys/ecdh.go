package keys

import (
	"crypto/sha256"
	"encoding/binary"
)

// SharedSecretSize is the length of an ECDH shared secret (the X-coordinate).
const SharedSecretSize = 28

// SharedSecret performs ECDH between priv and peer and returns the
// fixed-width X-coordinate of the resulting point.
func SharedSecret(priv PrivateKey, peer PublicKey) ([]byte, error) {
	if !peer.Valid() {
		return nil, ErrInvalidPoint
	}
	if !priv.Valid() {
		return nil, ErrInvalidScalar
	}
	x, y := curve.ScalarMult(peer.x, peer.y, priv[:])
	if x.Sign() == 0 && y.Sign() == 0 {
		return nil, ErrInvalidPoint
	}
	out := make([]byte, SharedSecretSize)
	x.FillBytes(out)
	return out, nil
}

// DerivePrivateKey diversifies base with a 32-byte shared secret:
//
//	u || v = X963KDF(secret, "diversify", 72)
//	d'     = d*u' + v' mod n,  with u' = u mod (n-1) + 1, v' = v mod (n-1) + 1
//
// The result is deterministic in its inputs.
func DerivePrivateKey(sharedSecret []byte, base PrivateKey) PrivateKey {
	at := X963KDF(sharedSecret, []byte("diversify"), 72)
	u := reduceNonZero(at[:36])
	v := reduceNonZero(at[36:])

	d := base.scalar()
	d.Mul(d, u)
	d.Add(d, v)
	d.Mod(d, curve.Params().N)
	return privateKeyFromInt(d)
}

// DerivePublicKey returns the public half of DerivePrivateKey(secret, base)
// using only base's public key: P' = u*P + v*G.
func DerivePublicKey(sharedSecret []byte, base PublicKey) (PublicKey, error) {
	if !base.Valid() {
		return PublicKey{}, ErrInvalidPoint
	}
	at := X963KDF(sharedSecret, []byte("diversify"), 72)
	u := reduceNonZero(at[:36]).Bytes()
	v := reduceNonZero(at[36:]).Bytes()

	ux, uy := curve.ScalarMult(base.x, base.y, u)
	vx, vy := curve.ScalarBaseMult(v)
	x, y := curve.Add(ux, uy, vx, vy)
	k := PublicKey{x: x, y: y}
	if !k.Valid() {
		return PublicKey{}, ErrInvalidPoint
	}
	return k, nil
}

// X963KDF is the ANSI X9.63 key derivation function with SHA-256.
func X963KDF(z, sharedInfo []byte, length int) []byte {
	out := make([]byte, 0, length+sha256.Size)
	var counter [4]byte
	for i := uint32(1); len(out) < length; i++ {
		binary.BigEndian.PutUint32(counter[:], i)
		h := sha256.New()
		h.Write(z)
		h.Write(counter[:])
		h.Write(sharedInfo)
		out = h.Sum(out)
	}
	return out[:length]
}
