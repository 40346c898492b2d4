// Package rotation derives the per-interval key pairs of an accessory from
// its master key. Nothing is stored per interval: the pair for interval i is
// recomputed from the master private key and a 32-byte seed.
//
// The symmetric key for interval i is the seed updated i times with
// X963KDF(sk, "update", 32); the interval private key is the master private
// key diversified with that symmetric key (see keys.DerivePrivateKey).
package rotation

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/denysvitali/haystack-go/keys"
)

// SeedSize is the length of the symmetric rotation seed.
const SeedSize = 32

var seedInfo = []byte("haystack rotation seed")

// Interval counts key updates since the schedule epoch.
type Interval uint64

// Master is the long-term secret of an accessory.
type Master struct {
	Private keys.PrivateKey
	Seed    [SeedSize]byte
}

// NewMaster builds a master whose seed is derived from the private key, so
// the private key alone is enough to back up the accessory.
func NewMaster(priv keys.PrivateKey) (Master, error) {
	if !priv.Valid() {
		return Master{}, keys.ErrInvalidScalar
	}
	m := Master{Private: priv}
	r := hkdf.New(sha256.New, priv.Bytes(), nil, seedInfo)
	if _, err := io.ReadFull(r, m.Seed[:]); err != nil {
		return Master{}, fmt.Errorf("unable to derive rotation seed: %w", err)
	}
	return m, nil
}

// NewMasterWithSeed builds a master from an explicit seed, as shared by
// paired beacons.
func NewMasterWithSeed(priv keys.PrivateKey, seed []byte) (Master, error) {
	if !priv.Valid() {
		return Master{}, keys.ErrInvalidScalar
	}
	if len(seed) != SeedSize {
		return Master{}, fmt.Errorf("invalid seed length %d, expected %d", len(seed), SeedSize)
	}
	m := Master{Private: priv}
	copy(m.Seed[:], seed)
	return m, nil
}

// KeyPair is the key pair valid for exactly one interval.
type KeyPair struct {
	Interval Interval
	Private  keys.PrivateKey
	Public   keys.PublicKey
}

// Derive returns the key pair for interval i. The cost is linear in i.
func Derive(m Master, i Interval) KeyPair {
	return NewWalker(m, i).Next()
}

// Range returns count consecutive key pairs starting at from.
func Range(m Master, from Interval, count int) []KeyPair {
	if count <= 0 {
		return nil
	}
	w := NewWalker(m, from)
	pairs := make([]KeyPair, 0, count)
	for j := 0; j < count; j++ {
		pairs = append(pairs, w.Next())
	}
	return pairs
}

// Walker produces consecutive key pairs, carrying only the current symmetric
// key. It is what an accessory keeps in memory while advertising. A Walker
// must not be shared between goroutines.
type Walker struct {
	master Master
	next   Interval
	sk     []byte
}

// NewWalker positions a walker so that the first call to Next returns the
// pair for interval from.
func NewWalker(m Master, from Interval) *Walker {
	sk := m.Seed[:]
	for i := Interval(0); i < from; i++ {
		sk = update(sk)
	}
	return &Walker{master: m, next: from, sk: sk}
}

// Interval returns the interval the next call to Next will produce.
func (w *Walker) Interval() Interval {
	return w.next
}

// Next returns the current pair and advances by one interval.
func (w *Walker) Next() KeyPair {
	priv := keys.DerivePrivateKey(w.sk, w.master.Private)
	kp := KeyPair{
		Interval: w.next,
		Private:  priv,
		Public:   priv.PublicKey(),
	}
	w.sk = update(w.sk)
	w.next++
	return kp
}

func update(sk []byte) []byte {
	return keys.X963KDF(sk, []byte("update"), SeedSize)
}
