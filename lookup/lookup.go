// Package lookup builds the identifiers under which finders upload reports:
// the base64 encoded SHA-256 digest of an advertised key.
package lookup

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/denysvitali/haystack-go/keys"
)

// ID is a base64 encoded hashed advertisement key.
type ID string

// Hash returns SHA-256 over the 28-byte advertised key of pub.
func Hash(pub keys.PublicKey) [sha256.Size]byte {
	adv := pub.AdvertisedKey()
	return sha256.Sum256(adv[:])
}

// Identifier returns the query identifier for pub.
func Identifier(pub keys.PublicKey) ID {
	h := Hash(pub)
	return FromHash(h[:])
}

// Identifiers maps pubs to identifiers, preserving order.
func Identifiers(pubs []keys.PublicKey) []ID {
	ids := make([]ID, len(pubs))
	for i, p := range pubs {
		ids[i] = Identifier(p)
	}
	return ids
}

// FromHash encodes an already hashed advertisement key.
func FromHash(hash []byte) ID {
	return ID(base64.StdEncoding.EncodeToString(hash))
}

// Bytes decodes the identifier back into the raw digest.
func (id ID) Bytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(string(id))
	if err != nil {
		return nil, fmt.Errorf("unable to decode id %q: %w", id, err)
	}
	if len(b) != sha256.Size {
		return nil, fmt.Errorf("unexpected id length %d", len(b))
	}
	return b, nil
}

// Short returns the first seven characters, used in logs.
func (id ID) Short() string {
	if len(id) < 7 {
		return string(id)
	}
	return string(id[:7])
}

func (id ID) String() string {
	return string(id)
}

// Strings converts ids for JSON request bodies.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
