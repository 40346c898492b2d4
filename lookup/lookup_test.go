package lookup

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/denysvitali/haystack-go/keys"
)

const generator = "04b70e0cbd6bb4bf7f321390b94a03c1d356c21122343280d6115c1d21bd376388b5f723fb4c22dfe6cd4375a05a07476444d5819985007e34"

func TestIdentifierKnownAnswer(t *testing.T) {
	b, err := hex.DecodeString(generator)
	require.NoError(t, err)
	pub, err := keys.ParsePublicKey(b)
	require.NoError(t, err)

	id := Identifier(pub)
	require.Equal(t, ID("HKMzTl+c2hR6BjIgK6eOZZ2DLjgqKYBJwEDx9bAErns="), id)
	require.Equal(t, "HKMzTl+", id.Short())

	raw, err := id.Bytes()
	require.NoError(t, err)
	h := Hash(pub)
	require.Equal(t, h[:], raw)
	require.Equal(t, id, FromHash(raw))

	// The parity byte does not take part in the hash.
	compressed, err := keys.ParsePublicKey(pub.Compressed())
	require.NoError(t, err)
	require.Equal(t, id, Identifier(compressed))
}

func TestIdentifiersPreserveOrder(t *testing.T) {
	var pubs []keys.PublicKey
	for i := 0; i < 10; i++ {
		priv, err := keys.GeneratePrivateKey(nil)
		require.NoError(t, err)
		pubs = append(pubs, priv.PublicKey())
	}
	ids := Identifiers(pubs)
	require.Len(t, ids, len(pubs))
	for i, p := range pubs {
		require.Equal(t, Identifier(p), ids[i])
	}
	require.Equal(t, string(ids[3]), Strings(ids)[3])
	require.Empty(t, Identifiers(nil))
}

func TestIDBytesRejectsGarbage(t *testing.T) {
	_, err := ID("not base64!").Bytes()
	require.Error(t, err)
	_, err = ID("AAAA").Bytes()
	require.Error(t, err)
}
