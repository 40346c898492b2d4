package haystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anisetteServer(t *testing.T, resp AnisetteResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnisetteProvider(t *testing.T) {
	srv := anisetteServer(t, AnisetteResponse{XAppleIMD: "md", XAppleIMDM: "mdm"})
	p := NewAnisetteProvider(srv.URL, StaticCredentials{Username: "dsid", Token: "tok"})

	creds, err := p.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dsid", creds.Username)
	assert.Equal(t, "tok", creds.Token)
	assert.Equal(t, "md", creds.Header.Get("X-Apple-I-MD"))
	assert.Equal(t, "mdm", creds.Header.Get("X-Apple-I-MD-M"))
	assert.Equal(t, MdRinfo, creds.Header.Get("X-Apple-I-MD-RINFO"))
	assert.Len(t, creds.Header.Get("X-Apple-I-MD-LU"), 32)
	assert.Len(t, creds.Header.Get("X-Mme-Device-Id"), 36)
	for k := range creds.Header {
		assert.Equal(t, http.CanonicalHeaderKey(k), k)
	}
}

func TestAnisetteProviderOverridesAccountHeaders(t *testing.T) {
	srv := anisetteServer(t, AnisetteResponse{XAppleIMD: "md", XAppleIMDM: "mdm"})
	account := StaticCredentials{
		Username: "dsid",
		Token:    "tok",
		Header:   http.Header{"X-APPLE-I-MD": []string{"stale"}, "x-custom": []string{"kept"}},
	}

	creds, err := NewAnisetteProvider(srv.URL, account).Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"md"}, creds.Header.Values("X-Apple-I-MD"))
	assert.Equal(t, "kept", creds.Header.Get("X-Custom"))
	for k := range creds.Header {
		assert.Equal(t, http.CanonicalHeaderKey(k), k)
	}
}

func TestAnisetteProviderErrors(t *testing.T) {
	srv := anisetteServer(t, AnisetteResponse{})
	_, err := NewAnisetteProvider(srv.URL, StaticCredentials{Username: "dsid"}).Credentials(context.Background())
	require.Error(t, err)

	_, err = NewAnisetteProvider(srv.URL, nil).Credentials(context.Background())
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAuthFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dsid":"123","searchPartyToken":"abc"}`), 0o600))

	creds, err := AuthFile(path).Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "123", creds.Username)
	assert.Equal(t, "abc", creds.Token)

	require.NoError(t, os.WriteFile(path, []byte(`{"dsid":"123"}`), 0o600))
	_, err = AuthFile(path).Credentials(context.Background())
	require.ErrorIs(t, err, ErrMissingCredentials)

	_, err = AuthFile(filepath.Join(t.TempDir(), "missing.json")).Credentials(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}
