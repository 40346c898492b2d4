package haystack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
)

var ErrMissingCredentials = errors.New("missing credentials")

// Credentials authenticate a request to the report service.
type Credentials struct {
	Username string
	Token    string
	Header   http.Header
}

// CredentialProvider supplies credentials for each query.
type CredentialProvider interface {
	Credentials(ctx context.Context) (*Credentials, error)
}

type Auth struct {
	Dsid             string `json:"dsid"`
	SearchPartyToken string `json:"searchPartyToken"`
}

func GetAuth(authFile string) (*Auth, error) {
	f, err := os.Open(authFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var auth Auth
	err = json.NewDecoder(f).Decode(&auth)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", authFile, err)
	}
	if auth.Dsid == "" || auth.SearchPartyToken == "" {
		return nil, fmt.Errorf("%w: %s has no dsid or searchPartyToken", ErrMissingCredentials, authFile)
	}
	return &auth, nil
}

// AuthFile reads an auth.json file on every call, so a refreshed token is
// picked up without restarting.
type AuthFile string

func (f AuthFile) Credentials(_ context.Context) (*Credentials, error) {
	auth, err := GetAuth(string(f))
	if err != nil {
		return nil, err
	}
	return &Credentials{Username: auth.Dsid, Token: auth.SearchPartyToken}, nil
}

// StaticCredentials always returns the same credentials.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials(_ context.Context) (*Credentials, error) {
	c := Credentials(s)
	c.Header = s.Header.Clone()
	return &c, nil
}

var (
	_ CredentialProvider = AuthFile("")
	_ CredentialProvider = StaticCredentials{}
)
