package haystack

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/denysvitali/haystack-go/keys"
	"github.com/denysvitali/haystack-go/lookup"
	"github.com/denysvitali/haystack-go/model"
	"github.com/denysvitali/haystack-go/rotation"
)

// StaticKey is an accessory that advertises a single key forever.
type StaticKey struct {
	name       string
	privateKey keys.PrivateKey
	publicKey  keys.PublicKey
	id         lookup.ID
}

func NewStaticKey(name string, priv keys.PrivateKey) *StaticKey {
	pub := priv.PublicKey()
	return &StaticKey{
		name:       name,
		privateKey: priv,
		publicKey:  pub,
		id:         lookup.Identifier(pub),
	}
}

func (s *StaticKey) KeyInfo() model.KeyInfo {
	return model.KeyInfo{Name: s.name, Model: "static", Identifier: s.id.String()}
}

func (s *StaticKey) Type() string {
	return "static"
}

func (s *StaticKey) ID() string {
	return s.id.Short()
}

func (s *StaticKey) PrivateKey() keys.PrivateKey {
	return s.privateKey
}

func (s *StaticKey) GetSubKeys(_ time.Time, _ time.Time) ([]model.SubKey, error) {
	return []model.SubKey{
		model.NewSubKey(s, rotation.KeyPair{Private: s.privateKey, Public: s.publicKey}, model.Static),
	}, nil
}

var _ model.MainKey = &StaticKey{}

/*
File format:

	Private key: BASE64_ENCODED_STRING
	Advertisement key: BASE64_ENCODED_STRING
	Hashed adv key: BASE64_ENCODED_STRING
*/
const staticKeyFormat = "Private key: %s\nAdvertisement key: %s\nHashed adv key: %s\n"

func LoadStaticKey(name string, reader io.Reader) (*StaticKey, error) {
	pKey, advKey, hAdvKey := "", "", ""
	_, err := fmt.Fscanf(reader, staticKeyFormat, &pKey, &advKey, &hAdvKey)
	if err != nil {
		return nil, fmt.Errorf("unable to parse key file: %w", err)
	}
	priv, err := keys.ParsePrivateKeyBase64(pKey)
	if err != nil {
		return nil, err
	}
	s := NewStaticKey(name, priv)

	adv, err := base64.StdEncoding.DecodeString(advKey)
	if err != nil {
		return nil, fmt.Errorf("unable to decode advertisement key: %w", err)
	}
	expected := s.publicKey.AdvertisedKey()
	if !bytes.Equal(adv, expected[:]) {
		return nil, fmt.Errorf("advertisement key does not match private key")
	}
	if lookup.ID(hAdvKey) != s.id {
		return nil, fmt.Errorf("hashed advertisement key does not match private key")
	}
	return s, nil
}

func WriteStaticKey(w io.Writer, priv keys.PrivateKey) error {
	pub := priv.PublicKey()
	adv := pub.AdvertisedKey()
	_, err := fmt.Fprintf(w, staticKeyFormat,
		priv.String(),
		base64.StdEncoding.EncodeToString(adv[:]),
		lookup.Identifier(pub),
	)
	return err
}
