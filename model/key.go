package model

import (
	"time"

	"github.com/denysvitali/haystack-go/keys"
	"github.com/denysvitali/haystack-go/lookup"
	"github.com/denysvitali/haystack-go/rotation"
)

// MainKey is a tracked accessory. It expands into the sub keys that were
// advertised during a time window.
type MainKey interface {
	ID() string
	GetSubKeys(from time.Time, to time.Time) ([]SubKey, error)
	KeyInfo() KeyInfo
	Type() string
}

type KeyInfo struct {
	Name        string    `json:"name"`
	Model       string    `json:"model"`
	PairingDate time.Time `json:"pairingDate"`
	Identifier  string    `json:"identifier"`
}

// SubKey is a single advertised key together with the private key needed to
// decrypt the reports uploaded for it.
type SubKey struct {
	MainKey    MainKey
	Interval   rotation.Interval
	PrivateKey keys.PrivateKey
	PublicKey  keys.PublicKey
	ID         lookup.ID
	Type       SubKeyType
}

func NewSubKey(main MainKey, kp rotation.KeyPair, t SubKeyType) SubKey {
	return SubKey{
		MainKey:    main,
		Interval:   kp.Interval,
		PrivateKey: kp.Private,
		PublicKey:  kp.Public,
		ID:         lookup.Identifier(kp.Public),
		Type:       t,
	}
}

type SubKeyType int

const (
	Primary SubKeyType = iota
	Secondary
	Static
)

func (t SubKeyType) String() string {
	switch t {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	case Static:
		return "static"
	default:
		return "unknown"
	}
}
