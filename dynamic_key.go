package haystack

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/denysvitali/haystack-go/keys"
	"github.com/denysvitali/haystack-go/lookup"
	"github.com/denysvitali/haystack-go/model"
	"github.com/denysvitali/haystack-go/rotation"
)

// Accessory is the on-disk description of a rotating accessory.
type Accessory struct {
	Name          string    `yaml:"name"`
	Model         string    `yaml:"model,omitempty"`
	PairingDate   time.Time `yaml:"pairingDate"`
	PrivateKey    string    `yaml:"privateKey"`
	PrimarySeed   string    `yaml:"primarySeed,omitempty"`
	SecondarySeed string    `yaml:"secondarySeed,omitempty"`
}

// GenerateAccessory creates an accessory paired at pairedAt with fresh random
// keys. r may be nil to use crypto/rand.
func GenerateAccessory(name string, pairedAt time.Time, r io.Reader) (*Accessory, error) {
	if r == nil {
		r = rand.Reader
	}
	priv, err := keys.GeneratePrivateKey(r)
	if err != nil {
		return nil, err
	}
	seeds := make([]byte, 2*rotation.SeedSize)
	if _, err := io.ReadFull(r, seeds); err != nil {
		return nil, fmt.Errorf("unable to generate seeds: %w", err)
	}
	return &Accessory{
		Name:          name,
		Model:         "haystack",
		PairingDate:   pairedAt.UTC().Truncate(time.Second),
		PrivateKey:    priv.String(),
		PrimarySeed:   base64.StdEncoding.EncodeToString(seeds[:rotation.SeedSize]),
		SecondarySeed: base64.StdEncoding.EncodeToString(seeds[rotation.SeedSize:]),
	}, nil
}

func (a *Accessory) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(a); err != nil {
		return err
	}
	return enc.Close()
}

// DynamicKey is an accessory whose advertised key rotates on a primary
// (15 minute) and a secondary (24 hour) schedule.
type DynamicKey struct {
	accessory Accessory
	primary   rotation.Master
	secondary *rotation.Master
	publicKey keys.PublicKey
}

func (d *DynamicKey) ID() string {
	return lookup.Identifier(d.publicKey).Short()
}

func (d *DynamicKey) Type() string {
	return "dynamic"
}

func (d *DynamicKey) KeyInfo() model.KeyInfo {
	return model.KeyInfo{
		Name:        d.accessory.Name,
		Model:       d.accessory.Model,
		PairingDate: d.accessory.PairingDate,
		Identifier:  lookup.Identifier(d.publicKey).String(),
	}
}

func (d *DynamicKey) Master() rotation.Master {
	return d.primary
}

func (d *DynamicKey) PrimarySchedule() rotation.Schedule {
	return rotation.Schedule{Epoch: d.accessory.PairingDate, Period: rotation.PrimaryPeriod}
}

func (d *DynamicKey) SecondarySchedule() rotation.Schedule {
	return rotation.Schedule{Epoch: d.accessory.PairingDate, Period: rotation.SecondaryPeriod}
}

var _ model.MainKey = &DynamicKey{}

func (d *DynamicKey) GetSubKeys(from time.Time, to time.Time) (subKeys []model.SubKey, err error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid window: %s is before %s", to, from)
	}
	firstPrimary, amountPrimary := d.PrimarySchedule().Window(from, to)
	logger.Debugf("Primary: %d keys from interval %d", amountPrimary, firstPrimary)
	for _, p := range rotation.Range(d.primary, firstPrimary, amountPrimary) {
		logger.Tracef("Adding primary key %s", lookup.Identifier(p.Public))
		subKeys = append(subKeys, model.NewSubKey(d, p, model.Primary))
	}

	if d.secondary == nil {
		return subKeys, nil
	}
	firstSecondary, amountSecondary := d.SecondarySchedule().Window(from, to)
	logger.Debugf("Secondary: %d keys from interval %d", amountSecondary, firstSecondary)
	for _, s := range rotation.Range(*d.secondary, firstSecondary, amountSecondary) {
		logger.Tracef("Adding secondary key %s", lookup.Identifier(s.Public))
		subKeys = append(subKeys, model.NewSubKey(d, s, model.Secondary))
	}
	return subKeys, nil
}

// NewDynamicKey builds the rotating key described by a. A missing primary
// seed is derived from the private key; a missing secondary seed disables
// the secondary schedule.
func NewDynamicKey(a Accessory) (*DynamicKey, error) {
	if a.PairingDate.IsZero() {
		return nil, fmt.Errorf("accessory %q has no pairing date", a.Name)
	}
	priv, err := keys.ParsePrivateKeyBase64(a.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("accessory %q: %w", a.Name, err)
	}
	d := &DynamicKey{accessory: a, publicKey: priv.PublicKey()}

	if a.PrimarySeed == "" {
		d.primary, err = rotation.NewMaster(priv)
	} else {
		d.primary, err = masterWithSeed(priv, a.PrimarySeed)
	}
	if err != nil {
		return nil, fmt.Errorf("accessory %q: primary seed: %w", a.Name, err)
	}
	if a.SecondarySeed != "" {
		secondary, err := masterWithSeed(priv, a.SecondarySeed)
		if err != nil {
			return nil, fmt.Errorf("accessory %q: secondary seed: %w", a.Name, err)
		}
		d.secondary = &secondary
	}
	return d, nil
}

func masterWithSeed(priv keys.PrivateKey, seed string) (rotation.Master, error) {
	b, err := base64.StdEncoding.DecodeString(seed)
	if err != nil {
		return rotation.Master{}, err
	}
	return rotation.NewMasterWithSeed(priv, b)
}

func LoadDynamicKey(reader io.Reader) (*DynamicKey, error) {
	var a Accessory
	if err := yaml.NewDecoder(reader).Decode(&a); err != nil {
		return nil, fmt.Errorf("unable to decode accessory: %w", err)
	}
	return NewDynamicKey(a)
}
