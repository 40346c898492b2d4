package advertisement

import (
	"bytes"
	"fmt"

	"github.com/denysvitali/haystack-go/keys"
)

// Observation is an offline finding advertisement as seen by a scanner.
type Observation struct {
	State    byte
	Fragment [KeyFragmentSize]byte
	TopBits  byte
	Hint     byte
}

// ParseManufacturerData parses the 29 bytes of manufacturer specific data
// reported by a scanner (company id first).
func ParseManufacturerData(data []byte) (Observation, error) {
	if len(data) != ManufacturerDataSize {
		return Observation{}, fmt.Errorf("%w: %d", ErrUnexpectedLength, len(data))
	}
	if !bytes.Equal(data[0:2], CompanyID[:]) {
		return Observation{}, fmt.Errorf("%w: company id %x", ErrNotOfflineFinding, data[0:2])
	}
	if data[2] != offlineFinding || data[3] != offlineFindingLen {
		return Observation{}, fmt.Errorf("%w: type %#02x length %#02x", ErrNotOfflineFinding, data[2], data[3])
	}
	o := Observation{
		State:   data[4],
		TopBits: data[5+KeyFragmentSize] & 0b11,
		Hint:    data[6+KeyFragmentSize],
	}
	copy(o.Fragment[:], data[5:5+KeyFragmentSize])
	return o, nil
}

// ParsePayload parses a full advertising data structure including the length
// and AD type bytes.
func ParsePayload(data []byte) (Observation, error) {
	if len(data) != PayloadSize {
		return Observation{}, fmt.Errorf("%w: %d", ErrUnexpectedLength, len(data))
	}
	if data[0] != adLength || data[1] != adTypeVendor {
		return Observation{}, fmt.Errorf("%w: AD header %x", ErrNotOfflineFinding, data[0:2])
	}
	return ParseManufacturerData(data[2:])
}

// Matches reports whether the observation was broadcast for pub.
func (o Observation) Matches(pub keys.PublicKey) bool {
	key := pub.AdvertisedKey()
	return bytes.Equal(o.Fragment[:], key[6:]) && o.TopBits == key[0]>>6
}

// Reconstruct recovers the full 28-byte advertised key from the device
// address and the observation.
func Reconstruct(addr Address, o Observation) [keys.AdvertisedKeySize]byte {
	var key [keys.AdvertisedKeySize]byte
	key[0] = addr[0]&0b00111111 | o.TopBits<<6
	copy(key[1:6], addr[1:])
	copy(key[6:], o.Fragment[:])
	return key
}
