// Package advertisement encodes rotated public keys into offline finding BLE
// advertisements and random static device addresses, and parses them back on
// the scanner side.
package advertisement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/denysvitali/haystack-go/keys"
)

const (
	// PayloadSize is the size of the advertising data including its length
	// byte, which itself announces the 30 bytes that follow it.
	PayloadSize = 31
	// KeyFragmentSize is the number of advertised key bytes carried in the payload.
	KeyFragmentSize = 22
	// ManufacturerDataSize is the manufacturer specific data as reported by
	// scanners: the payload without its length and AD type bytes.
	ManufacturerDataSize = PayloadSize - 2

	adLength          = 0x1e
	adTypeVendor      = 0xff
	offlineFinding    = 0x12
	offlineFindingLen = 0x19
)

// CompanyID is the Bluetooth SIG company identifier used by offline finding.
var CompanyID = [2]byte{0x4c, 0x00}

var (
	ErrUnexpectedLength  = errors.New("unexpected manufacturer data length")
	ErrNotOfflineFinding = errors.New("not an offline finding advertisement")
)

// Payload is the advertising data: a length byte (30) followed by the 30-byte
// manufacturer specific AD structure.
type Payload [PayloadSize]byte

// Address is a BLE device address in display order (most significant byte
// first).
type Address [6]byte

// Encode builds the advertising data for pub:
//
//	1e ff 4c 00 12 19 <state> <key[6:28]> <key[0]>>6> <hint>
func Encode(pub keys.PublicKey) Payload {
	key := pub.AdvertisedKey()
	p := Payload{
		adLength,
		adTypeVendor,
		CompanyID[0], CompanyID[1],
		offlineFinding, offlineFindingLen,
		0x00, // state
	}
	copy(p[7:7+KeyFragmentSize], key[6:])
	p[29] = key[0] >> 6
	// p[30] is the hint, always 0x00
	return p
}

// DeriveAddress returns key[0:6] with the two most significant bits set,
// marking a random static address.
func DeriveAddress(pub keys.PublicKey) Address {
	key := pub.AdvertisedKey()
	var a Address
	copy(a[:], key[:6])
	a[0] |= 0b11000000
	return a
}

// State returns the status byte.
func (p Payload) State() byte {
	return p[6]
}

// KeyFragment returns the 22 key bytes carried in the payload.
func (p Payload) KeyFragment() [KeyFragmentSize]byte {
	var f [KeyFragmentSize]byte
	copy(f[:], p[7:7+KeyFragmentSize])
	return f
}

// TopBits returns the two most significant bits of the advertised key.
func (p Payload) TopBits() byte {
	return p[29] & 0b11
}

// Hint returns the trailing hint byte.
func (p Payload) Hint() byte {
	return p[30]
}

// ManufacturerData returns the bytes a scanner reports as manufacturer data.
func (p Payload) ManufacturerData() []byte {
	out := make([]byte, ManufacturerDataSize)
	copy(out, p[2:])
	return out
}

func (a Address) String() string {
	parts := make([]string, len(a))
	for i, b := range a {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// Reversed returns the address in the little-endian order HCI controllers
// and some BLE stacks expect.
func (a Address) Reversed() [6]byte {
	var r [6]byte
	for i := range a {
		r[i] = a[len(a)-1-i]
	}
	return r
}
