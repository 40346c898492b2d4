package advertisement

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/denysvitali/haystack-go/keys"
)

// DefaultInterval is the advertising interval used by the reference firmwares.
const DefaultInterval = 2 * time.Second

const (
	intervalUnit = 625 * time.Microsecond
	minUnits     = 0x0020
	maxUnits     = 0x4000

	ogfLE             = 0x08
	ocfSetAdvParams   = 0x0006
	ocfSetAdvData     = 0x0008
	ocfSetAdvEnable   = 0x000a
	advNonConnInd     = 0x03
	allChannels       = 0x07
	defaultVendorOGF  = 0x3f
	defaultVendorOCF  = 0x0001
	advDataFieldBytes = 31
)

// IntervalUnits converts an advertising interval to 625 µs units, clamped to
// the range allowed by the Core specification.
func IntervalUnits(d time.Duration) uint16 {
	u := d / intervalUnit
	switch {
	case u < minUnits:
		return minUnits
	case u > maxUnits:
		return maxUnits
	}
	return uint16(u)
}

// HCIOptions configures HCICommands.
type HCIOptions struct {
	Interval time.Duration
	// VendorOGF and VendorOCF select the vendor command that sets the
	// public address; zero values use 0x3f/0x0001.
	VendorOGF uint8
	VendorOCF uint16
	// NoAddressReverse sends the address in display order instead of the
	// little-endian order most controllers expect.
	NoAddressReverse bool
}

// HCICommand is a raw HCI command.
type HCICommand struct {
	OGF    uint8
	OCF    uint16
	Params []byte
}

// Args renders the command as hcitool cmd arguments.
func (c HCICommand) Args() []string {
	args := []string{fmt.Sprintf("0x%02x", c.OGF), fmt.Sprintf("0x%04x", c.OCF)}
	for _, b := range c.Params {
		args = append(args, fmt.Sprintf("%02x", b))
	}
	return args
}

// HCICommands returns the command sequence that makes a Linux controller
// advertise pub: set address, set advertising data, set parameters, enable.
func HCICommands(pub keys.PublicKey, opts HCIOptions) []HCICommand {
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.VendorOGF == 0 {
		opts.VendorOGF = defaultVendorOGF
	}
	if opts.VendorOCF == 0 {
		opts.VendorOCF = defaultVendorOCF
	}

	addr := DeriveAddress(pub)
	addrBytes := addr[:]
	if !opts.NoAddressReverse {
		r := addr.Reversed()
		addrBytes = r[:]
	}

	payload := Encode(pub)
	advData := make([]byte, 1+advDataFieldBytes)
	advData[0] = byte(len(payload))
	copy(advData[1:], payload[:])

	units := IntervalUnits(opts.Interval)
	params := make([]byte, 15)
	binary.LittleEndian.PutUint16(params[0:2], units)
	binary.LittleEndian.PutUint16(params[2:4], units)
	params[4] = advNonConnInd
	// own address type, peer address type and peer address stay zero
	params[13] = allChannels
	params[14] = 0x00 // filter policy

	return []HCICommand{
		{OGF: opts.VendorOGF, OCF: opts.VendorOCF, Params: addrBytes},
		{OGF: ogfLE, OCF: ocfSetAdvData, Params: advData},
		{OGF: ogfLE, OCF: ocfSetAdvParams, Params: params},
		{OGF: ogfLE, OCF: ocfSetAdvEnable, Params: []byte{0x01}},
	}
}
