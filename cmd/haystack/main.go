package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/haystack-go/config"
	"github.com/denysvitali/haystack-go/model"
)

var logger = logrus.StandardLogger()

type GenerateCmd struct {
	Name   string `arg:"positional,required" help:"accessory name"`
	Out    string `arg:"--out,-o" default:"." help:"output directory"`
	Static bool   `arg:"--static" help:"generate a non rotating key"`
}

type AdvertiseCmd struct {
	KeyFile      string        `arg:"positional,required" help:".keys or .yaml key file"`
	At           string        `arg:"--at" help:"RFC3339 time to advertise for (default: now)"`
	Interval     time.Duration `arg:"--interval" default:"2s" help:"advertising interval"`
	VendorOGF    uint8         `arg:"--vendor-ogf" help:"vendor OGF for controllers without LE random address support"`
	VendorOCF    uint16        `arg:"--vendor-ocf" help:"vendor OCF for controllers without LE random address support"`
	NoAddrRevert bool          `arg:"--no-address-reverse" help:"send the address in display order"`
}

type IdsCmd struct {
	Hours int `arg:"--hours" default:"24" help:"window size in hours"`
}

type FetchCmd struct {
	Hours int `arg:"--hours" help:"window size in hours (default: config RefreshHours)"`
}

type DecryptCmd struct {
	PrivateKey string `arg:"--private-key,required" help:"base64 private key"`
	Payload    string `arg:"positional,required" help:"base64 report payload"`
}

type SimulateCmd struct {
	KeyFile  string  `arg:"positional,required" help:".keys or .yaml key file"`
	Lat      float64 `arg:"--lat,required"`
	Lng      float64 `arg:"--lng,required"`
	Accuracy int     `arg:"--accuracy" default:"10"`
	At       string  `arg:"--at" help:"RFC3339 time of the sighting (default: now)"`
}

type PatchFirmwareCmd struct {
	Image          string `arg:"positional,required" help:"firmware image"`
	KeyFile        string `arg:"positional,required" help:".keys or .yaml key file"`
	Out            string `arg:"--out,-o,required" help:"patched image"`
	UpdateInterval uint32 `arg:"--update-interval" default:"3600" help:"key update interval written into rotating firmwares"`
}

var args struct {
	Generate      *GenerateCmd      `arg:"subcommand:generate" help:"generate a new accessory"`
	Advertise     *AdvertiseCmd     `arg:"subcommand:advertise" help:"print the advertisement and hcitool commands"`
	Ids           *IdsCmd           `arg:"subcommand:ids" help:"list the query identifiers of the loaded keys"`
	Fetch         *FetchCmd         `arg:"subcommand:fetch" help:"fetch and decrypt reports"`
	Decrypt       *DecryptCmd       `arg:"subcommand:decrypt" help:"decrypt a single report"`
	Simulate      *SimulateCmd      `arg:"subcommand:simulate" help:"encrypt a report as a finder would"`
	PatchFirmware *PatchFirmwareCmd `arg:"subcommand:patch-firmware" help:"write a key into a firmware image"`

	Config   string `arg:"--config,-c,env:HAYSTACK_CONFIG" help:"configuration file"`
	KeysDir  string `arg:"--keys-dir,-k" help:"directory with key files (default: config BeaconDir)"`
	LogLevel string `arg:"--log-level" default:"info" help:"Log level"`
}

func main() {
	p := arg.MustParse(&args)
	setLogLevel(args.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var err error
	switch {
	case args.Generate != nil:
		err = generate(args.Generate)
	case args.Advertise != nil:
		err = advertise(args.Advertise)
	case args.Ids != nil:
		err = ids(args.Ids)
	case args.Fetch != nil:
		err = fetch(ctx, args.Fetch)
	case args.Decrypt != nil:
		err = decrypt(args.Decrypt)
	case args.Simulate != nil:
		err = simulate(args.Simulate)
	case args.PatchFirmware != nil:
		err = patchFirmware(args.PatchFirmware)
	default:
		p.Fail("missing subcommand")
	}
	if err != nil {
		logger.Fatalf("%v", err)
	}
}

func setLogLevel(level string) {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Fatalf("failed to parse log level: %v", err)
	}
	logger.SetLevel(l)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(args.Config)
	if err != nil {
		return nil, err
	}
	if args.KeysDir != "" {
		cfg.BeaconDir = args.KeysDir
	}
	return cfg, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", v, err)
	}
	return t.UTC(), nil
}

// currentSubKey returns the key k advertises at t.
func currentSubKey(k model.MainKey, t time.Time) (model.SubKey, error) {
	sks, err := k.GetSubKeys(t, t)
	if err != nil {
		return model.SubKey{}, err
	}
	for _, sk := range sks {
		if sk.Type != model.Secondary {
			return sk, nil
		}
	}
	return model.SubKey{}, fmt.Errorf("no key advertised by %s at %s", k.ID(), t)
}
