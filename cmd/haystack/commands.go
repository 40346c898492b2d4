package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/denysvitali/haystack-go"
	"github.com/denysvitali/haystack-go/advertisement"
	"github.com/denysvitali/haystack-go/config"
	"github.com/denysvitali/haystack-go/firmware"
	"github.com/denysvitali/haystack-go/keys"
	"github.com/denysvitali/haystack-go/lookup"
	"github.com/denysvitali/haystack-go/model"
	"github.com/denysvitali/haystack-go/report"
)

func loadSingleKey(name string) (model.MainKey, error) {
	loaded, err := haystack.LoadKeyFile(name)
	if err != nil {
		return nil, err
	}
	if len(loaded) != 1 {
		return nil, fmt.Errorf("%s holds %d keys, expected one", name, len(loaded))
	}
	return loaded[0], nil
}

func generate(cmd *GenerateCmd) error {
	if cmd.Static {
		priv, err := keys.GeneratePrivateKey(nil)
		if err != nil {
			return err
		}
		out := filepath.Join(cmd.Out, cmd.Name+".keys")
		f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return err
		}
		if err := haystack.WriteStaticKey(f, priv); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("unable to write %s: %w", out, err)
		}
		logger.Infof("wrote %s (id %s)", out, lookup.Identifier(priv.PublicKey()))
		return nil
	}

	acc, err := haystack.GenerateAccessory(cmd.Name, time.Now(), nil)
	if err != nil {
		return err
	}
	out := filepath.Join(cmd.Out, cmd.Name+".yaml")
	f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if err := acc.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to write %s: %w", out, err)
	}
	logger.Infof("wrote %s", out)
	return nil
}

func advertise(cmd *AdvertiseCmd) error {
	k, err := loadSingleKey(cmd.KeyFile)
	if err != nil {
		return err
	}
	at, err := parseTime(cmd.At)
	if err != nil {
		return err
	}
	sk, err := currentSubKey(k, at)
	if err != nil {
		return err
	}
	payload := advertisement.Encode(sk.PublicKey)
	fmt.Printf("# interval %d, id %s\n", sk.Interval, sk.ID)
	fmt.Printf("# address %s\n", advertisement.DeriveAddress(sk.PublicKey))
	fmt.Printf("# payload %s\n", hex.EncodeToString(payload[:]))
	for _, c := range advertisement.HCICommands(sk.PublicKey, advertisement.HCIOptions{
		Interval:         cmd.Interval,
		VendorOGF:        cmd.VendorOGF,
		VendorOCF:        cmd.VendorOCF,
		NoAddressReverse: cmd.NoAddrRevert,
	}) {
		fmt.Printf("hcitool -i hci0 cmd %s\n", strings.Join(c.Args(), " "))
	}
	return nil
}

func ids(cmd *IdsCmd) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loaded, err := haystack.LoadKeys(cfg.BeaconDir)
	if err != nil {
		return err
	}
	to := time.Now().UTC()
	from := to.Add(-time.Duration(cmd.Hours) * time.Hour)
	enc := json.NewEncoder(os.Stdout)
	for _, k := range loaded {
		sks, err := k.GetSubKeys(from, to)
		if err != nil {
			return fmt.Errorf("unable to get subkeys of %s: %w", k.ID(), err)
		}
		for _, sk := range sks {
			if err := enc.Encode(map[string]any{
				"key":      k.ID(),
				"type":     sk.Type.String(),
				"interval": sk.Interval,
				"id":       sk.ID,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func fetch(ctx context.Context, cmd *FetchCmd) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loaded, err := haystack.LoadKeys(cfg.BeaconDir)
	if err != nil {
		return fmt.Errorf("failed to load keys: %w", err)
	}
	hours := cmd.Hours
	if hours == 0 {
		hours = cfg.RefreshHours
	}
	c := newClient(cfg)

	to := time.Now().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)
	reports, subKeysMap, err := c.Find(ctx, loaded, from, to)
	if err != nil {
		return fmt.Errorf("failed to find reports: %w", err)
	}
	logger.Infof("fetched %d reports for %d keys", len(reports), len(loaded))

	for _, d := range haystack.DecodeReports(ctx, reports, subKeysMap, cfg.Workers) {
		if d.Err != nil {
			continue
		}
		jsonText, err := json.Marshal(map[string]any{
			"key":     d.SubKey.MainKey.ID(),
			"tagData": d.Location,
			"report":  d.Report,
		})
		if err != nil {
			logger.Errorf("unable to encode JSON: %v", err)
			continue
		}
		fmt.Println(string(jsonText))
	}
	return nil
}

func newClient(cfg *config.Config) *haystack.Client {
	opts := []haystack.Option{haystack.WithEndpoint(cfg.Endpoint)}
	if cfg.Authorization != "" {
		opts = append(opts, haystack.WithAuthorization(cfg.Authorization))
	}
	return haystack.New(haystack.NewAnisetteProvider(cfg.AnisetteURL, haystack.AuthFile(cfg.AuthFile)), opts...)
}

func decrypt(cmd *DecryptCmd) error {
	priv, err := keys.ParsePrivateKeyBase64(cmd.PrivateKey)
	if err != nil {
		return err
	}
	blob, err := base64.StdEncoding.DecodeString(cmd.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", report.ErrMalformedReport, err)
	}
	loc, err := report.DecryptBlob(blob, priv)
	if err != nil {
		return fmt.Errorf("unable to decrypt report (%s): %w", report.Classify(err), err)
	}
	return json.NewEncoder(os.Stdout).Encode(loc)
}

func simulate(cmd *SimulateCmd) error {
	k, err := loadSingleKey(cmd.KeyFile)
	if err != nil {
		return err
	}
	at, err := parseTime(cmd.At)
	if err != nil {
		return err
	}
	sk, err := currentSubKey(k, at)
	if err != nil {
		return err
	}
	enc, err := report.Seal(sk.PublicKey, report.Location{
		Time:     at,
		Lat:      cmd.Lat,
		Lng:      cmd.Lng,
		Accuracy: cmd.Accuracy,
	}, nil)
	if err != nil {
		return err
	}
	blob, err := enc.Marshal()
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(haystack.Report{
		ID:            sk.ID.String(),
		DatePublished: time.Now().UnixMilli(),
		Payload:       base64.StdEncoding.EncodeToString(blob),
	})
}

func patchFirmware(cmd *PatchFirmwareCmd) error {
	image, err := os.ReadFile(cmd.Image)
	if err != nil {
		return err
	}
	k, err := loadSingleKey(cmd.KeyFile)
	if err != nil {
		return err
	}
	var patched []byte
	switch key := k.(type) {
	case *haystack.DynamicKey:
		patched, err = firmware.PatchRotating(image, key.Master(), cmd.UpdateInterval)
	case *haystack.StaticKey:
		patched, err = firmware.PatchStatic(image, key.PrivateKey().PublicKey())
	default:
		return fmt.Errorf("unsupported key type %s", k.Type())
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(cmd.Out, patched, 0o644); err != nil {
		return err
	}
	logger.Infof("wrote %s", cmd.Out)
	return nil
}
