package haystack

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/denysvitali/haystack-go/keyfile"
	"github.com/denysvitali/haystack-go/model"
)

var ErrUnknownKeyFormat = errors.New("unknown key file format")

// LoadKeys loads every accessory found in dir. Files with an unknown
// extension are ignored.
func LoadKeys(dir string) ([]model.MainKey, error) {
	keys := make([]model.MainKey, 0)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, v := range files {
		if v.IsDir() {
			continue
		}
		loaded, err := LoadKeyFile(path.Join(dir, v.Name()))
		if errors.Is(err, ErrUnknownKeyFormat) {
			continue
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, loaded...)
	}
	logger.Debugf("loaded %d keys from %s", len(keys), dir)
	return keys, nil
}

// LoadKeyFile loads a static .keys file, a rotating .yaml/.yml accessory or
// a binary .keyfile holding any number of static keys.
func LoadKeyFile(name string) ([]model.MainKey, error) {
	ext := path.Ext(name)
	base := strings.TrimSuffix(path.Base(name), ext)
	switch ext {
	case ".keys":
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s: %w", name, err)
		}
		defer f.Close()
		k, err := LoadStaticKey(base, f)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
		return []model.MainKey{k}, nil
	case ".yaml", ".yml":
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s: %w", name, err)
		}
		defer f.Close()
		k, err := LoadDynamicKey(f)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
		return []model.MainKey{k}, nil
	case ".keyfile":
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", name, err)
		}
		privs, err := keyfile.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", name, err)
		}
		keys := make([]model.MainKey, 0, len(privs))
		for i, p := range privs {
			keys = append(keys, NewStaticKey(fmt.Sprintf("%s-%d", base, i), p))
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeyFormat, name)
	}
}
