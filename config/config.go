package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Config is the runtime configuration of the haystack server and CLI.
type Config struct {
	ListenAddr    string
	LogLevel      string
	Database      *dbConfig
	AnisetteURL   string
	Endpoint      string
	Authorization string
	AuthFile      string
	BeaconDir     string
	Workers       int
	RefreshHours  int
}

type dbConfig struct {
	Driver string
	DSN    string
}

const envPrefix = "HAYSTACK"

func defaults(options *viper.Viper) {
	options.SetDefault("ListenAddr", "127.0.0.1:8500")
	options.SetDefault("LogLevel", "info")
	options.SetDefault("Database.Driver", "postgres")
	options.SetDefault("Database.DSN", "host=localhost port=5438 user=haystack password=haystack dbname=haystack sslmode=disable binary_parameters=yes")
	options.SetDefault("AnisetteURL", "http://localhost:6969")
	options.SetDefault("Endpoint", "https://gateway.icloud.com/acsnservice/fetch")
	options.SetDefault("Authorization", "")
	options.SetDefault("AuthFile", "auth.json")
	options.SetDefault("BeaconDir", "./beacons/")
	options.SetDefault("Workers", 0)
	options.SetDefault("RefreshHours", 12)
}

// Load reads the configuration from defaults, the optional YAML file at path
// and HAYSTACK_ prefixed environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	options := viper.New()
	defaults(options)
	options.SetEnvPrefix(envPrefix)
	options.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	options.AutomaticEnv()

	if path != "" {
		options.SetConfigFile(path)
		if err := options.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		ListenAddr:    options.GetString("ListenAddr"),
		LogLevel:      options.GetString("LogLevel"),
		AnisetteURL:   options.GetString("AnisetteURL"),
		Endpoint:      options.GetString("Endpoint"),
		Authorization: options.GetString("Authorization"),
		AuthFile:      options.GetString("AuthFile"),
		BeaconDir:     options.GetString("BeaconDir"),
		Workers:       options.GetInt("Workers"),
		RefreshHours:  options.GetInt("RefreshHours"),
		Database: &dbConfig{
			Driver: strings.ToLower(options.GetString("Database.Driver")),
			DSN:    options.GetString("Database.DSN"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.RefreshHours < 1 {
		return fmt.Errorf("refresh hours must be greater than 0")
	}
	return nil
}

var dsnPassword = regexp.MustCompile(`(password=)\S+|(://[^:/@\s]+:)[^@\s]+(@)`)

// RedactedDSN returns the DSN with its password replaced, for logging.
func (c *Config) RedactedDSN() string {
	return dsnPassword.ReplaceAllString(c.Database.DSN, "${1}${2}xxxxx${3}")
}
