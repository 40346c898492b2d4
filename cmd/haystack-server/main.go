package main

import (
	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/haystack-go"
	"github.com/denysvitali/haystack-go/config"
	"github.com/denysvitali/haystack-go/server"
)

var args struct {
	Config   string `arg:"--config,-c,env:HAYSTACK_CONFIG" help:"configuration file"`
	LogLevel string `arg:"--log-level" help:"Log level (default: config LogLevel)"`
}

var logger = logrus.StandardLogger()

func main() {
	arg.MustParse(&args)

	cfg, err := config.Load(args.Config)
	if err != nil {
		logger.Fatalf("unable to load config: %v", err)
	}
	if args.LogLevel != "" {
		cfg.LogLevel = args.LogLevel
	}
	setLogLevel(cfg.LogLevel)
	logger.Infof("using %s database %s", cfg.Database.Driver, cfg.RedactedDSN())

	keys, err := haystack.LoadKeys(cfg.BeaconDir)
	if err != nil {
		logger.Fatalf("failed to load keys: %v", err)
	}

	opts := []haystack.Option{haystack.WithEndpoint(cfg.Endpoint)}
	if cfg.Authorization != "" {
		opts = append(opts, haystack.WithAuthorization(cfg.Authorization))
	}
	c := haystack.New(haystack.NewAnisetteProvider(cfg.AnisetteURL, haystack.AuthFile(cfg.AuthFile)), opts...)

	s, err := server.New(c, keys, server.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		Workers:      cfg.Workers,
		RefreshHours: cfg.RefreshHours,
	})
	if err != nil {
		logger.Fatalf("unable to create server: %v", err)
	}
	if err := s.Listen(cfg.ListenAddr); err != nil {
		logger.Fatalf("unable to listen: %v", err)
	}
}

func setLogLevel(level string) {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Fatalf("failed to parse log level: %v", err)
	}
	logger.SetLevel(l)
}
