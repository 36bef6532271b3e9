package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/thingprov/thingprov-go/pkg/log"
	"github.com/thingprov/thingprov-go/pkg/provision"
	"github.com/thingprov/thingprov-go/pkg/registry"
	"github.com/thingprov/thingprov-go/pkg/secrets"
)

// Config is the thingprov configuration file.
type Config struct {
	Provision provision.Config `yaml:"provision"`
	Registry  RegistryConfig   `yaml:"registry"`
	Secrets   SecretsConfig    `yaml:"secrets"`

	// Firmware is the bucket holding firmware images for check-update.
	Firmware secrets.S3Config `yaml:"firmware"`

	// ProtocolLog is the default protocol trace file.
	ProtocolLog string `yaml:"protocol_log"`
}

// RegistryConfig selects where device secrets are looked up. Manifest wins
// over Endpoint when both are set.
type RegistryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
	Manifest string `yaml:"manifest"`
}

// SecretsConfig lists the sources of the PEM documents. They are tried in
// the order directory, Vault, S3 and finally the root CA URL.
type SecretsConfig struct {
	Dir       string               `yaml:"dir"`
	Vault     *secrets.VaultConfig `yaml:"vault"`
	S3        *secrets.S3Config    `yaml:"s3"`
	RootCAURL string               `yaml:"root_ca_url"`
}

func defaultConfig() Config {
	return Config{
		Provision: provision.DefaultConfig(),
		Secrets: SecretsConfig{
			RootCAURL: secrets.DefaultRootCAURL,
		},
	}
}

// loadConfig reads path over the defaults. An empty path yields the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.Provision.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func buildRegistry(cfg RegistryConfig, logger *slog.Logger) (registry.Registry, error) {
	switch {
	case cfg.Manifest != "":
		return registry.OpenFileRegistry(cfg.Manifest)
	case cfg.Endpoint != "":
		return registry.NewHTTPRegistry(cfg.Endpoint,
			registry.WithToken(cfg.Token),
			registry.WithLogger(logger),
		), nil
	default:
		return nil, errors.New("no registry configured: set registry.manifest or registry.endpoint")
	}
}

func buildSecrets(cfg SecretsConfig, logger *slog.Logger) (secrets.Source, error) {
	var sources []secrets.Source
	if cfg.Dir != "" {
		sources = append(sources, secrets.NewFileSource(cfg.Dir))
	}
	if cfg.Vault != nil {
		v, err := secrets.NewVaultSource(*cfg.Vault, logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, v)
	}
	if cfg.S3 != nil {
		s, err := secrets.NewS3Source(*cfg.S3, logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	if cfg.RootCAURL != "" {
		sources = append(sources, secrets.NewHTTPSource(
			secrets.WithURL(secrets.NameRootCA, cfg.RootCAURL),
			secrets.WithLogger(logger),
		))
	}
	return secrets.NewMultiSource(logger, sources...), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildProtocolLogger returns the trace sink. With debug set, events are
// also written to the operational log.
func buildProtocolLogger(path string, debug bool, logger *slog.Logger) (log.Logger, io.Closer, error) {
	var loggers []log.Logger
	var closer io.Closer = nopCloser{}

	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open protocol log: %w", err)
		}
		loggers = append(loggers, fl)
		closer = fl
	}
	if debug {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	return log.Tee(loggers...), closer, nil
}
