package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
)

// VaultConfig selects a KV v2 path holding device documents. Each document
// is a secret at mount/data/path/name with the PEM under the "content" key.
type VaultConfig struct {
	Address string `yaml:"address"`
	Token   string `yaml:"token,omitempty"`
	Mount   string `yaml:"mount"`
	Path    string `yaml:"path"`
}

// VaultSource reads documents from a HashiCorp Vault KV v2 engine.
type VaultSource struct {
	client *api.Client
	mount  string
	path   string
	log    *slog.Logger
}

// NewVaultSource creates a Vault source. An empty token leaves the client's
// environment token in place.
func NewVaultSource(cfg VaultConfig, log *slog.Logger) (*VaultSource, error) {
	if log == nil {
		log = slog.Default()
	}

	config := api.DefaultConfig()
	if cfg.Address != "" {
		config.Address = cfg.Address
	}
	config.HttpClient = &http.Client{Timeout: 30 * time.Second}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := strings.Trim(cfg.Mount, "/")
	if mount == "" {
		mount = "secret"
	}

	return &VaultSource{
		client: client,
		mount:  mount,
		path:   strings.Trim(cfg.Path, "/"),
		log:    log,
	}, nil
}

func (s *VaultSource) secretPath(name string) string {
	if s.path == "" {
		return fmt.Sprintf("%s/data/%s", s.mount, name)
	}
	return fmt.Sprintf("%s/data/%s/%s", s.mount, s.path, name)
}

// FetchPEM implements Source.
func (s *VaultSource) FetchPEM(ctx context.Context, name string) ([]byte, error) {
	p := s.secretPath(name)

	secret, err := s.client.Logical().ReadWithContext(ctx, p)
	if err != nil {
		s.log.Error("failed to read from Vault", slog.String("path", p), "err", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: vault %s", ErrNotFound, p)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: invalid data format at %s", ErrUnavailable, p)
	}
	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: no content at %s", ErrNotFound, p)
	}

	s.log.Debug("fetched secret from Vault", slog.String("path", p), slog.Int("size", len(content)))
	return []byte(content), nil
}

var _ Source = (*VaultSource)(nil)
