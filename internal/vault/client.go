// Package vault fetches runtime secrets (database password, JWT signing
// key) from HashiCorp Vault. When Vault is disabled the configured values
// are used as-is.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"lending-fund-api/config"
)

// Secrets are the values the service pulls from Vault at startup.
type Secrets struct {
	DBPassword string
	JWTSecret  string
}

// Client wraps the HashiCorp Vault client.
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu     sync.RWMutex
	cached *Secrets
}

// NewClient builds the client. With Vault disabled it is a no-op shell that
// returns empty secrets.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{CACert: cfg.CACert}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// IsEnabled reports whether Vault is in use.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// FetchSecrets reads the service secrets from the configured KV v2 path.
// Results are cached for the process lifetime; secrets do not rotate while
// the service runs.
func (c *Client) FetchSecrets(ctx context.Context) (*Secrets, error) {
	if !c.config.Enabled {
		return &Secrets{}, nil
	}

	c.mu.RLock()
	if c.cached != nil {
		defer c.mu.RUnlock()
		return c.cached, nil
	}
	c.mu.RUnlock()

	path := fmt.Sprintf("secret/data/%s", c.config.SecretPath)
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secrets at vault path %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format at vault path %s", path)
	}

	s := &Secrets{
		DBPassword: getString(data, "db_password"),
		JWTSecret:  getString(data, "jwt_secret"),
	}

	c.mu.Lock()
	c.cached = s
	c.mu.Unlock()

	return s, nil
}

// Health checks the Vault connection.
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
