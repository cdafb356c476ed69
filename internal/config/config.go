package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ss14tools/verilink/internal/security/secretbox"
)

type Config struct {
	App struct {
		// dev | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	// Public is the requester-visible address used to build redirect URIs
	// and the redirect allow-list.
	Public struct {
		Scheme  string `yaml:"scheme"`
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`

		// ResolvedIP: externally resolved IP, substituted for loopback
		// request hosts during local testing.
		ResolvedIP string `yaml:"resolved_ip"`

		// TrustLoopback: disable the loopback substitution (deployments
		// behind a loopback-bound reverse proxy).
		TrustLoopback bool `yaml:"trust_loopback"`
	} `yaml:"public"`

	Session struct {
		Kind  string        `yaml:"kind"` // memory | redis
		TTL   time.Duration `yaml:"ttl"`  // redis only; abandoned-flow expiry
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"session"`

	Storage struct {
		Driver string `yaml:"driver"` // json | postgres
		Path   string `yaml:"path"`   // json driver
		DSN    string `yaml:"dsn"`    // postgres driver
	} `yaml:"storage"`

	Rate struct {
		Enabled bool          `yaml:"enabled"`
		Kind    string        `yaml:"kind"` // memory | redis
		Limit   int           `yaml:"limit"`
		Window  time.Duration `yaml:"window"`
		Redis   struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"rate"`

	Auth struct {
		// APIKey authorizes membership-list writes (X-API-Key or Bearer).
		APIKey string `yaml:"api_key"`
		// JWTSecret additionally accepts HS256 JWTs with members:write scope.
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Providers struct {
		Discord ProviderCreds `yaml:"discord"`
		SS14    ProviderCreds `yaml:"ss14"`
	} `yaml:"providers"`
}

// ProviderCreds is the per-provider client credential block. Secrets may be
// stored secretbox-encrypted ("enc|..." values) and are decrypted at load.
type ProviderCreds struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Public.Scheme == "" {
		c.Public.Scheme = "https"
	}
	if c.Public.Address == "" {
		c.Public.Address = "localhost"
	}
	if c.Public.Port == 0 {
		c.Public.Port = 443
	}
	if c.Session.Kind == "" {
		c.Session.Kind = "memory"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 12 * time.Hour
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "json"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "members.json"
	}
	if c.Rate.Kind == "" {
		c.Rate.Kind = "memory"
	}
	if c.Rate.Limit == 0 {
		c.Rate.Limit = 30
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
	if c.Providers.SS14.Scope == "" {
		c.Providers.SS14.Scope = "openid profile email"
	}
	if c.Providers.Discord.Scope == "" {
		c.Providers.Discord.Scope = "identify"
	}

	// env overrides for secrets (take precedence over YAML)
	if v := os.Getenv("VERILINK_API_KEY"); v != "" {
		c.Auth.APIKey = v
	}
	if v := os.Getenv("VERILINK_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("DISCORD_CLIENT_SECRET"); v != "" {
		c.Providers.Discord.ClientSecret = v
	}
	if v := os.Getenv("SS14_CLIENT_SECRET"); v != "" {
		c.Providers.SS14.ClientSecret = v
	}

	if err := decryptSecrets(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// decryptSecrets resolves "enc|..." client secrets via the secretbox master
// key from the environment.
func decryptSecrets(c *Config) error {
	for name, creds := range map[string]*ProviderCreds{
		"discord": &c.Providers.Discord,
		"ss14":    &c.Providers.SS14,
	} {
		if !secretbox.IsEncrypted(creds.ClientSecret) {
			continue
		}
		pt, err := secretbox.Decrypt(creds.ClientSecret)
		if err != nil {
			return fmt.Errorf("config: decrypt %s client_secret: %w", name, err)
		}
		creds.ClientSecret = strings.TrimSpace(pt)
	}
	return nil
}
