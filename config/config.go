// Package config loads server settings from an optional YAML file, a .env
// file and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/layer-3/siwf/adapters/keys"
	"github.com/layer-3/siwf/adapters/resolver"
	"github.com/layer-3/siwf/service"
)

const (
	// DefaultIssuer is the Farcaster Quick Auth issuer
	DefaultIssuer = "https://auth.farcaster.xyz"

	// DefaultJWKSURL is where the Quick Auth issuer publishes its keys
	DefaultJWKSURL = DefaultIssuer + "/.well-known/jwks.json"

	ResolverFarcaster = "farcaster"
	ResolverStatic    = "static"

	CustodyOnchain = "onchain"
	CustodyStatic  = "static"
)

// ErrMissingConfig is returned by Validate when a required setting is absent
var ErrMissingConfig = errors.New("missing required configuration")

// Config holds all server settings
type Config struct {
	Domain   string   `yaml:"domain"`
	Issuer   string   `yaml:"issuer"`
	Keys     Keys     `yaml:"keys"`
	Resolver Resolver `yaml:"resolver"`
	RedisURL string   `yaml:"redis_url"`
	Token    Token    `yaml:"token"`
	Custody  Custody  `yaml:"custody"`
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
}

// Keys configures where trusted token keys come from
type Keys struct {
	JWKSURL      string        `yaml:"jwks_url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// Resolver configures fid to user resolution
type Resolver struct {
	Kind      string            `yaml:"kind"`
	APIURL    string            `yaml:"api_url"`
	Timeout   time.Duration     `yaml:"timeout"`
	Addresses map[uint64]string `yaml:"addresses"` // static resolver only
	Strict    bool              `yaml:"strict"`    // static resolver only
}

// Token configures the local issuer. It is enabled when SigningKey is set.
type Token struct {
	SigningKey string        `yaml:"signing_key"` // hex encoded Ed25519 seed
	KeyID      string        `yaml:"key_id"`
	TTL        time.Duration `yaml:"ttl"`
}

// Custody configures how the local issuer learns which address owns a fid
type Custody struct {
	Kind       string            `yaml:"kind"` // onchain or static
	RPCURL     string            `yaml:"rpc_url"`
	IDRegistry string            `yaml:"id_registry"`
	Timeout    time.Duration     `yaml:"timeout"`
	Addresses  map[uint64]string `yaml:"addresses"` // static only
}

// Server configures the HTTP listener
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Log configures logging
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // json or text
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Issuer: DefaultIssuer,
		Keys: Keys{
			JWKSURL:      DefaultJWKSURL,
			FetchTimeout: keys.DefaultFetchTimeout,
			CacheTTL:     keys.DefaultCacheTTL,
		},
		Resolver: Resolver{
			Kind:    ResolverFarcaster,
			APIURL:  resolver.DefaultAPIURL,
			Timeout: resolver.DefaultTimeout,
		},
		Token: Token{
			KeyID: "local",
			TTL:   service.DefaultTokenTTL,
		},
		Custody: Custody{
			Kind:       CustodyOnchain,
			RPCURL:     resolver.DefaultRPCURL,
			IDRegistry: resolver.DefaultIDRegistry,
			Timeout:    resolver.DefaultTimeout,
		},
		Server: Server{
			Host:            "0.0.0.0",
			Port:            9000,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration. path may be empty; a missing .env file is ignored.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Domain, "SIWF_DOMAIN")
	setString(&c.Issuer, "SIWF_ISSUER")
	setString(&c.Keys.JWKSURL, "SIWF_JWKS_URL")
	setString(&c.Resolver.Kind, "SIWF_RESOLVER")
	setString(&c.Resolver.APIURL, "FARCASTER_API_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.Token.SigningKey, "SIWF_ISSUER_KEY")
	setString(&c.Token.KeyID, "SIWF_ISSUER_KEY_ID")
	setString(&c.Custody.Kind, "SIWF_CUSTODY")
	setString(&c.Custody.RPCURL, "OPTIMISM_RPC_URL")
	setString(&c.Custody.IDRegistry, "SIWF_ID_REGISTRY")
	setString(&c.Server.Host, "HOST")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.Keys.FetchTimeout, "SIWF_KEY_FETCH_TIMEOUT"},
		{&c.Keys.CacheTTL, "SIWF_KEY_CACHE_TTL"},
		{&c.Resolver.Timeout, "SIWF_RESOLVER_TIMEOUT"},
		{&c.Token.TTL, "SIWF_TOKEN_TTL"},
		{&c.Custody.Timeout, "SIWF_CUSTODY_TIMEOUT"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

// Validate checks the settings needed to serve requests
func (c *Config) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("%w: SIWF_DOMAIN", ErrMissingConfig)
	}
	if c.Issuer == "" {
		return fmt.Errorf("%w: SIWF_ISSUER", ErrMissingConfig)
	}
	if c.Token.SigningKey == "" && c.Keys.JWKSURL == "" {
		return fmt.Errorf("%w: SIWF_JWKS_URL", ErrMissingConfig)
	}
	switch c.Resolver.Kind {
	case ResolverFarcaster, ResolverStatic:
	default:
		return fmt.Errorf("unknown resolver %q", c.Resolver.Kind)
	}
	if c.IssuerEnabled() {
		if err := c.validateIssuer(); err != nil {
			return err
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// validateIssuer requires the local issuer to name itself and to have a
// source of truth for fid ownership
func (c *Config) validateIssuer() error {
	if c.Issuer == DefaultIssuer {
		return fmt.Errorf("%w: SIWF_ISSUER must name the local issuer, not %s", ErrMissingConfig, DefaultIssuer)
	}
	switch c.Custody.Kind {
	case CustodyOnchain:
		if c.Custody.RPCURL == "" {
			return fmt.Errorf("%w: OPTIMISM_RPC_URL", ErrMissingConfig)
		}
	case CustodyStatic:
		if len(c.Custody.Addresses) == 0 {
			return fmt.Errorf("%w: custody.addresses", ErrMissingConfig)
		}
	default:
		return fmt.Errorf("unknown custody source %q", c.Custody.Kind)
	}
	return nil
}

// IssuerEnabled reports whether the local token issuer should run
func (c *Config) IssuerEnabled() bool {
	return c.Token.SigningKey != ""
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
