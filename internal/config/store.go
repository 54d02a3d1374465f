package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultStoreAddr    = "localhost"
	DefaultStorePort    = 10088
	DefaultStoreScope   = "nba_jam"
	DefaultStoreTimeout = 2 * time.Second
	DefaultStoreBackoff = 10 * time.Second

	BackendWebsocket = "ws"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// StoreConfig holds the explicit layer of the store settings. Zero values
// mean "not set" and fall through to the discovered layer, then defaults.
type StoreConfig struct {
	Backend       string `env:"STORE_BACKEND" envDefault:"ws"`
	Addr          string `env:"STORE_ADDR"`
	Port          int    `env:"STORE_PORT"`
	Scope         string `env:"STORE_SCOPE"`
	TimeoutMS     int    `env:"STORE_TIMEOUT_MS"`
	BackoffMS     int    `env:"STORE_BACKOFF_MS"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
	DiscoveryFile string `env:"STORE_DISCOVERY_FILE"`

	LiveChallengesEnabled bool   `env:"LIVE_CHALLENGES_ENABLED" envDefault:"true"`
	LocalVersion          string `env:"APP_VERSION" envDefault:"unknown"`
	PublishedBy           string `env:"BBS_NAME"`
}

func LoadStore() (StoreConfig, error) {
	var cfg StoreConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// StoreOverride is one layer of endpoint settings.
type StoreOverride struct {
	Addr      string `json:"addr"`
	Port      int    `json:"port"`
	Scope     string `json:"scope"`
	TimeoutMS int    `json:"timeoutMs"`
	BackoffMS int    `json:"backoffMs"`
}

// StoreEndpoint is the fully resolved connection target.
type StoreEndpoint struct {
	Backend     string
	Addr        string
	Port        int
	Scope       string
	Timeout     time.Duration
	Backoff     time.Duration
	PostgresDSN string
}

func (c StoreConfig) Explicit() StoreOverride {
	return StoreOverride{
		Addr:      strings.TrimSpace(c.Addr),
		Port:      c.Port,
		Scope:     strings.TrimSpace(c.Scope),
		TimeoutMS: c.TimeoutMS,
		BackoffMS: c.BackoffMS,
	}
}

// ResolveStore layers explicit over discovered over the hard defaults.
func ResolveStore(cfg StoreConfig, discovered StoreOverride) StoreEndpoint {
	explicit := cfg.Explicit()
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendWebsocket
	}
	return StoreEndpoint{
		Backend:     backend,
		Addr:        firstString(explicit.Addr, strings.TrimSpace(discovered.Addr), DefaultStoreAddr),
		Port:        firstPositive(explicit.Port, discovered.Port, DefaultStorePort),
		Scope:       firstString(explicit.Scope, strings.TrimSpace(discovered.Scope), DefaultStoreScope),
		Timeout:     time.Duration(firstPositive(explicit.TimeoutMS, discovered.TimeoutMS, int(DefaultStoreTimeout/time.Millisecond))) * time.Millisecond,
		Backoff:     time.Duration(firstPositive(explicit.BackoffMS, discovered.BackoffMS, int(DefaultStoreBackoff/time.Millisecond))) * time.Millisecond,
		PostgresDSN: strings.TrimSpace(cfg.PostgresDSN),
	}
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
