package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ChallengeConfig struct {
	TTLMS              int    `env:"CHALLENGE_TTL_MS" envDefault:"300000"`
	LobbyStaleMS       int    `env:"LOBBY_STALE_MS" envDefault:"90000"`
	PresenceStaleMS    int    `env:"PRESENCE_STALE_MS" envDefault:"90000"`
	PresenceIntervalMS int    `env:"PRESENCE_INTERVAL_MS" envDefault:"30000"`
	ExpiryPolicy       string `env:"CHALLENGE_EXPIRY_POLICY" envDefault:"keep"`
	WaitTickMS         int    `env:"LOBBY_WAIT_TICK_MS" envDefault:"1200"`
}

func LoadChallenge() (ChallengeConfig, error) {
	var cfg ChallengeConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func (c ChallengeConfig) TTL() time.Duration { return ms(c.TTLMS, 5*time.Minute) }

func (c ChallengeConfig) LobbyStale() time.Duration { return ms(c.LobbyStaleMS, 90*time.Second) }

func (c ChallengeConfig) PresenceStale() time.Duration {
	return ms(c.PresenceStaleMS, 90*time.Second)
}

func (c ChallengeConfig) PresenceInterval() time.Duration {
	return ms(c.PresenceIntervalMS, 30*time.Second)
}

func (c ChallengeConfig) WaitTick() time.Duration { return ms(c.WaitTickMS, 1200*time.Millisecond) }

func ms(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}
