package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	PlayerID       string `env:"BOT_ID" envDefault:"bot"`
	Name           string `env:"BOT_NAME" envDefault:"Challenge Bot"`
	Cash           int64  `env:"BOT_CASH" envDefault:"1000"`
	Rep            int64  `env:"BOT_REP" envDefault:"50"`
	PollMS         int    `env:"BOT_POLL_MS" envDefault:"2000"`
	CounterPercent int    `env:"BOT_COUNTER_PERCENT" envDefault:"50"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
