package config

import "github.com/caarlos0/env/v11"

type LobbyConfig struct {
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8090"`
	PlayerID   string `env:"PLAYER_ID,required,notEmpty"`
	PlayerName string `env:"PLAYER_NAME" envDefault:"Player"`
	BBSName    string `env:"BBS_NAME"`
	Cash       int64  `env:"PLAYER_CASH" envDefault:"0"`
	Rep        int64  `env:"PLAYER_REP" envDefault:"0"`
	MCPEnabled bool   `env:"MCP_ENABLED" envDefault:"true"`
}

func LoadLobby() (LobbyConfig, error) {
	var cfg LobbyConfig
	err := env.Parse(&cfg)
	return cfg, err
}

type DocstoreDevConfig struct {
	Addr string `env:"DOCSTORE_ADDR" envDefault:":10088"`
}

func LoadDocstoreDev() (DocstoreDevConfig, error) {
	var cfg DocstoreDevConfig
	err := env.Parse(&cfg)
	return cfg, err
}
