package config

type AppConfig struct {
	Log       LogConfig
	Store     StoreConfig
	Challenge ChallengeConfig
	Lobby     LobbyConfig
	Notify    NotifyConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	storeCfg, err := LoadStore()
	if err != nil {
		return AppConfig{}, err
	}
	challengeCfg, err := LoadChallenge()
	if err != nil {
		return AppConfig{}, err
	}
	lobbyCfg, err := LoadLobby()
	if err != nil {
		return AppConfig{}, err
	}
	notifyCfg, err := LoadNotify()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Log:       logCfg,
		Store:     storeCfg,
		Challenge: challengeCfg,
		Lobby:     lobbyCfg,
		Notify:    notifyCfg,
	}, nil
}
