package config

type Config interface {
	EnvConfig
	PortalConfig
	SessionConfig
}

type EnvConfig interface {
	GetTelegramBotToken() string
	GetPostgresURL() string
	GetRedisURL() string
	GetCredentialKey() string
	GetLogLevel() string
	GetLogFormat() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Portal
	Session
}

func New() Config {
	return mainConfig{}
}
