package config

type Config interface {
	EnvConfig
	CorsConfig
	GoogleConfig
	PortalConfig
	AIConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Google
	Portal
	AI
}

func New() Config {
	return mainConfig{}
}
