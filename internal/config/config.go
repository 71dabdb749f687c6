package config

type Config interface {
	EnvConfig
	SalesforceConfig
	SessionConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Salesforce
	Session
	Cors
}

func New() Config {
	return mainConfig{}
}
