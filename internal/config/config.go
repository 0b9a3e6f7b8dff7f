package config

import (
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	SessionConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetAPIBaseURL() string
	GetDataFolder() string
}

type mainConfig struct {
	EnvVars
	Session
	Storage
}

// New loads any .env files present in the working directory and returns the
// environment backed configuration.
func New(envFiles ...string) Config {
	// A missing .env file is not an error, the process environment still applies.
	_ = godotenv.Load(envFiles...)
	return mainConfig{}
}
