package config

import (
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Backend    BackendConfig
	HTTP       HTTPConfig
	Collection CollectionConfig
}

type BackendConfig struct {
	BaseURL   string
	StaticURL string
}

type HTTPConfig struct {
	TimeoutSeconds int
}

type CollectionConfig struct {
	Default string
}

func defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:5001",
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 120,
		},
	}
}

// Timeout returns the configured HTTP timeout as a duration. Zero disables
// the client-side deadline.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Load reads configuration from a JSON file at $XDG_CONFIG_HOME/mmx/config.json,
// with MMX_* environment variables overriding file values. A .env file in the
// working directory is loaded first if present.
func Load() (Config, error) {
	godotenv.Load()
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
