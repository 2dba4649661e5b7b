package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Tempiro          TempiroConfig
	Prices           PriceConfig
	Mqtt             MqttConfig
	DatabaseURL      string        `env:"DATABASE_URL"`
	MigrationsFolder string        `env:"MIGRATIONS_FOLDER" envDefault:"migrations"`
	ListenAddr       string        `env:"LISTEN_ADDR" envDefault:"0.0.0.0:8000"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"INFO"`
	SyncInterval     time.Duration `env:"SYNC_INTERVAL" envDefault:"1h"`
}

type TempiroConfig struct {
	BaseURL  string `env:"TEMPIRO_BASE_URL" envDefault:"https://rest.tempiro.com"`
	Username string `env:"TEMPIRO_USERNAME"`
	Password string `env:"TEMPIRO_PASSWORD"`
}

// PriceConfig points at the public spot-price feed. Area is a bidding-zone
// code used verbatim as the join/filter key everywhere.
type PriceConfig struct {
	BaseURL string `env:"PRICE_FEED_URL" envDefault:"https://www.elprisetjustnu.se"`
	Area    string `env:"PRICE_AREA" envDefault:"SE3"`
}

// MqttConfig is optional; an empty Host disables Home Assistant publishing.
type MqttConfig struct {
	Host     string `env:"MQTT_HOST"`
	Username string `env:"MQTT_USER"`
	Password string `env:"MQTT_PASS"`
}

// FromEnv builds the configuration from the environment.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database url is required")
	}
	if c.Tempiro.Username == "" || c.Tempiro.Password == "" {
		return errors.New("tempiro credentials are required")
	}
	return nil
}
