package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // poll-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	// DSN is optional: empty disables poll history persistence.
	DSN string `yaml:"dsn"`
}

type Poll struct {
	DefaultTimeLimitSec int `yaml:"defaultTimeLimitSec"`
	MaxTimeLimitSec     int `yaml:"maxTimeLimitSec"`
}

type Chat struct {
	MaxMessageLen     int `yaml:"maxMessageLen"`
	HistoryLimit      int `yaml:"historyLimit"`
	SystemCooldownSec int `yaml:"systemCooldownSec"` // advisory hint for clients
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Poll     Poll     `yaml:"poll"`
	Chat     Chat     `yaml:"chat"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "poll-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Poll.DefaultTimeLimitSec <= 0 {
		c.Poll.DefaultTimeLimitSec = 60
	}
	if c.Poll.MaxTimeLimitSec <= 0 {
		c.Poll.MaxTimeLimitSec = 600
	}
	if c.Poll.DefaultTimeLimitSec > c.Poll.MaxTimeLimitSec {
		return errors.New("poll.defaultTimeLimitSec exceeds poll.maxTimeLimitSec")
	}
	if c.Chat.MaxMessageLen <= 0 {
		c.Chat.MaxMessageLen = 500
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = 100
	}
	if c.Chat.SystemCooldownSec < 0 {
		c.Chat.SystemCooldownSec = 0
	}
	return nil
}
