package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type WS struct {
	PingInterval    string `yaml:"pingInterval"`    // e.g. "15s"
	MaxMessageBytes int64  `yaml:"maxMessageBytes"` // read limit per frame
}

type Rooms struct {
	// MaxParticipants bounds non-appointment rooms; 0 means unbounded.
	// Appointment rooms are always capped at 2.
	MaxParticipants int `yaml:"maxParticipants"`
}

type Records struct {
	// BaseURL of the external record-keeping service; empty disables the
	// summary hand-off.
	BaseURL string `yaml:"baseURL"`
	Timeout string `yaml:"timeout"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // signaling-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	WS      WS      `yaml:"ws"`
	Rooms   Rooms   `yaml:"rooms"`
	Records Records `yaml:"records"`
	Logging Logging `yaml:"logging"`
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
	if c.Rooms.MaxParticipants < 0 {
		return errors.New("rooms.maxParticipants must be >= 0")
	}
	// defaults for anything not set
	if c.Logging.Service == "" {
		c.Logging.Service = "signaling-service"
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
	return nil
}

func (c *Config) WSPingInterval() time.Duration {
	return parseDurationOr(15*time.Second, c.WS.PingInterval)
}

func (c *Config) RecordsTimeout() time.Duration {
	return parseDurationOr(10*time.Second, c.Records.Timeout)
}

// helper for parsing timeouts
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
