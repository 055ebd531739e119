package agent

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the agent's YAML-loaded configuration, grounded on
// heyojules-lotus's cmd/lotus/config.go mapstructure-tagged struct pattern.
type Config struct {
	AgentID                string       `mapstructure:"agent_id"`
	Region                 string       `mapstructure:"region"`
	ControlPlane           cpConfig     `mapstructure:"control_plane"`
	PollIntervalSeconds    float64      `mapstructure:"poll_interval_seconds"`
	HeartbeatIntervalSeconds float64    `mapstructure:"heartbeat_interval_seconds"`
	ShutdownDeadlineSeconds float64     `mapstructure:"shutdown_deadline_seconds"`
}

type cpConfig struct {
	URL         string `mapstructure:"url"`
	BearerToken string `mapstructure:"bearer_token"`
}

const (
	defaultPollIntervalSeconds      = 5.0
	defaultHeartbeatIntervalSeconds = 15.0
	defaultShutdownDeadlineSeconds  = 5.0
)

// LoadConfig reads the agent's YAML config file at path and fills in
// defaults for anything unset.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("poll_interval_seconds", defaultPollIntervalSeconds)
	v.SetDefault("heartbeat_interval_seconds", defaultHeartbeatIntervalSeconds)
	v.SetDefault("shutdown_deadline_seconds", defaultShutdownDeadlineSeconds)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if cfg.AgentID == "" {
		return nil, fmt.Errorf("config %s: agent_id is required", path)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("config %s: region is required", path)
	}
	if cfg.ControlPlane.URL == "" {
		return nil, fmt.Errorf("config %s: control_plane.url is required", path)
	}
	return &cfg, nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds * float64(time.Second))
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds * float64(time.Second))
}

func (c *Config) ShutdownDeadline() time.Duration {
	return time.Duration(c.ShutdownDeadlineSeconds * float64(time.Second))
}
