package controlplane

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the control plane's YAML-loaded configuration.
type Config struct {
	ListenAddr            string  `mapstructure:"listen_addr"`
	DBPath                string  `mapstructure:"db_path"`
	BearerToken           string  `mapstructure:"bearer_token"`
	AgentStaleAfterSeconds float64 `mapstructure:"agent_stale_after_seconds"`
	LivenessSweepSeconds   float64 `mapstructure:"liveness_sweep_seconds"`
}

const (
	defaultListenAddr             = ":8080"
	defaultAgentStaleAfterSeconds = 30.0
	defaultLivenessSweepSeconds   = 10.0
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("listen_addr", defaultListenAddr)
	v.SetDefault("agent_stale_after_seconds", defaultAgentStaleAfterSeconds)
	v.SetDefault("liveness_sweep_seconds", defaultLivenessSweepSeconds)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) AgentStaleAfter() time.Duration {
	return time.Duration(c.AgentStaleAfterSeconds * float64(time.Second))
}

func (c *Config) LivenessSweepInterval() time.Duration {
	return time.Duration(c.LivenessSweepSeconds * float64(time.Second))
}
