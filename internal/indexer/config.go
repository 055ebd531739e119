package indexer

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the indexer's YAML-loaded configuration. ProfilesDir is parsed
// but not yet consulted: it's reserved for loading operator-supplied
// normalization profiles from disk, a feature not implemented here (see
// the profiles package's fixed built-in registry).
type Config struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	ProfilesDir string `mapstructure:"profiles_dir"`
}

const defaultListenAddr = ":8081"

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("listen_addr", defaultListenAddr)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return &cfg, nil
}
