package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`

	// Hub server.
	Port      int `mapstructure:"port"`
	RateLimit int `mapstructure:"rate_limit"`

	// Peer.
	HubURL         string        `mapstructure:"hub_url"`
	ListenAddr     string        `mapstructure:"listen_addr"`
	DisplayName    string        `mapstructure:"display_name"`
	SessionName    string        `mapstructure:"session_name"`
	MaxMembers     int           `mapstructure:"max_members"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Load reads config/config.<env>.yaml, layered under env vars and any CLI
// flags bound via flags. Missing files fall back to defaults.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8090)
	v.SetDefault("rate_limit", 30)
	v.SetDefault("hub_url", "http://localhost:8090")
	v.SetDefault("listen_addr", "127.0.0.1:0")
	v.SetDefault("display_name", "guest")
	v.SetDefault("session_name", "playroom")
	v.SetDefault("max_members", 4)
	v.SetDefault("connect_timeout", "10s")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err == nil {
		fmt.Printf("loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
