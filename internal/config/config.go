// Package config loads client configuration from config.yml with
// environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings for the StudyShare client.
type Config struct {
	Server struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"server"`
	Token struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"token"`
}

// Dir returns the per-user configuration directory, honoring
// XDG_CONFIG_HOME.
func Dir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "studyshare")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "studyshare")
}

// Load reads configuration from config.yml (current directory or the
// config dir) and unmarshals it into a Config struct. Environment
// variables prefixed STUDYSHARE_ override file values, e.g.
// STUDYSHARE_SERVER_URL overrides server.url.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(Dir())

	viper.SetEnvPrefix("STUDYSHARE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.url", "http://localhost:5000/api")
	viper.SetDefault("server.timeout", 30*time.Second)
	viper.SetDefault("token.path", filepath.Join(Dir(), "token"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No config file; defaults and env are enough.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
