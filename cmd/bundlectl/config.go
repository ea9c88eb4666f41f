package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	appName   = "bundlectl"
	envPrefix = "BUNDLECTL"
)

// config is the effective configuration after merging flags, environment,
// and the config file, in that order of precedence.
type config struct {
	BaseURL     string   `mapstructure:"base-url" yaml:"base-url"`
	Manifest    string   `mapstructure:"manifest" yaml:"manifest,omitempty"`
	CacheDir    string   `mapstructure:"cache-dir" yaml:"cache-dir,omitempty"`
	Variants    []string `mapstructure:"variants" yaml:"variants,omitempty"`
	Password    string   `mapstructure:"password" yaml:"password,omitempty"`
	Salt        string   `mapstructure:"salt" yaml:"salt,omitempty"`
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`
	NoCacheBust bool     `mapstructure:"no-cache-bust" yaml:"no-cache-bust"`
	Verbose     bool     `mapstructure:"verbose" yaml:"verbose"`
}

// redacted returns a copy safe to print.
func (c config) redacted() config {
	if c.Password != "" {
		c.Password = "******"
	}
	return c
}

// defaultConfigFile returns $XDG_CONFIG_HOME/bundlectl/config.yaml, or "" if
// the user config directory cannot be determined.
func defaultConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName, "config.yaml")
}

// loadConfig binds flags and BUNDLECTL_* variables into v, reads the config
// file, and decodes the result. An explicit path must exist; the default
// path is optional.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet, path string) (*config, error) {
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = defaultConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if explicit || !missing {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
