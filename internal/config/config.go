package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Dataset describes the table to load and how to interpret it.
type Dataset struct {
	// Source is a local file path or http(s) URL to a CSV table.
	Source string `mapstructure:"source"`
	// TargetColumn is the boolean outcome column the overview endpoint
	// reports a rate for.
	TargetColumn string `mapstructure:"target_column"`
	// BoolColumns lists 0/1 integer columns to load as booleans.
	BoolColumns []string `mapstructure:"bool_columns"`
	// CategoricalColumns lists columns to force into categories.
	CategoricalColumns []string `mapstructure:"categorical_columns"`
	// LoadTimeoutSec bounds the background fetch of a remote source.
	LoadTimeoutSec int `mapstructure:"load_timeout_sec"`
}

type Config struct {
	ListenAddr string  `mapstructure:"listen_addr"`
	LogLevel   string  `mapstructure:"log_level"`
	Dataset    Dataset `mapstructure:"dataset"`
}

// Load reads configuration with precedence env > config file > defaults.
// cfgFile is optional; without it a config.yaml in the working directory is
// picked up when present.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DASHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("dataset.source", "https://raw.githubusercontent.com/tishsrisasi/my-first-project/refs/heads/main/divorce_df.csv")
	v.SetDefault("dataset.target_column", "divorced")
	v.SetDefault("dataset.bool_columns", []string{"divorced", "infidelity_occurred"})
	v.SetDefault("dataset.categorical_columns", []string{})
	v.SetDefault("dataset.load_timeout_sec", 60)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config")
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &c, nil
}
