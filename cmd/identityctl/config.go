package main

import (
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/repository"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the identityctl configuration, read from identity.yaml,
// IDENTITY_* environment variables and flags, in increasing precedence.
type Config struct {
	identity.Options `mapstructure:",squash"`
	Database         DatabaseConfig `mapstructure:"database"`
	Log              LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// every key needs a default so AutomaticEnv picks it up on Unmarshal
var configDefaults = map[string]any{
	"signing_key":              "",
	"issuer":                   "identityctl",
	"audience":                 []string{},
	"session_token_expiration": time.Duration(0),
	"email_token_expiration":   time.Duration(0),
	"store_timeout":            identity.DefaultStoreTimeout,
	"hash_cost":                identity.DefaultHashCost,
	"database.driver":          repository.DriverSQLite,
	"database.dsn":             "./identity.db",
	"log.level":                "info",
	"log.development":          false,
}

// flag name to config key
var flagKeys = map[string]string{
	"signing-key":     "signing_key",
	"database-driver": "database.driver",
	"database-dsn":    "database.dsn",
	"log-level":       "log.level",
}

func LoadConfig(cmd *cobra.Command, configFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("identity")
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, err
		}
	}

	v.SetEnvPrefix("identity")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return c, err
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}
