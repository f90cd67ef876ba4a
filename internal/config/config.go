package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/guilherme-santos/calfed/internal/accountconfig"
)

const envPrefix = "CALFED"

type Runtime struct {
	ConfigFile string

	DBPath                  string
	RetryAfter              time.Duration
	AutoRemoveUnknownShares bool
	FreeBusyWorkers         int
	CapabilityCacheTTL      time.Duration
	GoogleCredentials       string

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment, then from the yaml file
// named by CALFED_CONFIG_FILE. The environment wins.
func Load() (Runtime, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("db_path", "calfed.db")
	v.SetDefault("retry_after", accountconfig.DefaultRetryAfter)
	v.SetDefault("auto_remove_unknown_shares", true)
	v.SetDefault("freebusy_workers", 4)
	v.SetDefault("capability_cache_ttl", 5*time.Minute)
	v.SetDefault("google_credentials", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	configFile := strings.TrimSpace(os.Getenv(envPrefix + "_CONFIG_FILE"))
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Runtime{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	workers := v.GetInt("freebusy_workers")
	if workers < 0 {
		workers = 0
	}

	ttl := v.GetDuration("capability_cache_ttl")
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	dbPath := strings.TrimSpace(v.GetString("db_path"))
	if dbPath == "" {
		dbPath = "calfed.db"
	}

	format := strings.ToLower(strings.TrimSpace(v.GetString("log_format")))
	switch format {
	case "text", "json":
	default:
		return Runtime{}, fmt.Errorf("invalid log format %q", format)
	}

	return Runtime{
		ConfigFile:              configFile,
		DBPath:                  dbPath,
		RetryAfter:              accountconfig.ClampRetryAfter(v.GetDuration("retry_after")),
		AutoRemoveUnknownShares: v.GetBool("auto_remove_unknown_shares"),
		FreeBusyWorkers:         workers,
		CapabilityCacheTTL:      ttl,
		GoogleCredentials:       strings.TrimSpace(v.GetString("google_credentials")),
		LogLevel:                v.GetString("log_level"),
		LogFormat:               format,
	}, nil
}
