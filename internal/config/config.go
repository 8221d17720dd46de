package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default derivation tunables. The probe amount and the two cache windows are
// named here rather than inferred per call site.
const (
	DefaultProbeAmount  = 1000.0
	DefaultFreshWindow  = 30 * time.Second
	DefaultExpireWindow = 60 * time.Second
	DefaultAPRWindow    = 24 * time.Hour
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	QuoterAddress   string
	RegistryAddress string
	RouteFinderURL  string
	IndexerURL      string
	PGDSN           string
	Out             string
	Pairs           []string
	ProbeAmount     float64
	FreshWindow     time.Duration
	ExpireWindow    time.Duration
	APRWindow       time.Duration
	PollInterval    time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICING")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("out", "./data/price_points.jsonl")
	v.SetDefault("probe-amount", DefaultProbeAmount)
	v.SetDefault("fresh-window", DefaultFreshWindow)
	v.SetDefault("expire-window", DefaultExpireWindow)
	v.SetDefault("apr-window", DefaultAPRWindow)
	v.SetDefault("poll-interval", time.Minute)
	v.SetDefault("max-retries", 2)
	v.SetDefault("retry-backoff", time.Second)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		QuoterAddress:   v.GetString("quoter"),
		RegistryAddress: v.GetString("registry"),
		RouteFinderURL:  v.GetString("route-finder"),
		IndexerURL:      v.GetString("indexer"),
		PGDSN:           v.GetString("pg-dsn"),
		Out:             v.GetString("out"),
		Pairs:           getStringSlice(v, "pair"),
		ProbeAmount:     v.GetFloat64("probe-amount"),
		FreshWindow:     v.GetDuration("fresh-window"),
		ExpireWindow:    v.GetDuration("expire-window"),
		APRWindow:       v.GetDuration("apr-window"),
		PollInterval:    v.GetDuration("poll-interval"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
