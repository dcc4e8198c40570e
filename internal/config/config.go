package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL string

	StartBlock         uint64
	EndBlock           uint64
	BatchSize          uint64
	Confirmations      uint64
	Checkpoint         string
	CheckpointEnabled  bool
	CheckpointInterval uint64
	PollInterval       time.Duration
	ExtractRawLogs     bool

	Concurrency    int
	RequestSpacing time.Duration
	CallTimeout    time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration

	Sink        string
	Out         string
	PostgresDSN string

	Protocols []string

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHAINSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", uint64(10))
	v.SetDefault("confirmations", uint64(5))
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("checkpoint-interval", uint64(100))
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("concurrency", 20)
	v.SetDefault("request-spacing", 10*time.Millisecond)
	v.SetDefault("call-timeout", 30*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("sink", "jsonl")
	v.SetDefault("out", "./data/points.jsonl")
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
		RPCURL:             v.GetString("rpc"),
		StartBlock:         v.GetUint64("start-block"),
		EndBlock:           v.GetUint64("end-block"),
		BatchSize:          v.GetUint64("batch-size"),
		Confirmations:      v.GetUint64("confirmations"),
		Checkpoint:         v.GetString("checkpoint"),
		CheckpointEnabled:  v.GetBool("checkpoint-enabled"),
		CheckpointInterval: v.GetUint64("checkpoint-interval"),
		PollInterval:       v.GetDuration("poll-interval"),
		ExtractRawLogs:     v.GetBool("extract-logs"),
		Concurrency:        v.GetInt("concurrency"),
		RequestSpacing:     v.GetDuration("request-spacing"),
		CallTimeout:        v.GetDuration("call-timeout"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		Sink:               v.GetString("sink"),
		Out:                v.GetString("out"),
		PostgresDSN:        v.GetString("pg-dsn"),
		Protocols:          getStringSlice(v, "protocol"),
		LogLevel:           v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the values every command needs before dialing anything.
// Commands that talk to a node additionally require RPCURL.
func (c Config) Validate() error {
	if c.BatchSize == 0 {
		return fmt.Errorf("batch-size must be greater than zero")
	}
	if c.EndBlock > 0 && c.EndBlock < c.StartBlock {
		return fmt.Errorf("end-block must be >= start-block")
	}
	switch c.Sink {
	case "jsonl":
		if c.Out == "" {
			return fmt.Errorf("out path is required for the jsonl sink")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres sink")
		}
	default:
		return fmt.Errorf("unknown sink %q (want jsonl or postgres)", c.Sink)
	}
	return nil
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
