package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tinytelemetry/errtop/internal/engine"
	"github.com/tinytelemetry/errtop/internal/ingest"
	"github.com/tinytelemetry/errtop/internal/model"
	"github.com/tinytelemetry/errtop/internal/ranker"
	"github.com/tinytelemetry/errtop/internal/socketrpc"
)

const (
	defaultUpdateInterval = model.DefaultUpdateInterval
	defaultTopK           = model.DefaultTopK
	defaultBatchSize      = model.DefaultBatchSize
	defaultBindHost       = "127.0.0.1"
	defaultTCPPort        = 4170
	defaultOTLPPort       = 4317
	defaultAPIPort        = 3170
	defaultMuxBufferSize  = DefaultMuxBuffer
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Format           string        `mapstructure:"format"`
	Normalize        string        `mapstructure:"normalize"`
	TopK             int           `mapstructure:"top-k"`
	BatchSize        int           `mapstructure:"batch-size"`
	Parallelism      int           `mapstructure:"parallelism"`
	CapacityStrategy string        `mapstructure:"capacity-strategy"`
	CapacityMaxKeys  int           `mapstructure:"capacity-max-keys"`
	CapacityProtect  int           `mapstructure:"capacity-protect"`
	Host             string        `mapstructure:"host"`
	TCPEnabled       bool          `mapstructure:"tcp-enabled"`
	TCPPort          int           `mapstructure:"tcp-port"`
	TCPAddr          string        `mapstructure:"tcp-addr"`
	OTLPEnabled      bool          `mapstructure:"otlp-enabled"`
	OTLPPort         int           `mapstructure:"otlp-port"`
	OTLPAddr         string        `mapstructure:"otlp-addr"`
	APIEnabled       bool          `mapstructure:"api-enabled"`
	APIPort          int           `mapstructure:"api-port"`
	APIAddr          string        `mapstructure:"api-addr"`
	SocketPath       string        `mapstructure:"socket-path"`
	UpdateInterval   time.Duration `mapstructure:"update-interval"`
	MuxBufferSize    int           `mapstructure:"mux-buffer-size"`
	ConfigPath       string        `mapstructure:"-"` // not from config file
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("ERRTOP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("format", "bracket")
	v.SetDefault("normalize", "exact")
	v.SetDefault("top-k", defaultTopK)
	v.SetDefault("batch-size", defaultBatchSize)
	v.SetDefault("parallelism", 0)
	v.SetDefault("capacity-strategy", "none")
	v.SetDefault("capacity-max-keys", 0)
	v.SetDefault("capacity-protect", 0)
	v.SetDefault("host", defaultBindHost)
	v.SetDefault("tcp-enabled", true)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("otlp-enabled", false)
	v.SetDefault("otlp-port", defaultOTLPPort)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("update-interval", defaultUpdateInterval)
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "errtop", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	if cfg.Host == "" {
		cfg.Host = defaultBindHost
	}
	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}
	if cfg.OTLPAddr == "" {
		cfg.OTLPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.OTLPPort))
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

func (c appConfig) validate() error {
	for _, p := range []struct {
		key  string
		port int
	}{
		{"tcp-port", c.TCPPort},
		{"otlp-port", c.OTLPPort},
		{"api-port", c.APIPort},
	} {
		if p.port <= 0 || p.port > 65535 {
			return fmt.Errorf("invalid %s: %d", p.key, p.port)
		}
	}
	if c.TopK < 1 {
		return fmt.Errorf("invalid top-k: %d (must be >= 1)", c.TopK)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("invalid batch-size: %d (must be >= 1)", c.BatchSize)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("invalid parallelism: %d", c.Parallelism)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("invalid update-interval: %s", c.UpdateInterval)
	}
	ec, err := c.engineConfig()
	if err != nil {
		return err
	}
	if _, err := engine.New(ec); err != nil {
		return fmt.Errorf("invalid analysis settings: %w", err)
	}
	return nil
}

// engineConfig maps the flat config keys onto engine.Config.
func (c appConfig) engineConfig() (engine.Config, error) {
	strategy, err := ranker.ParseStrategy(c.CapacityStrategy)
	if err != nil {
		return engine.Config{}, fmt.Errorf("invalid capacity-strategy: %w", err)
	}
	return engine.Config{
		Format:    c.Format,
		Normalize: c.Normalize,
		Policy: ranker.Policy{
			Strategy: strategy,
			MaxKeys:  c.CapacityMaxKeys,
			Protect:  c.CapacityProtect,
		},
		Ingest: ingest.Options{
			BatchSize:   c.BatchSize,
			Parallelism: c.Parallelism,
		},
	}, nil
}
