// Package config resolves the engine's runtime configuration from
// compiled-in defaults, an optional YAML file, and command-line flags, in
// that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds everything the server and CLI entry points need to start.
type Config struct {
	SocketPath  string
	PurgePeriod time.Duration
	ConfigFile  string
	LogLevel    string
}

// fileConfig is the YAML-shaped view of Config: purge_period is written in
// plain seconds, since yaml.v3 has no built-in time.Duration support. The
// --pp flag, by contrast, takes a Go duration string such as "20s"; a bare
// number of seconds is not accepted there.
type fileConfig struct {
	SocketPath  *string `yaml:"socket"`
	PurgePeriod *int64  `yaml:"purge_period"`
	LogLevel    *string `yaml:"log_level"`
}

// Default returns the compiled-in defaults from spec.md §6: socket path
// "./ttdb_socket", purge period 20 seconds.
func Default() Config {
	return Config{
		SocketPath:  "./ttdb_socket",
		PurgePeriod: 20 * time.Second,
		LogLevel:    "info",
	}
}

// Bind registers c's flags on flags, following the pack's convention of a
// Config type owning its own flag registration.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.SocketPath, "socket", c.SocketPath, "location of the Unix socket to listen on")
	flags.DurationVar(&c.PurgePeriod, "pp", c.PurgePeriod, "minimum time to wait before purging outdated entries")
	flags.StringVar(&c.ConfigFile, "config", c.ConfigFile, "optional YAML file of configuration overrides")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "logrus level: debug, info, warn, error")
}

// Load resolves a Config from defaults, an optional YAML file (loaded
// first so flags can still override it), and flags parsed from args.
func Load(args []string) (Config, error) {
	cfg := Default()

	// A first, silent pass just to discover --config before the real
	// parse, since the file must be applied before flag values win.
	probe := pflag.NewFlagSet("ttdbd-probe", pflag.ContinueOnError)
	probe.ParseErrorsWhitelist.UnknownFlags = true
	probe.Usage = func() {}
	probeCfg := cfg
	probe.StringVar(&probeCfg.ConfigFile, "config", "", "")
	_ = probe.Parse(args)

	if probeCfg.ConfigFile != "" {
		if err := applyFile(&cfg, probeCfg.ConfigFile); err != nil {
			return Config{}, err
		}
		cfg.ConfigFile = probeCfg.ConfigFile
	}

	flags := pflag.NewFlagSet("ttdbd", pflag.ContinueOnError)
	cfg.Bind(flags)
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Preflight(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if fc.SocketPath != nil {
		cfg.SocketPath = *fc.SocketPath
	}
	if fc.PurgePeriod != nil {
		cfg.PurgePeriod = time.Duration(*fc.PurgePeriod) * time.Second
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	return nil
}

// Preflight validates c after every source has been applied.
func (c *Config) Preflight() error {
	if c.SocketPath == "" {
		return fmt.Errorf("config: socket path must not be empty")
	}
	if c.PurgePeriod <= 0 {
		return fmt.Errorf("config: purge period must be positive, got %s", c.PurgePeriod)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unrecognized log level %q", c.LogLevel)
	}
	return nil
}
