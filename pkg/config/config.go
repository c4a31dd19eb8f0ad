package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is the optional project config file read from the working directory
const DefaultFile = "modpack.toml"

// EnvPrefix prefixes environment overrides (e.g., MODPACK_SYSTEM_LIB=true)
const EnvPrefix = "MODPACK_"

// Config holds all configuration for the application
type Config struct {
	Manifest   string `koanf:"manifest"`
	Output     string `koanf:"output"`
	Symbol     string `koanf:"symbol"`
	SystemLib  bool   `koanf:"system-lib"`
	Format     string `koanf:"format"`
	Watch      bool   `koanf:"watch"`
	Verbosity  string `koanf:"verbosity"`
	VerboseCnt int    `koanf:"verbose"`
	JSONLog    bool   `koanf:"json-log"`
}

// Output formats
const (
	FormatC   = "c"
	FormatBin = "bin"
)

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(DefaultFile, f)
}

// LoadFile is Load with an explicit config file path
func LoadFile(path string, f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"manifest":   "modules.toml",
		"output":     "devc.c",
		"symbol":     "",
		"system-lib": false,
		"format":     FormatC,
		"watch":      false,
		"verbosity":  "",
		"verbose":    0,
		"json-log":   false,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file (optional); a missing file is not an error
	if path != "" {
		_ = k.Load(file.Provider(path), toml.Parser())
	}

	// 3. Environment variables: MODPACK_SYSTEM_LIB -> system-lib
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that koanf cannot type-check
func (c *Config) Validate() error {
	switch c.Format {
	case FormatC, FormatBin:
	default:
		return fmt.Errorf("unknown output format %q (want %q or %q)", c.Format, FormatC, FormatBin)
	}
	if c.Format == FormatBin && (c.SystemLib || c.Symbol != "") {
		return fmt.Errorf("--system-lib and --symbol only apply to the %q format", FormatC)
	}
	return nil
}

// mapProvider feeds a plain map to koanf
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
