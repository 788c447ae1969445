// Package config loads the run configuration by layering defaults, an
// optional YAML file and CHAINRANK_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrConfig marks configuration problems that must abort the run before any
// network activity.
var ErrConfig = errors.New("invalid configuration")

// Config is the full run configuration.
type Config struct {
	Sources  []string `koanf:"sources"`   // registered source names to aggregate
	Metric   string   `koanf:"metric"`    // primary ranking metric
	Additive []string `koanf:"additive"`  // metrics summed across sub-entities
	Limit    int      `koanf:"limit"`     // leaderboard size
	Interval string   `koanf:"interval"`  // 24h, 7d or 30d
	Timezone string   `koanf:"timezone"`  // IANA zone for caption timestamps

	Template string `koanf:"template"` // layout template YAML, "" for built-in

	Caption CaptionConfig `koanf:"caption"`

	AssetBase string `koanf:"asset_base"` // base URL for root-relative logo refs
}

// CaptionConfig configures the caption template.
type CaptionConfig struct {
	Title        string `koanf:"title"`
	Subtitle     string `koanf:"subtitle"`
	SourceCredit string `koanf:"source_credit"`
	Hashtags     string `koanf:"hashtags"`
	Handle       string `koanf:"handle"`
	MetricLabel  string `koanf:"metric_label"`
	MetricPrefix string `koanf:"metric_prefix"`
	ChangeMetric string `koanf:"change_metric"`
	ShowMetric   bool   `koanf:"show_metric"`
}

// Defaults mirrors the standard DappBay active-users run.
func Defaults() *Config {
	return &Config{
		Sources:  []string{"dappbay"},
		Metric:   "users",
		Additive: []string{"fees", "volume"},
		Limit:    10,
		Interval: "7d",
		Timezone: "UTC",
		Caption: CaptionConfig{
			Title:        "TOP BNBCHAIN DAPPS",
			Subtitle:     "Top @BNBCHAIN Ecosystem Projects by Active Users ({interval})",
			SourceCredit: "DappBay & @ChainMindX",
			Hashtags:     "#BNBChain #Dapps #ChainMind",
			Handle:       "@ChainMindX",
			MetricLabel:  "Users",
			ChangeMetric: "change",
		},
		AssetBase: "https://dappbay.bnbchain.org",
	}
}

// Load builds a Config by layering defaults, an optional file and env vars.
// Order of precedence (low -> high):
//  1. Defaults()
//  2. file (YAML) when path is non-empty
//  3. env (prefix CHAINRANK_, underscores map to nesting dots)
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: config file %s: %v", ErrConfig, path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}

	// CHAINRANK_METRIC -> metric, CHAINRANK_CAPTION__TITLE -> caption.title.
	envProvider := env.Provider("CHAINRANK_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "CHAINRANK_"))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the invariants the pipeline depends on.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no sources configured", ErrConfig)
	}
	if c.Metric == "" {
		return fmt.Errorf("%w: metric must not be empty", ErrConfig)
	}
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrConfig, c.Limit)
	}
	switch c.Interval {
	case "24h", "7d", "30d":
	default:
		return fmt.Errorf("%w: interval must be 24h, 7d or 30d, got %q", ErrConfig, c.Interval)
	}
	return nil
}
