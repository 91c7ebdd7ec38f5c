package swrcache

import (
	"fmt"
	"os"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML configuration shape. Durations are strings so
// operators can write "90s" or "2h30m". Call and Value policies are code
// constructs and have no file representation.
type fileConfig struct {
	StoreTTL    string   `yaml:"store_ttl"`
	StaleTTL    string   `yaml:"stale_ttl"`
	RefreshOn   []string `yaml:"refresh_on"`
	Tags        []string `yaml:"tags"`
	ThunderHerd struct {
		Enabled   bool   `yaml:"enabled"`
		MaxWait   string `yaml:"max_wait"`
		LockTTL   string `yaml:"lock_ttl"`
		OnTimeout string `yaml:"on_timeout"`
	} `yaml:"thunder_herd"`
	Fallback struct {
		OnError string `yaml:"on_error"`
	} `yaml:"fallback"`
}

// ParseConfig decodes a YAML document into a validated Config.
func ParseConfig[V any](data []byte) (Config[V], error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config[V]{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}

	var (
		cfg Config[V]
		err error
	)
	if cfg.StoreTTL, err = parseDuration("store_ttl", fc.StoreTTL); err != nil {
		return Config[V]{}, err
	}
	if cfg.StaleTTL, err = parseDuration("stale_ttl", fc.StaleTTL); err != nil {
		return Config[V]{}, err
	}
	for _, trigger := range fc.RefreshOn {
		cfg.RefreshOn = append(cfg.RefreshOn, Trigger(trigger))
	}
	cfg.Tags = fc.Tags

	cfg.ThunderHerd.Enabled = fc.ThunderHerd.Enabled
	if cfg.ThunderHerd.MaxWait, err = parseDuration("thunder_herd.max_wait", fc.ThunderHerd.MaxWait); err != nil {
		return Config[V]{}, err
	}
	if cfg.ThunderHerd.LockTTL, err = parseDuration("thunder_herd.lock_ttl", fc.ThunderHerd.LockTTL); err != nil {
		return Config[V]{}, err
	}
	if cfg.ThunderHerd.OnTimeout, err = parsePolicy[V]("thunder_herd.on_timeout", fc.ThunderHerd.OnTimeout, true); err != nil {
		return Config[V]{}, err
	}
	if cfg.Fallback.OnError, err = parsePolicy[V]("fallback.on_error", fc.Fallback.OnError, false); err != nil {
		return Config[V]{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config[V]{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig[V any](path string) (Config[V], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config[V]{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return ParseConfig[V](data)
}

func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := str2duration.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, err)
	}
	return d, nil
}

func parsePolicy[V any](field, raw string, allowProceed bool) (Policy[V], error) {
	switch raw {
	case "", "propagate", "error":
		return Propagate[V](), nil
	case "serve-stale", "serve_stale":
		return ServeStale[V](), nil
	case "proceed":
		if !allowProceed {
			return Policy[V]{}, fmt.Errorf("%w: %s: proceed applies only to wait timeouts", ErrInvalidConfig, field)
		}
		return Proceed[V](), nil
	default:
		return Policy[V]{}, fmt.Errorf("%w: %s: unknown policy %q", ErrInvalidConfig, field, raw)
	}
}
