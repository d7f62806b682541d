package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"techfeed/models"
)

var (
	ErrNoSources       = errors.New("no feed sources configured")
	ErrInvalidSource   = errors.New("invalid feed source")
	ErrInvalidLanguage = errors.New("language tagging needs at least two languages")
)

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	// Where the aggregated artifact is written
	Output string `toml:"output"`

	// Per request timeout, e.g. "60s". "0" disables the timeout
	FetchTimeout string `toml:"fetch_timeout"`

	// Skip TLS certificate verification when fetching feeds
	InsecureSkipVerify bool `toml:"insecure_skip_verify"`

	// Rebuild interval used by the serve command, e.g. "1h"
	Interval string `toml:"interval"`

	// ISO 639-1 codes for language tagging, empty disables tagging
	Languages []string `toml:"languages,omitempty"`

	// HTTP headers sent with every feed request
	Headers map[string]string `toml:"headers"`

	Sources []models.FeedSource `toml:"sources"`
}

// Config is the validated runtime configuration
type Config struct {
	Output             string
	FetchTimeout       time.Duration
	InsecureSkipVerify bool
	Interval           time.Duration
	Languages          []string
	Headers            map[string]string
	Sources            []models.FeedSource
}

// LoadConfig reads the TOML file at path. A missing file yields the
// built-in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.WithFields(log.Fields{
			"path": path,
		}).Info("Config file not found, using built-in sources")
		return fromToml(Default())
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes TOML data on top of the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	tc := Default()
	// An explicit sources list replaces the defaults instead of appending
	tc.Sources = nil
	tc.Headers = nil
	md, err := toml.Decode(string(data), tc)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if !md.IsDefined("sources") {
		tc.Sources = DefaultSources()
	}
	tc.Headers = mergeHeaders(DefaultHeaders(), tc.Headers)
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.WithFields(log.Fields{
			"keys": undecoded,
		}).Warn("Ignoring unknown config keys")
	}

	return fromToml(tc)
}

func fromToml(tc *TomlConfig) (*Config, error) {
	cfg := &Config{
		Output:             tc.Output,
		InsecureSkipVerify: tc.InsecureSkipVerify,
		Languages:          tc.Languages,
		Headers:            tc.Headers,
		Sources:            tc.Sources,
	}

	var err error
	if cfg.FetchTimeout, err = parseDuration(tc.FetchTimeout); err != nil {
		return nil, fmt.Errorf("invalid fetch_timeout: %w", err)
	}
	if cfg.Interval, err = parseDuration(tc.Interval); err != nil {
		return nil, fmt.Errorf("invalid interval: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeHeaders applies overrides on top of base. Keys are canonicalized, so
// "user-agent" replaces "User-Agent".
func mergeHeaders(base map[string]string, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(overrides))
	for key, value := range base {
		merged[http.CanonicalHeaderKey(key)] = value
	}

	// Sorted so that keys differing only in case resolve the same way every run
	keys := lo.Keys(overrides)
	sort.Strings(keys)
	for _, key := range keys {
		merged[http.CanonicalHeaderKey(key)] = overrides[key]
	}
	return merged
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Validate checks the sources and language settings
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}

	for i, src := range c.Sources {
		if src.Label == "" {
			return fmt.Errorf("%w: source %d has no label", ErrInvalidSource, i)
		}
		u, err := url.Parse(src.Url)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSource, src.Label, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s: %q is not an absolute http(s) url", ErrInvalidSource, src.Label, src.Url)
		}
	}

	if len(c.Languages) == 1 {
		return ErrInvalidLanguage
	}

	if c.Output == "" {
		c.Output = DefaultOutput
	}

	return nil
}
