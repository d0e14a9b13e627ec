package config

import (
	"time"

	"semkb/internal/mangle"
)

// MangleConfig configures the Mangle rule sources and how their symbols
// become IRIs.
type MangleConfig struct {
	RulePaths     []string          `yaml:"rule_paths"`
	BaseIRI       string            `yaml:"base_iri"`
	Prefixes      map[string]string `yaml:"prefixes"`
	Aliases       map[string]string `yaml:"aliases"`
	WatchDebounce string            `yaml:"watch_debounce"`
}

func defaultMangleConfig() MangleConfig {
	rc := mangle.DefaultConfig()
	return MangleConfig{
		BaseIRI:       rc.BaseIRI,
		Prefixes:      rc.Prefixes,
		Aliases:       rc.Aliases,
		WatchDebounce: "500ms",
	}
}

// RuleConfig maps the mangle section onto the rule loader configuration.
// Prefixes and aliases extend the built-in ones. The ex prefix follows
// BaseIRI unless it was set to some other namespace, so /ex/a and a name
// the same IRI.
func (c *Config) RuleConfig() mangle.Config {
	rc := mangle.DefaultConfig()
	builtinBase := rc.BaseIRI
	rc.BaseIRI = c.Mangle.BaseIRI
	for k, v := range c.Mangle.Prefixes {
		rc.Prefixes[k] = v
	}
	if ex, ok := c.Mangle.Prefixes["ex"]; !ok || ex == builtinBase {
		rc.Prefixes["ex"] = rc.BaseIRI
	}
	for k, v := range c.Mangle.Aliases {
		rc.Aliases[k] = v
	}
	return rc
}

// GetWatchDebounce returns the rule watcher debounce as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Mangle.WatchDebounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}
