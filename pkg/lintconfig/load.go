package lintconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the parsed lint configuration consumed by engines.
type Config struct {
	// Engine names the lint engine to run. Empty means the default.
	Engine string

	// Rules maps rule IDs to their settings. Rules absent from the map run
	// with their built-in defaults.
	Rules map[string]RuleSetting
}

// RuleSetting controls one rule.
type RuleSetting struct {
	Enabled  bool
	Severity string // "error", "warning", "info", or "" for the rule default
}

// rawConfig is the on-disk shape. Rule values are either a bool (on/off) or
// a severity string, following the usual lintrc convention.
type rawConfig struct {
	Engine string         `json:"engine" yaml:"engine" toml:"engine"`
	Rules  map[string]any `json:"rules"  yaml:"rules"  toml:"rules"`
}

// Load parses the configuration file at path. The format is chosen by
// extension: .yml/.yaml as YAML, .toml as TOML, anything else as JSON
// (.lintdrc with no extension is JSON).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw rawConfig
	switch filepath.Ext(path) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse toml config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse json config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Engine: raw.Engine,
		Rules:  make(map[string]RuleSetting, len(raw.Rules)),
	}
	for id, value := range raw.Rules {
		setting, err := normalizeRule(value)
		if err != nil {
			return nil, fmt.Errorf("config %s: rule %q: %w", path, id, err)
		}
		cfg.Rules[id] = setting
	}
	return cfg, nil
}

// Rule returns the setting for id. Unknown rules default to enabled with the
// rule's own severity.
func (c *Config) Rule(id string) RuleSetting {
	if c == nil {
		return RuleSetting{Enabled: true}
	}
	if setting, ok := c.Rules[id]; ok {
		return setting
	}
	return RuleSetting{Enabled: true}
}

func normalizeRule(value any) (RuleSetting, error) {
	switch v := value.(type) {
	case bool:
		return RuleSetting{Enabled: v}, nil
	case string:
		switch v {
		case "off":
			return RuleSetting{Enabled: false}, nil
		case "error", "warning", "info":
			return RuleSetting{Enabled: true, Severity: v}, nil
		}
		return RuleSetting{}, fmt.Errorf("unknown severity %q", v)
	default:
		return RuleSetting{}, fmt.Errorf("expected bool or severity string, got %T", value)
	}
}
