package policyengine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration: the RBAC role and
// mapping tables, the ordered ABAC policy list, and tuning knobs.
// Policy order in the document is preserved through loading; it is
// semantically significant.
type Config struct {
	Rbac     RoleConfig    `json:"rbac" yaml:"rbac"`
	Policies []*PolicyRule `json:"policies" yaml:"policies"`
	Engine   EngineConfig  `json:"engine" yaml:"engine"`
}

type EngineConfig struct {
	DecisionCacheTTL int64 `json:"decision_cache_ttl_ms" yaml:"decision_cache_ttl_ms"`
	CacheNumCounters int64 `json:"cache_num_counters" yaml:"cache_num_counters"`
	CacheMaxCost     int64 `json:"cache_max_cost" yaml:"cache_max_cost"`
	CacheBufferItems int64 `json:"cache_buffer_items" yaml:"cache_buffer_items"`
}

// ConfigLoader loads configuration from the supported formats.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Msg: "parse yaml", Err: err}
	}
	return finishLoad(cfg)
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Msg: "parse json", Err: err}
	}
	return finishLoad(cfg)
}

// LoadFile dispatches on the file extension.
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return l.LoadYAML(data)
	case ".json":
		return l.LoadJSON(data)
	default:
		return nil, &ConfigError{Msg: fmt.Sprintf("unsupported config format %q", ext)}
	}
}

// finishLoad applies the fail-fast validation: mapping patterns must
// compile and the policy list must be structurally sound. Expression
// validation is deliberately not fatal here; see ValidatePolicies.
func finishLoad(cfg *Config) (*Config, error) {
	if err := cfg.Rbac.Compile(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(cfg.Policies))
	for i, p := range cfg.Policies {
		if p.Name == "" {
			return nil, &ConfigError{Msg: fmt.Sprintf("policy %d has no name", i)}
		}
		if _, dup := seen[p.Name]; dup {
			return nil, &ConfigError{Msg: fmt.Sprintf("duplicate policy name %q", p.Name)}
		}
		seen[p.Name] = struct{}{}
		if p.Effect != EffectAllow && p.Effect != EffectDeny {
			return nil, &ConfigError{Msg: fmt.Sprintf("policy %q has effect %q, want allow or deny", p.Name, p.Effect)}
		}
	}
	return cfg, nil
}

// ValidatePolicies compiles every policy condition, caching the parsed
// form on the rule, and returns one error per rejected expression.
// Rejection does not unload the policy: at decision time a rejected
// condition simply never matches. Collaborators log these at load time
// so administrators catch typos before production evaluation.
func (c *Config) ValidatePolicies() []error {
	var errs []error
	for _, p := range c.Policies {
		if err := p.Compile(); err != nil {
			errs = append(errs, fmt.Errorf("policy %q: %w", p.Name, err))
		}
	}
	return errs
}

// ToYAML exports the configuration to YAML.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports the configuration to indented JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
