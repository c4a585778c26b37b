package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/warren/pkg/buildgraph"
)

// Default locations under the workspace, used when warren.yml leaves the
// corresponding field empty.
const (
	DefaultArtifactRoot = ".warren/out"
	DefaultStateFile    = ".warren/fingerprints.json"
	DefaultCacheDir     = ".warren/cache"
	DefaultGenLabel     = "gen"
)

// WarrenConfig represents the top-level warren.yml configuration
type WarrenConfig struct {
	Version      string                    `yaml:"version"`
	ArtifactRoot string                    `yaml:"artifact_root,omitempty"` // Default: .warren/out
	StateFile    string                    `yaml:"state_file,omitempty"`    // Default: .warren/fingerprints.json
	Cache        *CacheConfig              `yaml:"cache,omitempty"`
	Generate     *GenerateConfig           `yaml:"generate,omitempty"`
	Languages    map[string]LanguageConfig `yaml:"languages"`
	Targets      map[string]TargetConfig   `yaml:"targets"`
}

// CacheConfig specifies the artifact cache backend
type CacheConfig struct {
	Enabled *bool        `yaml:"enabled,omitempty"` // Default: true
	Write   *bool        `yaml:"write,omitempty"`   // Default: true
	Backend string       `yaml:"backend,omitempty"` // "local" or "redis", default: local
	Local   *LocalCache  `yaml:"local,omitempty"`
	Redis   *RedisConfig `yaml:"redis,omitempty"` // Required if backend="redis"
}

// LocalCache specifies the on-disk cache location
type LocalCache struct {
	Dir string `yaml:"dir,omitempty"` // Default: .warren/cache
}

// RedisConfig specifies the shared Redis cache connection
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace,omitempty"` // Default: "default"
}

// GenerateConfig specifies orchestration behavior
type GenerateConfig struct {
	Label string   `yaml:"label,omitempty"` // Label marking generation sources, default: gen
	Force []string `yaml:"force,omitempty"` // Languages generated for every in-scope source
}

// LanguageConfig represents a single output language definition
type LanguageConfig struct {
	Consumers []string `yaml:"consumers,omitempty"` // Labels marking consumers of this language
	Command   []string `yaml:"command"`             // Required: generator argv template
	Outputs   []string `yaml:"outputs"`             // Required: declared output path templates
}

// TargetConfig represents a single build target definition
type TargetConfig struct {
	Sources []string `yaml:"sources,omitempty"`
	Deps    []string `yaml:"deps,omitempty"`
	Labels  []string `yaml:"labels,omitempty"`
}

// Validate performs strict validation on the configuration and applies
// defaults in place
func (c *WarrenConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.ArtifactRoot == "" {
		c.ArtifactRoot = DefaultArtifactRoot
	}
	if c.StateFile == "" {
		c.StateFile = DefaultStateFile
	}

	// Required: at least one language
	if len(c.Languages) == 0 {
		return fmt.Errorf("no languages defined")
	}
	for name, lang := range c.Languages {
		if err := lang.Validate(name); err != nil {
			return err
		}
	}

	if c.Cache == nil {
		c.Cache = &CacheConfig{}
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}

	if c.Generate == nil {
		c.Generate = &GenerateConfig{}
	}
	if c.Generate.Label == "" {
		c.Generate.Label = DefaultGenLabel
	}
	for _, forced := range c.Generate.Force {
		if _, ok := c.Languages[forced]; !ok {
			return fmt.Errorf("generate.force names unknown language: %s", forced)
		}
	}

	// Validate target references
	for name, target := range c.Targets {
		if name == "" {
			return fmt.Errorf("target with empty name")
		}
		for _, dep := range target.Deps {
			if _, ok := c.Targets[dep]; !ok {
				return fmt.Errorf("target '%s': unknown dependency: %s", name, dep)
			}
		}
	}

	return nil
}

// Validate performs validation on a single language definition
func (l *LanguageConfig) Validate(name string) error {
	if name == "" {
		return fmt.Errorf("language with empty name")
	}
	if len(l.Command) == 0 {
		return fmt.Errorf("language '%s': command is required", name)
	}
	if len(l.Outputs) == 0 {
		return fmt.Errorf("language '%s': outputs is required", name)
	}
	return nil
}

// Validate applies cache defaults and checks the backend selection
func (cc *CacheConfig) Validate() error {
	if cc.Enabled == nil {
		enabled := true
		cc.Enabled = &enabled
	}
	if cc.Write == nil {
		write := true
		cc.Write = &write
	}

	switch cc.Backend {
	case "":
		cc.Backend = "local"
	case "local", "redis":
	default:
		return fmt.Errorf("invalid cache backend: %s (must be 'local' or 'redis')", cc.Backend)
	}

	if cc.Backend == "local" {
		if cc.Local == nil {
			cc.Local = &LocalCache{}
		}
		if cc.Local.Dir == "" {
			cc.Local.Dir = DefaultCacheDir
		}
	}

	if cc.Backend == "redis" {
		if cc.Redis == nil || cc.Redis.Addr == "" {
			return fmt.Errorf("cache backend 'redis' requires redis.addr")
		}
		if cc.Redis.Namespace == "" {
			cc.Redis.Namespace = "default"
		}
	}

	return nil
}

// BuildGraph constructs the build graph from the configured targets.
// Targets are added in name order, then edges are wired, so declaration
// order in warren.yml never matters.
func (c *WarrenConfig) BuildGraph() (*buildgraph.Graph, error) {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	g := buildgraph.NewGraph()
	for _, name := range names {
		t := buildgraph.NewTarget(name, c.Targets[name].Sources...)
		for _, label := range c.Targets[name].Labels {
			t.AddLabel(label)
		}
		if err := g.AddTarget(t); err != nil {
			return nil, err
		}
	}
	for _, name := range names {
		t, _ := g.Target(name)
		for _, dep := range c.Targets[name].Deps {
			depTarget, ok := g.Target(dep)
			if !ok {
				return nil, fmt.Errorf("target '%s': unknown dependency: %s", name, dep)
			}
			t.AddDependency(depTarget)
		}
	}
	return g, nil
}

// Load reads and validates warren.yml from the specified path
func Load(path string) (*WarrenConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config WarrenConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
