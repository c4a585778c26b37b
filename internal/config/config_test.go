package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *WarrenConfig {
	return &WarrenConfig{
		Version: "1.0",
		Languages: map[string]LanguageConfig{
			"java": {
				Consumers: []string{"wants-java"},
				Command:   []string{"thriftgen", "--lang", "{lang}", "-o", "{out_dir}", "{sources}"},
				Outputs:   []string{"{out_dir}/{target}.java"},
			},
		},
		Targets: map[string]TargetConfig{
			"thrift:base": {Sources: []string{"idl/base.thrift"}, Labels: []string{"gen"}},
			"thrift:api":  {Sources: []string{"idl/api.thrift"}, Deps: []string{"thrift:base"}, Labels: []string{"gen"}},
			"lib:users":   {Sources: []string{"src/users.java"}, Deps: []string{"thrift:api"}, Labels: []string{"wants-java"}},
		},
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	// Create temporary directory
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "warren.yml")

	// Write valid config
	validYAML := `version: "1.0"
languages:
  java:
    consumers: ["wants-java"]
    command: ["thriftgen", "--lang", "{lang}", "-o", "{out_dir}", "{sources}"]
    outputs: ["{out_dir}/{target}.java"]
targets:
  "thrift:base":
    sources: ["idl/base.thrift"]
    labels: ["gen"]
  "lib:users":
    sources: ["src/users.java"]
    deps: ["thrift:base"]
    labels: ["wants-java"]
`
	err := os.WriteFile(configPath, []byte(validYAML), 0644)
	require.NoError(t, err)

	// Load and validate
	config, err := Load(configPath)
	require.NoError(t, err)
	assert.NotNil(t, config)
	assert.Equal(t, "1.0", config.Version)
	assert.Len(t, config.Languages, 1)
	assert.Equal(t, []string{"wants-java"}, config.Languages["java"].Consumers)
	assert.Len(t, config.Targets, 2)
	assert.Equal(t, []string{"thrift:base"}, config.Targets["lib:users"].Deps)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/warren.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "warren.yml")

	// Write invalid YAML
	invalidYAML := `version: "1.0"
languages:
  - this is invalid
    yaml syntax
`
	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	config := validConfig()
	config.Version = "2.0"

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version: 2.0")
}

func TestValidate_NoLanguages(t *testing.T) {
	config := validConfig()
	config.Languages = nil

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no languages defined")
}

func TestValidate_LanguageMissingCommand(t *testing.T) {
	config := validConfig()
	config.Languages["java"] = LanguageConfig{
		Consumers: []string{"wants-java"},
		Outputs:   []string{"{out_dir}/{target}.java"},
	}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")
}

func TestValidate_LanguageMissingOutputs(t *testing.T) {
	config := validConfig()
	config.Languages["java"] = LanguageConfig{
		Consumers: []string{"wants-java"},
		Command:   []string{"thriftgen"},
	}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "outputs is required")
}

func TestValidate_AppliesDefaults(t *testing.T) {
	config := validConfig()

	err := config.Validate()
	require.NoError(t, err)

	assert.Equal(t, DefaultArtifactRoot, config.ArtifactRoot)
	assert.Equal(t, DefaultStateFile, config.StateFile)
	assert.Equal(t, DefaultGenLabel, config.Generate.Label)
}

func TestValidate_ForceUnknownLanguage(t *testing.T) {
	config := validConfig()
	config.Generate = &GenerateConfig{Force: []string{"rust"}}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "generate.force names unknown language: rust")
}

func TestValidate_UnknownDependency(t *testing.T) {
	config := validConfig()
	config.Targets["lib:users"] = TargetConfig{Deps: []string{"thrift:missing"}}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dependency: thrift:missing")
}

func TestBuildGraph(t *testing.T) {
	config := validConfig()
	require.NoError(t, config.Validate())

	g, err := config.BuildGraph()
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())

	api, ok := g.Target("thrift:api")
	require.True(t, ok)
	base, ok := g.Target("thrift:base")
	require.True(t, ok)
	assert.True(t, api.DependsOn(base))
	assert.True(t, api.HasLabel("gen"))

	users, ok := g.Target("lib:users")
	require.True(t, ok)
	assert.True(t, users.DependsOn(api))
	assert.Equal(t, []string{"idl/api.thrift"}, api.Sources)
}
