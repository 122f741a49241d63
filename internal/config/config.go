// Package config loads the per-job AppConfig from YAML plus
// the recognized environment variables, following the
// pointer-field-with-applyDefaults idiom used elsewhere in this tree's
// configuration layer.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Backend is the sandbox execution backend selection.
type Backend string

const (
	BackendDockerLocal Backend = "docker_local"
	BackendKubernetes  Backend = "kubernetes"
	BackendE2B         Backend = "e2b"
	BackendSimulation  Backend = "simulation"
)

// FeatureFlags are the recognized ENABLE_* options, each defaulting false.
type FeatureFlags struct {
	ContextCompression *bool `yaml:"enableContextCompression"`
	SemanticSearch     *bool `yaml:"enableSemanticSearch"`
	EnhancedKB         *bool `yaml:"enableEnhancedKB"`
	ThompsonSampling   *bool `yaml:"enableThompsonSampling"`
	MultiAgent         *bool `yaml:"enableMultiAgent"`
	Reflection         *bool `yaml:"enableReflection"`
}

func boolPtr(b bool) *bool { return &b }

// applyDefaults fills any flag the YAML file left unset from its ENABLE_*
// environment variable ("each ENABLE_* defaults to
// false"); a flag explicitly set in the file always wins over the
// environment.
func (f *FeatureFlags) applyDefaults() {
	if f.ContextCompression == nil {
		f.ContextCompression = boolPtr(envFlag("ENABLE_CONTEXT_COMPRESSION"))
	}
	if f.SemanticSearch == nil {
		f.SemanticSearch = boolPtr(envFlag("ENABLE_SEMANTIC_SEARCH"))
	}
	if f.EnhancedKB == nil {
		f.EnhancedKB = boolPtr(envFlag("ENABLE_ENHANCED_KB"))
	}
	if f.ThompsonSampling == nil {
		f.ThompsonSampling = boolPtr(envFlag("ENABLE_THOMPSON_SAMPLING"))
	}
	if f.MultiAgent == nil {
		f.MultiAgent = boolPtr(envFlag("ENABLE_MULTI_AGENT"))
	}
	if f.Reflection == nil {
		f.Reflection = boolPtr(envFlag("ENABLE_REFLECTION"))
	}
}

// DockerLimits are resource ceilings applied to the docker_local sandbox
// backend, overridable by env vars.
type DockerLimits struct {
	CPULimit    string `yaml:"cpuLimit"`
	MemoryLimit string `yaml:"memoryLimit"`
	PidsLimit   string `yaml:"pidsLimit"`
}

func (d *DockerLimits) applyDefaults() {
	if d.CPULimit == "" {
		d.CPULimit = envOr("DOCKER_CPU_LIMIT", "1")
	}
	if d.MemoryLimit == "" {
		d.MemoryLimit = envOr("DOCKER_MEMORY_LIMIT", "2g")
	}
	if d.PidsLimit == "" {
		d.PidsLimit = envOr("DOCKER_PIDS_LIMIT", "1000")
	}
}

// AppConfig is the immutable per-job configuration.
type AppConfig struct {
	RepositoryURL string  `yaml:"repositoryUrl"`
	AccessToken   string  `yaml:"accessToken"`
	LLMProvider   string  `yaml:"llmProvider"`
	LLMModel      string  `yaml:"llmModel"`
	Backend       Backend `yaml:"backend"`

	Flags                  FeatureFlags `yaml:"flags"`
	Docker                 DockerLimits `yaml:"docker"`
	CompressionRatio       *float64     `yaml:"compressionRatio"`
	MaxAdaptiveIterations  *int         `yaml:"maxAdaptiveIterations"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *AppConfig) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSimulation
	}
	c.Flags.applyDefaults()
	c.Docker.applyDefaults()
	if c.CompressionRatio == nil {
		ratio := 0.5
		if v := os.Getenv("COMPRESSION_RATIO"); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				ratio = parsed
			}
		}
		c.CompressionRatio = &ratio
	}
	if c.MaxAdaptiveIterations == nil {
		max := 5
		if v := os.Getenv("MAX_ADAPTIVE_ITERATIONS"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				max = parsed
			}
		}
		c.MaxAdaptiveIterations = &max
	}
}

// Load reads and validates an AppConfig from a YAML file, applying
// defaults from the environment for anything the file leaves unset.
func Load(path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if cfg.RepositoryURL == "" {
		return nil, fmt.Errorf("config: repositoryUrl is required")
	}
	return &cfg, nil
}

func envFlag(key string) bool {
	v := os.Getenv(key)
	return v == "1" || v == "true" || v == "TRUE" || v == "yes"
}
