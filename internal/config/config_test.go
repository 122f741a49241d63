package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repair.yaml")
	if err := os.WriteFile(path, []byte(`
repositoryUrl: https://example.com/org/repo.git
accessToken: tok
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendSimulation {
		t.Fatalf("backend = %q, want default %q", cfg.Backend, BackendSimulation)
	}
	if cfg.Docker.CPULimit != "1" || cfg.Docker.MemoryLimit != "2g" || cfg.Docker.PidsLimit != "1000" {
		t.Fatalf("docker limits = %+v", cfg.Docker)
	}
	if cfg.CompressionRatio == nil || *cfg.CompressionRatio != 0.5 {
		t.Fatalf("compressionRatio = %v, want 0.5", cfg.CompressionRatio)
	}
	if cfg.MaxAdaptiveIterations == nil || *cfg.MaxAdaptiveIterations != 5 {
		t.Fatalf("maxAdaptiveIterations = %v, want 5", cfg.MaxAdaptiveIterations)
	}
	if cfg.Flags.SemanticSearch == nil || *cfg.Flags.SemanticSearch {
		t.Fatalf("semanticSearch default = %v, want false", cfg.Flags.SemanticSearch)
	}
}

func TestLoad_RequiresRepositoryURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repair.yaml")
	if err := os.WriteFile(path, []byte("accessToken: tok\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a missing repositoryUrl")
	}
}

func TestLoad_FeatureFlagFallsBackToEnv(t *testing.T) {
	t.Setenv("ENABLE_SEMANTIC_SEARCH", "true")
	t.Setenv("DOCKER_CPU_LIMIT", "4")

	dir := t.TempDir()
	path := filepath.Join(dir, "repair.yaml")
	if err := os.WriteFile(path, []byte("repositoryUrl: https://example.com/org/repo.git\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Flags.SemanticSearch == nil || !*cfg.Flags.SemanticSearch {
		t.Fatalf("semanticSearch = %v, want true from ENABLE_SEMANTIC_SEARCH", cfg.Flags.SemanticSearch)
	}
	if cfg.Docker.CPULimit != "4" {
		t.Fatalf("cpuLimit = %q, want 4 from DOCKER_CPU_LIMIT", cfg.Docker.CPULimit)
	}
}

func TestLoad_FileValueWinsOverEnv(t *testing.T) {
	t.Setenv("ENABLE_SEMANTIC_SEARCH", "true")

	dir := t.TempDir()
	path := filepath.Join(dir, "repair.yaml")
	if err := os.WriteFile(path, []byte(`
repositoryUrl: https://example.com/org/repo.git
flags:
  enableSemanticSearch: false
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Flags.SemanticSearch == nil || *cfg.Flags.SemanticSearch {
		t.Fatalf("semanticSearch = %v, want false (file value should win over env)", cfg.Flags.SemanticSearch)
	}
}
