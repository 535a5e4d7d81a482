package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/narrativeforge/engine/internal/mcp"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// defaultReplanStride is the grade-dependent replan interval (in trigger
// levels) applied when PlannerConfig.ReplanStrideByGrade does not override
// a given grade.
var defaultReplanStride = map[string]int{
	"E": 5,
	"D": 10,
	"C": 15,
	"B": 20,
	"A": 25,
	"S": 40,
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}

	// Embeddings ↔ persistence dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Persistence.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but persistence.embedding_dimensions is not set; defaulting to 1536")
	}

	// Persistence availability
	if cfg.Persistence.PostgresDSN == "" {
		errs = append(errs, errors.New("persistence.postgres_dsn is required"))
	}

	// Game defaults
	if cfg.GameDefaults.SystemType == "" {
		errs = append(errs, errors.New("game_defaults.system_type is required"))
	}
	if cfg.GameDefaults.Difficulty == "" {
		errs = append(errs, errors.New("game_defaults.difficulty is required"))
	}

	// Planner
	for grade, stride := range cfg.Planner.ReplanStrideByGrade {
		if _, ok := defaultReplanStride[grade]; !ok {
			errs = append(errs, fmt.Errorf("planner.replan_stride_by_grade: unknown grade %q", grade))
		}
		if stride <= 0 {
			errs = append(errs, fmt.Errorf("planner.replan_stride_by_grade[%s] must be positive, got %d", grade, stride))
		}
	}
	if cfg.Planner.PerspectiveAgentTimeoutMs < 0 {
		errs = append(errs, errors.New("planner.perspective_agent_timeout_ms must not be negative"))
	}

	// MCP servers
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if srv.Transport != "" && !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == mcp.TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == mcp.TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	return errors.Join(errs...)
}

// ReplanStride returns the replan interval (in trigger levels) configured
// for the given narrative grade, falling back to the built-in default
// table (E:5, D:10, C:15, B:20, A:25, S:40) when no override is set.
func (p PlannerConfig) ReplanStride(grade string) int {
	if p.ReplanStrideByGrade != nil {
		if stride, ok := p.ReplanStrideByGrade[grade]; ok {
			return stride
		}
	}
	return defaultReplanStride[grade]
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
