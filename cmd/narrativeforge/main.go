// Command narrativeforge is the main entry point for the narrative
// orchestration engine server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/narrativeforge/engine/internal/app"
	"github.com/narrativeforge/engine/internal/config"
	"github.com/narrativeforge/engine/internal/resilience"
	"github.com/narrativeforge/engine/pkg/llm"
	"github.com/narrativeforge/engine/pkg/llm/anyllm"
	"github.com/narrativeforge/engine/pkg/llm/openai"
	"github.com/narrativeforge/engine/pkg/provider/embeddings"
	embedollama "github.com/narrativeforge/engine/pkg/provider/embeddings/ollama"
	embedopenai "github.com/narrativeforge/engine/pkg/provider/embeddings/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ───────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "narrativeforge: config file %q not found — pass -config with the path to a YAML config file\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "narrativeforge: %v\n", err)
		}
		return 1
	}

	// ── Logger ───────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("narrativeforge starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Provider registry ────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	// ── Application wiring ───────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ──────────────────────────────────────────────────────────

// anyllmProviderNames lists the providerName values routed through the
// anyllm wrapper rather than a dedicated SDK package.
var anyllmProviderNames = map[string]bool{
	"anthropic": true,
	"gemini":    true,
	"deepseek":  true,
	"mistral":   true,
	"groq":      true,
	"llamacpp":  true,
	"llamafile": true,
}

// registerBuiltinProviders wires every provider implementation this engine
// ships with into reg, keyed by the names [config.ValidProviderNames] expects
// in the config file.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", newOpenAILLM)
	for name := range anyllmProviderNames {
		reg.RegisterLLM(name, newAnyLLM(name))
	}
	reg.RegisterLLM("ollama", newAnyLLM("ollama"))

	reg.RegisterEmbeddings("openai", newOpenAIEmbeddings)
	reg.RegisterEmbeddings("ollama", newOllamaEmbeddings)
}

func newOpenAILLM(entry config.ProviderEntry) (llm.Provider, error) {
	var opts []openai.Option
	if entry.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(entry.BaseURL))
	}
	return openai.New(entry.APIKey, entry.Model, opts...)
}

// newAnyLLM returns a registry factory that routes entry through the anyllm
// wrapper under the given upstream provider name.
func newAnyLLM(providerName string) func(config.ProviderEntry) (llm.Provider, error) {
	return func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(providerName, entry.Model, opts...)
	}
}

func newOpenAIEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	var opts []embedopenai.Option
	if entry.BaseURL != "" {
		opts = append(opts, embedopenai.WithBaseURL(entry.BaseURL))
	}
	return embedopenai.New(entry.APIKey, entry.Model, opts...)
}

func newOllamaEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	return embedollama.New(entry.BaseURL, entry.Model)
}

// buildProviders instantiates the LLM and embeddings providers named in cfg
// using reg and returns them in an [app.Providers] struct.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("llm provider not registered — continuing without one", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		} else {
			slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
			ps.LLM, err = withLLMFallbacks(p, name, cfg, reg)
			if err != nil {
				return nil, err
			}
		}
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("embeddings provider not registered — continuing without one", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		} else {
			ps.Embeddings = p
			slog.Info("provider created", "kind", "embeddings", "name", name, "model", cfg.Providers.Embeddings.Model)
		}
	}

	return ps, nil
}

// withLLMFallbacks wraps primary in a [resilience.LLMFallback] when
// cfg.Providers.LLMFallbacks names additional providers, so a primary that
// trips its circuit breaker fails over to the next configured backend instead
// of failing every turn outright. A fallback entry that fails to construct is
// logged and skipped rather than aborting startup — a degraded failover list
// is still better than none.
func withLLMFallbacks(primary llm.Provider, primaryName string, cfg *config.Config, reg *config.Registry) (llm.Provider, error) {
	if len(cfg.Providers.LLMFallbacks) == 0 {
		return primary, nil
	}

	breakerCfg := resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.Providers.LLMBreaker.MaxFailures,
		ResetTimeout: cfg.Providers.LLMBreaker.ResetTimeout,
		HalfOpenMax:  cfg.Providers.LLMBreaker.HalfOpenMax,
	}
	fb := resilience.NewLLMFallback(primary, primaryName, resilience.FallbackConfig{CircuitBreaker: breakerCfg})

	for _, entry := range cfg.Providers.LLMFallbacks {
		p, err := reg.CreateLLM(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("llm fallback provider not registered — skipping", "name", entry.Name)
			continue
		}
		if err != nil {
			slog.Warn("llm fallback provider failed to construct — skipping", "name", entry.Name, "err", err)
			continue
		}
		fb.AddFallback(entry.Name, p)
		slog.Info("llm fallback registered", "name", entry.Name, "model", entry.Model)
	}

	return fb, nil
}

// ── Startup summary ──────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║    narrativeforge — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	if n := len(cfg.Providers.LLMFallbacks); n > 0 {
		fmt.Printf("║  LLM fallbacks   : %-19d ║\n", n)
	}
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	fmt.Printf("║  MCP servers     : %-19d ║\n", len(cfg.MCP.Servers))
	fmt.Printf("║  Start system    : %-19s ║\n", cfg.GameDefaults.SystemType)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
