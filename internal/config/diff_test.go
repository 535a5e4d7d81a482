package config_test

import (
	"testing"

	"github.com/narrativeforge/engine/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogLevelInfo},
		MCP: config.MCPConfig{
			Servers: []config.MCPServerConfig{
				{Name: "rules", Transport: "stdio", Command: "rules-server"},
			},
		},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.MCPServersChanged {
		t.Error("expected MCPServersChanged=false for identical configs")
	}
	if d.PlannerChanged {
		t.Error("expected PlannerChanged=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogLevelInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogLevelDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogLevelDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_PlannerTimeoutChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Planner: config.PlannerConfig{PerspectiveAgentTimeoutMs: 5000}}
	new := &config.Config{Planner: config.PlannerConfig{PerspectiveAgentTimeoutMs: 8000}}

	d := config.Diff(old, new)
	if !d.PlannerChanged {
		t.Error("expected PlannerChanged=true")
	}
}

func TestDiff_PlannerStrideOverrideChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Planner: config.PlannerConfig{ReplanStrideByGrade: map[string]int{"E": 5}}}
	new := &config.Config{Planner: config.PlannerConfig{ReplanStrideByGrade: map[string]int{"E": 8}}}

	d := config.Diff(old, new)
	if !d.PlannerChanged {
		t.Error("expected PlannerChanged=true")
	}
}

func TestDiff_MCPServerAdded(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		MCP: config.MCPConfig{Servers: []config.MCPServerConfig{{Name: "rules"}}},
	}
	new := &config.Config{
		MCP: config.MCPConfig{Servers: []config.MCPServerConfig{{Name: "rules"}, {Name: "combat"}}},
	}

	d := config.Diff(old, new)
	if !d.MCPServersChanged {
		t.Error("expected MCPServersChanged=true")
	}
	found := false
	for _, sc := range d.MCPServerChanges {
		if sc.Name == "combat" && sc.Added {
			found = true
		}
	}
	if !found {
		t.Error("expected combat Added=true")
	}
}

func TestDiff_MCPServerRemoved(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		MCP: config.MCPConfig{Servers: []config.MCPServerConfig{{Name: "rules"}, {Name: "loot"}}},
	}
	new := &config.Config{
		MCP: config.MCPConfig{Servers: []config.MCPServerConfig{{Name: "rules"}}},
	}

	d := config.Diff(old, new)
	if !d.MCPServersChanged {
		t.Error("expected MCPServersChanged=true")
	}
	found := false
	for _, sc := range d.MCPServerChanges {
		if sc.Name == "loot" && sc.Removed {
			found = true
		}
	}
	if !found {
		t.Error("expected loot Removed=true")
	}
}

func TestDiff_MCPServerCommandChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		MCP: config.MCPConfig{Servers: []config.MCPServerConfig{{Name: "rules", Command: "v1"}}},
	}
	new := &config.Config{
		MCP: config.MCPConfig{Servers: []config.MCPServerConfig{{Name: "rules", Command: "v2"}}},
	}

	d := config.Diff(old, new)
	if !d.MCPServersChanged {
		t.Error("expected MCPServersChanged=true")
	}
	found := false
	for _, sc := range d.MCPServerChanges {
		if sc.Name == "rules" && sc.Changed {
			found = true
		}
	}
	if !found {
		t.Error("expected rules Changed=true")
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogLevelInfo},
		MCP:    config.MCPConfig{Servers: []config.MCPServerConfig{{Name: "rules"}, {Name: "loot"}}},
	}
	new := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogLevelWarn},
		MCP:    config.MCPConfig{Servers: []config.MCPServerConfig{{Name: "rules"}, {Name: "combat"}}},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.MCPServersChanged {
		t.Error("expected MCPServersChanged=true")
	}
	changes := make(map[string]config.MCPServerDiff)
	for _, sc := range d.MCPServerChanges {
		changes[sc.Name] = sc
	}
	if !changes["loot"].Removed {
		t.Error("expected loot Removed=true")
	}
	if !changes["combat"].Added {
		t.Error("expected combat Added=true")
	}
}
