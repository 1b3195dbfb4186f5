package main

import (
	"testing"

	"github.com/stesse/stesse/internal/stessed"
	"github.com/stesse/stesse/pkg/stesse"
)

func TestBuildModulesModuleOnlyFilter(t *testing.T) {
	cfg := stessed.Config{}
	cfg.Server.NodeID = "study-node"
	cfg.Modules.API.Enabled = true
	cfg.Modules.API.Listen = "127.0.0.1:0"

	logger := stessed.NewLogger(stessed.LogConfig{Level: "error"})
	modules, err := buildModules(cfg, nil, logger, "api", false)
	if err != nil {
		t.Fatalf("buildModules: %v", err)
	}
	if len(modules) != 1 {
		t.Fatalf("expected 1 module, got %d", len(modules))
	}

	_, err = buildModules(cfg, nil, logger, "player", false)
	if err == nil {
		t.Fatalf("expected error for filtered module")
	}
}

func TestApplyOverridesDerivesEmbeddedBroker(t *testing.T) {
	cfg := stessed.Config{}
	cfg.Modules.EmbeddedMQTT.Enabled = true
	cfg.Modules.EmbeddedMQTT.Listen = "127.0.0.1:2883"

	if err := applyOverrides(&cfg, "", "node", "", "", "", ""); err != nil {
		t.Fatalf("applyOverrides: %v", err)
	}
	if cfg.Server.Broker != "mqtt://127.0.0.1:2883" {
		t.Fatalf("broker = %q", cfg.Server.Broker)
	}
	if cfg.Server.TopicBase != stesse.BaseTopic {
		t.Fatalf("topic base = %q", cfg.Server.TopicBase)
	}
	if cfg.Server.NodeID != "node" {
		t.Fatalf("node id = %q", cfg.Server.NodeID)
	}
}

func TestProxyBase(t *testing.T) {
	cfg := stessed.Config{}
	if proxyBase(cfg) != "" {
		t.Fatalf("expected empty proxy base when api disabled")
	}

	cfg.Modules.API.Enabled = true
	cfg.Modules.API.Listen = "0.0.0.0:9090"
	if got := proxyBase(cfg); got != "http://127.0.0.1:9090" {
		t.Fatalf("proxy base = %q", got)
	}

	cfg.Modules.API.Listen = ""
	if got := proxyBase(cfg); got != "http://127.0.0.1:8080" {
		t.Fatalf("default proxy base = %q", got)
	}
}
