package config

import (
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.StakingKeys = []string{"1111111111111111111111111111111111111111111111111111111111111111"[:64]}
	cfg.Genesis.InitialRolls = map[string]uint64{"AU1abc": 10}
	return cfg
}

func TestDefaultConfigFailsValidationWithoutStakingKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error: default config has no staking keys")
	}
}

func TestValidateRejectsUnevenT0(t *testing.T) {
	cfg := validConfig()
	cfg.ThreadCount = 3
	cfg.T0 = 100*time.Millisecond + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for t0 not divisible by thread_count")
	}
}

func TestValidateRejectsSamePorts(t *testing.T) {
	cfg := validConfig()
	cfg.P2PPort = cfg.RPCPort
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for rpc_port == p2p_port")
	}
}

func TestValidateRejectsPartialTLS(t *testing.T) {
	cfg := validConfig()
	cfg.TLS = &TLSConfig{CACert: "ca.pem"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for partially configured TLS")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := validConfig()
	path := filepath.Join(t.TempDir(), "node.json")

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.NodeID != cfg.NodeID || loaded.ThreadCount != cfg.ThreadCount {
		t.Fatalf("round-tripped config mismatch: %+v vs %+v", loaded, cfg)
	}
}
