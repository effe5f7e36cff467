// Package config loads and validates node configuration: network
// topology (threads, slot timing), consensus tuning (finality threshold,
// future-processing bounds, endorsement count), genesis allocation, and
// the ambient RPC/P2P/TLS settings needed to boot a node.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TLSConfig holds paths to the PEM files needed for mTLS.
// When nil or all paths empty, the node falls back to plain TCP.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`   // CA certificate PEM path
	NodeCert string `json:"node_cert"` // node certificate PEM path
	NodeKey  string `json:"node_key"`  // node private key PEM path
}

// SeedPeer identifies a remote node to connect to on startup.
type SeedPeer struct {
	ID   string `json:"id"`   // remote node ID
	Addr string `json:"addr"` // host:port
}

// GenesisConfig describes the chain's initial per-thread blocks, coin
// allocation, and the roll distribution that seeds the first cycles of
// the PoS selector.
type GenesisConfig struct {
	ChainID      string            `json:"chain_id"`
	Timestamp    time.Time         `json:"timestamp"`
	Balances     map[string]uint64 `json:"balances"`       // address string -> initial raw balance
	InitialRolls map[string]uint64 `json:"initial_rolls"`  // address string -> initial roll count
}

// Config holds all node configuration.
type Config struct {
	NodeID      string `json:"node_id"`
	DataDir     string `json:"data_dir"`
	RPCPort     int    `json:"rpc_port"`
	P2PPort     int    `json:"p2p_port"`
	MetricsPort int    `json:"metrics_port"` // 0 disables the /metrics HTTP endpoint

	ThreadCount uint8         `json:"thread_count"`
	T0          time.Duration `json:"t0"` // period duration, split evenly across ThreadCount slots

	FinalityThreshold          uint64 `json:"finality_threshold"`             // delta_f0: min fitness gap to finalize a clique
	FutureProcessingMaxPeriods uint64 `json:"future_processing_max_periods"`  // how far ahead of current slot a block may still be accepted
	MaxWaitingForDependencies  int    `json:"max_waiting_for_dependencies"`   // bounded LRU capacity
	MaxWaitingForSlot          int    `json:"max_waiting_for_slot"`           // bounded LRU capacity
	LookbackCycles             uint64 `json:"lookback_cycles"`                // cycles between a roll snapshot and the cycle it seeds selection for
	EndorsementCount           int    `json:"endorsement_count"`              // endorsers drawn per slot alongside the producer
	AsyncPoolCapacity          int    `json:"async_pool_capacity"`
	SnapshotInterval           uint64 `json:"snapshot_interval"` // finalized slots between LevelDB snapshots; 0 = every slot
	MaxBlockGas                uint64 `json:"max_block_gas"`     // gas budget for the operation batch a producer packs into one block
	MaxAsyncGasPerSlot         uint64 `json:"max_async_gas_per_slot"` // gas budget for draining the async message pool per slot

	StakingKeys []string `json:"staking_keys"` // hex ed25519 public keys this node may produce blocks for

	Genesis      GenesisConfig `json:"genesis"`
	SeedPeers    []SeedPeer    `json:"seed_peers,omitempty"`
	TLS          *TLSConfig    `json:"tls,omitempty"`
	RPCAuthToken string        `json:"rpc_auth_token,omitempty"`
}

// DefaultConfig returns a single-node development configuration: two
// threads, a one-second period, a finality threshold of two blocks.
func DefaultConfig() *Config {
	return &Config{
		NodeID:                     "node0",
		DataDir:                    "./data",
		RPCPort:                    8545,
		P2PPort:                    30303,
		MetricsPort:                9090,
		ThreadCount:                2,
		T0:                         1 * time.Second,
		FinalityThreshold:          2,
		FutureProcessingMaxPeriods: 100,
		MaxWaitingForDependencies:  1024,
		MaxWaitingForSlot:          1024,
		LookbackCycles:             2,
		EndorsementCount:           1,
		AsyncPoolCapacity:          10_000,
		SnapshotInterval:           100,
		MaxBlockGas:                1_000_000,
		MaxAsyncGasPerSlot:         1_000_000,
		Genesis: GenesisConfig{
			ChainID:      "corechain-dev",
			Balances:     map[string]uint64{},
			InitialRolls: map[string]uint64{},
		},
	}
}

// Load reads a JSON config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Genesis.ChainID == "" {
		return fmt.Errorf("genesis.chain_id must not be empty")
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc_port must be 1-65535, got %d", c.RPCPort)
	}
	if c.P2PPort <= 0 || c.P2PPort > 65535 {
		return fmt.Errorf("p2p_port must be 1-65535, got %d", c.P2PPort)
	}
	if c.RPCPort == c.P2PPort {
		return fmt.Errorf("rpc_port and p2p_port must not be the same (%d)", c.RPCPort)
	}
	if c.MetricsPort != 0 && (c.MetricsPort == c.RPCPort || c.MetricsPort == c.P2PPort) {
		return fmt.Errorf("metrics_port must not collide with rpc_port or p2p_port")
	}
	if c.ThreadCount == 0 {
		return fmt.Errorf("thread_count must be at least 1")
	}
	if c.T0 <= 0 {
		return fmt.Errorf("t0 must be positive")
	}
	if c.T0%time.Duration(c.ThreadCount) != 0 {
		return fmt.Errorf("t0 (%s) must divide evenly across thread_count (%d)", c.T0, c.ThreadCount)
	}
	if c.EndorsementCount < 0 {
		return fmt.Errorf("endorsement_count must not be negative")
	}
	if len(c.StakingKeys) == 0 {
		return fmt.Errorf("staking_keys list must not be empty")
	}
	for i, v := range c.StakingKeys {
		b, err := hex.DecodeString(v)
		if err != nil || len(b) != 32 {
			return fmt.Errorf("staking_keys[%d]: must be 64-char hex (32 bytes ed25519 pubkey), got %q", i, v)
		}
	}
	if len(c.Genesis.InitialRolls) == 0 {
		return fmt.Errorf("genesis.initial_rolls must not be empty: the PoS selector needs at least one roll holder")
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
