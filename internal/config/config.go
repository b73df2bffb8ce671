// Package config loads the Manager and Live Data processes' YAML
// configuration and validates it at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/txstream/internal/livecache"
	"github.com/cuemby/txstream/internal/managercache"
)

// Config is the top-level process configuration shared by cmd/manager and
// cmd/livedata; a process only reads the sections relevant to its role.
type Config struct {
	NodeID  string `yaml:"node_id"`
	ChainID uint64 `yaml:"chain_id"`

	DataDir string `yaml:"data_dir"`

	RPCListenAddr    string `yaml:"rpc_listen_addr"`
	HealthListenAddr string `yaml:"health_listen_addr"`

	BlobStore BlobStoreConfig `yaml:"blob_store"`

	Peers PeersConfig `yaml:"peers"`

	ManagerCache CacheConfig `yaml:"manager_cache"`
	LiveCache    LiveCacheConfig `yaml:"live_cache"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// BlobStoreConfig selects and configures the durable file-store backend.
// Only "local" is implemented; any other backend is a Store the operator
// can add without touching the rest of the system.
type BlobStoreConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// PeersConfig seeds the metadata fabric's peer tables at startup.
type PeersConfig struct {
	Managers    []string `yaml:"managers"`
	Fullnodes   []string `yaml:"fullnodes"`
	HeartbeatPeriod time.Duration `yaml:"heartbeat_period"`
}

// CacheConfig controls the Manager tier's in-memory window watermarks.
type CacheConfig struct {
	MaxSizeBytes    int64 `yaml:"max_size_bytes"`
	TargetSizeBytes int64 `yaml:"target_size_bytes"`
}

// LiveCacheConfig controls the Live Data tier's ring buffer.
type LiveCacheConfig struct {
	Slots              int   `yaml:"slots"`
	ByteLimit          int64 `yaml:"byte_limit"`
	EvictionTargetBytes int64 `yaml:"eviction_target_bytes"`
}

// Load reads and validates a Config from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RPCListenAddr == "" {
		cfg.RPCListenAddr = "0.0.0.0:9090"
	}
	if cfg.HealthListenAddr == "" {
		cfg.HealthListenAddr = "0.0.0.0:9091"
	}
	if cfg.BlobStore.Kind == "" {
		cfg.BlobStore.Kind = "local"
	}
	if cfg.Peers.HeartbeatPeriod == 0 {
		cfg.Peers.HeartbeatPeriod = time.Second
	}
	if cfg.ManagerCache.MaxSizeBytes == 0 {
		cfg.ManagerCache.MaxSizeBytes = managercache.MaxCacheSize
		cfg.ManagerCache.TargetSizeBytes = managercache.TargetCacheSize
	}
	if cfg.LiveCache.Slots == 0 {
		cfg.LiveCache.Slots = livecache.DefaultSlots
		cfg.LiveCache.ByteLimit = livecache.DefaultByteLimit
		cfg.LiveCache.EvictionTargetBytes = livecache.DefaultEvictionTarget
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
}

// Validate rejects configurations that would fail at first use, so a
// misconfigured process dies at startup rather than mid-operation.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.BlobStore.Kind {
	case "local":
		if c.BlobStore.Path == "" {
			return fmt.Errorf("blob_store.path is required for kind %q", c.BlobStore.Kind)
		}
	default:
		return fmt.Errorf("unsupported blob_store.kind %q", c.BlobStore.Kind)
	}
	if c.ManagerCache.MaxSizeBytes > 0 && c.ManagerCache.TargetSizeBytes >= c.ManagerCache.MaxSizeBytes {
		return fmt.Errorf("manager_cache.target_size_bytes must be less than max_size_bytes")
	}
	return nil
}
