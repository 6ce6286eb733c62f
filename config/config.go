package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds user-configurable defaults and host policy.
type Config struct {
	LogLevel   string            `json:"log_level"`
	Protection ProtectionConfig  `json:"protection"`
	ZFS        ZFSConfig         `json:"zfs"`
	Btrfs      BtrfsConfig       `json:"btrfs"`
	Cache      CacheConfig       `json:"cache"`
	Wipe       WipeConfig        `json:"wipe"`
	Tools      map[string]string `json:"tools,omitempty"`

	// MinMemberBytes rejects RAID members smaller than this.
	MinMemberBytes uint64 `json:"min_member_bytes"`
}

// ProtectionConfig decides which devices are never touched.
type ProtectionConfig struct {
	// ExcludePatterns are shell globs of kernel names left out of the inventory.
	ExcludePatterns []string `json:"exclude_patterns"`
	// BootMediaPattern is an extra exclusion glob for removable boot media.
	BootMediaPattern string `json:"boot_media_pattern"`
	// CriticalMounts are mount points whose backing disk is always protected.
	CriticalMounts []string `json:"critical_mounts"`
	// StaticDevices are always protected, even when mount detection fails.
	StaticDevices []string `json:"static_devices"`
}

type ZFSConfig struct {
	// Ashift 0 means derive it from the physical sector size.
	Ashift      int    `json:"ashift"`
	Compression string `json:"compression"`
	Atime       string `json:"atime"`
}

type BtrfsConfig struct {
	Compression string `json:"compression"`
}

type CacheConfig struct {
	LogFraction         float64 `json:"log_fraction"`
	LogCapBytes         uint64  `json:"log_cap_bytes"`
	MinDeviceBytes      uint64  `json:"min_device_bytes"`
	MinPartitionedBytes uint64  `json:"min_partitioned_bytes"`
	NodeTimeoutSec      int     `json:"node_timeout_sec"`
	PollIntervalMs      int     `json:"poll_interval_ms"`
}

// NodeTimeout returns the partition node wait limit.
func (c CacheConfig) NodeTimeout() time.Duration {
	return time.Duration(c.NodeTimeoutSec) * time.Second
}

// PollInterval returns the partition node poll period.
func (c CacheConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

type WipeConfig struct {
	EdgeZeroMiB    uint64 `json:"edge_zero_mib"`
	SettleDelaySec int    `json:"settle_delay_sec"`
}

// SettleDelay returns the pause after a partition table rescan.
func (w WipeConfig) SettleDelay() time.Duration {
	return time.Duration(w.SettleDelaySec) * time.Second
}

// Default returns a config with sensible defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Protection: ProtectionConfig{
			ExcludePatterns:  []string{"loop*", "sr*", "ram*", "zram*", "fd*"},
			BootMediaPattern: "mmcblk0*",
			CriticalMounts:   []string{"/", "/boot", "/boot/efi", "/boot/firmware", "/usr", "/lib", "/var", "/home"},
			StaticDevices:    []string{"mmcblk0", "mmcblk0boot0", "mmcblk0boot1", "mmcblk0rpmb", "nvme0n1"},
		},
		ZFS: ZFSConfig{
			Compression: "lz4",
			Atime:       "off",
		},
		Btrfs: BtrfsConfig{
			Compression: "zstd",
		},
		Cache: CacheConfig{
			LogFraction:         0.10,
			LogCapBytes:         32 << 30,
			MinDeviceBytes:      100 << 20,
			MinPartitionedBytes: 1 << 30,
			NodeTimeoutSec:      10,
			PollIntervalMs:      250,
		},
		Wipe: WipeConfig{
			EdgeZeroMiB:    100,
			SettleDelaySec: 3,
		},
		MinMemberBytes: 1 << 30,
	}
}

// Validate rejects values that would make planning meaningless.
func (c Config) Validate() error {
	var errs []error
	if c.Cache.LogFraction <= 0 || c.Cache.LogFraction >= 1 {
		errs = append(errs, fmt.Errorf("cache.log_fraction must be in (0,1), got %v", c.Cache.LogFraction))
	}
	if c.Cache.NodeTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("cache.node_timeout_sec must be positive"))
	}
	if c.Cache.PollIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("cache.poll_interval_ms must be positive"))
	}
	if c.ZFS.Ashift != 0 && (c.ZFS.Ashift < 9 || c.ZFS.Ashift > 16) {
		errs = append(errs, fmt.Errorf("zfs.ashift must be 0 or between 9 and 16, got %d", c.ZFS.Ashift))
	}
	if c.Wipe.SettleDelaySec < 0 {
		errs = append(errs, fmt.Errorf("wipe.settle_delay_sec must not be negative"))
	}
	return errors.Join(errs...)
}

// Tool returns the binary configured for name, or name itself.
func (c Config) Tool(name string) string {
	if p, ok := c.Tools[name]; ok && p != "" {
		return p
	}
	return name
}

// Path returns ~/.config/xraid/config.json (or XDG_CONFIG_HOME).
// Returns empty string if home directory cannot be determined.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "xraid", "config.json")
}

// Load loads config from the default path; returns defaults on error.
func Load() Config {
	p := Path()
	if p == "" {
		return Default()
	}
	cfg, err := LoadFrom(p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("config parse error, using defaults: %v", err)
	}
	return cfg
}

// LoadFrom reads path over the defaults. On error the defaults are returned
// together with the error.
func LoadFrom(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, or to Path() when path is empty.
func Save(cfg Config, path string) error {
	if path == "" {
		path = Path()
	}
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
