package hackerfs

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/hackeros/hackerfs/pkg/hackerfs/perms"
)

// Config holds the tunable filesystem policy knobs.
type Config struct {
	Filesystem FilesystemConfig `yaml:"filesystem"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// FilesystemConfig holds permission defaults and policy flags.
type FilesystemConfig struct {
	// DefaultFileMode and DefaultDirMode are octal strings ("644", "755").
	DefaultFileMode string `yaml:"default_file_mode"`
	DefaultDirMode  string `yaml:"default_dir_mode"`
	// AllowOwnerChgrp permits a non-root owner to change a node's group
	// to a group the owner belongs to. Off by default (strict POSIX:
	// ownership changes are root-only).
	AllowOwnerChgrp bool `yaml:"allow_owner_chgrp"`
	// MaxSymlinkDepth bounds symlink chain resolution.
	MaxSymlinkDepth int `yaml:"max_symlink_depth"`
	// TrackAccessTime updates AccessedAt on reads and listings.
	TrackAccessTime bool `yaml:"track_access_time"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Filesystem: FilesystemConfig{
			DefaultFileMode: "644",
			DefaultDirMode:  "755",
			AllowOwnerChgrp: false,
			MaxSymlinkDepth: 40,
			TrackAccessTime: true,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads configuration from a file, or returns the
// default if the path is empty or the file doesn't exist.
func LoadConfigOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// FileMode returns the default file permissions, falling back to 644 on
// a malformed config value.
func (c *FilesystemConfig) FileMode() perms.Permissions {
	return parseOctalMode(c.DefaultFileMode, 0o644)
}

// DirMode returns the default directory permissions, falling back to 755.
func (c *FilesystemConfig) DirMode() perms.Permissions {
	return parseOctalMode(c.DefaultDirMode, 0o755)
}

func parseOctalMode(s string, fallback int) perms.Permissions {
	v, err := strconv.ParseInt(s, 8, 32)
	if err != nil {
		return perms.MustFromOctal(fallback)
	}
	p, err := perms.FromOctal(int(v))
	if err != nil {
		return perms.MustFromOctal(fallback)
	}
	return p
}
