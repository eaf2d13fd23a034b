package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/amiezra1/mrg/internal/domain"
	"github.com/amiezra1/mrg/internal/folderstore"
)

// Remote provider names
const (
	ProviderGDrive = "gdrive"
	ProviderLocal  = "local"
	ProviderNone   = "none"
)

// Config represents the complete configuration for mrg
type Config struct {
	// DataDir holds the snapshot and activity databases
	DataDir string `mapstructure:"data_dir"`

	// Log configures the logger
	Log LogConfig `mapstructure:"log"`

	// Remote configures the document-library backend
	Remote RemoteConfig `mapstructure:"remote"`

	// Users is the static credential table; empty uses the built-in one
	Users []UserConfig `mapstructure:"users"`

	// GroupRoles maps directory group names to roles for the anonymous
	// fallback; empty uses the built-in mapping
	GroupRoles map[string]string `mapstructure:"group_roles"`

	// RootFolders overrides display name and appearance per root slot,
	// keyed by slot number "1".."9"
	RootFolders map[string]RootFolderConfig `mapstructure:"root_folders"`
}

// LogConfig configures logging output
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// RemoteConfig configures the remote storage backend
type RemoteConfig struct {
	// Provider selects the backend: "gdrive", "local", or "none" (offline)
	Provider string `mapstructure:"provider"`

	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenPath    string `mapstructure:"token_path"`

	// Root is the library root path holding the managed folders
	Root string `mapstructure:"root"`
}

// UserConfig is one credential table row
type UserConfig struct {
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	DisplayName string   `mapstructure:"display_name"`
	Role        string   `mapstructure:"role"`
	Permissions []string `mapstructure:"permissions"`
}

// RootFolderConfig overrides one root slot's decoration
type RootFolderConfig struct {
	Name            string `mapstructure:"name"`
	BackgroundImage string `mapstructure:"background_image"`
	Icon            string `mapstructure:"icon"`
}

// DefaultDataDir returns the default location of local databases
func DefaultDataDir() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "mrg")
	}
	return ".mrg"
}

// Default returns a configuration usable without any config file:
// offline remote, built-in users, info-level text logging.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Remote: RemoteConfig{
			Provider: ProviderNone,
		},
	}
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	switch c.Remote.Provider {
	case "", ProviderNone:
	case ProviderGDrive:
		if c.Remote.ClientID == "" || c.Remote.ClientSecret == "" {
			return fmt.Errorf("%w: gdrive provider requires client_id and client_secret", domain.ErrConfigInvalid)
		}
	case ProviderLocal:
		if c.Remote.Root == "" {
			return fmt.Errorf("%w: local provider requires root", domain.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown remote provider: %s", domain.ErrConfigInvalid, c.Remote.Provider)
	}

	usernames := make(map[string]bool)
	for _, u := range c.Users {
		if u.Username == "" {
			return fmt.Errorf("%w: username cannot be empty", domain.ErrConfigInvalid)
		}
		if usernames[u.Username] {
			return fmt.Errorf("%w: duplicate username: %s", domain.ErrConfigInvalid, u.Username)
		}
		if _, err := domain.ParseRole(u.Role); err != nil {
			return fmt.Errorf("%w: user %s: %v", domain.ErrConfigInvalid, u.Username, err)
		}
		for _, p := range u.Permissions {
			if !domain.Capability(p).IsValid() {
				return fmt.Errorf("%w: user %s has invalid permission: %s", domain.ErrConfigInvalid, u.Username, p)
			}
		}
		usernames[u.Username] = true
	}

	for group, role := range c.GroupRoles {
		if _, err := domain.ParseRole(role); err != nil {
			return fmt.Errorf("%w: group %s: %v", domain.ErrConfigInvalid, group, err)
		}
	}

	for slot := range c.RootFolders {
		n, err := strconv.Atoi(slot)
		if err != nil || n < 1 || n > folderstore.RootFolderTarget {
			return fmt.Errorf("%w: root folder slot must be 1..%d, got %q",
				domain.ErrConfigInvalid, folderstore.RootFolderTarget, slot)
		}
	}

	return nil
}

// Decorations converts the root folder overrides into store decorations
func (c *Config) Decorations() map[int]folderstore.RootDecoration {
	if len(c.RootFolders) == 0 {
		return nil
	}

	decorations := make(map[int]folderstore.RootDecoration, len(c.RootFolders))
	for slot, rf := range c.RootFolders {
		n, err := strconv.Atoi(slot)
		if err != nil {
			continue // rejected by Validate
		}
		appearance := domain.DefaultAppearance()
		if rf.BackgroundImage != "" {
			appearance.BackgroundImage = rf.BackgroundImage
		}
		if rf.Icon != "" {
			appearance.Icon = rf.Icon
		}
		decorations[n] = folderstore.RootDecoration{
			Name:       rf.Name,
			Appearance: appearance,
		}
	}
	return decorations
}
