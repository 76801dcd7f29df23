package sign

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"howett.net/plist"
)

// ConfigPath is the location of the signing configuration inside a bundle.
const ConfigPath = "Contents/Resources/signing.plist"

// Config is the declarative signing configuration shipped inside the
// bundle. It is loaded once per run and never mutated afterwards.
type Config struct {
	Entitlements EntitlementsConfig `plist:"entitlements"`
	Constraints  []ConstraintRule   `plist:"constraints"`
	Remove       []string           `plist:"remove"`
}

// EntitlementsConfig holds the default entitlement set and per-path
// overrides.
type EntitlementsConfig struct {
	Default   []string              `plist:"default"`
	Overrides []EntitlementOverride `plist:"overrides"`
}

// EntitlementOverride replaces the default entitlement set for the listed
// bundle-relative paths.
type EntitlementOverride struct {
	Paths        []string `plist:"paths"`
	Entitlements []string `plist:"entitlements"`
}

// ConstraintRule attaches launch constraints to the listed bundle-relative
// paths. Each of the three categories is independently optional; a nil
// category produces no constraint file and no codesign flag.
type ConstraintRule struct {
	Paths       []string               `plist:"paths"`
	Self        map[string]interface{} `plist:"self"`
	Parent      map[string]interface{} `plist:"parent"`
	Responsible map[string]interface{} `plist:"responsible"`
}

// LoadConfig reads and validates the signing configuration from its fixed
// location inside the bundle at bundlePath.
func LoadConfig(bundlePath string) (*Config, error) {
	path := filepath.Join(bundlePath, filepath.FromSlash(ConfigPath))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing configuration: %w", err)
	}

	var cfg Config
	if _, err := plist.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse signing configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid signing configuration: %w", err)
	}

	return &cfg, nil
}

// validate rejects configurations where a path is claimed by more than one
// override or constraint rule. Silently picking the first match would hide
// a configuration mistake.
func (c *Config) validate() error {
	seen := make(map[string]bool)
	for _, o := range c.Entitlements.Overrides {
		for _, p := range o.Paths {
			if seen[p] {
				return fmt.Errorf("path %q appears in more than one entitlement override", p)
			}
			seen[p] = true
		}
	}

	seen = make(map[string]bool)
	for _, r := range c.Constraints {
		for _, p := range r.Paths {
			if seen[p] {
				return fmt.Errorf("path %q appears in more than one constraint rule", p)
			}
			seen[p] = true
		}
	}

	return nil
}

// ApplyRemovals deletes the configured excluded paths from the bundle.
// It must complete before the walk begins so the walker never observes a
// removed path. Paths that do not exist are not an error.
func ApplyRemovals(bundlePath string, remove []string, log *slog.Logger) error {
	for _, rel := range remove {
		path := filepath.Join(bundlePath, filepath.FromSlash(rel))
		log.Debug("removing excluded artifact", "path", rel)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", rel, err)
		}
	}
	return nil
}
