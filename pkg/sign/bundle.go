package sign

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"
)

// InfoPlist is a bundle's parsed Info.plist.
type InfoPlist map[string]interface{}

// ReadInfoPlist reads and parses Contents/Info.plist of the bundle at
// bundlePath.
func ReadInfoPlist(bundlePath string) (InfoPlist, error) {
	data, err := os.ReadFile(filepath.Join(bundlePath, "Contents", "Info.plist"))
	if err != nil {
		return nil, fmt.Errorf("failed to read Info.plist: %w", err)
	}

	var info InfoPlist
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse Info.plist: %w", err)
	}
	return info, nil
}

// BundleIdentifier returns the CFBundleIdentifier of the bundle.
func BundleIdentifier(bundlePath string) (string, error) {
	info, err := ReadInfoPlist(bundlePath)
	if err != nil {
		return "", err
	}
	id, ok := info["CFBundleIdentifier"].(string)
	if !ok {
		return "", fmt.Errorf("CFBundleIdentifier not found in Info.plist")
	}
	return id, nil
}

// ExecutablePath returns the absolute path of the bundle's main
// executable, as named by CFBundleExecutable.
func ExecutablePath(bundlePath string) (string, error) {
	info, err := ReadInfoPlist(bundlePath)
	if err != nil {
		return "", err
	}
	name, ok := info["CFBundleExecutable"].(string)
	if !ok {
		return "", fmt.Errorf("CFBundleExecutable not found in Info.plist")
	}
	return filepath.Join(bundlePath, "Contents", "MacOS", name), nil
}
