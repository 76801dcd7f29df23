// Package dmg builds the distributable disk image for a signed
// application bundle by driving an external packager, then signs the
// produced image.
//
// The packager is a black box: it consumes a settings document derived
// from the one shipped inside the bundle and must leave the named .dmg
// behind. Signing inside the packager is explicitly disabled; the bundle
// is already signed, and the image itself is signed here afterwards.
package dmg

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/appdist/appdist/pkg/sign"
)

// SettingsPath is the location of the packager settings inside a bundle.
const SettingsPath = "Contents/Resources/packaging.json"

// DefaultPackager is the packager command used when none is configured.
const DefaultPackager = "create-dmg"

// Builder drives one disk-image build.
type Builder struct {
	// Packager is the external packager command.
	Packager string
	// Tool signs the produced image.
	Tool sign.Tool
	// Arch is the target CPU architecture, "arm64" or "x86_64"; it feeds
	// the artifact naming template.
	Arch string
	// OutputDir receives the built image.
	OutputDir string
	// ScratchDir receives the effective settings document.
	ScratchDir string
	// Log reports progress; nil discards all output.
	Log *slog.Logger

	// run invokes the packager; tests replace it.
	run func(name string, args ...string) error
}

// NewBuilder returns a Builder using the given packager command (empty
// for DefaultPackager).
func NewBuilder(packager string, tool sign.Tool, arch, outputDir, scratchDir string, log *slog.Logger) *Builder {
	if packager == "" {
		packager = DefaultPackager
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{
		Packager:   packager,
		Tool:       tool,
		Arch:       arch,
		OutputDir:  outputDir,
		ScratchDir: scratchDir,
		Log:        log,
		run:        runCommand,
	}
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w (output: %s)", name, err, out)
	}
	return nil
}

// Build packages the bundle at bundlePath into a signed disk image and
// returns the image path. The expected image missing after the packager
// exits successfully is fatal: shipping nothing is better than shipping
// an artifact we did not produce.
func (b *Builder) Build(bundlePath string) (string, error) {
	settings, err := loadSettings(bundlePath)
	if err != nil {
		return "", err
	}

	productName, _ := settings["productName"].(string)
	artifact := fmt.Sprintf("%s-%s.dmg", productName, b.Arch)

	// The bundle tree is already signed; the packager must not touch it.
	settings["identity"] = ""
	settings["artifactName"] = artifact

	effective := filepath.Join(b.ScratchDir, "packaging.json")
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal packager settings: %w", err)
	}
	if err := os.WriteFile(effective, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write packager settings: %w", err)
	}

	imagePath := filepath.Join(b.OutputDir, artifact)
	b.Log.Info("building disk image", "image", imagePath, "packager", b.Packager)
	if err := b.run(b.Packager, "--settings", effective, bundlePath, imagePath); err != nil {
		return "", err
	}

	if _, err := os.Stat(imagePath); err != nil {
		return "", fmt.Errorf("expected disk image %s not found after packaging: %w", imagePath, err)
	}

	b.Log.Info("signing disk image", "image", imagePath)
	if err := b.Tool.SignImage(imagePath); err != nil {
		return "", err
	}

	return imagePath, nil
}

// loadSettings reads the packager settings document from its fixed
// location inside the bundle and validates the required fields. Unknown
// fields are preserved for the packager.
func loadSettings(bundlePath string) (map[string]interface{}, error) {
	path := filepath.Join(bundlePath, filepath.FromSlash(SettingsPath))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read packager settings: %w", err)
	}

	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse packager settings: %w", err)
	}

	if id, _ := settings["identifier"].(string); id == "" {
		return nil, fmt.Errorf("packager settings missing application identifier")
	}
	if name, _ := settings["productName"].(string); name == "" {
		return nil, fmt.Errorf("packager settings missing product name")
	}

	return settings, nil
}
