package dmg

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/appdist/appdist/pkg/sign"
)

const testSettings = `{
	"identifier": "com.example.myapp",
	"productName": "MyApp",
	"identity": "Developer ID Application: Example Corp",
	"background": "background.png",
	"window": {"width": 540, "height": 380}
}`

func makeBundle(t *testing.T, settings string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "MyApp.app")
	path := filepath.Join(root, filepath.FromSlash(SettingsPath))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(settings), 0644); err != nil {
		t.Fatal(err)
	}
	return root
}

// imageTool records signed image paths.
type imageTool struct {
	images []string
	err    error
}

func (i *imageTool) Sign(path, entitlementsFile string, constraints map[sign.Category]string) error {
	return nil
}
func (i *imageTool) SignImage(path string) error {
	if i.err != nil {
		return i.err
	}
	i.images = append(i.images, path)
	return nil
}
func (i *imageTool) AlreadySigned(path string) bool { return false }
func (i *imageTool) VerifyDeep(path string) error   { return nil }

func newTestBuilder(t *testing.T, tool sign.Tool) *Builder {
	t.Helper()
	return NewBuilder("", tool, "arm64", t.TempDir(), t.TempDir(), nil)
}

func TestBuildProducesSignedImage(t *testing.T) {
	root := makeBundle(t, testSettings)
	tool := &imageTool{}
	b := newTestBuilder(t, tool)

	var gotName string
	var gotArgs []string
	b.run = func(name string, args ...string) error {
		gotName = name
		gotArgs = args
		// The packager is expected to leave the image behind.
		return os.WriteFile(args[len(args)-1], []byte("dmg"), 0644)
	}

	imagePath, err := b.Build(root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if gotName != DefaultPackager {
		t.Errorf("expected packager %q, got %q", DefaultPackager, gotName)
	}
	if filepath.Base(imagePath) != "MyApp-arm64.dmg" {
		t.Errorf("unexpected image name: %s", imagePath)
	}
	if len(gotArgs) != 4 || gotArgs[0] != "--settings" || gotArgs[2] != root || gotArgs[3] != imagePath {
		t.Errorf("unexpected packager arguments: %v", gotArgs)
	}
	if len(tool.images) != 1 || tool.images[0] != imagePath {
		t.Errorf("image was not signed: %v", tool.images)
	}
}

func TestBuildRewritesSettings(t *testing.T) {
	root := makeBundle(t, testSettings)
	b := newTestBuilder(t, &imageTool{})

	var settingsPath string
	b.run = func(name string, args ...string) error {
		settingsPath = args[1]
		return os.WriteFile(args[len(args)-1], []byte("dmg"), 0644)
	}

	if _, err := b.Build(root); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		t.Fatal(err)
	}
	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		t.Fatalf("effective settings are not valid JSON: %v", err)
	}

	if settings["identity"] != "" {
		t.Errorf("packager signing was not disabled: %v", settings["identity"])
	}
	if settings["artifactName"] != "MyApp-arm64.dmg" {
		t.Errorf("unexpected artifact name: %v", settings["artifactName"])
	}
	// Unknown fields must survive for the packager.
	if settings["background"] != "background.png" {
		t.Errorf("unknown field was dropped: %v", settings["background"])
	}
	if _, ok := settings["window"].(map[string]interface{}); !ok {
		t.Errorf("nested unknown field was dropped: %v", settings["window"])
	}
}

func TestBuildMissingImageIsFatal(t *testing.T) {
	root := makeBundle(t, testSettings)
	tool := &imageTool{}
	b := newTestBuilder(t, tool)

	// Packager exits cleanly but leaves nothing behind.
	b.run = func(name string, args ...string) error { return nil }

	if _, err := b.Build(root); err == nil {
		t.Fatal("expected an error for a missing disk image")
	} else if !strings.Contains(err.Error(), "not found after packaging") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(tool.images) != 0 {
		t.Error("a missing image must not be signed")
	}
}

func TestBuildPackagerFailure(t *testing.T) {
	root := makeBundle(t, testSettings)
	b := newTestBuilder(t, &imageTool{})

	wantErr := errors.New("packager exploded")
	b.run = func(name string, args ...string) error { return wantErr }

	if _, err := b.Build(root); !errors.Is(err, wantErr) {
		t.Fatalf("expected the packager error to propagate, got %v", err)
	}
}

func TestLoadSettingsValidation(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		wantErr  string
	}{
		{"missing identifier", `{"productName": "MyApp"}`, "identifier"},
		{"missing product name", `{"identifier": "com.example.myapp"}`, "product name"},
		{"malformed document", `{not json`, "parse"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := makeBundle(t, tc.settings)
			if _, err := loadSettings(root); err == nil {
				t.Fatal("expected a settings error")
			} else if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "MyApp.app")
	if _, err := loadSettings(root); err == nil {
		t.Fatal("expected an error for a bundle without packager settings")
	}
}
