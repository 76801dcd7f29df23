package sign

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// machO64 is a minimal 64-bit Mach-O header prefix, enough for the
// magic-number detector.
var machO64 = []byte{0xfe, 0xed, 0xfa, 0xcf, 0x00, 0x00, 0x00, 0x0c}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeFile creates a file (and its parent directories) under root.
func writeFile(t *testing.T, root, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directories for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, data, 0755); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

// makeTestBundle builds a representative .app bundle tree and returns its
// root: a bundle executable, a helper binary, a nested framework with its
// own executable and an extra dylib, a resource file, and a symlink.
func makeTestBundle(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "MyApp.app")

	writeFile(t, root, "Contents/MacOS/MyApp", machO64)
	writeFile(t, root, "Contents/MacOS/Helper", machO64)
	writeFile(t, root, "Contents/Resources/readme.txt", []byte("not a binary"))
	writeFile(t, root, "Contents/Frameworks/Lib.framework/Versions/A/Lib", machO64)
	writeFile(t, root, "Contents/Frameworks/Lib.framework/Versions/A/Libraries/libextra.dylib", machO64)

	link := filepath.Join(root, "Contents/Frameworks/Lib.framework/Lib")
	if err := os.Symlink(filepath.Join("Versions", "A", "Lib"), link); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	return root
}

type signCall struct {
	path             string
	entitlementsFile string
	constraints      map[Category]string
}

// fakeTool records every invocation and never touches the filesystem.
type fakeTool struct {
	calls         []signCall
	images        []string
	verified      []string
	alreadySigned map[string]bool
	signErr       error
	verifyErr     error
}

func (f *fakeTool) Sign(path, entitlementsFile string, constraints map[Category]string) error {
	if f.signErr != nil {
		return f.signErr
	}
	f.calls = append(f.calls, signCall{path: path, entitlementsFile: entitlementsFile, constraints: constraints})
	return nil
}

func (f *fakeTool) SignImage(path string) error {
	f.images = append(f.images, path)
	return nil
}

func (f *fakeTool) AlreadySigned(path string) bool {
	return f.alreadySigned[path]
}

func (f *fakeTool) VerifyDeep(path string) error {
	if f.verifyErr != nil {
		return f.verifyErr
	}
	f.verified = append(f.verified, path)
	return nil
}

func (f *fakeTool) signedPaths() []string {
	paths := make([]string, len(f.calls))
	for i, c := range f.calls {
		paths[i] = c.path
	}
	return paths
}
