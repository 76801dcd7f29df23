package sign

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Walk visits every artifact under root that needs a signature, strictly
// bottom-up: a bundle directory is visited only after everything it
// contains. Symbolic links are never followed. Artifacts that already
// carry a valid platform-anchored signature (per tool.AlreadySigned) are
// skipped, which makes repeated runs idempotent.
//
// fn is called once per artifact with its absolute path; a non-nil error
// stops the walk immediately.
func Walk(root string, tool Tool, log *slog.Logger, fn func(path string) error) error {
	if err := walkDir(root, tool, log, fn); err != nil {
		return err
	}

	// The bundle root itself is signed last; its signature embeds those of
	// everything the walk just visited.
	if isBundleDir(filepath.Base(root)) && !tool.AlreadySigned(root) {
		return fn(root)
	}
	return nil
}

func walkDir(dir string, tool Tool, log *slog.Logger, fn func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.Type()&fs.ModeSymlink != 0 {
			// The link target is visited wherever it actually resides.
			continue
		}

		if entry.IsDir() {
			if err := walkDir(path, tool, log, fn); err != nil {
				return err
			}
			if isBundleDir(entry.Name()) && !tool.AlreadySigned(path) {
				if err := fn(path); err != nil {
					return err
				}
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}
		if classifyFile(path) != Candidate {
			continue
		}
		if !isSignableBinary(path, log) {
			continue
		}
		if tool.AlreadySigned(path) {
			log.Debug("already signed, skipping", "path", path)
			continue
		}
		if err := fn(path); err != nil {
			return err
		}
	}

	return nil
}
