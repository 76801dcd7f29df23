package sign

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"howett.net/plist"
)

// Driver orchestrates a full signing run: removals, the bottom-up walk,
// per-artifact metadata resolution and tool invocation, and the final
// deep verification. A Driver is single-use state for one run; create a
// fresh one per bundle so the default-entitlements bookkeeping of one run
// cannot leak into another.
type Driver struct {
	tool    Tool
	cfg     *Config
	scratch string
	teamID  string
	log     *slog.Logger

	// defaultWritten tracks whether the shared default entitlement file
	// has been generated yet this run.
	defaultWritten bool
}

// NewDriver returns a Driver that writes its generated entitlement and
// constraint description files to scratchDir. teamID feeds placeholder
// evaluation and may be empty. A nil logger discards all output.
func NewDriver(tool Tool, cfg *Config, scratchDir, teamID string, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Driver{
		tool:    tool,
		cfg:     cfg,
		scratch: scratchDir,
		teamID:  teamID,
		log:     log,
	}
}

// SignBundle signs every artifact under root and verifies the result.
// The run is all-or-nothing: the first failure aborts immediately and no
// further artifacts are touched.
func (d *Driver) SignBundle(root string) error {
	if err := ApplyRemovals(root, d.cfg.Remove, d.log); err != nil {
		return err
	}

	err := Walk(root, d.tool, d.log, func(path string) error {
		return d.signArtifact(root, path)
	})
	if err != nil {
		return err
	}

	d.log.Info("verifying bundle", "path", root)
	return d.tool.VerifyDeep(root)
}

func (d *Driver) signArtifact(root, path string) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
	}
	rel = filepath.ToSlash(rel)

	md := Resolve(rel, d.cfg)

	entFile, err := d.writeEntitlements(md)
	if err != nil {
		return err
	}

	constraints, err := d.writeConstraints(rel, md)
	if err != nil {
		return err
	}

	d.log.Info("signing", "path", rel, "entitlements", md.Identity)
	return d.tool.Sign(path, entFile, constraints)
}

// writeEntitlements ensures the entitlement description file for the
// artifact's identity exists and returns its path. The default file is
// written at most once per run and shared by every artifact on the
// default set.
func (d *Driver) writeEntitlements(md Metadata) (string, error) {
	path := filepath.Join(d.scratch, "entitlements-"+md.Identity+".plist")

	if md.Identity == DefaultIdentity && d.defaultWritten {
		return path, nil
	}

	caps := make(map[string]bool, len(md.Entitlements))
	for _, name := range md.Entitlements {
		caps[name] = true
	}

	data, err := plist.MarshalIndent(caps, plist.XMLFormat, "\t")
	if err != nil {
		return "", fmt.Errorf("failed to marshal entitlements: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write entitlements file: %w", err)
	}

	if md.Identity == DefaultIdentity {
		d.defaultWritten = true
	}
	return path, nil
}

// writeConstraints evaluates and writes one constraint description file
// per category present in the artifact's constraint rule. It returns nil
// when no rule matches the artifact.
func (d *Driver) writeConstraints(rel string, md Metadata) (map[Category]string, error) {
	if md.Constraints == nil {
		return nil, nil
	}

	declarations := []struct {
		cat  Category
		decl map[string]interface{}
	}{
		{CategorySelf, md.Constraints.Self},
		{CategoryParent, md.Constraints.Parent},
		{CategoryResponsible, md.Constraints.Responsible},
	}

	files := make(map[Category]string)
	for _, c := range declarations {
		if c.decl == nil {
			continue
		}

		evaluated := EvalPlaceholders(c.decl, d.teamID)
		data, err := plist.MarshalIndent(evaluated, plist.XMLFormat, "\t")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s constraint for %s: %w", c.cat, rel, err)
		}

		path := filepath.Join(d.scratch, fmt.Sprintf("constraint-%s-%s.plist", pathIdentity(rel), c.cat))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s constraint for %s: %w", c.cat, rel, err)
		}
		files[c.cat] = path
	}

	return files, nil
}
