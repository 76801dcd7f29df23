// Package sign implements the bundle-signing engine for macOS application
// bundles.
//
// The engine walks an unpacked .app bundle bottom-up, discovers every
// Mach-O binary and nested bundle that needs a signature, resolves the
// entitlement set and launch constraints for each artifact from a
// declarative configuration shipped inside the bundle, and drives Apple's
// codesign tool in dependency-correct order: every nested artifact is
// signed before the bundle that embeds its signature.
//
// # Basic Usage
//
//	cfg, err := sign.LoadConfig(appPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tool := &sign.Codesign{Identity: fingerprint}
//	driver := sign.NewDriver(tool, cfg, scratchDir, teamID, logger)
//	err = driver.SignBundle(appPath)
//
// Signing is strictly sequential and fail-fast: a partially-signed bundle
// must never ship, so the first codesign failure aborts the whole run.
// Re-runs are idempotent; artifacts that already carry a valid
// platform-anchored signature are skipped.
package sign
