package sign

import (
	"crypto/sha256"
	"encoding/hex"
)

// DefaultIdentity is the entitlement-file identity shared by every
// artifact that uses the default entitlement set.
const DefaultIdentity = "default"

// Metadata is the resolved signing metadata for a single artifact.
type Metadata struct {
	// Entitlements is the capability set to embed in the signature.
	Entitlements []string
	// Identity names the entitlement description file for this artifact:
	// DefaultIdentity for the shared default set, or a hash of the
	// artifact's relative path for an override.
	Identity string
	// Constraints is the matching constraint rule, or nil when none of the
	// configured rules claims this path.
	Constraints *ConstraintRule
}

// Resolve computes the signing metadata for the artifact at the given
// bundle-relative path. Paths not claimed by any override use the default
// entitlement set; absence of a constraint rule (or of a category within
// one) is not an error.
func Resolve(rel string, cfg *Config) Metadata {
	md := Metadata{
		Entitlements: cfg.Entitlements.Default,
		Identity:     DefaultIdentity,
	}

	for _, o := range cfg.Entitlements.Overrides {
		if containsPath(o.Paths, rel) {
			md.Entitlements = o.Entitlements
			md.Identity = pathIdentity(rel)
			break
		}
	}

	for i := range cfg.Constraints {
		if containsPath(cfg.Constraints[i].Paths, rel) {
			md.Constraints = &cfg.Constraints[i]
			break
		}
	}

	return md
}

// pathIdentity derives a stable file identity from an artifact's relative
// path, so repeated runs generate identical scratch file names.
func pathIdentity(rel string) string {
	sum := sha256.Sum256([]byte(rel))
	return hex.EncodeToString(sum[:8])
}

func containsPath(paths []string, rel string) bool {
	for _, p := range paths {
		if p == rel {
			return true
		}
	}
	return false
}
