package sign

import (
	"crypto/x509"
	"fmt"
	"os"

	gop12 "software.sslmate.com/src/go-pkcs12"
)

// Environment variables consumed by IdentityFromEnv.
const (
	EnvIdentity    = "APPDIST_IDENTITY"
	EnvTeamID      = "APPDIST_TEAM_ID"
	EnvP12         = "APPDIST_P12"
	EnvP12Password = "APPDIST_P12_PASSWORD"
)

// Identity is the signing identity for a run: the keychain fingerprint of
// the Developer ID certificate, and the team identifier used for
// placeholder evaluation in launch constraints.
type Identity struct {
	Fingerprint string
	TeamID      string
}

// IdentityFromEnv resolves the signing identity from the environment.
// The certificate fingerprint is required. The team identifier is taken
// from APPDIST_TEAM_ID when set; otherwise, if APPDIST_P12 points at a
// Developer ID certificate, it is derived from the certificate itself.
// An absent team identifier is not fatal; constraint placeholders then
// fall back to their literal text.
func IdentityFromEnv() (Identity, error) {
	fingerprint := os.Getenv(EnvIdentity)
	if fingerprint == "" {
		return Identity{}, fmt.Errorf("%s is required (certificate fingerprint in the keychain)", EnvIdentity)
	}

	teamID := os.Getenv(EnvTeamID)
	if teamID == "" {
		if p12Path := os.Getenv(EnvP12); p12Path != "" {
			derived, err := teamIDFromP12(p12Path, os.Getenv(EnvP12Password))
			if err != nil {
				return Identity{}, fmt.Errorf("failed to derive team ID from %s: %w", p12Path, err)
			}
			teamID = derived
		}
	}

	return Identity{Fingerprint: fingerprint, TeamID: teamID}, nil
}

// teamIDFromP12 loads a PKCS#12 certificate file and extracts the team
// identifier from the signing certificate.
func teamIDFromP12(path, password string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read P12 file: %w", err)
	}

	_, cert, _, err := gop12.DecodeChain(data, password)
	if err != nil {
		return "", fmt.Errorf("failed to decode P12: %w", err)
	}

	teamID := extractTeamID(cert)
	if teamID == "" {
		return "", fmt.Errorf("certificate %q has no team identifier", cert.Subject.CommonName)
	}
	return teamID, nil
}

// extractTeamID pulls the team identifier out of a signing certificate.
// Apple puts the 10-character team ID in the Organizational Unit field.
func extractTeamID(cert *x509.Certificate) string {
	for _, ou := range cert.Subject.OrganizationalUnit {
		if len(ou) == 10 {
			return ou
		}
	}
	return ""
}
