// Package notarize submits signed artifacts to Apple's notarization
// service and staples the resulting ticket.
package notarize

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// Environment variables consumed by CredentialsFromEnv.
const (
	EnvAppleID  = "APPDIST_APPLE_ID"
	EnvPassword = "APPDIST_APPLE_PASSWORD"
	EnvTeamID   = "APPDIST_TEAM_ID"
)

// Credentials authenticate against the notarization service. The
// password is an app-specific password, never the account password.
type Credentials struct {
	AppleID  string
	Password string
	TeamID   string
}

// CredentialsFromEnv reads notarization credentials from the
// environment. ok is false when any of the three values is missing.
func CredentialsFromEnv() (creds Credentials, ok bool) {
	creds = Credentials{
		AppleID:  os.Getenv(EnvAppleID),
		Password: os.Getenv(EnvPassword),
		TeamID:   os.Getenv(EnvTeamID),
	}
	return creds, creds.AppleID != "" && creds.Password != "" && creds.TeamID != ""
}

// Notarizer submits artifacts for notarization and staples tickets.
type Notarizer struct {
	creds Credentials
	log   *slog.Logger

	// run invokes xcrun; tests replace it.
	run func(args ...string) error
}

// New returns a Notarizer for the given credentials. A nil logger
// discards all output.
func New(creds Credentials, log *slog.Logger) *Notarizer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Notarizer{creds: creds, log: log, run: runXcrun}
}

func runXcrun(args ...string) error {
	out, err := exec.Command("xcrun", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("xcrun %s failed: %w (output: %s)", args[0], err, out)
	}
	return nil
}

// Submit uploads the artifact at path and waits for the notarization
// verdict. A rejected or failed submission is fatal to the run.
func (n *Notarizer) Submit(path string) error {
	n.log.Info("submitting for notarization", "path", path)
	return n.run("notarytool", "submit", path,
		"--apple-id", n.creds.AppleID,
		"--password", n.creds.Password,
		"--team-id", n.creds.TeamID,
		"--wait")
}

// Staple attaches the notarization ticket to the artifact so Gatekeeper
// can validate it offline.
func (n *Notarizer) Staple(path string) error {
	n.log.Info("stapling notarization ticket", "path", path)
	return n.run("stapler", "staple", path)
}
