package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/docopt/docopt-go"

	"github.com/appdist/appdist/pkg/dmg"
	"github.com/appdist/appdist/pkg/notarize"
	"github.com/appdist/appdist/pkg/sign"
)

const version = "1.0.0"

const usage = `appdist - macOS App Signing and Distribution Tool

Signs an application bundle bottom-up with entitlements and launch
constraints, packages it as a disk image, and notarizes the result.

Usage:
  appdist release --app=<path> [--arch=<arch>] [--output=<dir>] [--packager=<cmd>] [--allow-unnotarized] [--verbose]
  appdist sign --app=<path> [--verbose]
  appdist verify --app=<path>
  appdist info --app=<path> [--recursive]
  appdist -h | --help
  appdist --version

Commands:
  release   Sign, verify, package and notarize an application bundle
  sign      Sign and verify an application bundle in place
  verify    Run a deep, strict signature verification against a bundle
  info      Display code signature details for a bundle

Options:
  --app=<path>          Path to the .app bundle directory
  --arch=<arch>         Target architecture: arm64 or x86_64 (default: host)
  --output=<dir>        Directory for the built disk image (default: .)
  --packager=<cmd>      Disk image packager command (or APPDIST_PACKAGER env var)
  --allow-unnotarized   Skip notarization with a warning when credentials are missing
  --recursive           Include nested bundles like Frameworks/ and PlugIns/
  --verbose             Enable debug logging
  -h --help             Show this help message
  --version             Show version

Environment Variables:
  APPDIST_IDENTITY         Fingerprint of the signing certificate (required for sign/release)
  APPDIST_TEAM_ID          Team identifier for launch-constraint placeholders and notarization
  APPDIST_APPLE_ID         Apple ID for notarization
  APPDIST_APPLE_PASSWORD   App-specific password for notarization
  APPDIST_P12              Optional P12 certificate to derive the team identifier from
  APPDIST_P12_PASSWORD     Password for the P12 certificate
  APPDIST_PACKAGER         Disk image packager command (overridden by --packager)

Examples:
  # Full release: sign, package, notarize
  export APPDIST_IDENTITY=ABCDEF0123456789ABCDEF0123456789ABCDEF01
  export APPDIST_APPLE_ID=dev@example.com
  export APPDIST_APPLE_PASSWORD=abcd-efgh-ijkl-mnop
  export APPDIST_TEAM_ID=ABCD123456
  appdist release --app=MyApp.app --arch=arm64 --output=dist

  # Sign only, without notarization credentials
  appdist sign --app=MyApp.app

  # Inspect the signature of a bundle and all nested bundles
  appdist info --app=MyApp.app --recursive
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	var runErr error
	switch {
	case boolOpt(opts, "release"):
		runErr = runRelease(opts)
	case boolOpt(opts, "sign"):
		runErr = runSign(opts)
	case boolOpt(opts, "verify"):
		runErr = runVerify(opts)
	case boolOpt(opts, "info"):
		runErr = runInfo(opts)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func boolOpt(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveArch validates the architecture selector, defaulting to the host
// architecture mapped onto the two supported values.
func resolveArch(arch string) (string, error) {
	if arch == "" {
		if runtime.GOARCH == "amd64" {
			return "x86_64", nil
		}
		return "arm64", nil
	}
	if arch != "arm64" && arch != "x86_64" {
		return "", fmt.Errorf("unsupported architecture %q (expected arm64 or x86_64)", arch)
	}
	return arch, nil
}

func runRelease(opts docopt.Opts) error {
	appPath, _ := opts.String("--app")
	archFlag, _ := opts.String("--arch")
	outputDir, _ := opts.String("--output")
	packager, _ := opts.String("--packager")
	allowUnnotarized := boolOpt(opts, "--allow-unnotarized")
	log := newLogger(boolOpt(opts, "--verbose"))

	if outputDir == "" {
		outputDir = "."
	}
	if packager == "" {
		packager = os.Getenv("APPDIST_PACKAGER")
	}

	arch, err := resolveArch(archFlag)
	if err != nil {
		return err
	}

	identity, err := sign.IdentityFromEnv()
	if err != nil {
		return err
	}

	// Resolve notarization credentials up front: missing credentials must
	// surface before any destructive action against the bundle.
	creds, haveCreds := notarize.CredentialsFromEnv()
	if !haveCreds {
		if !allowUnnotarized {
			return fmt.Errorf("notarization credentials are incomplete (set %s, %s and %s, or pass --allow-unnotarized)",
				notarize.EnvAppleID, notarize.EnvPassword, notarize.EnvTeamID)
		}
		log.Warn("notarization credentials missing, skipping notarization")
	}

	scratchDir, err := os.MkdirTemp("", "appdist-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	cfg, err := sign.LoadConfig(appPath)
	if err != nil {
		return err
	}

	tool := &sign.Codesign{Identity: identity.Fingerprint}
	driver := sign.NewDriver(tool, cfg, scratchDir, identity.TeamID, log)
	if err := driver.SignBundle(appPath); err != nil {
		return err
	}

	builder := dmg.NewBuilder(packager, tool, arch, outputDir, scratchDir, log)
	imagePath, err := builder.Build(appPath)
	if err != nil {
		return err
	}

	if haveCreds {
		notarizer := notarize.New(creds, log)
		if err := notarizer.Submit(imagePath); err != nil {
			return err
		}
		if err := notarizer.Staple(imagePath); err != nil {
			return err
		}
	}

	fmt.Printf("Successfully released %s\n", imagePath)
	return nil
}

func runSign(opts docopt.Opts) error {
	appPath, _ := opts.String("--app")
	log := newLogger(boolOpt(opts, "--verbose"))

	identity, err := sign.IdentityFromEnv()
	if err != nil {
		return err
	}

	scratchDir, err := os.MkdirTemp("", "appdist-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	cfg, err := sign.LoadConfig(appPath)
	if err != nil {
		return err
	}

	tool := &sign.Codesign{Identity: identity.Fingerprint}
	driver := sign.NewDriver(tool, cfg, scratchDir, identity.TeamID, log)
	if err := driver.SignBundle(appPath); err != nil {
		return err
	}

	fmt.Printf("Successfully signed %s\n", appPath)
	return nil
}

func runVerify(opts docopt.Opts) error {
	appPath, _ := opts.String("--app")

	tool := &sign.Codesign{}
	if err := tool.VerifyDeep(appPath); err != nil {
		return err
	}

	fmt.Printf("Signature of %s is valid\n", appPath)
	return nil
}

func runInfo(opts docopt.Opts) error {
	appPath, _ := opts.String("--app")
	recursive := boolOpt(opts, "--recursive")

	infos, err := sign.InspectBundle(appPath, recursive)
	if err != nil {
		return err
	}

	for _, info := range infos {
		sign.PrintInfo(info, os.Stdout)
	}
	return nil
}
