package sign

import (
	"fmt"
	"os/exec"
)

// Category identifies one launch-constraint category.
type Category string

const (
	CategorySelf        Category = "self"
	CategoryParent      Category = "parent"
	CategoryResponsible Category = "responsible"
)

// categories in the order their flags are passed to the signing tool.
var categories = []Category{CategorySelf, CategoryParent, CategoryResponsible}

// Tool abstracts the external signing tool. The engine never parses
// signatures it produces; it only observes exit status.
type Tool interface {
	// Sign signs the artifact at path with the given entitlements file and
	// one launch-constraint file per present category.
	Sign(path, entitlementsFile string, constraints map[Category]string) error

	// SignImage signs a flat artifact such as a disk image, with no
	// entitlements or constraints.
	SignImage(path string) error

	// AlreadySigned reports whether path already carries a valid
	// platform-anchored signature. A negative answer is the expected
	// signal for "needs signing", never an error.
	AlreadySigned(path string) bool

	// VerifyDeep performs a deep, strict verification of the signed
	// bundle rooted at path.
	VerifyDeep(path string) error
}

// Codesign drives Apple's codesign(1) command-line tool.
type Codesign struct {
	// Identity is the SHA-1 fingerprint of the signing certificate in the
	// keychain.
	Identity string
}

var _ Tool = (*Codesign)(nil)

// Sign invokes codesign with force-overwrite, a secure timestamp and the
// hardened runtime, which notarization requires.
func (c *Codesign) Sign(path, entitlementsFile string, constraints map[Category]string) error {
	args := []string{
		"--sign", c.Identity,
		"--force",
		"--timestamp",
		"--options", "runtime",
		"--entitlements", entitlementsFile,
	}
	for _, cat := range categories {
		if file, ok := constraints[cat]; ok {
			args = append(args, "--launch-constraint-"+string(cat), file)
		}
	}
	args = append(args, path)

	out, err := exec.Command("codesign", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("codesign failed for %s: %w (output: %s)", path, err, out)
	}
	return nil
}

// SignImage signs a disk image or other flat artifact.
func (c *Codesign) SignImage(path string) error {
	args := []string{"--sign", c.Identity, "--force", "--timestamp", path}
	out, err := exec.Command("codesign", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("codesign failed for %s: %w (output: %s)", path, err, out)
	}
	return nil
}

// AlreadySigned probes path with a strict verification anchored to the
// Apple certificate hierarchy. Any non-zero exit (including "code object
// is not signed at all") means the path still needs signing.
func (c *Codesign) AlreadySigned(path string) bool {
	cmd := exec.Command("codesign", "--verify", "--strict", "-R=anchor apple generic", path)
	return cmd.Run() == nil
}

// VerifyDeep runs the final post-sign gate over the whole bundle.
func (c *Codesign) VerifyDeep(path string) error {
	out, err := exec.Command("codesign", "--verify", "--deep", "--strict", "--verbose=2", path).CombinedOutput()
	if err != nil {
		return fmt.Errorf("signature verification failed for %s: %w (output: %s)", path, err, out)
	}
	return nil
}
