package sign

import (
	"path/filepath"
	"strings"
)

// Classification is the walker's verdict on a plain file.
type Classification int

const (
	// Candidate files go on to magic-number inspection.
	Candidate Classification = iota
	// SkipBundleExecutable marks the main executable of an application or
	// framework bundle. Signing the enclosing bundle covers it, so signing
	// it directly would be redundant.
	SkipBundleExecutable
)

// classifyFile decides whether a regular file is a signing candidate or
// the implicitly-covered main executable of its enclosing bundle.
//
// An application executable sits at <Name>.app/Contents/MacOS/<Name>; a
// framework executable sits at <Name>.framework/Versions/<v>/<Name>. In
// both cases the file name must match the bundle name.
func classifyFile(path string) Classification {
	name := filepath.Base(path)
	parent := filepath.Dir(path)

	if filepath.Base(parent) == "MacOS" {
		contents := filepath.Dir(parent)
		if filepath.Base(contents) == "Contents" {
			app := filepath.Base(filepath.Dir(contents))
			if app == name+".app" {
				return SkipBundleExecutable
			}
		}
	}

	grandparent := filepath.Dir(parent)
	if filepath.Base(grandparent) == "Versions" {
		framework := filepath.Base(filepath.Dir(grandparent))
		if framework == name+".framework" {
			return SkipBundleExecutable
		}
	}

	return Candidate
}

// isBundleDir reports whether a directory name identifies a signable
// bundle unit.
func isBundleDir(name string) bool {
	return strings.HasSuffix(name, ".app") || strings.HasSuffix(name, ".framework")
}
