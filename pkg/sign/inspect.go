package sign

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blacktop/go-macho"
	"go.mozilla.org/pkcs7"
	"howett.net/plist"
)

// Info summarizes the code signature embedded in a signed Mach-O binary.
type Info struct {
	Path         string
	RelativePath string
	Identifier   string
	TeamID       string
	CDHash       string
	Entitlements map[string]interface{}
	SignerCN     string
	SignerTeamID string
}

// InspectBinary parses the code signature of the Mach-O binary at path.
func InspectBinary(path string) (*Info, error) {
	m, err := macho.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Mach-O %s: %w", path, err)
	}
	defer m.Close()

	cs := m.CodeSignature()
	if cs == nil || len(cs.CodeDirectories) == 0 {
		return nil, fmt.Errorf("no code signature found in %s", path)
	}

	info := &Info{Path: path}
	for _, cd := range cs.CodeDirectories {
		if cd.ID != "" {
			info.Identifier = cd.ID
		}
		if cd.TeamID != "" {
			info.TeamID = strings.TrimRight(cd.TeamID, "\x00")
		}
		if cd.CDHash != "" {
			info.CDHash = cd.CDHash
		}
	}

	if cs.Entitlements != "" {
		var ents map[string]interface{}
		if _, err := plist.Unmarshal([]byte(cs.Entitlements), &ents); err == nil {
			info.Entitlements = ents
		}
	}

	if len(cs.CMSSignature) > 0 {
		fillSignerInfo(info, cs.CMSSignature)
	}

	return info, nil
}

// fillSignerInfo extracts the signer certificate details from the CMS
// blob. A malformed CMS blob leaves the signer fields empty rather than
// failing the whole inspection.
func fillSignerInfo(info *Info, cms []byte) {
	p7, err := pkcs7.Parse(cms)
	if err != nil || len(p7.Signers) == 0 {
		return
	}

	signer := p7.Signers[0]
	for _, cert := range p7.Certificates {
		if cert.SerialNumber.Cmp(signer.IssuerAndSerialNumber.SerialNumber) == 0 {
			info.SignerCN = cert.Subject.CommonName
			info.SignerTeamID = extractTeamID(cert)
			return
		}
	}
}

// InspectBundle parses the signature of the bundle's main executable and,
// when recursive is set, of every nested bundle under Contents/Frameworks
// and Contents/PlugIns.
func InspectBundle(bundlePath string, recursive bool) ([]*Info, error) {
	return inspectBundle(bundlePath, bundlePath, recursive)
}

func inspectBundle(bundlePath, rootPath string, recursive bool) ([]*Info, error) {
	execPath, err := ExecutablePath(bundlePath)
	if err != nil {
		// Framework bundles have no Contents/Info.plist; their executable
		// sits next to the Versions directory under the bundle name.
		name := strings.TrimSuffix(filepath.Base(bundlePath), filepath.Ext(bundlePath))
		execPath = filepath.Join(bundlePath, name)
	}

	info, err := InspectBinary(execPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", bundlePath, err)
	}

	if rel, err := filepath.Rel(filepath.Dir(rootPath), bundlePath); err == nil {
		info.RelativePath = rel
	} else {
		info.RelativePath = filepath.Base(bundlePath)
	}

	results := []*Info{info}
	if !recursive {
		return results, nil
	}

	for _, dir := range []string{"Frameworks", "PlugIns"} {
		entries, err := os.ReadDir(filepath.Join(bundlePath, "Contents", dir))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !isBundleDir(entry.Name()) {
				continue
			}
			nested, err := inspectBundle(filepath.Join(bundlePath, "Contents", dir, entry.Name()), rootPath, true)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
				continue
			}
			results = append(results, nested...)
		}
	}

	return results, nil
}

// PrintInfo writes a human-readable signature summary to w.
func PrintInfo(info *Info, w io.Writer) {
	display := info.RelativePath
	if display == "" {
		display = filepath.Base(info.Path)
	}
	fmt.Fprintf(w, "\n=== %s ===\n", display)

	if info.Identifier != "" {
		fmt.Fprintf(w, "Identifier: %s\n", info.Identifier)
	}
	if info.TeamID != "" {
		fmt.Fprintf(w, "Team ID:    %s\n", info.TeamID)
	}
	if info.CDHash != "" {
		fmt.Fprintf(w, "CDHash:     %s\n", info.CDHash)
	}
	if info.SignerCN != "" {
		fmt.Fprintf(w, "Signer:     %s\n", info.SignerCN)
		if info.SignerTeamID != "" {
			fmt.Fprintf(w, "Signer Team: %s\n", info.SignerTeamID)
		}
	}
	if len(info.Entitlements) > 0 {
		fmt.Fprintf(w, "Entitlements:\n")
		for key, value := range info.Entitlements {
			fmt.Fprintf(w, "  %s: %v\n", key, value)
		}
	}
}
