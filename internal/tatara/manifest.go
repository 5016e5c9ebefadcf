package tatara

import (
	"encoding/xml"
	"fmt"
	"path"
	"sort"
)

// ManifestEntry maps one source file into its destination path inside the
// deployed package.
type ManifestEntry struct {
	Source string `xml:"source,attr"`
	Dest   string `xml:"dest,attr"`
}

// PackageManifest describes a deployable vendor package: identity, copyright
// line, target architecture/ABI tokens, and file placements. Derivation is
// pure and deterministic given (unit, platform).
type PackageManifest struct {
	XMLName     xml.Name        `xml:"package"`
	Basename    string          `xml:"basename"`
	Description string          `xml:"description"`
	Copyright   string          `xml:"copyright"`
	Arch        string          `xml:"arch"`
	ABI         string          `xml:"abi"`
	Files       []ManifestEntry `xml:"files>file"`
}

// deriveManifest builds the package manifest for a unit on a platform,
// mapping the entry-point binary to the vendor-defined installation path.
func deriveManifest(unit BuildUnit, platform Platform, binary string) PackageManifest {
	m := PackageManifest{
		Basename:    unit.Bin,
		Description: unit.Description,
		Copyright:   platform.Copyright,
		Arch:        platform.Arch,
		ABI:         platform.ABI,
		Files: []ManifestEntry{
			{Source: binary, Dest: path.Join(platform.InstallPath, unit.Bin)},
		},
	}
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Dest < m.Files[j].Dest })
	return m
}

// Render serializes the manifest as stable indented XML.
func (m PackageManifest) Render() ([]byte, error) {
	data, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render manifest: %w", err)
	}
	return append([]byte(xml.Header), append(data, '\n')...), nil
}
