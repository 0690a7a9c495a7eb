// Package aedt locates an Ansys Electronics Desktop installation and runs
// transient circuit decks through its batch solver. A simulator interface
// decouples the pipeline from the real solver so that everything above it
// can run against a synthetic implementation.
package aedt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
)

// DefaultVersion is the release the tools assume when none is configured.
const DefaultVersion = "2025.1"

var versionPattern = regexp.MustCompile(`^20(\d{2})\.(\d)$`)

// VersionCode converts a marketing version like "2025.1" into the short
// code Ansys uses in environment variables and install paths ("251").
func VersionCode(version string) (string, error) {
	m := versionPattern.FindStringSubmatch(version)
	if m == nil {
		return "", fmt.Errorf("aedt: unrecognized version %q (want e.g. %q)", version, DefaultVersion)
	}
	return m[1] + m[2], nil
}

// Install describes a resolved desktop installation.
type Install struct {
	Version string
	Root    string
}

// Batch returns the path of the non-graphical batch solver executable.
func (in Install) Batch() string {
	name := "ansysedt"
	if runtime.GOOS == "windows" {
		name = "ansysedt.exe"
	}
	return filepath.Join(in.Root, name)
}

// Locate resolves an installation for the given version. The per-release
// ANSYSEM_ROOT<code> environment variable wins; otherwise the conventional
// install roots are probed.
func Locate(version string) (Install, error) {
	code, err := VersionCode(version)
	if err != nil {
		return Install{}, err
	}

	if root := os.Getenv("ANSYSEM_ROOT" + code); root != "" {
		if _, err := os.Stat(root); err != nil {
			return Install{}, fmt.Errorf("aedt: ANSYSEM_ROOT%s points at %s: %w", code, root, err)
		}
		return Install{Version: version, Root: root}, nil
	}

	var candidates []string
	if runtime.GOOS == "windows" {
		candidates = append(candidates,
			filepath.Join(`C:\Program Files\AnsysEM`, "v"+code, "Win64"),
			filepath.Join(`C:\Program Files\ANSYS Inc`, "v"+code, "AnsysEM"))
	} else {
		candidates = append(candidates,
			filepath.Join("/opt/AnsysEM", "v"+code, "Linux64"),
			filepath.Join("/usr/ansys_inc", "v"+code, "Linux64"))
	}
	for _, root := range candidates {
		if _, err := os.Stat(root); err == nil {
			return Install{Version: version, Root: root}, nil
		}
	}
	return Install{}, fmt.Errorf("aedt: version %s not found; set ANSYSEM_ROOT%s", version, code)
}
