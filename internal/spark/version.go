package spark

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrUnknownVersion is returned when a requested minor version is not in the version map
var ErrUnknownVersion = errors.New("unsupported Spark version")

// Build pairs a supported Spark minor version with the patch release the SDK is compiled against
type Build struct {
	Minor string // Minor version key (e.g., "3.5")
	Patch string // Patch version passed to sbt (e.g., "3.5.1")
}

// VersionMap is the ordered table of supported Spark versions.
// Iteration order is the build order.
type VersionMap []Build

// DefaultVersionMap lists the Spark releases the uber-JARs are built against
var DefaultVersionMap = VersionMap{
	{Minor: "3.2", Patch: "3.2.4"},
	{Minor: "3.3", Patch: "3.3.4"},
	{Minor: "3.4", Patch: "3.4.3"},
	{Minor: "3.5", Patch: "3.5.1"},
}

var minorPattern = regexp.MustCompile(`^\s*v?(\d+)\.(\d+)`)

// Lookup returns the build entry for a minor version key
func (m VersionMap) Lookup(minor string) (Build, bool) {
	for _, b := range m {
		if b.Minor == minor {
			return b, true
		}
	}
	return Build{}, false
}

// Minors returns the minor version keys in map order
func (m VersionMap) Minors() []string {
	minors := make([]string, len(m))
	for i, b := range m {
		minors[i] = b.Minor
	}
	return minors
}

// Only restricts the map to a single minor version
func (m VersionMap) Only(minor string) (VersionMap, error) {
	b, ok := m.Lookup(minor)
	if !ok {
		return nil, fmt.Errorf("%w %q, supported: %s", ErrUnknownVersion, minor, strings.Join(m.Minors(), ", "))
	}
	return VersionMap{b}, nil
}

// Select restricts the map to the given minor versions, keeping map order
func (m VersionMap) Select(minors []string) (VersionMap, error) {
	want := make(map[string]bool, len(minors))
	for _, minor := range minors {
		if _, ok := m.Lookup(minor); !ok {
			return nil, fmt.Errorf("%w %q, supported: %s", ErrUnknownVersion, minor, strings.Join(m.Minors(), ", "))
		}
		want[minor] = true
	}

	selected := make(VersionMap, 0, len(want))
	for _, b := range m {
		if want[b.Minor] {
			selected = append(selected, b)
		}
	}
	return selected, nil
}

// Validate checks that keys are unique and that every patch version is a
// strict semantic version belonging to its minor key
func (m VersionMap) Validate() error {
	if len(m) == 0 {
		return errors.New("version map is empty")
	}

	seen := make(map[string]bool, len(m))
	for _, b := range m {
		if seen[b.Minor] {
			return fmt.Errorf("duplicate minor version %q", b.Minor)
		}
		seen[b.Minor] = true

		v, err := semver.StrictNewVersion(b.Patch)
		if err != nil {
			return fmt.Errorf("invalid patch version %q for %s: %w", b.Patch, b.Minor, err)
		}
		if got := fmt.Sprintf("%d.%d", v.Major(), v.Minor()); got != b.Minor {
			return fmt.Errorf("patch version %s does not belong to Spark %s", b.Patch, b.Minor)
		}
	}
	return nil
}

// String renders the map as "3.2=3.2.4, 3.3=3.3.4"
func (m VersionMap) String() string {
	parts := make([]string, len(m))
	for i, b := range m {
		parts[i] = b.Minor + "=" + b.Patch
	}
	return strings.Join(parts, ", ")
}

// MinorKey extracts the "major.minor" key from a version string such as
// "3.5.1", "3.4.0.dev0" or "4.0.0rc1"
func MinorKey(version string) (string, error) {
	matches := minorPattern.FindStringSubmatch(version)
	if len(matches) < 3 {
		return "", fmt.Errorf("cannot parse Spark version %q", version)
	}
	return matches[1] + "." + matches[2], nil
}
