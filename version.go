package tagpull

import (
	"strings"

	"github.com/woozymasta/semver"
)

// suffix returns the tag name with prefix stripped and whether prefix matched.
func suffix(name, prefix string) (string, bool) {
	if prefix == "" || !strings.HasPrefix(name, prefix) {
		return "", false
	}

	return name[len(prefix):], true
}

// parseVersion parses a tag suffix and applies the release form mask.
// Canonical strings are never printed, so the cheaper parser is used.
func parseVersion(s string, mask Format) (semver.Semver, bool) {
	v, ok := semver.Parse(s)
	if !ok || !v.IsValid() {
		return semver.Semver{}, false
	}

	if !formatAllowed(v, mask) {
		return semver.Semver{}, false
	}

	return v, true
}

// formatAllowed maps the release form mask to flags from the parsed version.
// X    => !HasMinor && !HasPatch
// X.Y  => HasMinor && !HasPatch
// X.Y.Z=> HasPatch
func formatAllowed(v semver.Semver, mask Format) bool {
	if v.HasPatch() {
		return (mask & FormatXYZ) != 0
	}

	if v.HasMinor() {
		return (mask & FormatXY) != 0
	}

	return (mask & FormatX) != 0
}

// samePrecedence compares MAJOR.MINOR.PATCH and PRERELEASE; build is ignored.
func samePrecedence(a, b semver.Semver) bool {
	return a.Major == b.Major &&
		a.Minor == b.Minor &&
		a.Patch == b.Patch &&
		a.Prerelease == b.Prerelease
}

// newer reports whether a takes precedence over b.
// Valid versions beat malformed ones; equal precedence keeps input order.
func newer(a, b Candidate) bool {
	switch {
	case a.Valid && !b.Valid:
		return true
	case !a.Valid && b.Valid:
		return false
	case !a.Valid && !b.Valid:
		return a.idx < b.idx
	}

	if samePrecedence(a.Version, b.Version) {
		return a.idx < b.idx
	}

	return a.Version.Compare(b.Version) > 0
}
