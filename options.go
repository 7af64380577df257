package tagpull

import (
	"regexp"
	"strings"
)

// DefaultPrefix is the naming convention of template release tags.
const DefaultPrefix = "templates-v"

// Options configures tag resolution.
type Options struct {
	// Include positive regex filter applied to the full tag name; keep only tags that match.
	Include *regexp.Regexp

	// Exclude negative regex filter applied to the full tag name; drop tags that match.
	Exclude *regexp.Regexp

	// Prefix a tag name must start with to be eligible. Matched literally
	// and case-sensitively. Required.
	Prefix string

	// Malformed decides what happens to prefix-matching tags whose suffix
	// is not a valid version.
	Malformed MalformedPolicy

	// Format restricts accepted version forms (X / X.Y / X.Y.Z).
	// Zero value defaults to FormatXYZ.
	Format Format

	// Limit caps the number of entries returned by Candidates (<=0 = unlimited).
	// Resolve ignores it.
	Limit int

	// Stable drops pre-release versions (X.Y.Z-rc.1) from consideration.
	Stable bool
}

// DefaultOptions returns the preset for template release tags:
//
//   - Prefix:    "templates-v"
//   - Malformed: MalformedSkip   // broken suffixes are excluded
//   - Format:    FormatXYZ       // full X.Y.Z only
//   - Stable:    false           // pre-releases compete by precedence
func DefaultOptions() Options {
	return Options{
		Prefix:    DefaultPrefix,
		Malformed: MalformedSkip,
		Format:    FormatXYZ,
	}
}

// normalized returns a copy with implicit defaults applied.
func (o Options) normalized() Options {
	out := o
	if out.Format == 0 {
		out.Format = FormatXYZ
	}

	return out
}

// MalformedPolicy controls prefix-matching tags with unparsable version suffixes.
type MalformedPolicy uint8

const (
	// MalformedSkip excludes the tag from consideration.
	MalformedSkip MalformedPolicy = iota
	// MalformedLast keeps the tag but orders it below every valid version.
	MalformedLast
	// MalformedFail fails the whole resolution with ErrMalformed.
	MalformedFail
)

// String returns a stable textual representation for MalformedPolicy.
func (p MalformedPolicy) String() string {
	switch p {
	case MalformedLast:
		return "last"
	case MalformedFail:
		return "fail"
	default:
		return "skip"
	}
}

// ParseMalformed maps "skip", "last" or "fail" (case-insensitive) to a
// MalformedPolicy. Empty means skip.
func ParseMalformed(s string) (MalformedPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return MalformedSkip, true
	case "last":
		return MalformedLast, true
	case "fail":
		return MalformedFail, true
	default:
		return MalformedSkip, false
	}
}

// Format is a bitmask of allowed version forms: X / X.Y / X.Y.Z.
type Format uint8

const (
	// FormatXYZ allows X.Y.Z.
	FormatXYZ Format = 1 << iota
	// FormatXY allows X.Y.
	FormatXY
	// FormatX allows X.
	FormatX
	// FormatAll enables all forms (X, X.Y, X.Y.Z).
	FormatAll = FormatXYZ | FormatXY | FormatX
)

var formNames = [...]struct {
	name string
	form Format
}{
	{"x", FormatX},
	{"xy", FormatXY},
	{"xyz", FormatXYZ},
}

// String returns the dash-joined form names, e.g. "x-xyz".
func (f Format) String() string {
	parts := make([]string, 0, len(formNames))
	for _, n := range formNames {
		if f&n.form != 0 {
			parts = append(parts, n.name)
		}
	}

	if len(parts) == 0 {
		return "xyz"
	}

	return strings.Join(parts, "-")
}

// ParseFormat reads a set of forms joined by "-" or ",", e.g. "xy-xyz",
// or "any" for all of them. Empty means FormatXYZ.
func ParseFormat(s string) (Format, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return FormatXYZ, true
	case "any":
		return FormatAll, true
	}

	var mask Format
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == ',' }) {
		found := false
		for _, n := range formNames {
			if n.name == part {
				mask |= n.form
				found = true
			}
		}
		if !found {
			return FormatXYZ, false
		}
	}

	if mask == 0 {
		return FormatXYZ, false
	}

	return mask, true
}
