package remote

import "strings"

// ArchiveFormat selects the source archive flavor served for a tag.
type ArchiveFormat string

const (
	// ArchiveZip is the "zipball" archive.
	ArchiveZip ArchiveFormat = "zip"
	// ArchiveTarGz is the "tarball" archive.
	ArchiveTarGz ArchiveFormat = "tar.gz"
)

// Valid reports whether f is a known format.
func (f ArchiveFormat) Valid() bool {
	return f == ArchiveZip || f == ArchiveTarGz
}

func (f ArchiveFormat) endpoint() string {
	if f == ArchiveTarGz {
		return "tarball"
	}

	return "zipball"
}

// ParseArchiveFormat maps free-form tokens to ArchiveFormat.
// Supported aliases (case-insensitive):
//
//	zip:    "zip","zipball"
//	tar.gz: "tar.gz","tgz","tar","tarball"
func ParseArchiveFormat(s string) (ArchiveFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zip", "zipball":
		return ArchiveZip, true
	case "tar.gz", "tgz", "tar", "tarball":
		return ArchiveTarGz, true
	default:
		return "", false
	}
}
