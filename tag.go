package tagpull

import "github.com/woozymasta/semver"

// Tag is a single tag record as reported by the hosting API.
type Tag struct {
	// Name is the tag name, e.g. "templates-v2.4.1".
	Name string `json:"name" yaml:"name"`

	// ArchiveURL is the download location of the tag's source archive.
	ArchiveURL string `json:"archive_url" yaml:"archive_url"`
}

// Status is the outcome variant of a Resolution.
type Status uint8

const (
	// StatusNotFound means no tag matched; nothing to install. Not an error.
	StatusNotFound Status = iota
	// StatusFound means Resolution.Tag holds the selected tag.
	StatusFound
	// StatusFailed means resolution could not complete; see Resolution.Err.
	StatusFailed
)

// String returns a stable textual representation for Status.
func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusFailed:
		return "failed"
	default:
		return "not-found"
	}
}

// Resolution is the tri-state result of tag resolution.
type Resolution struct {
	// Err is set only for StatusFailed.
	Err error

	// Tag is set only for StatusFound.
	Tag Tag

	// Version is the parsed version suffix of Tag. It is the zero value
	// when the tag won under MalformedLast without a valid version.
	Version semver.Semver

	// Candidates is the number of tags that passed the prefix gate.
	Candidates int

	Status Status
}

// Found reports whether a tag was selected.
func (r Resolution) Found() bool { return r.Status == StatusFound }

// NotFound reports whether no tag matched.
func (r Resolution) NotFound() bool { return r.Status == StatusNotFound }

// Failed reports whether resolution failed.
func (r Resolution) Failed() bool { return r.Status == StatusFailed }

// Found wraps tag into a found Resolution. Useful for callers that pin a tag
// by name and still want to go through the installer contract.
func Found(tag Tag, v semver.Semver) Resolution {
	return Resolution{Status: StatusFound, Tag: tag, Version: v, Candidates: 1}
}

func notFound(candidates int) Resolution {
	return Resolution{Status: StatusNotFound, Candidates: candidates}
}

func failed(err error) Resolution {
	return Resolution{Status: StatusFailed, Err: err}
}

// Candidate is a prefix-matching tag together with its parsed version.
type Candidate struct {
	Tag Tag

	// Version is valid only when Valid is true.
	Version semver.Semver

	// Suffix is the tag name with the prefix stripped.
	Suffix string

	// Valid is false for malformed suffixes kept under MalformedLast.
	Valid bool

	idx int
}
